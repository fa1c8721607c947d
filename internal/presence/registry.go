// Package presence tracks which users are connected, in which channel, and
// whether they are muted. It is the single source of truth for broadcast
// targets and is mutated only via the registry methods below.
package presence

import (
	"net"
	"sync"
	"time"
)

// Member is a read-only snapshot of one channel member.
type Member struct {
	UserID   string
	Addr     *net.UDPAddr
	Muted    bool
	JoinedAt time.Time
	LastSeen time.Time
}

// Registry is the in-memory presence state. All methods are safe for
// concurrent use; reads return copies so broadcast iteration never observes
// a half-removed member.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]*member // channelID -> userID -> member
	users    map[string]string             // userID -> channelID
	byAddr   map[string]string             // addr -> userID
}

type member struct {
	userID   string
	addr     *net.UDPAddr
	muted    bool
	joinedAt time.Time
	lastSeen time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]*member),
		users:    make(map[string]string),
		byAddr:   make(map[string]string),
	}
}

// Join registers the user in the given channel. A user is in at most one
// channel: any previous membership (same or different channel, same or
// different address) is removed first.
func (r *Registry) Join(userID, channelID string, addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(userID)

	ch := r.channels[channelID]
	if ch == nil {
		ch = make(map[string]*member)
		r.channels[channelID] = ch
	}
	now := time.Now()
	ch[userID] = &member{
		userID:   userID,
		addr:     addr,
		muted:    false,
		joinedAt: now,
		lastSeen: now,
	}
	r.users[userID] = channelID
	r.byAddr[addr.String()] = userID
}

// Leave removes the user's membership. It returns the channel the user was
// in and whether a membership existed.
func (r *Registry) Leave(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelID, ok := r.users[userID]
	if !ok {
		return "", false
	}
	r.removeLocked(userID)
	return channelID, true
}

// removeLocked drops the user from every index. Empty channel records are
// deleted from the registry only; channel lifecycle belongs to the external
// store.
func (r *Registry) removeLocked(userID string) {
	channelID, ok := r.users[userID]
	if !ok {
		return
	}
	if ch := r.channels[channelID]; ch != nil {
		if m := ch[userID]; m != nil {
			delete(r.byAddr, m.addr.String())
		}
		delete(ch, userID)
		if len(ch) == 0 {
			delete(r.channels, channelID)
		}
	}
	delete(r.users, userID)
}

// SetMute updates the user's mute flag. The update is idempotent; the first
// return value reports whether the flag actually changed, the second whether
// the user was found.
func (r *Registry) SetMute(userID string, muted bool) (changed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelID, found := r.users[userID]
	if !found {
		return false, false
	}
	m := r.channels[channelID][userID]
	if m.muted == muted {
		return false, true
	}
	m.muted = muted
	return true, true
}

// Touch refreshes the activity timestamp of the member at the given address.
func (r *Registry) Touch(addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byAddr[addr.String()]
	if !ok {
		return
	}
	if channelID, found := r.users[userID]; found {
		r.channels[channelID][userID].lastSeen = time.Now()
	}
}

// MembersOf returns a snapshot of every member of the channel. The slice and
// its entries are copies; mutating them has no effect on the registry.
func (r *Registry) MembersOf(channelID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch := r.channels[channelID]
	if len(ch) == 0 {
		return nil
	}
	out := make([]Member, 0, len(ch))
	for _, m := range ch {
		out = append(out, Member{
			UserID:   m.userID,
			Addr:     m.addr,
			Muted:    m.muted,
			JoinedAt: m.joinedAt,
			LastSeen: m.lastSeen,
		})
	}
	return out
}

// ChannelOf returns the channel the user currently belongs to.
func (r *Registry) ChannelOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channelID, ok := r.users[userID]
	return channelID, ok
}

// Muted reports the user's mute flag.
func (r *Registry) Muted(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if channelID, ok := r.users[userID]; ok {
		return r.channels[channelID][userID].muted
	}
	return false
}

// Counts returns the number of channels and connected users, for metrics.
func (r *Registry) Counts() (channels, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels), len(r.users)
}
