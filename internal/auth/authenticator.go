// Package auth validates handshakes and owns the session table that binds
// socket addresses to authenticated users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Armagedda/whisper-fleet-link/internal/protocol"
	"github.com/Armagedda/whisper-fleet-link/internal/store"
	"github.com/Armagedda/whisper-fleet-link/internal/util"
)

// Handshake failure modes. The error strings double as the machine-stable
// reason codes carried in Error packets.
var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrNotAMember   = errors.New("not_a_member")
	ErrBanned       = errors.New("banned")
)

// Session binds a socket address to an authenticated user within a channel.
type Session struct {
	ID           string
	UserID       string
	ChannelID    string
	Addr         *net.UDPAddr
	CreatedAt    time.Time
	LastActivity time.Time
}

// Authenticator verifies handshakes against the JWT secret and the external
// membership store, and keeps the address-keyed session table.
type Authenticator struct {
	secret           []byte
	membership       store.Membership
	handshakeTimeout time.Duration

	mu       sync.RWMutex
	byAddr   map[string]*Session
	byUserCh map[string]string // userID|channelID -> addr
}

// NewAuthenticator creates an authenticator with an empty session table.
func NewAuthenticator(secret string, membership store.Membership, handshakeTimeout time.Duration) *Authenticator {
	return &Authenticator{
		secret:           []byte(secret),
		membership:       membership,
		handshakeTimeout: handshakeTimeout,
		byAddr:           make(map[string]*Session),
		byUserCh:         make(map[string]string),
	}
}

// Authenticate runs the full handshake: token verification, membership and
// ban checks, then session creation. Store round-trips are bounded by the
// handshake timeout. On success the returned session is registered under
// addr; a prior session for the same (user, channel) pair at a different
// address is invalidated.
func (a *Authenticator) Authenticate(ctx context.Context, hs protocol.HandshakeData, addr *net.UDPAddr) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, a.handshakeTimeout)
	defer cancel()

	userID, err := a.verifyToken(hs.Token)
	if err != nil {
		return Session{}, err
	}

	if err := a.authorize(ctx, userID, hs.ChannelID); err != nil {
		return Session{}, err
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		ChannelID:    hs.ChannelID,
		Addr:         addr,
		CreatedAt:    now,
		LastActivity: now,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Reconnect from a new address supersedes the old session.
	key := userKey(userID, hs.ChannelID)
	if oldAddr, ok := a.byUserCh[key]; ok && oldAddr != addr.String() {
		util.LogInfo("session for %s/%s superseded: %s -> %s", userID, hs.ChannelID, oldAddr, addr)
		delete(a.byAddr, oldAddr)
	}
	// At most one session per address; a new handshake replaces it.
	if old, ok := a.byAddr[addr.String()]; ok {
		delete(a.byUserCh, userKey(old.UserID, old.ChannelID))
	}
	a.byAddr[addr.String()] = s
	a.byUserCh[key] = addr.String()

	return *s, nil
}

// Authorize re-checks membership and ban status for an already
// authenticated user, bounded by the handshake timeout. Used when a session
// switches channels.
func (a *Authenticator) Authorize(ctx context.Context, userID, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.handshakeTimeout)
	defer cancel()
	return a.authorize(ctx, userID, channelID)
}

func (a *Authenticator) authorize(ctx context.Context, userID, channelID string) error {
	member, err := a.membership.IsMember(ctx, userID, channelID)
	if err != nil {
		return fmt.Errorf("membership lookup for %s/%s: %w", userID, channelID, err)
	}
	if !member {
		return ErrNotAMember
	}

	banned, err := a.membership.IsBanned(ctx, userID, channelID)
	if err != nil {
		return fmt.Errorf("ban lookup for %s/%s: %w", userID, channelID, err)
	}
	if banned {
		return ErrBanned
	}
	return nil
}

// verifyToken checks the JWT signature and expiry and extracts the user ID
// from the subject claim. Every failure collapses to ErrInvalidToken; the
// client gets no oracle for why its token was rejected.
func (a *Authenticator) verifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// SessionByAddr looks up the session for a socket address.
func (a *Authenticator) SessionByAddr(addr *net.UDPAddr) (Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.byAddr[addr.String()]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Touch refreshes the activity timestamp of the session at addr.
func (a *Authenticator) Touch(addr *net.UDPAddr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.byAddr[addr.String()]
	if !ok {
		return false
	}
	s.LastActivity = time.Now()
	return true
}

// SetChannel rebinds the session at addr to a new channel (JoinChannel).
func (a *Authenticator) SetChannel(addr *net.UDPAddr, channelID string) (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.byAddr[addr.String()]
	if !ok {
		return Session{}, false
	}
	delete(a.byUserCh, userKey(s.UserID, s.ChannelID))
	s.ChannelID = channelID
	s.LastActivity = time.Now()
	a.byUserCh[userKey(s.UserID, channelID)] = addr.String()
	return *s, true
}

// Remove destroys the session at addr and returns it.
func (a *Authenticator) Remove(addr *net.UDPAddr) (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.byAddr[addr.String()]
	if !ok {
		return Session{}, false
	}
	delete(a.byAddr, addr.String())
	delete(a.byUserCh, userKey(s.UserID, s.ChannelID))
	return *s, true
}

// SweepIdle removes every session whose last activity is older than timeout
// and returns the evicted sessions.
func (a *Authenticator) SweepIdle(timeout time.Duration) []Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	var evicted []Session
	for addr, s := range a.byAddr {
		if s.LastActivity.Before(cutoff) {
			evicted = append(evicted, *s)
			delete(a.byAddr, addr)
			delete(a.byUserCh, userKey(s.UserID, s.ChannelID))
		}
	}
	return evicted
}

// Count returns the number of live sessions.
func (a *Authenticator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byAddr)
}

func userKey(userID, channelID string) string {
	return userID + "|" + channelID
}
