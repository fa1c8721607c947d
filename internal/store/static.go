package store

import (
	"context"
	"sync"
)

// StaticStore is an in-memory Membership implementation used in tests and
// for standalone development runs without a Postgres instance.
type StaticStore struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // channelID -> userID -> present
	bans    map[string]map[string]bool
}

// NewStaticStore creates an empty store.
func NewStaticStore() *StaticStore {
	return &StaticStore{
		members: make(map[string]map[string]bool),
		bans:    make(map[string]map[string]bool),
	}
}

// AddMember records userID as a member of channelID.
func (s *StaticStore) AddMember(channelID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[channelID] == nil {
		s.members[channelID] = make(map[string]bool)
	}
	s.members[channelID][userID] = true
}

// Ban records userID as banned from channelID.
func (s *StaticStore) Ban(channelID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bans[channelID] == nil {
		s.bans[channelID] = make(map[string]bool)
	}
	s.bans[channelID][userID] = true
}

func (s *StaticStore) IsMember(_ context.Context, userID, channelID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[channelID][userID], nil
}

func (s *StaticStore) IsBanned(_ context.Context, userID, channelID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bans[channelID][userID], nil
}
