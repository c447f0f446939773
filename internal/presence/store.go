package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Member is one user currently viewing a document.
type Member struct {
	UserID   uint64    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Store keeps live connections per document. A user with several connections
// (tabs) is reported once by Members.
type Store interface {
	Add(ctx context.Context, documentID, userID uint64, connID string, joinedAt time.Time) error
	// Remove drops one connection and reports whether it was the user's last.
	Remove(ctx context.Context, documentID, userID uint64, connID string) (bool, error)
	Members(ctx context.Context, documentID uint64) ([]Member, error)
	// Refresh marks one connection as still alive.
	Refresh(ctx context.Context, documentID, userID uint64, connID string) error
}

// dedupe collapses connections to one Member per user; the latest join wins.
func dedupe(conns []Member) []Member {
	latest := make(map[uint64]time.Time, len(conns))
	for _, c := range conns {
		if t, ok := latest[c.UserID]; !ok || c.JoinedAt.After(t) {
			latest[c.UserID] = c.JoinedAt
		}
	}

	members := make([]Member, 0, len(latest))
	for id, t := range latest {
		members = append(members, Member{UserID: id, JoinedAt: t})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members
}

type MemoryStore struct {
	mu   sync.Mutex
	docs map[uint64]map[uint64]map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[uint64]map[uint64]map[string]time.Time)}
}

func (s *MemoryStore) Add(_ context.Context, documentID, userID uint64, connID string, joinedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.docs[documentID]
	if !ok {
		users = make(map[uint64]map[string]time.Time)
		s.docs[documentID] = users
	}
	if users[userID] == nil {
		users[userID] = make(map[string]time.Time)
	}
	users[userID][connID] = joinedAt
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, documentID, userID uint64, connID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.docs[documentID]
	conns := users[userID]
	if conns == nil {
		return true, nil
	}
	delete(conns, connID)
	if len(conns) > 0 {
		return false, nil
	}

	delete(users, userID)
	if len(users) == 0 {
		delete(s.docs, documentID)
	}
	return true, nil
}

func (s *MemoryStore) Members(_ context.Context, documentID uint64) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conns []Member
	for userID, byConn := range s.docs[documentID] {
		for _, joinedAt := range byConn {
			conns = append(conns, Member{UserID: userID, JoinedAt: joinedAt})
		}
	}
	return dedupe(conns), nil
}

func (s *MemoryStore) Refresh(context.Context, uint64, uint64, string) error {
	return nil
}
