package visitors

import (
	"context"
	"sync"
)

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	exists  bool
	ledger  Ledger
	members map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{members: make(map[string]struct{})}
}

func (s *MemoryStore) Get(ctx context.Context) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return Ledger{}, ErrLedgerNotFound
	}
	l := s.ledger
	l.Visitors = append([]string(nil), s.ledger.Visitors...)
	return l, nil
}

func (s *MemoryStore) Create(ctx context.Context, l Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists {
		return ErrLedgerExists
	}
	s.exists = true
	s.ledger = Ledger{TotalVisitors: l.TotalVisitors, TotalVisits: l.TotalVisits}
	for _, id := range l.Visitors {
		if _, ok := s.members[id]; ok {
			continue
		}
		s.members[id] = struct{}{}
		s.ledger.Visitors = append(s.ledger.Visitors, id)
	}
	return nil
}

func (s *MemoryStore) IncrementVisits(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return ErrLedgerNotFound
	}
	s.ledger.TotalVisits++
	return nil
}

func (s *MemoryStore) AddVisitor(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return false, ErrLedgerNotFound
	}
	if _, ok := s.members[id]; ok {
		return false, nil
	}
	s.members[id] = struct{}{}
	s.ledger.Visitors = append(s.ledger.Visitors, id)
	s.ledger.TotalVisitors++
	return true, nil
}
