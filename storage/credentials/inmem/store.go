package inmemstore

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/vims/core/auth"
)

type (
	entry struct {
		data      []byte
		expiresAt time.Time
	}

	store struct {
		table  map[string]entry
		maxTTL time.Duration
		now    func() time.Time
		mutex  sync.RWMutex
	}
)

var _ auth.Store = (*store)(nil)

// NewStore returns a process-local credential store. Entries live until their tokens expire,
// at most maxTTL.
func NewStore(maxTTL time.Duration) *store {
	return &store{
		table:  make(map[string]entry),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

func (s *store) Get(ctx context.Context, sessionID string) (*auth.Bundle, error) {
	s.mutex.RLock()
	e, ok := s.table[sessionID]
	s.mutex.RUnlock()
	if !ok {
		return nil, nil
	}

	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		return nil, s.Clear(ctx, sessionID)
	}

	b, err := auth.DecodeBundle(e.data)
	if err != nil {
		return nil, s.Clear(ctx, sessionID)
	}
	return b, nil
}

func (s *store) Set(ctx context.Context, sessionID string, b auth.Bundle) error {
	data, err := auth.EncodeBundle(b)
	if err != nil {
		return err
	}
	s.setRaw(sessionID, data, b.TTL(s.now(), s.maxTTL))
	return nil
}

func (s *store) setRaw(sessionID string, data []byte, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mutex.Lock()
	s.table[sessionID] = entry{data: data, expiresAt: exp}
	s.mutex.Unlock()
}

func (s *store) Clear(_ context.Context, sessionID string) error {
	s.mutex.Lock()
	delete(s.table, sessionID)
	s.mutex.Unlock()
	return nil
}

// Len is the number of stored sessions, expired ones included.
func (s *store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.table)
}
