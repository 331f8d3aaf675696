// Package session keeps per-client values in memory, keyed by UUID, and
// drops the ones that have been idle for too long.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// Store holds one value per session. New values come from the factory;
// release is called when a session is deleted or expires.
type Store[T any] struct {
	mu       sync.Mutex
	sessions map[string]*entry[T]

	ttl     time.Duration
	factory func() T
	release func(T)
	now     func() time.Time
	logger  *zap.Logger
}

// NewStore returns an empty store. A ttl of zero disables expiry.
func NewStore[T any](ttl time.Duration, factory func() T, release func(T), logger *zap.Logger) *Store[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store[T]{
		sessions: make(map[string]*entry[T]),
		ttl:      ttl,
		factory:  factory,
		release:  release,
		now:      time.Now,
		logger:   logger,
	}
}

// Create starts a new session.
func (s *Store[T]) Create() (string, T) {
	id := uuid.New().String()
	v := s.factory()

	s.mu.Lock()
	s.sessions[id] = &entry[T]{value: v, lastSeen: s.now()}
	s.mu.Unlock()

	return id, v
}

// Get returns the session value and marks the session as used.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		var zero T
		return zero, ErrNotFound
	}
	e.lastSeen = s.now()
	return e.value, nil
}

func (s *Store[T]) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.drop(e.value)
	return nil
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store[T]) Sweep() int {
	var dropped []T

	s.mu.Lock()
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			dropped = append(dropped, e.value)
		}
	}
	s.mu.Unlock()

	for _, v := range dropped {
		s.drop(v)
	}
	return len(dropped)
}

// Run sweeps every interval until ctx is done.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

func (s *Store[T]) expired(e *entry[T]) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}

func (s *Store[T]) drop(v T) {
	if s.release != nil {
		s.release(v)
	}
}
