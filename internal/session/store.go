// Package session keeps uploaded tables per dashboard session and memoizes parsing.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/errors"
	"treblereport/internal/report"
)

var logger = internal.DefaultLogger.With("SessionStore")

// Session is one user's loaded table and their latest report. Sessions never share
// mutable state; the table itself is read-only.
type Session struct {
	ID         uuid.UUID      `json:"id"`
	FileName   string         `json:"file_name"`
	CacheKey   string         `json:"-"`
	Table      *dataset.Table `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	LastAccess time.Time      `json:"last_access"`

	Report       *report.Result `json:"-"`
	ReportConfig *report.Config `json:"-"`
}

// Store defines session persistence
type Store interface {
	Create(ctx context.Context, fileName, cacheKey string, t *dataset.Table) (Session, error)
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	SetReport(ctx context.Context, id uuid.UUID, cfg report.Config, res *report.Result) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Session, error)
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int, error)
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*Session), now: time.Now}
}

// Create registers a new session for a decoded table
func (s *MemoryStore) Create(ctx context.Context, fileName, cacheKey string, t *dataset.Table) (Session, error) {
	if t == nil {
		return Session{}, errors.InvalidInput("session requires a table")
	}
	now := s.now()
	sess := &Session{
		ID:         uuid.New(),
		FileName:   fileName,
		CacheKey:   cacheKey,
		Table:      t,
		CreatedAt:  now,
		LastAccess: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logger.Info("created session %s for %s (%d rows)", sess.ID, fileName, len(t.Rows))
	return *sess, nil
}

// Get returns a snapshot of the session and refreshes its last access time
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, errors.NotFound("session " + id.String())
	}
	sess.LastAccess = s.now()
	return *sess, nil
}

// SetReport stores the latest report and the configuration that produced it
func (s *MemoryStore) SetReport(ctx context.Context, id uuid.UUID, cfg report.Config, res *report.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errors.NotFound("session " + id.String())
	}
	sess.Report = res
	sess.ReportConfig = &cfg
	sess.LastAccess = s.now()
	return nil
}

// Delete removes a session; deleting an unknown session is not an error
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// List returns snapshots of every session, oldest first
func (s *MemoryStore) List(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CleanupExpired removes sessions idle for longer than olderThan
func (s *MemoryStore) CleanupExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if sess.LastAccess.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Info("removed %d expired sessions", removed)
	}
	return removed, nil
}

// RunCleanup calls CleanupExpired every interval until ctx is done
func RunCleanup(ctx context.Context, store Store, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.CleanupExpired(ctx, ttl); err != nil && ctx.Err() == nil {
				logger.Error("cleanup failed: %v", err)
			}
		}
	}
}
