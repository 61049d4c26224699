package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/jonboulle/clockwork"
)

const cleanupInterval = 5 * time.Minute

type memoryEntry struct {
	rec       AssessmentRecord
	expiresAt time.Time
}

// MemoryAssessmentStore keeps records for ttl after their last update.
// Expired records are dropped by a background sweep that rebuilds the map.
type MemoryAssessmentStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clockwork.Clock
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryAssessmentStore(ttl time.Duration, clock clockwork.Clock) *MemoryAssessmentStore {
	s := &MemoryAssessmentStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clock,
		stop:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *MemoryAssessmentStore) Create(_ context.Context, id string, userID int) error {
	now := s.clock.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && now.Before(e.expiresAt) {
		return ErrAssessmentExists
	}
	s.entries[id] = memoryEntry{
		rec: AssessmentRecord{
			ID:        id,
			UserID:    userID,
			Status:    StatusProcessing,
			CreatedAt: now,
			UpdatedAt: now,
		},
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryAssessmentStore) Complete(_ context.Context, id string, result *assessment.RiskAssessment) error {
	return s.update(id, func(rec *AssessmentRecord) {
		rec.Status = StatusCompleted
		rec.Result = result
	})
}

func (s *MemoryAssessmentStore) Fail(_ context.Context, id string, reason string) error {
	return s.update(id, func(rec *AssessmentRecord) {
		rec.Status = StatusFailed
		rec.Error = reason
	})
}

func (s *MemoryAssessmentStore) update(id string, fn func(*AssessmentRecord)) error {
	now := s.clock.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !now.Before(e.expiresAt) {
		return ErrAssessmentNotFound
	}
	fn(&e.rec)
	e.rec.UpdatedAt = now
	e.expiresAt = now.Add(s.ttl)
	s.entries[id] = e
	return nil
}

func (s *MemoryAssessmentStore) Get(_ context.Context, id string) (AssessmentRecord, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return AssessmentRecord{}, ErrAssessmentNotFound
	}
	return e.rec, nil
}

func (s *MemoryAssessmentStore) List(_ context.Context, userID, limit int) ([]AssessmentSummary, error) {
	now := s.clock.Now()
	s.mu.RLock()
	out := []AssessmentSummary{}
	for _, e := range s.entries {
		if e.rec.UserID == userID && now.Before(e.expiresAt) {
			out = append(out, summarize(e.rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len counts stored entries, including expired ones not yet swept.
func (s *MemoryAssessmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine.
func (s *MemoryAssessmentStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryAssessmentStore) cleanup() {
	ticker := s.clock.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			now := s.clock.Now()
			s.mu.Lock()
			fresh := make(map[string]memoryEntry, len(s.entries)/2)
			for k, v := range s.entries {
				if now.Before(v.expiresAt) {
					fresh[k] = v
				}
			}
			s.entries = fresh
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
