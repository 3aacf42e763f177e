package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-radar/internal/radar"
)

var (
	// ErrNotFound is returned when no frames match a query.
	ErrNotFound = errors.New("no radar frames found")
)

// MemoryStore is a concurrency-safe in-memory frame history, kept ordered
// oldest to newest with at most one frame per timestamp.
type MemoryStore struct {
	mu     sync.RWMutex
	frames []radar.Frame

	// retention configuration
	maxHistory int           // max number of frames kept
	maxAge     time.Duration // optional max age for frames

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveFrame inserts frame in timestamp order, replacing any frame with the
// same timestamp, and enforces retention.
func (s *MemoryStore) SaveFrame(_ context.Context, frame radar.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.frames), func(i int) bool {
		return !s.frames[i].Timestamp.Before(frame.Timestamp)
	})
	switch {
	case i < len(s.frames) && s.frames[i].Timestamp.Equal(frame.Timestamp):
		s.frames[i] = frame
	default:
		s.frames = append(s.frames, radar.Frame{})
		copy(s.frames[i+1:], s.frames[i:])
		s.frames[i] = frame
	}

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.frames) > s.maxHistory {
		over := len(s.frames) - s.maxHistory
		s.frames = append([]radar.Frame(nil), s.frames[over:]...)
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.frames); i++ {
			if !s.frames[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.frames = append([]radar.Frame(nil), s.frames[i:]...)
		}
	}
	return nil
}

// GetLatest returns the most recent frame.
func (s *MemoryStore) GetLatest(_ context.Context) (radar.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.frames) == 0 {
		return radar.Frame{}, ErrNotFound
	}
	return s.frames[len(s.frames)-1], nil
}

// GetRange returns all frames between from and to (inclusive), oldest first.
func (s *MemoryStore) GetRange(_ context.Context, from, to time.Time) (radar.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result radar.Batch
	for _, f := range s.frames {
		if !f.Timestamp.Before(from) && !f.Timestamp.After(to) {
			result = append(result, f)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Len reports how many frames are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Close is a no-op so MemoryStore satisfies the same shape as PostgresStore.
func (s *MemoryStore) Close() {}
