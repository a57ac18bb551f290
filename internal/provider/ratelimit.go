package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RequestSpacer serializes calls to one upstream and keeps a minimum
// interval between them
type RequestSpacer struct {
	sem         *semaphore.Weighted
	mu          sync.Mutex
	last        time.Time
	minInterval time.Duration
}

// NewRequestSpacer creates a spacer; a zero interval only serializes
func NewRequestSpacer(minInterval time.Duration) *RequestSpacer {
	return &RequestSpacer{
		sem:         semaphore.NewWeighted(1),
		minInterval: minInterval,
	}
}

// Acquire blocks until the caller may issue a request. Release must follow.
func (s *RequestSpacer) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	for {
		s.mu.Lock()
		wait := s.minInterval - time.Since(s.last)
		if wait <= 0 {
			s.last = time.Now()
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			s.sem.Release(1)
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Release frees the slot taken by Acquire
func (s *RequestSpacer) Release() {
	s.sem.Release(1)
}
