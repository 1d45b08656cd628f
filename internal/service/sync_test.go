package service

import (
	"sync"
	"testing"
	"time"

	"github.com/pildhora/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSyncBackoff_DoublesUpToCap(t *testing.T) {
	s := &SyncService{
		cfg: config.SyncConfig{
			BackoffBase: 2 * time.Second,
			BackoffCap:  60 * time.Second,
		},
	}

	expected := []time.Duration{
		2 * time.Second,  // streak 1
		4 * time.Second,  // streak 2
		8 * time.Second,  // streak 3
		16 * time.Second, // streak 4
		32 * time.Second, // streak 5
		60 * time.Second, // streak 6, capped
		60 * time.Second, // streak 7, stays capped
	}

	for i, want := range expected {
		s.failureStreak.Store(int64(i + 1))
		assert.Equal(t, want, s.backoff(), "streak %d", i+1)
	}
}

func TestSyncBackoff_CapBelowDoubling(t *testing.T) {
	s := &SyncService{
		cfg: config.SyncConfig{
			BackoffBase: 10 * time.Second,
			BackoffCap:  15 * time.Second,
		},
	}

	s.failureStreak.Store(1)
	assert.Equal(t, 10*time.Second, s.backoff())

	s.failureStreak.Store(2)
	assert.Equal(t, 15*time.Second, s.backoff())
}

// The streak is bumped by the worker loop and reset by requeue calls on
// handler goroutines, so concurrent access must stay race-free.
func TestSyncBackoff_ConcurrentStreakReset(t *testing.T) {
	s := &SyncService{
		cfg: config.SyncConfig{
			BackoffBase: 2 * time.Second,
			BackoffCap:  60 * time.Second,
		},
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.failureStreak.Add(1)
			wait := s.backoff()
			assert.GreaterOrEqual(t, wait, s.cfg.BackoffBase)
			assert.LessOrEqual(t, wait, s.cfg.BackoffCap)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.failureStreak.Store(0)
		}
	}()

	wg.Wait()
}
