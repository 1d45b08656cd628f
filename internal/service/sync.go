package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pildhora/backend/internal/config"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// EventPublisher delivers medication events to caregiver feeds
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.MedicationEvent) error
}

// SyncService drains the medication event outbox into caregiver feeds.
// Delivery is FIFO per flush, single-flight, and backs off
// exponentially after a failed flush. Events that keep failing past the
// attempt budget are parked as failed until requeued.
type SyncService struct {
	eventRepo *repository.EventRepository
	publisher EventPublisher
	cfg       config.SyncConfig
	logger    *zap.Logger

	flushing atomic.Bool

	// Written by Run and by Requeue on handler goroutines.
	failureStreak atomic.Int64
}

// NewSyncService creates a new SyncService
func NewSyncService(
	eventRepo *repository.EventRepository,
	publisher EventPublisher,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		eventRepo: eventRepo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run flushes the outbox on the configured interval until the context
// is cancelled. After a failed flush the next attempt waits for the
// backoff delay instead of the regular interval.
func (s *SyncService) Run(ctx context.Context) {
	s.logger.Info("sync worker started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync worker stopped")
			return
		case <-timer.C:
		}

		delivered, failed := s.Flush(ctx)

		wait := s.cfg.Interval
		if failed > 0 && delivered == 0 {
			streak := s.failureStreak.Add(1)
			wait = s.backoff()
			s.logger.Warn("sync flush failing, backing off",
				zap.Int64("streak", streak),
				zap.Duration("wait", wait),
			)
		} else {
			s.failureStreak.Store(0)
		}

		timer.Reset(wait)
	}
}

// Flush delivers one batch of pending events in creation order.
// Concurrent calls are collapsed: if a flush is already running the
// call returns immediately. Returns delivered and failed counts.
func (s *SyncService) Flush(ctx context.Context) (delivered, failed int) {
	if !s.flushing.CompareAndSwap(false, true) {
		return 0, 0
	}
	defer s.flushing.Store(false)

	events, err := s.eventRepo.ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to list pending events", zap.Error(err))
		return 0, 1
	}
	if len(events) == 0 {
		return 0, 0
	}

	for i := range events {
		event := &events[i]
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			failed++
			s.logger.Warn("failed to deliver event",
				zap.Error(err),
				zap.String("event_id", event.ID),
				zap.Int("attempts", event.Attempts+1),
			)
			if markErr := s.eventRepo.RecordFailedAttempt(ctx, event.ID, s.cfg.MaxAttempts); markErr != nil {
				s.logger.Error("failed to record delivery attempt", zap.Error(markErr), zap.String("event_id", event.ID))
			}
			// Stop the batch on the first failure to preserve ordering
			// within the patient's feed.
			break
		}

		if err := s.eventRepo.MarkDelivered(ctx, event.ID); err != nil {
			s.logger.Error("failed to mark event delivered", zap.Error(err), zap.String("event_id", event.ID))
			failed++
			break
		}
		delivered++
	}

	if delivered > 0 {
		s.logger.Info("events delivered", zap.Int("count", delivered))
	}

	return delivered, failed
}

// Requeue moves a patient's failed events back to pending so the next
// flush retries them.
func (s *SyncService) Requeue(ctx context.Context, patientID string) (int, error) {
	count, err := s.eventRepo.RequeueFailed(ctx, patientID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.failureStreak.Store(0)
		s.logger.Info("failed events requeued",
			zap.String("patient_id", patientID),
			zap.Int("count", count),
		)
	}

	return count, nil
}

// Events returns a patient's most recent events, newest first
func (s *SyncService) Events(ctx context.Context, patientID string, limit int) ([]model.MedicationEvent, error) {
	return s.eventRepo.ListByPatient(ctx, patientID, limit)
}

// backoff returns the delay for the current failure streak, doubling
// from the base up to the cap.
func (s *SyncService) backoff() time.Duration {
	wait := s.cfg.BackoffBase
	streak := s.failureStreak.Load()
	for i := int64(1); i < streak; i++ {
		wait *= 2
		if wait >= s.cfg.BackoffCap {
			return s.cfg.BackoffCap
		}
	}
	if wait > s.cfg.BackoffCap {
		return s.cfg.BackoffCap
	}
	return wait
}
