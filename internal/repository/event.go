package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// EventRepository manages the append-only medication event log. Events
// are written in the same transaction as the mutation they describe
// (outbox), then flushed by the sync service.
type EventRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *pgxpool.Pool, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts an event inside the caller's transaction with
// sync_status pending. Events are never updated afterwards except for
// their delivery bookkeeping.
func (r *EventRepository) Append(ctx context.Context, tx pgx.Tx, event *model.MedicationEvent) error {
	changes, err := json.Marshal(event.Changes)
	if err != nil {
		return fmt.Errorf("failed to marshal event changes: %w", err)
	}

	query := `
		INSERT INTO medication_events (
			id, medication_id, patient_id, actor_id, actor_role, type,
			medication_name, snapshot, changes, sync_status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, NOW())
	`

	_, err = tx.Exec(ctx, query,
		event.ID,
		event.MedicationID,
		event.PatientID,
		event.ActorID,
		event.ActorRole,
		event.Type,
		event.MedicationName,
		event.Snapshot,
		changes,
		model.SyncPending,
	)

	if err != nil {
		r.logger.Error("failed to append medication event",
			zap.Error(err),
			zap.String("medication_id", event.MedicationID),
			zap.String("type", string(event.Type)),
		)
		return fmt.Errorf("failed to append medication event: %w", err)
	}

	return nil
}

// ListPending returns up to limit pending events in insertion order
func (r *EventRepository) ListPending(ctx context.Context, limit int) ([]model.MedicationEvent, error) {
	query := `
		SELECT id, medication_id, patient_id, actor_id, actor_role, type,
		       medication_name, snapshot, changes, sync_status, attempts,
		       created_at, delivered_at
		FROM medication_events
		WHERE sync_status = $1
		ORDER BY created_at, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, model.SyncPending, limit)
	if err != nil {
		r.logger.Error("failed to list pending events", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}
	defer rows.Close()

	return r.collectEvents(rows)
}

// ListByPatient returns the most recent events for a patient, newest
// first, for the caregiver activity feed.
func (r *EventRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]model.MedicationEvent, error) {
	query := `
		SELECT id, medication_id, patient_id, actor_id, actor_role, type,
		       medication_name, snapshot, changes, sync_status, attempts,
		       created_at, delivered_at
		FROM medication_events
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, patientID, limit)
	if err != nil {
		r.logger.Error("failed to list patient events", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list patient events: %w", err)
	}
	defer rows.Close()

	return r.collectEvents(rows)
}

// MarkDelivered transitions a pending event to delivered
func (r *EventRepository) MarkDelivered(ctx context.Context, eventID string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE medication_events SET sync_status = $1, delivered_at = NOW() WHERE id = $2 AND sync_status = $3`,
		model.SyncDelivered, eventID, model.SyncPending,
	)
	if err != nil {
		r.logger.Error("failed to mark event delivered", zap.Error(err), zap.String("event_id", eventID))
		return fmt.Errorf("failed to mark event delivered: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	return nil
}

// RecordFailedAttempt increments the delivery counter and parks the
// event as failed once it exhausts maxAttempts, so one undeliverable
// event cannot wedge the FIFO queue.
func (r *EventRepository) RecordFailedAttempt(ctx context.Context, eventID string, maxAttempts int) error {
	query := `
		UPDATE medication_events
		SET attempts = attempts + 1,
		    sync_status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE sync_status END
		WHERE id = $3 AND sync_status = $4
	`

	_, err := r.db.Exec(ctx, query, maxAttempts, model.SyncFailed, eventID, model.SyncPending)
	if err != nil {
		r.logger.Error("failed to record delivery attempt", zap.Error(err), zap.String("event_id", eventID))
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	return nil
}

// RequeueFailed returns failed events for a patient to pending so a
// support action can retry them
func (r *EventRepository) RequeueFailed(ctx context.Context, patientID string) (int, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE medication_events SET sync_status = $1, attempts = 0 WHERE patient_id = $2 AND sync_status = $3`,
		model.SyncPending, patientID, model.SyncFailed,
	)
	if err != nil {
		r.logger.Error("failed to requeue events", zap.Error(err), zap.String("patient_id", patientID))
		return 0, fmt.Errorf("failed to requeue events: %w", err)
	}

	return int(result.RowsAffected()), nil
}

func (r *EventRepository) collectEvents(rows pgx.Rows) ([]model.MedicationEvent, error) {
	var events []model.MedicationEvent
	for rows.Next() {
		var event model.MedicationEvent
		var changes []byte
		err := rows.Scan(
			&event.ID,
			&event.MedicationID,
			&event.PatientID,
			&event.ActorID,
			&event.ActorRole,
			&event.Type,
			&event.MedicationName,
			&event.Snapshot,
			&changes,
			&event.SyncStatus,
			&event.Attempts,
			&event.CreatedAt,
			&event.DeliveredAt,
		)
		if err != nil {
			r.logger.Error("failed to scan medication event", zap.Error(err))
			continue
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &event.Changes); err != nil {
				r.logger.Error("failed to unmarshal event changes", zap.Error(err), zap.String("event_id", event.ID))
			}
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
