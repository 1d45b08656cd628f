package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// IntakeRepository manages dose-taken and dose-missed records
type IntakeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewIntakeRepository creates a new IntakeRepository
func NewIntakeRepository(db *pgxpool.Pool, logger *zap.Logger) *IntakeRepository {
	return &IntakeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an intake record inside the caller's transaction so
// it commits atomically with the matching medication event.
func (r *IntakeRepository) Create(ctx context.Context, tx pgx.Tx, rec *model.IntakeRecord) error {
	query := `
		INSERT INTO intake_records (
			id, medication_id, patient_id, actor_id, scheduled_time, status, taken_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := tx.Exec(ctx, query,
		rec.ID,
		rec.MedicationID,
		rec.PatientID,
		rec.ActorID,
		rec.ScheduledTime,
		rec.Status,
		rec.TakenAt,
	)

	if err != nil {
		r.logger.Error("failed to create intake record",
			zap.Error(err),
			zap.String("medication_id", rec.MedicationID),
		)
		return fmt.Errorf("failed to create intake record: %w", err)
	}

	return nil
}

// ListByPatient retrieves intake records for a patient within a window,
// oldest first.
func (r *IntakeRepository) ListByPatient(ctx context.Context, patientID string, from, to time.Time) ([]model.IntakeRecord, error) {
	query := `
		SELECT id, medication_id, patient_id, actor_id, scheduled_time, status, taken_at, created_at
		FROM intake_records
		WHERE patient_id = $1 AND taken_at >= $2 AND taken_at < $3
		ORDER BY taken_at
	`

	rows, err := r.db.Query(ctx, query, patientID, from, to)
	if err != nil {
		r.logger.Error("failed to list intake records", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list intake records: %w", err)
	}
	defer rows.Close()

	var records []model.IntakeRecord
	for rows.Next() {
		var rec model.IntakeRecord
		err := rows.Scan(
			&rec.ID,
			&rec.MedicationID,
			&rec.PatientID,
			&rec.ActorID,
			&rec.ScheduledTime,
			&rec.Status,
			&rec.TakenAt,
			&rec.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan intake record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intake records: %w", err)
	}

	return records, nil
}

// ListByMedication retrieves intake records for one medication within a
// window, oldest first.
func (r *IntakeRepository) ListByMedication(ctx context.Context, medicationID string, from, to time.Time) ([]model.IntakeRecord, error) {
	query := `
		SELECT id, medication_id, patient_id, actor_id, scheduled_time, status, taken_at, created_at
		FROM intake_records
		WHERE medication_id = $1 AND taken_at >= $2 AND taken_at < $3
		ORDER BY taken_at
	`

	rows, err := r.db.Query(ctx, query, medicationID, from, to)
	if err != nil {
		r.logger.Error("failed to list intake records", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to list intake records: %w", err)
	}
	defer rows.Close()

	var records []model.IntakeRecord
	for rows.Next() {
		var rec model.IntakeRecord
		err := rows.Scan(
			&rec.ID,
			&rec.MedicationID,
			&rec.PatientID,
			&rec.ActorID,
			&rec.ScheduledTime,
			&rec.Status,
			&rec.TakenAt,
			&rec.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan intake record", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intake records: %w", err)
	}

	return records, nil
}
