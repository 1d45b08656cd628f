package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// MedicationRepository manages medication records and their alarm
// registration bookkeeping
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

const medicationColumns = `
	id, patient_id, caregiver_id, name, icon, dosage, dose_value, dose_unit,
	quantity_type, times, days, track_inventory, current_quantity,
	initial_quantity, low_quantity_threshold, alarm_ids, version,
	created_at, updated_at, deleted_at
`

// Create inserts a new medication record inside the caller's
// transaction so the created event commits with it.
func (r *MedicationRepository) Create(ctx context.Context, tx pgx.Tx, med *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, patient_id, caregiver_id, name, icon, dosage, dose_value, dose_unit,
			quantity_type, times, days, track_inventory, current_quantity,
			initial_quantity, low_quantity_threshold, alarm_ids, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, NOW(), NOW())
	`

	_, err := tx.Exec(ctx, query,
		med.ID,
		med.PatientID,
		med.CaregiverID,
		med.Name,
		med.Icon,
		med.Dosage,
		med.DoseValue,
		med.DoseUnit,
		med.QuantityType,
		med.Times,
		med.Days,
		med.TrackInventory,
		med.CurrentQuantity,
		med.InitialQuantity,
		med.LowQuantityThreshold,
		med.AlarmIDs,
	)

	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
			zap.String("patient_id", med.PatientID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	return nil
}

// FindByID retrieves a non-deleted medication by ID
func (r *MedicationRepository) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1 AND deleted_at IS NULL`

	med, err := scanMedication(r.db.QueryRow(ctx, query, medicationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	return med, nil
}

// FindByPatientID retrieves all non-deleted medications for a patient
func (r *MedicationRepository) FindByPatientID(ctx context.Context, patientID string) ([]model.Medication, error) {
	query := `SELECT ` + medicationColumns + `
		FROM medications
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		r.logger.Error("failed to find medications", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to find medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		medications = append(medications, *med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	return medications, nil
}

// Update rewrites a medication record inside the caller's transaction.
// The version column guards against concurrent writers: the update only
// applies when the stored version matches med.Version, and bumps it.
func (r *MedicationRepository) Update(ctx context.Context, tx pgx.Tx, med *model.Medication) error {
	query := `
		UPDATE medications
		SET name = $1, icon = $2, dosage = $3, dose_value = $4, dose_unit = $5,
		    quantity_type = $6, times = $7, days = $8, track_inventory = $9,
		    current_quantity = $10, initial_quantity = $11, low_quantity_threshold = $12,
		    alarm_ids = $13, version = version + 1, updated_at = NOW()
		WHERE id = $14 AND version = $15 AND deleted_at IS NULL
	`

	result, err := tx.Exec(ctx, query,
		med.Name,
		med.Icon,
		med.Dosage,
		med.DoseValue,
		med.DoseUnit,
		med.QuantityType,
		med.Times,
		med.Days,
		med.TrackInventory,
		med.CurrentQuantity,
		med.InitialQuantity,
		med.LowQuantityThreshold,
		med.AlarmIDs,
		med.ID,
		med.Version,
	)

	if err != nil {
		r.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, med.ID); errors.Is(findErr, ErrNotFound) {
			return fmt.Errorf("medication %s: %w", med.ID, ErrNotFound)
		}
		return fmt.Errorf("medication %s: %w", med.ID, ErrVersionStale)
	}

	med.Version++

	return nil
}

// SoftDelete marks a medication deleted while keeping the row so
// historical events and intake records stay resolvable.
func (r *MedicationRepository) SoftDelete(ctx context.Context, tx pgx.Tx, medicationID string) error {
	query := `UPDATE medications SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := tx.Exec(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
	}

	return nil
}

// AdjustQuantity applies a delta to a tracked medication's remaining
// quantity under a row lock, clamping at zero. It returns the resulting
// quantity. Concurrent patient and caregiver adjustments serialize on
// the lock instead of losing updates.
func (r *MedicationRepository) AdjustQuantity(ctx context.Context, medicationID string, delta int) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin quantity transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx,
		`SELECT current_quantity FROM medications WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		medicationID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to lock medication quantity: %w", err)
	}

	updated := current + delta
	if updated < 0 {
		updated = 0
	}

	_, err = tx.Exec(ctx,
		`UPDATE medications SET current_quantity = $1, updated_at = NOW() WHERE id = $2`,
		updated, medicationID,
	)
	if err != nil {
		r.logger.Error("failed to adjust quantity",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.Int("delta", delta),
		)
		return 0, fmt.Errorf("failed to adjust quantity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit quantity adjustment: %w", err)
	}

	return updated, nil
}

// SetAlarmIDs replaces the stored platform registration identifiers
func (r *MedicationRepository) SetAlarmIDs(ctx context.Context, medicationID string, alarmIDs []string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE medications SET alarm_ids = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`,
		alarmIDs, medicationID,
	)
	if err != nil {
		r.logger.Error("failed to set alarm ids",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to set alarm ids: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
	}

	return nil
}

// ReplaceAlarmRegistrations swaps the registration rows for a
// medication in one transaction so a cancelled schedule can never leave
// stale duplicates behind.
func (r *MedicationRepository) ReplaceAlarmRegistrations(ctx context.Context, medicationID string, regs []model.AlarmRegistration) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin registration transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM alarm_registrations WHERE medication_id = $1`, medicationID); err != nil {
		return fmt.Errorf("failed to clear alarm registrations: %w", err)
	}

	for _, reg := range regs {
		_, err := tx.Exec(ctx,
			`INSERT INTO alarm_registrations (id, medication_id, time, day, created_at)
			 VALUES ($1, $2, $3, $4, NOW())`,
			reg.ID, reg.MedicationID, reg.Time, reg.Day,
		)
		if err != nil {
			return fmt.Errorf("failed to insert alarm registration: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alarm registrations: %w", err)
	}

	return nil
}

// ListAlarmRegistrations returns the registrations stored for a medication
func (r *MedicationRepository) ListAlarmRegistrations(ctx context.Context, medicationID string) ([]model.AlarmRegistration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, medication_id, time, day, created_at
		 FROM alarm_registrations WHERE medication_id = $1 ORDER BY time, day`,
		medicationID,
	)
	if err != nil {
		r.logger.Error("failed to list alarm registrations", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to list alarm registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.AlarmRegistration
	for rows.Next() {
		var reg model.AlarmRegistration
		if err := rows.Scan(&reg.ID, &reg.MedicationID, &reg.Time, &reg.Day, &reg.CreatedAt); err != nil {
			r.logger.Error("failed to scan alarm registration", zap.Error(err))
			continue
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alarm registrations: %w", err)
	}

	return regs, nil
}

// Begin starts a transaction for an outbox write spanning a medication
// mutation and its event record
func (r *MedicationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

func scanMedication(row pgx.Row) (*model.Medication, error) {
	var med model.Medication
	err := row.Scan(
		&med.ID,
		&med.PatientID,
		&med.CaregiverID,
		&med.Name,
		&med.Icon,
		&med.Dosage,
		&med.DoseValue,
		&med.DoseUnit,
		&med.QuantityType,
		&med.Times,
		&med.Days,
		&med.TrackInventory,
		&med.CurrentQuantity,
		&med.InitialQuantity,
		&med.LowQuantityThreshold,
		&med.AlarmIDs,
		&med.Version,
		&med.CreatedAt,
		&med.UpdatedAt,
		&med.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &med, nil
}
