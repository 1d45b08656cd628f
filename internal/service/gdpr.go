package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/internal/audit"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// GDPRService handles GDPR compliance operations
type GDPRService struct {
	db          *pgxpool.Pool
	auditLogger *audit.Logger
	logger      *zap.Logger
}

// NewGDPRService creates a new GDPR service
func NewGDPRService(db *pgxpool.Pool, auditLogger *audit.Logger, logger *zap.Logger) *GDPRService {
	return &GDPRService{
		db:          db,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// UserDataExport represents all user data for export
type UserDataExport struct {
	User          *model.User             `json:"user"`
	Medications   []model.Medication      `json:"medications"`
	IntakeRecords []model.IntakeRecord    `json:"intake_records"`
	Events        []model.MedicationEvent `json:"medication_events"`
	DeviceLinks   []model.DeviceLink      `json:"device_links"`
	Reports       []model.Report          `json:"reports"`
	ExportedAt    time.Time               `json:"exported_at"`
}

// DeleteUserData deletes all user data (GDPR right to be forgotten).
// Medications are hard-deleted here; the soft-delete used by the normal
// flow keeps event history, which erasure must not.
func (s *GDPRService) DeleteUserData(ctx context.Context, userID, ipAddress, userAgent string) error {
	s.logger.Info("starting user data deletion (GDPR)",
		zap.String("user_id", userID),
	)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM alarm_registrations WHERE medication_id IN
		(SELECT id FROM medications WHERE patient_id = $1)`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete alarm registrations: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM medication_events WHERE patient_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete medication events: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM intake_records WHERE patient_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete intake records: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM medications WHERE patient_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete medications: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM connection_codes WHERE patient_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete connection codes: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM device_links WHERE user_id = $1 OR patient_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete device links: %w", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM reports WHERE patient_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete reports: %w", err)
	}

	// Soft delete keeps referential integrity in audit logs.
	_, err = tx.Exec(ctx, "UPDATE users SET deleted_at = $1 WHERE id = $2", time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to mark user as deleted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.auditLogger.LogDelete(ctx, userID, audit.ResourceUser, userID, ipAddress, userAgent); err != nil {
		s.logger.Error("failed to log audit entry for user deletion", zap.Error(err))
	}

	s.logger.Info("user data deletion completed (GDPR)",
		zap.String("user_id", userID),
	)

	return nil
}

// ExportUserData exports all user data to JSON (GDPR right to data
// portability). Soft-deleted medications are included.
func (s *GDPRService) ExportUserData(ctx context.Context, userID string) ([]byte, error) {
	s.logger.Info("starting user data export (GDPR)",
		zap.String("user_id", userID),
	)

	export := UserDataExport{
		ExportedAt: time.Now(),
	}

	var user model.User
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, role, created_at, updated_at, deleted_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	export.User = &user

	medRows, err := s.db.Query(ctx, `
		SELECT id, patient_id, caregiver_id, name, icon, dosage, dose_value, dose_unit,
		       quantity_type, times, days, track_inventory, current_quantity,
		       initial_quantity, low_quantity_threshold, alarm_ids, version,
		       created_at, updated_at, deleted_at
		FROM medications WHERE patient_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get medications: %w", err)
	}
	defer medRows.Close()

	for medRows.Next() {
		var med model.Medication
		err := medRows.Scan(
			&med.ID, &med.PatientID, &med.CaregiverID, &med.Name, &med.Icon,
			&med.Dosage, &med.DoseValue, &med.DoseUnit, &med.QuantityType,
			&med.Times, &med.Days, &med.TrackInventory, &med.CurrentQuantity,
			&med.InitialQuantity, &med.LowQuantityThreshold, &med.AlarmIDs,
			&med.Version, &med.CreatedAt, &med.UpdatedAt, &med.DeletedAt,
		)
		if err != nil {
			s.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		export.Medications = append(export.Medications, med)
	}

	intakeRows, err := s.db.Query(ctx, `
		SELECT id, medication_id, patient_id, actor_id, scheduled_time, status, taken_at, created_at
		FROM intake_records WHERE patient_id = $1
		ORDER BY taken_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get intake records: %w", err)
	}
	defer intakeRows.Close()

	for intakeRows.Next() {
		var rec model.IntakeRecord
		err := intakeRows.Scan(
			&rec.ID, &rec.MedicationID, &rec.PatientID, &rec.ActorID,
			&rec.ScheduledTime, &rec.Status, &rec.TakenAt, &rec.CreatedAt,
		)
		if err != nil {
			s.logger.Error("failed to scan intake record", zap.Error(err))
			continue
		}
		export.IntakeRecords = append(export.IntakeRecords, rec)
	}

	eventRows, err := s.db.Query(ctx, `
		SELECT id, medication_id, patient_id, actor_id, actor_role, type,
		       medication_name, snapshot, changes, sync_status, attempts,
		       created_at, delivered_at
		FROM medication_events WHERE patient_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get medication events: %w", err)
	}
	defer eventRows.Close()

	for eventRows.Next() {
		var event model.MedicationEvent
		var changes []byte
		err := eventRows.Scan(
			&event.ID, &event.MedicationID, &event.PatientID, &event.ActorID,
			&event.ActorRole, &event.Type, &event.MedicationName, &event.Snapshot,
			&changes, &event.SyncStatus, &event.Attempts, &event.CreatedAt,
			&event.DeliveredAt,
		)
		if err != nil {
			s.logger.Error("failed to scan medication event", zap.Error(err))
			continue
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &event.Changes); err != nil {
				s.logger.Error("failed to decode event changes", zap.Error(err))
			}
		}
		export.Events = append(export.Events, event)
	}

	linkRows, err := s.db.Query(ctx, `
		SELECT id, user_id, patient_id, device_id, role, status, linked_by, created_at, revoked_at
		FROM device_links WHERE user_id = $1 OR patient_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device links: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var link model.DeviceLink
		err := linkRows.Scan(
			&link.ID, &link.UserID, &link.PatientID, &link.DeviceID,
			&link.Role, &link.Status, &link.LinkedBy, &link.CreatedAt, &link.RevokedAt,
		)
		if err != nil {
			s.logger.Error("failed to scan device link", zap.Error(err))
			continue
		}
		export.DeviceLinks = append(export.DeviceLinks, link)
	}

	reportRows, err := s.db.Query(ctx, `
		SELECT id, patient_id, date_range_start, date_range_end, file_path,
		       generated_at, created_at
		FROM reports WHERE patient_id = $1
		ORDER BY generated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer reportRows.Close()

	for reportRows.Next() {
		var report model.Report
		err := reportRows.Scan(
			&report.ID, &report.PatientID, &report.DateRangeStart, &report.DateRangeEnd,
			&report.FilePath, &report.GeneratedAt, &report.CreatedAt,
		)
		if err != nil {
			s.logger.Error("failed to scan report", zap.Error(err))
			continue
		}
		export.Reports = append(export.Reports, report)
	}

	jsonData, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export data: %w", err)
	}

	s.logger.Info("user data export completed (GDPR)",
		zap.String("user_id", userID),
		zap.Int("medications", len(export.Medications)),
		zap.Int("intake_records", len(export.IntakeRecords)),
		zap.Int("medication_events", len(export.Events)),
		zap.Int("device_links", len(export.DeviceLinks)),
		zap.Int("reports", len(export.Reports)),
	)

	return jsonData, nil
}
