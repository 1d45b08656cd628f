package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pildhora/backend/internal/inventory"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/internal/schedule"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// MedicationService handles the medication lifecycle. Every mutation
// appends its event to the outbox in the same transaction; alarm
// registration and inventory bookkeeping are best-effort side effects
// that never fail the primary operation.
type MedicationService struct {
	medRepo    *repository.MedicationRepository
	eventRepo  *repository.EventRepository
	intakeRepo *repository.IntakeRepository
	alarms     *AlarmService
	logger     *zap.Logger
}

// NewMedicationService creates a new MedicationService
func NewMedicationService(
	medRepo *repository.MedicationRepository,
	eventRepo *repository.EventRepository,
	intakeRepo *repository.IntakeRepository,
	alarms *AlarmService,
	logger *zap.Logger,
) *MedicationService {
	return &MedicationService{
		medRepo:    medRepo,
		eventRepo:  eventRepo,
		intakeRepo: intakeRepo,
		alarms:     alarms,
		logger:     logger,
	}
}

// AddMedication creates a medication, its created event, and registers
// its alarms on the patient's dispenser.
func (s *MedicationService) AddMedication(ctx context.Context, actorID string, actorRole model.Role, med *model.Medication) error {
	if err := validateMedication(med); err != nil {
		return err
	}

	if med.ID == "" {
		med.ID = uuid.New().String()
	}

	inventory.NormalizeDose(med)

	if med.TrackInventory {
		if med.CurrentQuantity == 0 {
			med.CurrentQuantity = med.InitialQuantity
		}
		if med.LowQuantityThreshold == 0 {
			med.LowQuantityThreshold = inventory.LowQuantityThreshold(med)
		}
	}

	now := time.Now()
	med.CreatedAt = now
	med.UpdatedAt = now
	med.Version = 1

	tx, err := s.medRepo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.medRepo.Create(ctx, tx, med); err != nil {
		s.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("patient_id", med.PatientID),
			zap.String("medication_name", med.Name),
		)
		return fmt.Errorf("failed to add medication: %w", err)
	}

	if err := s.appendEvent(ctx, tx, med, actorID, actorRole, model.EventCreated, nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication: %w", err)
	}

	s.logger.Info("medication added",
		zap.String("medication_id", med.ID),
		zap.String("patient_id", med.PatientID),
		zap.String("name", med.Name),
	)

	s.rescheduleAlarms(ctx, actorID, med)

	return nil
}

// GetMedication retrieves one medication
func (s *MedicationService) GetMedication(ctx context.Context, medID string) (*model.Medication, error) {
	if medID == "" {
		return nil, fmt.Errorf("medication ID is required")
	}

	med, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return nil, err
	}

	inventory.NormalizeDose(med)

	return med, nil
}

// ListMedications retrieves all medications for a patient
func (s *MedicationService) ListMedications(ctx context.Context, patientID string) ([]model.Medication, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient ID is required")
	}

	medications, err := s.medRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	for i := range medications {
		inventory.NormalizeDose(&medications[i])
	}

	return medications, nil
}

// UpdateMedication applies changes to an existing medication, records
// the field-level diff in an updated event, and re-registers alarms
// (cancelling the previous registrations first).
func (s *MedicationService) UpdateMedication(ctx context.Context, actorID string, actorRole model.Role, medID string, updates *model.Medication) error {
	if medID == "" {
		return fmt.Errorf("medication ID is required")
	}

	existing, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return err
	}

	updates.ID = existing.ID
	updates.PatientID = existing.PatientID
	updates.CaregiverID = existing.CaregiverID
	updates.Version = existing.Version
	updates.AlarmIDs = existing.AlarmIDs
	updates.CreatedAt = existing.CreatedAt

	if err := validateMedication(updates); err != nil {
		return err
	}

	inventory.NormalizeDose(updates)

	if updates.TrackInventory && updates.LowQuantityThreshold == 0 {
		updates.LowQuantityThreshold = inventory.LowQuantityThreshold(updates)
	}

	changes := DiffMedications(existing, updates)
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.medRepo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.medRepo.Update(ctx, tx, updates); err != nil {
		s.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return err
	}

	if err := s.appendEvent(ctx, tx, updates, actorID, actorRole, model.EventUpdated, changes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication update: %w", err)
	}

	s.logger.Info("medication updated",
		zap.String("medication_id", medID),
		zap.Int("changed_fields", len(changes)),
	)

	scheduleChanged := false
	for _, c := range changes {
		if c.Field == "times" || c.Field == "days" || c.Field == "name" {
			scheduleChanged = true
			break
		}
	}
	if scheduleChanged {
		s.rescheduleAlarms(ctx, actorID, updates)
	}

	return nil
}

// DeleteMedication soft-deletes a medication so historical events keep
// a resolvable reference, then cancels its alarms.
func (s *MedicationService) DeleteMedication(ctx context.Context, actorID string, actorRole model.Role, medID string) error {
	if medID == "" {
		return fmt.Errorf("medication ID is required")
	}

	med, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return err
	}

	tx, err := s.medRepo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.medRepo.SoftDelete(ctx, tx, medID); err != nil {
		return err
	}

	if err := s.appendEvent(ctx, tx, med, actorID, actorRole, model.EventDeleted, nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication delete: %w", err)
	}

	s.logger.Info("medication deleted",
		zap.String("medication_id", medID),
	)

	if err := s.alarms.CancelAll(ctx, med); err != nil {
		s.logger.Error("failed to cancel alarms for deleted medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
	}

	return nil
}

// RecordIntake records a dose-taken or dose-missed occurrence with its
// event, then decrements tracked inventory. The inventory adjustment is
// best-effort: a failure is logged for reconciliation but never undoes
// the recorded intake.
func (s *MedicationService) RecordIntake(ctx context.Context, actorID string, actorRole model.Role, medID, scheduledTime string, status model.IntakeStatus) (*model.IntakeRecord, error) {
	if medID == "" {
		return nil, fmt.Errorf("medication ID is required")
	}
	if !schedule.IsValidTimeFormat(scheduledTime) {
		return nil, fmt.Errorf("scheduled time %q is not a valid HH:MM time", scheduledTime)
	}

	med, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return nil, err
	}

	rec := &model.IntakeRecord{
		ID:            uuid.New().String(),
		MedicationID:  med.ID,
		PatientID:     med.PatientID,
		ActorID:       actorID,
		ScheduledTime: scheduledTime,
		Status:        status,
		TakenAt:       time.Now(),
	}

	eventType := model.EventDoseTaken
	if status == model.IntakeMissed {
		eventType = model.EventDoseMissed
	}

	tx, err := s.medRepo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.intakeRepo.Create(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := s.appendEvent(ctx, tx, med, actorID, actorRole, eventType, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit intake: %w", err)
	}

	s.logger.Info("intake recorded",
		zap.String("medication_id", med.ID),
		zap.String("status", string(status)),
		zap.String("scheduled_time", scheduledTime),
	)

	if status == model.IntakeTaken && med.TrackInventory {
		amount := int(math.Round(inventory.ParseDoseAmount(med)))
		if amount < 1 {
			amount = 1
		}
		if _, err := s.medRepo.AdjustQuantity(ctx, med.ID, -amount); err != nil {
			s.logger.Error("inventory decrement failed, counter needs reconciliation",
				zap.Error(err),
				zap.String("medication_id", med.ID),
				zap.Int("amount", amount),
			)
		}
	}

	return rec, nil
}

func (s *MedicationService) appendEvent(ctx context.Context, tx pgx.Tx, med *model.Medication, actorID string, actorRole model.Role, eventType model.EventType, changes []model.FieldChange) error {
	snapshot, err := json.Marshal(med)
	if err != nil {
		return fmt.Errorf("failed to snapshot medication: %w", err)
	}

	event := &model.MedicationEvent{
		ID:             uuid.New().String(),
		MedicationID:   med.ID,
		PatientID:      med.PatientID,
		ActorID:        actorID,
		ActorRole:      actorRole,
		Type:           eventType,
		MedicationName: med.Name,
		Snapshot:       snapshot,
		Changes:        changes,
	}

	return s.eventRepo.Append(ctx, tx, event)
}

// rescheduleAlarms re-registers a medication's alarms, treating every
// failure as non-fatal to the primary save.
func (s *MedicationService) rescheduleAlarms(ctx context.Context, actorID string, med *model.Medication) {
	if _, err := s.alarms.Reschedule(ctx, actorID, med); err != nil {
		if errors.Is(err, ErrPermissionNotGranted) {
			s.logger.Warn("alarm registration deferred: device notifications disabled",
				zap.String("medication_id", med.ID),
			)
			return
		}
		s.logger.Error("alarm registration failed",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
	}
}

func validateMedication(med *model.Medication) error {
	if med.PatientID == "" {
		return fmt.Errorf("patient ID is required")
	}
	if med.Name == "" {
		return fmt.Errorf("medication name is required")
	}
	if len(med.Times) == 0 {
		return fmt.Errorf("at least one scheduled time is required")
	}
	seenTimes := make(map[string]struct{}, len(med.Times))
	for _, t := range med.Times {
		if !schedule.IsValidTimeFormat(t) {
			return fmt.Errorf("scheduled time %q is not a valid HH:MM time", t)
		}
		if _, dup := seenTimes[t]; dup {
			return fmt.Errorf("scheduled time %q appears more than once", t)
		}
		seenTimes[t] = struct{}{}
	}
	if len(med.Days) == 0 {
		return fmt.Errorf("at least one active weekday is required")
	}
	seenDays := make(map[int]struct{}, len(med.Days))
	for _, d := range med.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday index %d is out of range", d)
		}
		if _, dup := seenDays[d]; dup {
			return fmt.Errorf("weekday %d appears more than once", d)
		}
		seenDays[d] = struct{}{}
	}
	if med.QuantityType == "" {
		med.QuantityType = model.QuantityOther
	}

	if med.TrackInventory {
		if med.InitialQuantity < 0 || med.CurrentQuantity < 0 {
			return fmt.Errorf("inventory quantities must be non-negative")
		}
		if med.InitialQuantity == 0 {
			return fmt.Errorf("initial quantity is required when inventory tracking is enabled")
		}
		if med.LowQuantityThreshold < 0 {
			return fmt.Errorf("low quantity threshold must be non-negative")
		}
		if med.LowQuantityThreshold > med.InitialQuantity {
			return fmt.Errorf("low quantity threshold cannot exceed initial quantity")
		}
	}

	return nil
}
