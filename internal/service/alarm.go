package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pildhora/backend/internal/device"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/internal/schedule"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// ErrPermissionNotGranted signals that the target device currently
// refuses alarm registrations. Recoverable: the schedule is kept and
// can be re-registered later.
var ErrPermissionNotGranted = errors.New("alarm permission not granted")

// AlarmNotifier registers and cancels per-occurrence alarms on a
// dispenser. Implementations return device.ErrNotificationsDisabled
// when the device refuses registrations.
type AlarmNotifier interface {
	RegisterAlarm(ctx context.Context, deviceID string, cfg model.AlarmConfig) (string, error)
	CancelAlarm(ctx context.Context, deviceID, registrationID string) error
	PushTopology(ctx context.Context, deviceID, issuedBy string, configs []model.AlarmConfig) error
}

// AlarmService maintains the mapping from medications to registered
// dispenser alarms. Re-registration always cancels the previous
// registrations first so a schedule edit can never leave stale
// duplicate alarms behind.
type AlarmService struct {
	medRepo  *repository.MedicationRepository
	linkRepo *repository.DeviceLinkRepository
	notifier AlarmNotifier
	logger   *zap.Logger
}

// NewAlarmService creates a new AlarmService
func NewAlarmService(
	medRepo *repository.MedicationRepository,
	linkRepo *repository.DeviceLinkRepository,
	notifier AlarmNotifier,
	logger *zap.Logger,
) *AlarmService {
	return &AlarmService{
		medRepo:  medRepo,
		linkRepo: linkRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// Reschedule replaces all registered alarms for a medication with the
// configs derived from its current schedule, then pushes the patient's
// full topology to the dispenser. Returns the new registration IDs.
// Returns ErrPermissionNotGranted when the device refuses registration;
// other partial failures are logged and skipped.
func (s *AlarmService) Reschedule(ctx context.Context, actorID string, med *model.Medication) ([]string, error) {
	deviceID, err := s.linkRepo.DeviceForPatient(ctx, med.PatientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("patient has no dispenser, skipping alarm registration",
				zap.String("patient_id", med.PatientID),
				zap.String("medication_id", med.ID),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve dispenser: %w", err)
	}

	if err := s.cancelAll(ctx, deviceID, med); err != nil {
		return nil, err
	}

	configs, err := schedule.MedicationToAlarmConfigs(med)
	if err != nil {
		return nil, fmt.Errorf("failed to build alarm configs: %w", err)
	}

	registrations := make([]model.AlarmRegistration, 0, len(configs))
	ids := make([]string, 0, len(configs))
	for _, cfg := range configs {
		id, err := s.notifier.RegisterAlarm(ctx, deviceID, cfg)
		if err != nil {
			if errors.Is(err, device.ErrNotificationsDisabled) {
				return nil, ErrPermissionNotGranted
			}
			// Partial registration failure is non-fatal to the save;
			// the discrepancy is logged for reconciliation.
			s.logger.Error("failed to register alarm",
				zap.Error(err),
				zap.String("medication_id", med.ID),
				zap.String("time", cfg.Time),
				zap.Int("day", cfg.Day),
			)
			continue
		}
		ids = append(ids, id)
		registrations = append(registrations, model.AlarmRegistration{
			ID:           id,
			MedicationID: med.ID,
			Time:         cfg.Time,
			Day:          cfg.Day,
		})
	}

	if err := s.medRepo.ReplaceAlarmRegistrations(ctx, med.ID, registrations); err != nil {
		return nil, err
	}
	if err := s.medRepo.SetAlarmIDs(ctx, med.ID, ids); err != nil {
		return nil, err
	}

	if err := s.notifier.PushTopology(ctx, deviceID, actorID, configs); err != nil {
		s.logger.Error("failed to push topology to dispenser",
			zap.Error(err),
			zap.String("device_id", deviceID),
		)
	}

	s.logger.Info("alarms rescheduled",
		zap.String("medication_id", med.ID),
		zap.String("device_id", deviceID),
		zap.Int("registered", len(ids)),
	)

	return ids, nil
}

// CancelAll removes every registered alarm for a medication, used on
// delete. Missing dispensers are treated as already cancelled.
func (s *AlarmService) CancelAll(ctx context.Context, med *model.Medication) error {
	deviceID, err := s.linkRepo.DeviceForPatient(ctx, med.PatientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to resolve dispenser: %w", err)
	}

	if err := s.cancelAll(ctx, deviceID, med); err != nil {
		return err
	}

	return s.medRepo.ReplaceAlarmRegistrations(ctx, med.ID, nil)
}

func (s *AlarmService) cancelAll(ctx context.Context, deviceID string, med *model.Medication) error {
	regs, err := s.medRepo.ListAlarmRegistrations(ctx, med.ID)
	if err != nil {
		return err
	}

	for _, reg := range regs {
		if err := s.notifier.CancelAlarm(ctx, deviceID, reg.ID); err != nil {
			s.logger.Warn("failed to cancel alarm registration",
				zap.Error(err),
				zap.String("medication_id", med.ID),
				zap.String("registration_id", reg.ID),
			)
		}
	}

	return nil
}
