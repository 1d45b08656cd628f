package service

import (
	"context"
	"fmt"
	"math"

	"github.com/pildhora/backend/internal/inventory"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// InventoryService adjusts tracked medication counters. Counters clamp
// at zero and never block a dose from being recorded.
type InventoryService struct {
	medRepo *repository.MedicationRepository
	logger  *zap.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(medRepo *repository.MedicationRepository, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		medRepo: medRepo,
		logger:  logger,
	}
}

// RecordDose decrements a medication's counter by one dose amount and
// returns the updated quantity with its status. Untracked medications
// are returned unchanged.
func (s *InventoryService) RecordDose(ctx context.Context, medID string) (int, inventory.Status, error) {
	med, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return 0, "", err
	}

	if !med.TrackInventory {
		return med.CurrentQuantity, inventory.StatusOK, nil
	}

	amount := int(math.Round(inventory.ParseDoseAmount(med)))
	if amount < 1 {
		amount = 1
	}

	updated, err := s.medRepo.AdjustQuantity(ctx, medID, -amount)
	if err != nil {
		return 0, "", err
	}

	status := inventory.StatusFor(updated, med.LowQuantityThreshold)

	if status != inventory.StatusOK {
		s.logger.Warn("medication inventory running low",
			zap.String("medication_id", medID),
			zap.String("name", med.Name),
			zap.Int("remaining", updated),
			zap.String("status", string(status)),
		)
	}

	return updated, status, nil
}

// Refill adds stock to a medication's counter
func (s *InventoryService) Refill(ctx context.Context, medID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("refill amount must be positive")
	}

	med, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return 0, err
	}
	if !med.TrackInventory {
		return 0, fmt.Errorf("medication %s does not track inventory", medID)
	}

	updated, err := s.medRepo.AdjustQuantity(ctx, medID, amount)
	if err != nil {
		return 0, err
	}

	s.logger.Info("medication refilled",
		zap.String("medication_id", medID),
		zap.Int("amount", amount),
		zap.Int("quantity", updated),
	)

	return updated, nil
}

// Status reports the current quantity and threshold status for one
// medication.
func (s *InventoryService) Status(ctx context.Context, medID string) (*model.Medication, inventory.Status, error) {
	med, err := s.medRepo.FindByID(ctx, medID)
	if err != nil {
		return nil, "", err
	}

	if !med.TrackInventory {
		return med, inventory.StatusOK, nil
	}

	return med, inventory.StatusFor(med.CurrentQuantity, med.LowQuantityThreshold), nil
}

// LowStock returns the patient's tracked medications at or below their
// low-quantity threshold.
func (s *InventoryService) LowStock(ctx context.Context, patientID string) ([]model.Medication, error) {
	meds, err := s.medRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var low []model.Medication
	for _, med := range meds {
		if inventory.CheckLowQuantity(&med) {
			low = append(low, med)
		}
	}

	return low, nil
}
