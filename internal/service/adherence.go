package service

import (
	"context"
	"sort"
	"time"

	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// Duplicate taps within this window count as one dose.
const dedupWindow = 60 * time.Second

// MedicationAdherence summarizes one medication's intake history over a
// reporting window.
type MedicationAdherence struct {
	MedicationID   string  `json:"medication_id"`
	MedicationName string  `json:"medication_name"`
	TakenCount     int     `json:"taken_count"`
	MissedCount    int     `json:"missed_count"`
	AdherenceRate  float64 `json:"adherence_rate"`
}

// AdherenceSummary aggregates a patient's adherence over a window
type AdherenceSummary struct {
	PatientID   string                `json:"patient_id"`
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	TakenCount  int                   `json:"taken_count"`
	MissedCount int                   `json:"missed_count"`
	Rate        float64               `json:"rate"`
	Medications []MedicationAdherence `json:"medications"`
}

// AdherenceService computes adherence statistics from intake records
type AdherenceService struct {
	intakeRepo *repository.IntakeRepository
	medRepo    *repository.MedicationRepository
	logger     *zap.Logger
}

// NewAdherenceService creates a new AdherenceService
func NewAdherenceService(
	intakeRepo *repository.IntakeRepository,
	medRepo *repository.MedicationRepository,
	logger *zap.Logger,
) *AdherenceService {
	return &AdherenceService{
		intakeRepo: intakeRepo,
		medRepo:    medRepo,
		logger:     logger,
	}
}

// UniqueDoses collapses near-simultaneous records of the same scheduled
// dose into one. Records for the same (medication, scheduled time)
// recorded within the dedup window count once; the earliest record
// wins. Input order does not matter.
func UniqueDoses(records []model.IntakeRecord) []model.IntakeRecord {
	sorted := make([]model.IntakeRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TakenAt.Before(sorted[j].TakenAt)
	})

	type doseKey struct {
		medicationID  string
		scheduledTime string
	}

	lastSeen := make(map[doseKey]time.Time)
	var unique []model.IntakeRecord
	for _, rec := range sorted {
		key := doseKey{rec.MedicationID, rec.ScheduledTime}
		if prev, ok := lastSeen[key]; ok && rec.TakenAt.Sub(prev) < dedupWindow {
			continue
		}
		lastSeen[key] = rec.TakenAt
		unique = append(unique, rec)
	}

	return unique
}

// Summary computes a patient's adherence over a time window, with a
// per-medication breakdown. Doses are deduplicated before counting.
func (s *AdherenceService) Summary(ctx context.Context, patientID string, from, to time.Time) (*AdherenceSummary, error) {
	records, err := s.intakeRepo.ListByPatient(ctx, patientID, from, to)
	if err != nil {
		return nil, err
	}

	records = UniqueDoses(records)

	type tally struct {
		taken  int
		missed int
	}
	perMed := make(map[string]*tally)
	summary := &AdherenceSummary{
		PatientID: patientID,
		From:      from,
		To:        to,
	}

	for _, rec := range records {
		t, ok := perMed[rec.MedicationID]
		if !ok {
			t = &tally{}
			perMed[rec.MedicationID] = t
		}
		switch rec.Status {
		case model.IntakeTaken:
			t.taken++
			summary.TakenCount++
		case model.IntakeMissed:
			t.missed++
			summary.MissedCount++
		}
	}

	if total := summary.TakenCount + summary.MissedCount; total > 0 {
		summary.Rate = float64(summary.TakenCount) / float64(total)
	}

	meds, err := s.medRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(meds))
	for _, med := range meds {
		names[med.ID] = med.Name
	}

	for medID, t := range perMed {
		entry := MedicationAdherence{
			MedicationID:   medID,
			MedicationName: names[medID],
			TakenCount:     t.taken,
			MissedCount:    t.missed,
		}
		if total := t.taken + t.missed; total > 0 {
			entry.AdherenceRate = float64(t.taken) / float64(total)
		}
		summary.Medications = append(summary.Medications, entry)
	}

	sort.Slice(summary.Medications, func(i, j int) bool {
		return summary.Medications[i].MedicationName < summary.Medications[j].MedicationName
	})

	return summary, nil
}

// History returns a patient's deduplicated intake records for a window,
// oldest first.
func (s *AdherenceService) History(ctx context.Context, patientID string, from, to time.Time) ([]model.IntakeRecord, error) {
	records, err := s.intakeRepo.ListByPatient(ctx, patientID, from, to)
	if err != nil {
		return nil, err
	}

	return UniqueDoses(records), nil
}
