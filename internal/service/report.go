package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pildhora/backend/internal/blob"
	"github.com/pildhora/backend/internal/pdf"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

const reportEventLimit = 100

// ReportService generates adherence report PDFs and stores them in
// blob storage with their metadata in Postgres.
type ReportService struct {
	reportRepo *repository.ReportRepository
	eventRepo  *repository.EventRepository
	medRepo    *repository.MedicationRepository
	adherence  *AdherenceService
	generator  *pdf.Generator
	storage    blob.Storage
	logger     *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	reportRepo *repository.ReportRepository,
	eventRepo *repository.EventRepository,
	medRepo *repository.MedicationRepository,
	adherence *AdherenceService,
	generator *pdf.Generator,
	storage blob.Storage,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		eventRepo:  eventRepo,
		medRepo:    medRepo,
		adherence:  adherence,
		generator:  generator,
		storage:    storage,
		logger:     logger,
	}
}

// Generate builds an adherence report for a patient over a date range,
// uploads the PDF, and records its metadata.
func (s *ReportService) Generate(ctx context.Context, patientID, patientName string, from, to time.Time) (*model.Report, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("report date range end must be after start")
	}

	summary, err := s.adherence.Summary(ctx, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to compute adherence: %w", err)
	}

	meds, err := s.medRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load medications: %w", err)
	}
	medsByID := make(map[string]model.Medication, len(meds))
	for _, med := range meds {
		medsByID[med.ID] = med
	}

	adherenceRows := make([]pdf.MedicationAdherence, 0, len(summary.Medications))
	for _, entry := range summary.Medications {
		med, ok := medsByID[entry.MedicationID]
		if !ok {
			med = model.Medication{ID: entry.MedicationID, Name: entry.MedicationName}
		}
		adherenceRows = append(adherenceRows, pdf.MedicationAdherence{
			Medication:    med,
			TakenCount:    entry.TakenCount,
			MissedCount:   entry.MissedCount,
			AdherenceRate: entry.AdherenceRate,
		})
	}

	events, err := s.eventRepo.ListByPatient(ctx, patientID, reportEventLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	dateRange := fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	data, err := s.generator.Generate(&pdf.ReportData{
		PatientName: patientName,
		DateRange:   dateRange,
		Medications: adherenceRows,
		Events:      events,
	})
	if err != nil {
		return nil, err
	}

	reportID := uuid.New().String()
	filename := fmt.Sprintf("%s-%s.pdf", patientID, reportID)
	blobName, err := s.storage.UploadReport(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		ID:             reportID,
		PatientID:      patientID,
		DateRangeStart: from,
		DateRangeEnd:   to,
		FilePath:       blobName,
		GeneratedAt:    time.Now(),
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Info("adherence report generated",
		zap.String("report_id", report.ID),
		zap.String("patient_id", patientID),
		zap.String("blob_name", blobName),
	)

	return report, nil
}

// Get retrieves a report's metadata
func (s *ReportService) Get(ctx context.Context, reportID string) (*model.Report, error) {
	return s.reportRepo.FindByID(ctx, reportID)
}

// Download retrieves the stored PDF for a report
func (s *ReportService) Download(ctx context.Context, reportID string) (*model.Report, []byte, error) {
	report, err := s.reportRepo.FindByID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.storage.DownloadReport(ctx, report.FilePath)
	if err != nil {
		return nil, nil, err
	}

	return report, data, nil
}
