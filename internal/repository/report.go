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

// ReportRepository manages generated adherence report metadata
type ReportRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *pgxpool.Pool, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores report metadata after the file has been uploaded
func (r *ReportRepository) Create(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO reports (id, patient_id, date_range_start, date_range_end, file_path, generated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.PatientID,
		report.DateRangeStart,
		report.DateRangeEnd,
		report.FilePath,
		report.GeneratedAt,
	)

	if err != nil {
		r.logger.Error("failed to create report",
			zap.Error(err),
			zap.String("report_id", report.ID),
		)
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// FindByID retrieves report metadata by ID
func (r *ReportRepository) FindByID(ctx context.Context, reportID string) (*model.Report, error) {
	var report model.Report
	err := r.db.QueryRow(ctx,
		`SELECT id, patient_id, date_range_start, date_range_end, file_path, generated_at, created_at
		 FROM reports WHERE id = $1`,
		reportID,
	).Scan(
		&report.ID,
		&report.PatientID,
		&report.DateRangeStart,
		&report.DateRangeEnd,
		&report.FilePath,
		&report.GeneratedAt,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
		}
		r.logger.Error("failed to find report", zap.Error(err), zap.String("report_id", reportID))
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	return &report, nil
}
