package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/api"
	"go.uber.org/zap"
)

// ReportHandler implements adherence report endpoints
type ReportHandler struct {
	service *service.ReportService
	links   *service.DeviceLinkService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *service.ReportService, linkService *service.DeviceLinkService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: reportService,
		links:   linkService,
		logger:  logger,
	}
}

// GenerateReport builds an adherence report PDF for a patient
// POST /api/v1/reports
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	var req api.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	actorID, _ := middleware.Actor(c)
	patientID := req.PatientId.String()

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	from := req.StartDate.Time
	to := from.AddDate(0, 0, 30)
	if req.EndDate != nil {
		to = req.EndDate.Time
	}

	report, err := h.service.Generate(c.Request.Context(), patientID, derefString(req.PatientName), from, to)
	if err != nil {
		h.logger.Error("failed to generate report",
			zap.Error(err),
			zap.String("patient_id", patientID),
		)
		respondServiceError(c, err, "Failed to generate report")
		return
	}

	c.JSON(http.StatusCreated, api.ReportResponse{
		Id:             stringToUUID(report.ID),
		PatientId:      stringToUUID(report.PatientID),
		DateRangeStart: timeToDate(report.DateRangeStart),
		DateRangeEnd:   timeToDate(report.DateRangeEnd),
		FilePath:       stringPtr(report.FilePath),
		GeneratedAt:    timePtr(report.GeneratedAt),
	})
}

// GetReport downloads a generated report PDF
// GET /api/v1/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	reportID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	report, data, err := h.service.Download(c.Request.Context(), reportID)
	if err != nil {
		h.logger.Error("failed to download report",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		respondServiceError(c, err, "Failed to download report")
		return
	}

	if ok := h.authorize(c, actorID, report.PatientID); !ok {
		return
	}

	filename := fmt.Sprintf("adherence_report_%s.pdf", reportID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *ReportHandler) authorize(c *gin.Context, actorID, patientID string) bool {
	allowed, err := h.links.CanObservePatient(c.Request.Context(), actorID, patientID)
	if err != nil {
		respondServiceError(c, err, "Failed to check access")
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, api.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Not authorized for this patient",
		})
		return false
	}
	return true
}
