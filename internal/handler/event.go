package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/api"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

const defaultEventLimit = 50

// EventHandler implements medication event feed and adherence endpoints
type EventHandler struct {
	sync      *service.SyncService
	adherence *service.AdherenceService
	links     *service.DeviceLinkService
	logger    *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(
	syncService *service.SyncService,
	adherenceService *service.AdherenceService,
	linkService *service.DeviceLinkService,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		sync:      syncService,
		adherence: adherenceService,
		links:     linkService,
		logger:    logger,
	}
}

// ListEvents returns a patient's recent medication events
// GET /api/v1/patients/:patientId/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	patientID := c.Param("patientId")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	events, err := h.sync.Events(c.Request.Context(), patientID, limit)
	if err != nil {
		respondServiceError(c, err, "Failed to list events")
		return
	}

	var response []api.EventResponse
	for i := range events {
		response = append(response, toEventResponse(&events[i]))
	}

	c.JSON(http.StatusOK, response)
}

// RequeueEvents moves a patient's failed events back into the queue
// POST /api/v1/patients/:patientId/events/requeue
func (h *EventHandler) RequeueEvents(c *gin.Context) {
	patientID := c.Param("patientId")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	count, err := h.sync.Requeue(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, err, "Failed to requeue events")
		return
	}

	c.JSON(http.StatusOK, api.RequeueResponse{Requeued: count})
}

// GetAdherence returns a patient's adherence summary over a window
// GET /api/v1/patients/:patientId/adherence
func (h *EventHandler) GetAdherence(c *gin.Context) {
	patientID := c.Param("patientId")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	from, to, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid time window",
			Details: stringPtr(err.Error()),
		})
		return
	}

	summary, err := h.adherence.Summary(c.Request.Context(), patientID, from, to)
	if err != nil {
		respondServiceError(c, err, "Failed to compute adherence")
		return
	}

	response := api.AdherenceSummaryResponse{
		PatientId:   stringToUUID(summary.PatientID),
		From:        timePtr(summary.From),
		To:          timePtr(summary.To),
		TakenCount:  intPtr(summary.TakenCount),
		MissedCount: intPtr(summary.MissedCount),
		Rate:        float64Ptr(summary.Rate),
	}
	for _, med := range summary.Medications {
		response.Medications = append(response.Medications, api.MedicationAdherenceResponse{
			MedicationId:   stringToUUID(med.MedicationID),
			MedicationName: stringPtr(med.MedicationName),
			TakenCount:     intPtr(med.TakenCount),
			MissedCount:    intPtr(med.MissedCount),
			AdherenceRate:  float64Ptr(med.AdherenceRate),
		})
	}

	c.JSON(http.StatusOK, response)
}

// ListIntakes returns a patient's deduplicated intake history
// GET /api/v1/patients/:patientId/intakes
func (h *EventHandler) ListIntakes(c *gin.Context) {
	patientID := c.Param("patientId")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	from, to, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid time window",
			Details: stringPtr(err.Error()),
		})
		return
	}

	records, err := h.adherence.History(c.Request.Context(), patientID, from, to)
	if err != nil {
		respondServiceError(c, err, "Failed to list intakes")
		return
	}

	var response []api.IntakeResponse
	for _, rec := range records {
		response = append(response, api.IntakeResponse{
			Id:            stringToUUID(rec.ID),
			MedicationId:  stringToUUID(rec.MedicationID),
			PatientId:     stringToUUID(rec.PatientID),
			ScheduledTime: stringPtr(rec.ScheduledTime),
			Status:        stringPtr(string(rec.Status)),
			TakenAt:       timePtr(rec.TakenAt),
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *EventHandler) authorize(c *gin.Context, actorID, patientID string) bool {
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

// parseWindow reads the from/to query parameters, defaulting to the
// trailing 7 days.
func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -7)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

func toEventResponse(event *model.MedicationEvent) api.EventResponse {
	response := api.EventResponse{
		Id:             stringToUUID(event.ID),
		MedicationId:   stringToUUID(event.MedicationID),
		PatientId:      stringToUUID(event.PatientID),
		Type:           stringPtr(string(event.Type)),
		ActorRole:      stringPtr(string(event.ActorRole)),
		MedicationName: stringPtr(event.MedicationName),
		Snapshot:       event.Snapshot,
		SyncStatus:     stringPtr(string(event.SyncStatus)),
		CreatedAt:      timePtr(event.CreatedAt),
	}
	for _, change := range event.Changes {
		response.Changes = append(response.Changes, api.FieldChangeResponse{
			Field:    change.Field,
			OldValue: change.OldValue,
			NewValue: change.NewValue,
		})
	}
	if event.DeliveredAt != nil {
		response.DeliveredAt = event.DeliveredAt
	}
	return response
}
