package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pildhora/backend/internal/inventory"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/internal/schedule"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/api"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// MedicationHandler implements medication API endpoints
type MedicationHandler struct {
	service   *service.MedicationService
	inventory *service.InventoryService
	links     *service.DeviceLinkService
	logger    *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(
	medService *service.MedicationService,
	invService *service.InventoryService,
	linkService *service.DeviceLinkService,
	logger *zap.Logger,
) *MedicationHandler {
	return &MedicationHandler{
		service:   medService,
		inventory: invService,
		links:     linkService,
		logger:    logger,
	}
}

// CreateMedication adds a new medication
// POST /api/v1/medications
func (h *MedicationHandler) CreateMedication(c *gin.Context) {
	var req api.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	actorID, actorRole := middleware.Actor(c)
	patientID := req.PatientId.String()

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	medication := &model.Medication{
		PatientID:      patientID,
		Name:           req.Name,
		Icon:           derefString(req.Icon),
		Dosage:         derefString(req.Dosage),
		DoseValue:      derefString(req.DoseValue),
		DoseUnit:       derefString(req.DoseUnit),
		QuantityType:   model.QuantityType(derefString(req.QuantityType)),
		Times:          req.Times,
		Days:           req.Days,
		TrackInventory: derefBool(req.TrackInventory),
	}
	if actorRole == model.RoleCaregiver {
		medication.CaregiverID = &actorID
	}
	if req.InitialQuantity != nil {
		medication.InitialQuantity = *req.InitialQuantity
	}
	if req.LowQuantityThreshold != nil {
		medication.LowQuantityThreshold = *req.LowQuantityThreshold
	}

	// A frequency preset stands in for an explicit day list.
	if len(medication.Days) == 0 && req.Frequency != nil {
		days, err := schedule.FrequencyToDays(*req.Frequency)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid frequency",
				Details: stringPtr(err.Error()),
			})
			return
		}
		medication.Days = days
	}

	if err := h.service.AddMedication(c.Request.Context(), actorID, actorRole, medication); err != nil {
		h.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("patient_id", patientID),
		)
		respondServiceError(c, err, "Failed to add medication")
		return
	}

	c.JSON(http.StatusCreated, toMedicationResponse(medication))
}

// ListMedications lists all medications for a patient
// GET /api/v1/patients/:patientId/medications
func (h *MedicationHandler) ListMedications(c *gin.Context) {
	patientID := c.Param("patientId")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	medications, err := h.service.ListMedications(c.Request.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to list medications",
			zap.Error(err),
			zap.String("patient_id", patientID),
		)
		respondServiceError(c, err, "Failed to list medications")
		return
	}

	var response []api.MedicationResponse
	for i := range medications {
		response = append(response, toMedicationResponse(&medications[i]))
	}

	h.logger.Info("medications listed",
		zap.String("patient_id", patientID),
		zap.Int("count", len(response)),
	)

	c.JSON(http.StatusOK, response)
}

// GetMedication retrieves one medication
// GET /api/v1/medications/:id
func (h *MedicationHandler) GetMedication(c *gin.Context) {
	medicationID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	med, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get medication")
		return
	}

	if ok := h.authorize(c, actorID, med.PatientID); !ok {
		return
	}

	c.JSON(http.StatusOK, toMedicationResponse(med))
}

// UpdateMedication updates a medication
// PUT /api/v1/medications/:id
func (h *MedicationHandler) UpdateMedication(c *gin.Context) {
	medicationID := c.Param("id")

	var req api.UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	actorID, actorRole := middleware.Actor(c)

	existing, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get medication")
		return
	}
	if ok := h.authorize(c, actorID, existing.PatientID); !ok {
		return
	}

	updates := applyMedicationUpdates(existing, &req)

	if len(updates.Days) == 0 && req.Frequency != nil {
		days, err := schedule.FrequencyToDays(*req.Frequency)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid frequency",
				Details: stringPtr(err.Error()),
			})
			return
		}
		updates.Days = days
	}

	if err := h.service.UpdateMedication(c.Request.Context(), actorID, actorRole, medicationID, updates); err != nil {
		h.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		respondServiceError(c, err, "Failed to update medication")
		return
	}

	updated, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get medication")
		return
	}

	c.JSON(http.StatusOK, toMedicationResponse(updated))
}

// DeleteMedication deletes a medication
// DELETE /api/v1/medications/:id
func (h *MedicationHandler) DeleteMedication(c *gin.Context) {
	medicationID := c.Param("id")
	actorID, actorRole := middleware.Actor(c)

	med, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get medication")
		return
	}
	if ok := h.authorize(c, actorID, med.PatientID); !ok {
		return
	}

	if err := h.service.DeleteMedication(c.Request.Context(), actorID, actorRole, medicationID); err != nil {
		h.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		respondServiceError(c, err, "Failed to delete medication")
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordIntake records a dose as taken or missed
// POST /api/v1/medications/:id/intakes
func (h *MedicationHandler) RecordIntake(c *gin.Context) {
	medicationID := c.Param("id")

	var req api.RecordIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	status := model.IntakeStatus(req.Status)
	if status != model.IntakeTaken && status != model.IntakeMissed {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Status must be taken or missed",
		})
		return
	}

	actorID, actorRole := middleware.Actor(c)

	med, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get medication")
		return
	}
	if ok := h.authorize(c, actorID, med.PatientID); !ok {
		return
	}

	rec, err := h.service.RecordIntake(c.Request.Context(), actorID, actorRole, medicationID, req.ScheduledTime, status)
	if err != nil {
		h.logger.Error("failed to record intake",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		respondServiceError(c, err, "Failed to record intake")
		return
	}

	response := api.IntakeResponse{
		Id:            stringToUUID(rec.ID),
		MedicationId:  stringToUUID(rec.MedicationID),
		PatientId:     stringToUUID(rec.PatientID),
		ScheduledTime: stringPtr(rec.ScheduledTime),
		Status:        stringPtr(string(rec.Status)),
		TakenAt:       timePtr(rec.TakenAt),
	}

	c.JSON(http.StatusCreated, response)
}

// Refill adds stock to a tracked medication
// POST /api/v1/medications/:id/refill
func (h *MedicationHandler) Refill(c *gin.Context) {
	medicationID := c.Param("id")

	var req api.RefillRequest
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

	med, err := h.service.GetMedication(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get medication")
		return
	}
	if ok := h.authorize(c, actorID, med.PatientID); !ok {
		return
	}

	quantity, err := h.inventory.Refill(c.Request.Context(), medicationID, req.Amount)
	if err != nil {
		h.logger.Error("failed to refill medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		respondServiceError(c, err, "Failed to refill medication")
		return
	}

	c.JSON(http.StatusOK, api.InventoryResponse{
		MedicationId:         stringToUUID(medicationID),
		CurrentQuantity:      intPtr(quantity),
		LowQuantityThreshold: intPtr(med.LowQuantityThreshold),
		Status:               stringPtr(string(inventory.StatusFor(quantity, med.LowQuantityThreshold))),
	})
}

// GetInventory reports a medication's counter and threshold status
// GET /api/v1/medications/:id/inventory
func (h *MedicationHandler) GetInventory(c *gin.Context) {
	medicationID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	med, status, err := h.inventory.Status(c.Request.Context(), medicationID)
	if err != nil {
		respondServiceError(c, err, "Failed to get inventory")
		return
	}
	if ok := h.authorize(c, actorID, med.PatientID); !ok {
		return
	}

	c.JSON(http.StatusOK, api.InventoryResponse{
		MedicationId:         stringToUUID(med.ID),
		CurrentQuantity:      intPtr(med.CurrentQuantity),
		LowQuantityThreshold: intPtr(med.LowQuantityThreshold),
		Status:               stringPtr(string(status)),
	})
}

// ListLowStock returns tracked medications at or below their threshold
// GET /api/v1/patients/:patientId/inventory/low
func (h *MedicationHandler) ListLowStock(c *gin.Context) {
	patientID := c.Param("patientId")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorize(c, actorID, patientID); !ok {
		return
	}

	meds, err := h.inventory.LowStock(c.Request.Context(), patientID)
	if err != nil {
		respondServiceError(c, err, "Failed to list low stock")
		return
	}

	var response []api.MedicationResponse
	for i := range meds {
		response = append(response, toMedicationResponse(&meds[i]))
	}

	c.JSON(http.StatusOK, response)
}

// authorize rejects the request with a 403 unless the actor may access
// the patient's records.
func (h *MedicationHandler) authorize(c *gin.Context, actorID, patientID string) bool {
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

func applyMedicationUpdates(existing *model.Medication, req *api.UpdateMedicationRequest) *model.Medication {
	updates := *existing

	if req.Name != nil {
		updates.Name = *req.Name
	}
	if req.Icon != nil {
		updates.Icon = *req.Icon
	}
	if req.Dosage != nil {
		updates.Dosage = *req.Dosage
	}
	if req.DoseValue != nil {
		updates.DoseValue = *req.DoseValue
	}
	if req.DoseUnit != nil {
		updates.DoseUnit = *req.DoseUnit
	}
	if req.QuantityType != nil {
		updates.QuantityType = model.QuantityType(*req.QuantityType)
	}
	if req.Times != nil {
		updates.Times = req.Times
	}
	if req.Days != nil {
		updates.Days = req.Days
	}
	if req.TrackInventory != nil {
		updates.TrackInventory = *req.TrackInventory
	}
	if req.CurrentQuantity != nil {
		updates.CurrentQuantity = *req.CurrentQuantity
	}
	if req.InitialQuantity != nil {
		updates.InitialQuantity = *req.InitialQuantity
	}
	if req.LowQuantityThreshold != nil {
		updates.LowQuantityThreshold = *req.LowQuantityThreshold
	}

	return &updates
}

func toMedicationResponse(med *model.Medication) api.MedicationResponse {
	response := api.MedicationResponse{
		Id:             stringToUUID(med.ID),
		PatientId:      stringToUUID(med.PatientID),
		Name:           stringPtr(med.Name),
		QuantityType:   stringPtr(string(med.QuantityType)),
		Times:          med.Times,
		Days:           med.Days,
		Frequency:      stringPtr(schedule.DaysToFrequency(med.Days)),
		TrackInventory: boolPtr(med.TrackInventory),
		Version:        intPtr(med.Version),
		CreatedAt:      timePtr(med.CreatedAt),
		UpdatedAt:      timePtr(med.UpdatedAt),
	}

	if med.Icon != "" {
		response.Icon = stringPtr(med.Icon)
	}
	if med.DoseValue != "" {
		response.DoseValue = stringPtr(med.DoseValue)
		response.DoseUnit = stringPtr(med.DoseUnit)
	}
	if med.TrackInventory {
		response.CurrentQuantity = intPtr(med.CurrentQuantity)
		response.InitialQuantity = intPtr(med.InitialQuantity)
		response.LowQuantityThreshold = intPtr(med.LowQuantityThreshold)
		response.InventoryStatus = stringPtr(string(inventory.StatusFor(med.CurrentQuantity, med.LowQuantityThreshold)))
	}

	return response
}
