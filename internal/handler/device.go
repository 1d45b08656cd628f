package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/pkg/api"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// DeviceRegistry is the realtime dispenser view the handler operates on
type DeviceRegistry interface {
	Heartbeat(ctx context.Context, state *model.DeviceState) error
	State(ctx context.Context, deviceID string) (*model.DeviceState, error)
	SendCommand(ctx context.Context, cmd *model.DeviceCommand) error
	DrainCommands(ctx context.Context, deviceID string) ([]model.DeviceCommand, error)
}

// DeviceAuthorizer decides whether an actor may touch a device
type DeviceAuthorizer interface {
	CanAccessDevice(ctx context.Context, actorID, deviceID string) (bool, error)
}

// DeviceHandler implements realtime dispenser endpoints
type DeviceHandler struct {
	registry DeviceRegistry
	links    DeviceAuthorizer
	logger   *zap.Logger
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(registry DeviceRegistry, links DeviceAuthorizer, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		registry: registry,
		links:    links,
		logger:   logger,
	}
}

// Heartbeat records a dispenser's periodic state report. The reported
// state gates alarm registration, so only the owning patient or a linked
// caregiver may post it.
// POST /api/v1/devices/:id/heartbeat
func (h *DeviceHandler) Heartbeat(c *gin.Context) {
	deviceID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorizeDevice(c, actorID, deviceID); !ok {
		return
	}

	var req api.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	state := &model.DeviceState{
		DeviceID:             deviceID,
		BatteryLevel:         req.BatteryLevel,
		Firmware:             derefString(req.Firmware),
		NotificationsEnabled: req.NotificationsEnabled,
	}

	if err := h.registry.Heartbeat(c.Request.Context(), state); err != nil {
		respondServiceError(c, err, "Failed to record heartbeat")
		return
	}

	c.JSON(http.StatusOK, toDeviceStateResponse(state))
}

// GetState reports a dispenser's realtime state
// GET /api/v1/devices/:id/state
func (h *DeviceHandler) GetState(c *gin.Context) {
	deviceID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorizeDevice(c, actorID, deviceID); !ok {
		return
	}

	state, err := h.registry.State(c.Request.Context(), deviceID)
	if err != nil {
		respondServiceError(c, err, "Failed to get device state")
		return
	}

	c.JSON(http.StatusOK, toDeviceStateResponse(state))
}

// SendCommand queues a command for a dispenser
// POST /api/v1/devices/:id/commands
func (h *DeviceHandler) SendCommand(c *gin.Context) {
	deviceID := c.Param("id")

	var req api.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	cmdType := model.CommandType(req.Type)
	switch cmdType {
	case model.CommandTopo, model.CommandBuzzer, model.CommandLED, model.CommandReboot:
	default:
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Unknown command type",
		})
		return
	}

	actorID, _ := middleware.Actor(c)

	if ok := h.authorizeDevice(c, actorID, deviceID); !ok {
		return
	}

	cmd := &model.DeviceCommand{
		DeviceID: deviceID,
		Type:     cmdType,
		Payload:  req.Payload,
		IssuedBy: actorID,
	}

	if err := h.registry.SendCommand(c.Request.Context(), cmd); err != nil {
		respondServiceError(c, err, "Failed to queue command")
		return
	}

	c.JSON(http.StatusAccepted, api.CommandResponse{
		Id:       stringToUUID(cmd.ID),
		DeviceId: stringPtr(cmd.DeviceID),
		Type:     stringPtr(string(cmd.Type)),
		IssuedAt: timePtr(cmd.IssuedAt),
	})
}

// DrainCommands pops the dispenser's queued commands, oldest first
// GET /api/v1/devices/:id/commands
func (h *DeviceHandler) DrainCommands(c *gin.Context) {
	deviceID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	if ok := h.authorizeDevice(c, actorID, deviceID); !ok {
		return
	}

	commands, err := h.registry.DrainCommands(c.Request.Context(), deviceID)
	if err != nil {
		respondServiceError(c, err, "Failed to drain commands")
		return
	}

	response := make([]api.CommandResponse, 0, len(commands))
	for _, cmd := range commands {
		response = append(response, api.CommandResponse{
			Id:       stringToUUID(cmd.ID),
			DeviceId: stringPtr(cmd.DeviceID),
			Type:     stringPtr(string(cmd.Type)),
			Payload:  cmd.Payload,
			IssuedAt: timePtr(cmd.IssuedAt),
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *DeviceHandler) authorizeDevice(c *gin.Context, actorID, deviceID string) bool {
	allowed, err := h.links.CanAccessDevice(c.Request.Context(), actorID, deviceID)
	if err != nil {
		respondServiceError(c, err, "Failed to check device access")
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, api.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Not authorized for this device",
		})
		return false
	}
	return true
}

func toDeviceStateResponse(state *model.DeviceState) api.DeviceStateResponse {
	response := api.DeviceStateResponse{
		DeviceId:             stringPtr(state.DeviceID),
		Status:               stringPtr(state.Status),
		BatteryLevel:         state.BatteryLevel,
		NotificationsEnabled: state.NotificationsEnabled,
	}
	if state.Firmware != "" {
		response.Firmware = stringPtr(state.Firmware)
	}
	if !state.LastSeen.IsZero() {
		response.LastSeen = timePtr(state.LastSeen)
	}
	return response
}
