package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/api"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// DeviceLinkHandler implements device link and connection code endpoints
type DeviceLinkHandler struct {
	service *service.DeviceLinkService
	logger  *zap.Logger
}

// NewDeviceLinkHandler creates a new DeviceLinkHandler
func NewDeviceLinkHandler(service *service.DeviceLinkService, logger *zap.Logger) *DeviceLinkHandler {
	return &DeviceLinkHandler{
		service: service,
		logger:  logger,
	}
}

// IssueCode issues a one-time connection code for a device
// POST /api/v1/devices/codes
func (h *DeviceLinkHandler) IssueCode(c *gin.Context) {
	var req api.IssueCodeRequest
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

	code, err := h.service.IssueCode(c.Request.Context(), actorID, req.DeviceId)
	if err != nil {
		h.logger.Error("failed to issue connection code",
			zap.Error(err),
			zap.String("device_id", req.DeviceId),
		)
		respondServiceError(c, err, "Failed to issue connection code")
		return
	}

	c.JSON(http.StatusCreated, api.ConnectionCodeResponse{
		Code:      stringPtr(code.Code),
		DeviceId:  stringPtr(code.DeviceID),
		ExpiresAt: timePtr(code.ExpiresAt),
	})
}

// RedeemCode redeems a connection code, creating a device link
// POST /api/v1/devices/links
func (h *DeviceLinkHandler) RedeemCode(c *gin.Context) {
	var req api.RedeemCodeRequest
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

	link, err := h.service.Redeem(c.Request.Context(), actorID, actorRole, req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.logger.Error("failed to redeem connection code",
			zap.Error(err),
			zap.String("user_id", actorID),
		)
		respondServiceError(c, err, "Failed to redeem connection code")
		return
	}

	c.JSON(http.StatusCreated, toDeviceLinkResponse(link))
}

// ListLinks lists the links visible to the actor
// GET /api/v1/devices/links
func (h *DeviceLinkHandler) ListLinks(c *gin.Context) {
	actorID, actorRole := middleware.Actor(c)

	links, err := h.service.List(c.Request.Context(), actorID, actorRole)
	if err != nil {
		respondServiceError(c, err, "Failed to list device links")
		return
	}

	var response []api.DeviceLinkResponse
	for i := range links {
		response = append(response, toDeviceLinkResponse(&links[i]))
	}

	c.JSON(http.StatusOK, response)
}

// RevokeLink revokes a device link
// DELETE /api/v1/devices/links/:id
func (h *DeviceLinkHandler) RevokeLink(c *gin.Context) {
	linkID := c.Param("id")
	actorID, _ := middleware.Actor(c)

	if err := h.service.Revoke(c.Request.Context(), actorID, linkID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		h.logger.Error("failed to revoke device link",
			zap.Error(err),
			zap.String("link_id", linkID),
		)
		respondServiceError(c, err, "Failed to revoke device link")
		return
	}

	c.Status(http.StatusNoContent)
}

func toDeviceLinkResponse(link *model.DeviceLink) api.DeviceLinkResponse {
	response := api.DeviceLinkResponse{
		Id:        stringToUUID(link.ID),
		UserId:    stringToUUID(link.UserID),
		PatientId: stringToUUID(link.PatientID),
		DeviceId:  stringPtr(link.DeviceID),
		Role:      stringPtr(string(link.Role)),
		Status:    stringPtr(string(link.Status)),
		CreatedAt: timePtr(link.CreatedAt),
	}
	if link.RevokedAt != nil {
		response.RevokedAt = link.RevokedAt
	}
	return response
}
