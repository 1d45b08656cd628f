package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pildhora/backend/internal/middleware"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/api"
	"go.uber.org/zap"
)

// GDPRHandler implements GDPR compliance endpoints
type GDPRHandler struct {
	service *service.GDPRService
	logger  *zap.Logger
}

// NewGDPRHandler creates a new GDPRHandler
func NewGDPRHandler(service *service.GDPRService, logger *zap.Logger) *GDPRHandler {
	return &GDPRHandler{
		service: service,
		logger:  logger,
	}
}

// DeleteUserData handles user data deletion requests (GDPR right to be forgotten)
// DELETE /api/v1/users/:userId/data
func (h *GDPRHandler) DeleteUserData(c *gin.Context) {
	userID, ok := h.resolveUser(c)
	if !ok {
		return
	}

	ipAddress := c.ClientIP()
	userAgent := c.Request.UserAgent()

	h.logger.Info("processing user data deletion request (GDPR)",
		zap.String("user_id", userID),
		zap.String("ip", ipAddress),
	)

	if err := h.service.DeleteUserData(c.Request.Context(), userID, ipAddress, userAgent); err != nil {
		h.logger.Error("failed to delete user data",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		respondServiceError(c, err, "Failed to delete user data")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User data deleted successfully",
		"user_id": userID,
	})
}

// ExportUserData handles user data export requests (GDPR right to data portability)
// GET /api/v1/users/:userId/export
func (h *GDPRHandler) ExportUserData(c *gin.Context) {
	userID, ok := h.resolveUser(c)
	if !ok {
		return
	}

	h.logger.Info("processing user data export request (GDPR)",
		zap.String("user_id", userID),
	)

	jsonData, err := h.service.ExportUserData(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to export user data",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		respondServiceError(c, err, "Failed to export user data")
		return
	}

	filename := fmt.Sprintf("user_data_%s.json", userID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", jsonData)
}

// resolveUser validates the path parameter and restricts GDPR
// operations to the account owner.
func (h *GDPRHandler) resolveUser(c *gin.Context) (string, bool) {
	userIDParam := c.Param("userId")
	userID, err := uuid.Parse(userIDParam)
	if err != nil {
		h.logger.Error("invalid user ID", zap.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid user ID",
			Details: stringPtr(err.Error()),
		})
		return "", false
	}

	actorID, _ := middleware.Actor(c)
	if actorID != userID.String() {
		c.JSON(http.StatusForbidden, api.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "GDPR operations are restricted to the account owner",
		})
		return "", false
	}

	return userID.String(), true
}
