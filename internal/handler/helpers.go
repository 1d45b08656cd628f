package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/api"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// intPtr creates a pointer to an int
func intPtr(i int) *int {
	return &i
}

// boolPtr creates a pointer to a bool
func boolPtr(b bool) *bool {
	return &b
}

// float64Ptr creates a pointer to a float64
func float64Ptr(f float64) *float64 {
	return &f
}

// timePtr creates a pointer to a time.Time
func timePtr(t time.Time) *time.Time {
	return &t
}

// stringToUUID converts string to types.UUID pointer
func stringToUUID(s string) *types.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	apiUUID := types.UUID(u)
	return &apiUUID
}

// timeToDate converts time.Time to types.Date pointer
func timeToDate(t time.Time) *types.Date {
	return &types.Date{Time: t}
}

// derefString safely dereferences a string pointer, returning empty string if nil
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// derefBool safely dereferences a bool pointer, returning false if nil
func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// respondServiceError maps domain sentinel errors onto HTTP statuses.
// Unknown errors become a 500.
func respondServiceError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, repository.ErrVersionStale):
		status = http.StatusConflict
		code = "VERSION_CONFLICT"
	case errors.Is(err, repository.ErrCodeUsed):
		status = http.StatusConflict
		code = "CODE_USED"
	case errors.Is(err, repository.ErrCodeExpired):
		status = http.StatusGone
		code = "CODE_EXPIRED"
	case errors.Is(err, repository.ErrLinkExists):
		status = http.StatusConflict
		code = "LINK_EXISTS"
	case errors.Is(err, repository.ErrLinkRevoked):
		status = http.StatusConflict
		code = "LINK_REVOKED"
	case errors.Is(err, service.ErrNotAuthorized):
		status = http.StatusForbidden
		code = "FORBIDDEN"
	}

	c.JSON(status, api.ErrorResponse{
		Code:    code,
		Message: message,
		Details: stringPtr(err.Error()),
	})
}
