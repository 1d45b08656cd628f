package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
	OperationRead   OperationType = "READ"
	OperationLink   OperationType = "LINK"
	OperationRevoke OperationType = "REVOKE"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceMedication     ResourceType = "medication"
	ResourceIntake         ResourceType = "intake_record"
	ResourceEvent          ResourceType = "medication_event"
	ResourceDeviceLink     ResourceType = "device_link"
	ResourceConnectionCode ResourceType = "connection_code"
	ResourceDevice         ResourceType = "device"
	ResourceReport         ResourceType = "report"
	ResourceUser           ResourceType = "user"
)

// Entry represents an audit log entry
type Entry struct {
	ID             string
	UserID         string
	OperationType  OperationType
	ResourceType   ResourceType
	ResourceID     string
	Timestamp      time.Time
	IPAddress      string
	UserAgent      string
	AdditionalData map[string]interface{}
}

// Logger handles audit logging
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Log creates an audit log entry
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.logger.Info("audit log entry",
		zap.String("user_id", entry.UserID),
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("ip_address", entry.IPAddress),
	)

	query := `
		INSERT INTO audit_logs (
			user_id, operation_type, resource_type, resource_id,
			timestamp, ip_address, user_agent, additional_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.db.Exec(ctx, query,
		entry.UserID,
		entry.OperationType,
		entry.ResourceType,
		entry.ResourceID,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
		entry.AdditionalData,
	)

	if err != nil {
		l.logger.Error("failed to write audit log to database",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("operation", string(entry.OperationType)),
			zap.String("resource_type", string(entry.ResourceType)),
		)
		return err
	}

	return nil
}

// LogCreate logs a CREATE operation
func (l *Logger) LogCreate(ctx context.Context, userID string, resourceType ResourceType, resourceID, ipAddress, userAgent string) error {
	return l.Log(ctx, Entry{
		UserID:        userID,
		OperationType: OperationCreate,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
	})
}

// LogUpdate logs an UPDATE operation
func (l *Logger) LogUpdate(ctx context.Context, userID string, resourceType ResourceType, resourceID, ipAddress, userAgent string) error {
	return l.Log(ctx, Entry{
		UserID:        userID,
		OperationType: OperationUpdate,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
	})
}

// LogDelete logs a DELETE operation
func (l *Logger) LogDelete(ctx context.Context, userID string, resourceType ResourceType, resourceID, ipAddress, userAgent string) error {
	return l.Log(ctx, Entry{
		UserID:        userID,
		OperationType: OperationDelete,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
	})
}

// LogLink logs a device link creation with the redeemed code attached
func (l *Logger) LogLink(ctx context.Context, userID, linkID, code, ipAddress, userAgent string) error {
	return l.Log(ctx, Entry{
		UserID:        userID,
		OperationType: OperationLink,
		ResourceType:  ResourceDeviceLink,
		ResourceID:    linkID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		AdditionalData: map[string]interface{}{
			"connection_code": code,
		},
	})
}

// LogRevoke logs a device link revocation
func (l *Logger) LogRevoke(ctx context.Context, userID, linkID, ipAddress, userAgent string) error {
	return l.Log(ctx, Entry{
		UserID:        userID,
		OperationType: OperationRevoke,
		ResourceType:  ResourceDeviceLink,
		ResourceID:    linkID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
	})
}
