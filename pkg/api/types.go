// Package api defines the request and response types of the HTTP API.
package api

import (
	"encoding/json"
	"time"

	"github.com/oapi-codegen/runtime/types"
)

// ErrorResponse is the uniform error body for all endpoints
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// CreateMedicationRequest adds a medication to a patient's list
type CreateMedicationRequest struct {
	PatientId            types.UUID `json:"patient_id"`
	Name                 string     `json:"name"`
	Icon                 *string    `json:"icon,omitempty"`
	DoseValue            *string    `json:"dose_value,omitempty"`
	DoseUnit             *string    `json:"dose_unit,omitempty"`
	Dosage               *string    `json:"dosage,omitempty"`
	QuantityType         *string    `json:"quantity_type,omitempty"`
	Times                []string   `json:"times"`
	Days                 []int      `json:"days,omitempty"`
	Frequency            *string    `json:"frequency,omitempty"`
	TrackInventory       *bool      `json:"track_inventory,omitempty"`
	InitialQuantity      *int       `json:"initial_quantity,omitempty"`
	LowQuantityThreshold *int       `json:"low_quantity_threshold,omitempty"`
}

// UpdateMedicationRequest replaces a medication's editable fields
type UpdateMedicationRequest struct {
	Name                 *string  `json:"name,omitempty"`
	Icon                 *string  `json:"icon,omitempty"`
	DoseValue            *string  `json:"dose_value,omitempty"`
	DoseUnit             *string  `json:"dose_unit,omitempty"`
	Dosage               *string  `json:"dosage,omitempty"`
	QuantityType         *string  `json:"quantity_type,omitempty"`
	Times                []string `json:"times,omitempty"`
	Days                 []int    `json:"days,omitempty"`
	Frequency            *string  `json:"frequency,omitempty"`
	TrackInventory       *bool    `json:"track_inventory,omitempty"`
	CurrentQuantity      *int     `json:"current_quantity,omitempty"`
	InitialQuantity      *int     `json:"initial_quantity,omitempty"`
	LowQuantityThreshold *int     `json:"low_quantity_threshold,omitempty"`
}

// MedicationResponse is the API view of a medication record
type MedicationResponse struct {
	Id                   *types.UUID `json:"id,omitempty"`
	PatientId            *types.UUID `json:"patient_id,omitempty"`
	Name                 *string     `json:"name,omitempty"`
	Icon                 *string     `json:"icon,omitempty"`
	DoseValue            *string     `json:"dose_value,omitempty"`
	DoseUnit             *string     `json:"dose_unit,omitempty"`
	QuantityType         *string     `json:"quantity_type,omitempty"`
	Times                []string    `json:"times,omitempty"`
	Days                 []int       `json:"days,omitempty"`
	Frequency            *string     `json:"frequency,omitempty"`
	TrackInventory       *bool       `json:"track_inventory,omitempty"`
	CurrentQuantity      *int        `json:"current_quantity,omitempty"`
	InitialQuantity      *int        `json:"initial_quantity,omitempty"`
	LowQuantityThreshold *int        `json:"low_quantity_threshold,omitempty"`
	InventoryStatus      *string     `json:"inventory_status,omitempty"`
	Version              *int        `json:"version,omitempty"`
	CreatedAt            *time.Time  `json:"created_at,omitempty"`
	UpdatedAt            *time.Time  `json:"updated_at,omitempty"`
}

// RecordIntakeRequest records a dose as taken or missed
type RecordIntakeRequest struct {
	ScheduledTime string `json:"scheduled_time"`
	Status        string `json:"status"`
}

// IntakeResponse is the API view of an intake record
type IntakeResponse struct {
	Id            *types.UUID `json:"id,omitempty"`
	MedicationId  *types.UUID `json:"medication_id,omitempty"`
	PatientId     *types.UUID `json:"patient_id,omitempty"`
	ScheduledTime *string     `json:"scheduled_time,omitempty"`
	Status        *string     `json:"status,omitempty"`
	TakenAt       *time.Time  `json:"taken_at,omitempty"`
}

// RefillRequest adds stock to a tracked medication
type RefillRequest struct {
	Amount int `json:"amount"`
}

// InventoryResponse reports a medication's counter and threshold status
type InventoryResponse struct {
	MedicationId         *types.UUID `json:"medication_id,omitempty"`
	CurrentQuantity      *int        `json:"current_quantity,omitempty"`
	LowQuantityThreshold *int        `json:"low_quantity_threshold,omitempty"`
	Status               *string     `json:"status,omitempty"`
}

// FieldChangeResponse is one field-level difference in an update event
type FieldChangeResponse struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// EventResponse is the API view of a medication event
type EventResponse struct {
	Id             *types.UUID           `json:"id,omitempty"`
	MedicationId   *types.UUID           `json:"medication_id,omitempty"`
	PatientId      *types.UUID           `json:"patient_id,omitempty"`
	Type           *string               `json:"type,omitempty"`
	ActorRole      *string               `json:"actor_role,omitempty"`
	MedicationName *string               `json:"medication_name,omitempty"`
	Snapshot       json.RawMessage       `json:"snapshot,omitempty"`
	Changes        []FieldChangeResponse `json:"changes,omitempty"`
	SyncStatus     *string               `json:"sync_status,omitempty"`
	CreatedAt      *time.Time            `json:"created_at,omitempty"`
	DeliveredAt    *time.Time            `json:"delivered_at,omitempty"`
}

// IssueCodeRequest asks for a one-time connection code for a device
type IssueCodeRequest struct {
	DeviceId string `json:"device_id"`
}

// ConnectionCodeResponse carries an issued connection code
type ConnectionCodeResponse struct {
	Code      *string    `json:"code,omitempty"`
	DeviceId  *string    `json:"device_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RedeemCodeRequest redeems a connection code to create a device link
type RedeemCodeRequest struct {
	Code string `json:"code"`
}

// DeviceLinkResponse is the API view of a device link
type DeviceLinkResponse struct {
	Id        *types.UUID `json:"id,omitempty"`
	UserId    *types.UUID `json:"user_id,omitempty"`
	PatientId *types.UUID `json:"patient_id,omitempty"`
	DeviceId  *string     `json:"device_id,omitempty"`
	Role      *string     `json:"role,omitempty"`
	Status    *string     `json:"status,omitempty"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty"`
}

// HeartbeatRequest is a dispenser's periodic state report
type HeartbeatRequest struct {
	BatteryLevel         *int    `json:"battery_level,omitempty"`
	Firmware             *string `json:"firmware,omitempty"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
}

// DeviceStateResponse is the API view of a dispenser's realtime state
type DeviceStateResponse struct {
	DeviceId             *string    `json:"device_id,omitempty"`
	Status               *string    `json:"status,omitempty"`
	BatteryLevel         *int       `json:"battery_level,omitempty"`
	Firmware             *string    `json:"firmware,omitempty"`
	NotificationsEnabled *bool      `json:"notifications_enabled,omitempty"`
	LastSeen             *time.Time `json:"last_seen,omitempty"`
}

// CommandRequest queues a command for a dispenser
type CommandRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandResponse acknowledges a queued command
type CommandResponse struct {
	Id       *types.UUID     `json:"id,omitempty"`
	DeviceId *string         `json:"device_id,omitempty"`
	Type     *string         `json:"type,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	IssuedAt *time.Time      `json:"issued_at,omitempty"`
}

// MedicationAdherenceResponse is one medication's adherence breakdown
type MedicationAdherenceResponse struct {
	MedicationId   *types.UUID `json:"medication_id,omitempty"`
	MedicationName *string     `json:"medication_name,omitempty"`
	TakenCount     *int        `json:"taken_count,omitempty"`
	MissedCount    *int        `json:"missed_count,omitempty"`
	AdherenceRate  *float64    `json:"adherence_rate,omitempty"`
}

// AdherenceSummaryResponse aggregates a patient's adherence over a window
type AdherenceSummaryResponse struct {
	PatientId   *types.UUID                   `json:"patient_id,omitempty"`
	From        *time.Time                    `json:"from,omitempty"`
	To          *time.Time                    `json:"to,omitempty"`
	TakenCount  *int                          `json:"taken_count,omitempty"`
	MissedCount *int                          `json:"missed_count,omitempty"`
	Rate        *float64                      `json:"rate,omitempty"`
	Medications []MedicationAdherenceResponse `json:"medications,omitempty"`
}

// GenerateReportRequest builds an adherence report over a date range
type GenerateReportRequest struct {
	PatientId   types.UUID  `json:"patient_id"`
	PatientName *string     `json:"patient_name,omitempty"`
	StartDate   types.Date  `json:"start_date"`
	EndDate     *types.Date `json:"end_date,omitempty"`
}

// ReportResponse is the API view of a generated report
type ReportResponse struct {
	Id             *types.UUID `json:"id,omitempty"`
	PatientId      *types.UUID `json:"patient_id,omitempty"`
	DateRangeStart *types.Date `json:"date_range_start,omitempty"`
	DateRangeEnd   *types.Date `json:"date_range_end,omitempty"`
	FilePath       *string     `json:"file_path,omitempty"`
	GeneratedAt    *time.Time  `json:"generated_at,omitempty"`
}

// RequeueResponse reports how many failed events were requeued
type RequeueResponse struct {
	Requeued int `json:"requeued"`
}
