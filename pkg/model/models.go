package model

import (
	"encoding/json"
	"time"
)

// Role identifies the kind of account acting on a record
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// User represents a user account
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// QuantityType describes the physical form of a medication
type QuantityType string

const (
	QuantityTablets QuantityType = "tablets"
	QuantityLiquid  QuantityType = "liquid"
	QuantityCream   QuantityType = "cream"
	QuantityInhaler QuantityType = "inhaler"
	QuantityDrops   QuantityType = "drops"
	QuantitySpray   QuantityType = "spray"
	QuantityOther   QuantityType = "other"
)

// Medication represents a medication record with its schedule and
// inventory state. Dosage is the legacy free-text field kept for records
// created before DoseValue/DoseUnit existed; NormalizeDose migrates it.
type Medication struct {
	ID                   string       `json:"id"`
	PatientID            string       `json:"patient_id"`
	CaregiverID          *string      `json:"caregiver_id,omitempty"`
	Name                 string       `json:"name"`
	Icon                 string       `json:"icon,omitempty"`
	Dosage               string       `json:"dosage,omitempty"`
	DoseValue            string       `json:"dose_value,omitempty"`
	DoseUnit             string       `json:"dose_unit,omitempty"`
	QuantityType         QuantityType `json:"quantity_type"`
	Times                []string     `json:"times"`
	Days                 []int        `json:"days"`
	TrackInventory       bool         `json:"track_inventory"`
	CurrentQuantity      int          `json:"current_quantity"`
	InitialQuantity      int          `json:"initial_quantity"`
	LowQuantityThreshold int          `json:"low_quantity_threshold"`
	AlarmIDs             []string     `json:"alarm_ids,omitempty"`
	Version              int          `json:"version"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	DeletedAt            *time.Time   `json:"deleted_at,omitempty"`
}

// EventType represents a medication lifecycle transition
type EventType string

const (
	EventCreated    EventType = "created"
	EventUpdated    EventType = "updated"
	EventDeleted    EventType = "deleted"
	EventDoseTaken  EventType = "taken"
	EventDoseMissed EventType = "missed"
)

// SyncStatus represents the delivery state of a medication event
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncDelivered SyncStatus = "delivered"
	SyncFailed    SyncStatus = "failed"
)

// FieldChange records one field-level difference in an update event
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// MedicationEvent is an immutable record of one medication lifecycle
// transition. Only SyncStatus and its delivery bookkeeping fields ever
// change after creation.
type MedicationEvent struct {
	ID             string          `json:"id"`
	MedicationID   string          `json:"medication_id"`
	PatientID      string          `json:"patient_id"`
	ActorID        string          `json:"actor_id"`
	ActorRole      Role            `json:"actor_role"`
	Type           EventType       `json:"type"`
	MedicationName string          `json:"medication_name"`
	Snapshot       json.RawMessage `json:"snapshot,omitempty"`
	Changes        []FieldChange   `json:"changes,omitempty"`
	SyncStatus     SyncStatus      `json:"sync_status"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
}

// IntakeStatus marks a dose as taken or missed
type IntakeStatus string

const (
	IntakeTaken  IntakeStatus = "taken"
	IntakeMissed IntakeStatus = "missed"
)

// IntakeRecord represents one dose-taken or dose-missed occurrence
type IntakeRecord struct {
	ID            string       `json:"id"`
	MedicationID  string       `json:"medication_id"`
	PatientID     string       `json:"patient_id"`
	ActorID       string       `json:"actor_id"`
	ScheduledTime string       `json:"scheduled_time"`
	Status        IntakeStatus `json:"status"`
	TakenAt       time.Time    `json:"taken_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// LinkStatus represents the state of a device link
type LinkStatus string

const (
	LinkActive  LinkStatus = "active"
	LinkRevoked LinkStatus = "revoked"
)

// DeviceLink grants a caregiver account observation access to a patient
// device. RevokedAt is terminal; a revoked link is never reactivated.
type DeviceLink struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	PatientID string     `json:"patient_id"`
	DeviceID  string     `json:"device_id"`
	Role      Role       `json:"role"`
	Status    LinkStatus `json:"status"`
	LinkedBy  string     `json:"linked_by"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// ConnectionCode is a short-lived single-use token that a caregiver
// redeems to create a device link. Used never transitions back to false.
type ConnectionCode struct {
	Code      string    `json:"code"`
	PatientID string    `json:"patient_id"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	UsedBy    *string   `json:"used_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AlarmConfig is one (time, weekday) notification registration for a
// medication. Content is deterministic for a given medication.
type AlarmConfig struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	Time         string `json:"time"`
	Day          int    `json:"day"`
}

// AlarmRegistration records a platform registration identifier so the
// alarm can be cancelled later
type AlarmRegistration struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	Time         string    `json:"time"`
	Day          int       `json:"day"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeviceState is the last reported state of a physical dispenser.
// NotificationsEnabled mirrors the dispenser's local alarm permission:
// false means the device refuses alarm registrations until re-enabled.
type DeviceState struct {
	DeviceID             string    `json:"device_id"`
	Status               string    `json:"status"`
	BatteryLevel         *int      `json:"battery_level,omitempty"`
	Firmware             string    `json:"firmware,omitempty"`
	NotificationsEnabled *bool     `json:"notifications_enabled,omitempty"`
	LastSeen             time.Time `json:"last_seen"`
}

// CommandType is a dispenser command name
type CommandType string

const (
	CommandTopo   CommandType = "topo"
	CommandBuzzer CommandType = "buzzer"
	CommandLED    CommandType = "led"
	CommandReboot CommandType = "reboot"
)

// DeviceCommand is one command queued for a dispenser
type DeviceCommand struct {
	ID       string          `json:"id"`
	DeviceID string          `json:"device_id"`
	Type     CommandType     `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	IssuedBy string          `json:"issued_by"`
	IssuedAt time.Time       `json:"issued_at"`
}

// Report represents a generated adherence report
type Report struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	DateRangeStart time.Time `json:"date_range_start"`
	DateRangeEnd   time.Time `json:"date_range_end"`
	FilePath       string    `json:"file_path"`
	GeneratedAt    time.Time `json:"generated_at"`
	CreatedAt      time.Time `json:"created_at"`
}
