package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the direction of an attendance event.
type Kind string

const (
	KindEntry Kind = "ENTRY"
	KindExit  Kind = "EXIT"
)

// Verification records how the event was authenticated.
type Verification string

const (
	VerificationSuccess Verification = "SUCCESS"
	VerificationFailed  Verification = "FAILED"
	VerificationManual  Verification = "MANUAL"
)

// AttendanceEvent is one punch in the append-only attendance log.
// EmployeeID is a weak reference: the employee record may be absent when
// the log is read later, and consumers must tolerate that.
type AttendanceEvent struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	EmployeeID   uuid.UUID    `json:"employee_id" db:"employee_id"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	Kind         Kind         `json:"kind" db:"kind"`
	Verification Verification `json:"verification" db:"verification"`
	Similarity   *float64     `json:"similarity,omitempty" db:"similarity"`
	SnapshotKey  string       `json:"snapshot_key,omitempty" db:"snapshot_key"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// FrameTask is the message published to NATS for kiosk frame processing.
type FrameTask struct {
	KioskID   string    `json:"kiosk_id"`
	FrameID   uuid.UUID `json:"frame_id"`
	Timestamp time.Time `json:"timestamp"`
	FrameRef  string    `json:"frame_ref"` // MinIO object key
}

// PunchResult is published after a worker processes a frame. Accepted is
// false for frames that matched nobody or were rejected by the cooldown.
type PunchResult struct {
	KioskID      string       `json:"kiosk_id"`
	EventID      *uuid.UUID   `json:"event_id,omitempty"`
	EmployeeID   *uuid.UUID   `json:"employee_id,omitempty"`
	EmployeeName string       `json:"employee_name,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Kind         Kind         `json:"kind,omitempty"`
	Verification Verification `json:"verification,omitempty"`
	Confidence   float64      `json:"confidence,omitempty"`
	Accepted     bool         `json:"accepted"`
	Message      string       `json:"message,omitempty"`
}
