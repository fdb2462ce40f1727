package dto

import "github.com/google/uuid"

// ManualPunchRequest records a punch entered by an operator when
// automatic verification is unavailable.
type ManualPunchRequest struct {
	EmployeeID uuid.UUID `json:"employee_id" binding:"required"`
	KioskID    string    `json:"kiosk_id"`
}

// PunchResponse is returned by the punch endpoints and broadcast over
// WebSocket when a frame result arrives from the worker.
type PunchResponse struct {
	EventID      *uuid.UUID `json:"event_id,omitempty"`
	EmployeeID   *uuid.UUID `json:"employee_id,omitempty"`
	EmployeeName string     `json:"employee_name,omitempty"`
	Timestamp    string     `json:"timestamp"`
	Kind         string     `json:"kind,omitempty"`
	Verification string     `json:"verification,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
	Accepted     bool       `json:"accepted"`
	Message      string     `json:"message,omitempty"`
}

// WSPunch frames a punch result for WebSocket delivery. KioskID lets
// clients subscribed with ?kiosk_id= receive only their own kiosk.
type WSPunch struct {
	Type    string        `json:"type"` // punch_accepted, punch_rejected
	KioskID string        `json:"kiosk_id"`
	Data    PunchResponse `json:"data"`
}

type EventHistoryItem struct {
	ID           uuid.UUID `json:"id"`
	EmployeeID   uuid.UUID `json:"employee_id"`
	Timestamp    string    `json:"timestamp"`
	Kind         string    `json:"kind"`
	Verification string    `json:"verification"`
	Similarity   *float64  `json:"similarity,omitempty"`
	SnapshotURL  string    `json:"snapshot_url,omitempty"`
}

type EventHistoryResponse struct {
	Events []EventHistoryItem `json:"events"`
	Total  int                `json:"total"`
}
