package dto

import "github.com/google/uuid"

// CreateEmployeeRequest is the form part of the multipart enrollment
// request; the reference photo travels in the "photo" file part.
type CreateEmployeeRequest struct {
	FirstName string `form:"first_name" binding:"required"`
	LastName  string `form:"last_name" binding:"required"`
	Role      string `form:"role" binding:"required"`
}

type EmployeeResponse struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	Enrolled   bool      `json:"enrolled"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	EnrolledAt string    `json:"enrolled_at"`
}

type EmployeeListResponse struct {
	Employees []EmployeeResponse `json:"employees"`
	Total     int                `json:"total"`
}
