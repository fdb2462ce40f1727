package models

import (
	"time"

	"github.com/google/uuid"
)

// DescriptorDim is the length of the face descriptor produced by the
// embedding model. Employees whose stored descriptor does not have this
// length are enrollment-incomplete and excluded from matching.
const DescriptorDim = 512

type Employee struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Role       string    `json:"role" db:"role"`
	PhotoKey   string    `json:"photo_key" db:"photo_key"`
	Descriptor []float32 `json:"-" db:"descriptor"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// DisplayName is the name printed on reports and punch confirmations.
func (e *Employee) DisplayName() string {
	return e.FirstName + " " + e.LastName
}

// Enrolled reports whether the employee has a usable descriptor and can
// take part in automatic verification.
func (e *Employee) Enrolled() bool {
	return len(e.Descriptor) == DescriptorDim
}
