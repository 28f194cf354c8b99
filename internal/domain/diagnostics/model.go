package diagnostics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOrdered         Status = "ordered"
	StatusSampleCollected Status = "sample_collected"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusOrdered: true, StatusSampleCollected: true,
	StatusInProgress: true, StatusCompleted: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid diagnostics status: %s", s)
	}
	return st, nil
}

// statusOrder defines the forward-only progression of an order.
var statusOrder = map[Status]int{
	StatusOrdered: 0, StatusSampleCollected: 1, StatusInProgress: 2, StatusCompleted: 3,
}

// Order is a lab test request moving from ordered to completed.
type Order struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patientId"`
	OrderedByID   uuid.UUID `json:"orderedById"`
	LabID         uuid.UUID `json:"labId"`
	TestType      string    `json:"testType"`
	Status        Status    `json:"status"`
	ResultFileURL *string   `json:"resultFileUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
