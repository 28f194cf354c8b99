package referral

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProposed  Status = "proposed"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusProposed: true, StatusAccepted: true, StatusCompleted: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid referral status: %s", s)
	}
	return st, nil
}

// Referral hands a patient from a GP to a specialist.
type Referral struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patientId"`
	GPID         uuid.UUID `json:"gpId"`
	SpecialistID uuid.UUID `json:"specialistId"`
	Reason       string    `json:"reason"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
