package consult

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusIntake     Status = "intake"
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusIntake: true, StatusQueued: true, StatusInProgress: true, StatusCompleted: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid consult status: %s", s)
	}
	return st, nil
}

// Intake is the patient-submitted symptom report.
type Intake struct {
	Symptoms string `json:"symptoms"`
	Duration string `json:"duration"`
	Severity string `json:"severity"`
}

func (in Intake) Validate() error {
	switch {
	case in.Symptoms == "":
		return fmt.Errorf("symptoms are required")
	case in.Duration == "":
		return fmt.Errorf("duration is required")
	case in.Severity == "":
		return fmt.Errorf("severity is required")
	}
	return nil
}

// Summary renders the one-line triage summary shown to GPs.
func (in Intake) Summary() string {
	return fmt.Sprintf("Patient reports: %s. Duration: %s. Severity: %s.", in.Symptoms, in.Duration, in.Severity)
}

type Consult struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patientId"`
	AssignedGPID *uuid.UUID `json:"assignedGpId,omitempty"`
	Status       Status     `json:"status"`
	Intake       Intake     `json:"intake"`
	Summary      string     `json:"summary"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Message is one turn of the patient/GP conversation on a consult.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ConsultID uuid.UUID `json:"consultId"`
	SenderID  uuid.UUID `json:"senderId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
