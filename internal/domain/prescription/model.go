package prescription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status of a prescription. Dispensing and expiry are status values, records
// are never hard-deleted.
type Status string

const (
	StatusActive    Status = "active"
	StatusDispensed Status = "dispensed"
	StatusExpired   Status = "expired"
)

var validStatuses = map[Status]bool{
	StatusActive: true, StatusDispensed: true, StatusExpired: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid prescription status: %s", s)
	}
	return st, nil
}

// Item is one medication line. Immutable once the prescription is created.
type Item struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Quantity     string `json:"quantity"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

func (it Item) Validate() error {
	switch {
	case it.Name == "":
		return fmt.Errorf("item name is required")
	case it.Dosage == "":
		return fmt.Errorf("item dosage is required")
	case it.Frequency == "":
		return fmt.Errorf("item frequency is required")
	case it.Quantity == "":
		return fmt.Errorf("item quantity is required")
	case it.Duration == "":
		return fmt.Errorf("item duration is required")
	}
	return nil
}

// Prescription is the central record of the dispensing workflow. QRDisabled
// is monotonic: once true it never returns to false.
type Prescription struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patientId"`
	ConsultID     *uuid.UUID `json:"consultId,omitempty"`
	Status        Status     `json:"status"`
	Items         []Item     `json:"items"`
	QRToken       *string    `json:"qrToken,omitempty"`
	QRDisabled    bool       `json:"qrDisabled"`
	PDFDownloaded bool       `json:"pdfDownloaded"`
	FileURL       *string    `json:"fileUrl,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
