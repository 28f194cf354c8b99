package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the single role a user acts under.
type Role string

const (
	RolePatient     Role = "patient"
	RoleGP          Role = "gp"
	RoleSpecialist  Role = "specialist"
	RolePharmacy    Role = "pharmacy"
	RoleDiagnostics Role = "diagnostics"
)

var validRoles = map[Role]bool{
	RolePatient: true, RoleGP: true, RoleSpecialist: true,
	RolePharmacy: true, RoleDiagnostics: true,
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}

// ClinicianRoles are the roles allowed to author clinical records.
func (r Role) IsClinician() bool {
	return r == RoleGP || r == RoleSpecialist
}

// User is an account in any of the five roles.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
