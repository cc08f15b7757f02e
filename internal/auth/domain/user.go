package domain

import "time"

// Role is the closed set of platform roles. Role governs what the rest
// of the platform lets a token holder do; the auth service only embeds
// it in claims.
type Role string

const (
	RoleCaregiver    Role = "caregiver"
	RoleCoordinator  Role = "coordinator"
	RoleAdmin        Role = "admin"
	RoleFamilyViewer Role = "family-viewer"
)

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleCaregiver, RoleCoordinator, RoleAdmin, RoleFamilyViewer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// User is an account row. PasswordHash is a bcrypt digest and never
// leaves the service.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role

	// ZoneID is the geographic/organizational partition the user works
	// in. Empty for cross-zone roles such as admin.
	ZoneID string

	CreatedAt time.Time
	UpdatedAt time.Time
}
