package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medq/medq/pkg/models"
)

// Doctor is a stored account. The password hash never leaves the package.
type Doctor struct {
	ID             uuid.UUID
	Username       string
	Email          string
	HashedPassword string
	Role           models.Role
	CreatedAt      time.Time
}

// ToUser returns the public view of the account.
func (d *Doctor) ToUser() models.DoctorUser {
	return models.DoctorUser{
		ID:        d.ID,
		Username:  d.Username,
		Email:     d.Email,
		Role:      d.Role,
		CreatedAt: d.CreatedAt,
	}
}

// Default development administrator created by POST /api/auth/create-admin.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
	DefaultAdminEmail    = "admin@medq.com"
)
