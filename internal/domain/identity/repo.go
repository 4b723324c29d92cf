package identity

import "context"

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByUsername(ctx context.Context, username string) (*Doctor, error)
}
