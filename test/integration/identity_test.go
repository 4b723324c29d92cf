//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/domain/identity"
	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/pkg/models"
)

func newIdentityService() *identity.Service {
	return identity.NewService(
		identity.NewDoctorRepoPG(globalDB.Pool),
		auth.NewTokenIssuer("integration-secret", 30*time.Minute),
		zerolog.Nop(),
	)
}

func TestIdentityCreateUserAndLogin(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	svc := newIdentityService()

	u, err := svc.CreateUser(ctx, "drsmith", "smith@medq.com", "s3cret!", models.RoleDoctor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != models.RoleDoctor || u.CreatedAt.IsZero() {
		t.Errorf("unexpected user %+v", u)
	}

	res, err := svc.Login(ctx, "drsmith", "s3cret!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.User.Username != "drsmith" {
		t.Errorf("unexpected login result %+v", res)
	}

	if _, err := svc.Login(ctx, "drsmith", "wrong"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIdentityDuplicateUser(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	svc := newIdentityService()

	if _, err := svc.CreateUser(ctx, "drjones", "jones@medq.com", "password", models.RoleDoctor); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name, username, email string
	}{
		{"same username", "drjones", "other@medq.com"},
		{"same email", "drother", "jones@medq.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.username, tt.email, "password", models.RoleDoctor)
			if !errors.Is(err, identity.ErrUserExists) {
				t.Fatalf("expected ErrUserExists, got %v", err)
			}
		})
	}
}

func TestIdentityEnsureDefaultAdminIdempotent(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	svc := newIdentityService()

	created, err := svc.EnsureDefaultAdmin(ctx)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if !created {
		t.Fatal("expected admin to be created")
	}

	created, err = svc.EnsureDefaultAdmin(ctx)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Error("expected second call to report existing admin")
	}

	me, err := svc.Me(ctx, identity.DefaultAdminUsername)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Role != models.RoleAdmin {
		t.Errorf("expected admin role, got %s", me.Role)
	}
}
