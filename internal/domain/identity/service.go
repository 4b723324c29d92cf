package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/pkg/models"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUser        = errors.New("invalid user")
)

type Service struct {
	doctors DoctorRepository
	tokens  *auth.TokenIssuer
	logger  zerolog.Logger
}

func NewService(doctors DoctorRepository, tokens *auth.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		doctors: doctors,
		tokens:  tokens,
		logger:  logger.With().Str("component", "identity").Logger(),
	}
}

// Login verifies the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	d, err := s.doctors.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, db.ErrNotFound) {
		// Same bcrypt cost as the wrong-password path.
		auth.CheckPassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(d.HashedPassword, password) {
		s.logger.Warn().Str("username", d.Username).Msg("failed login")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(d.Username, string(d.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.LoginResult{Token: token, User: d.ToUser()}, nil
}

// Me returns the account behind an authenticated username.
func (s *Service) Me(ctx context.Context, username string) (*models.DoctorUser, error) {
	d, err := s.doctors.GetByUsername(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u := d.ToUser()
	return &u, nil
}

// Refresh issues a new token for a user that still exists.
func (s *Service) Refresh(ctx context.Context, username string) (*models.TokenResult, error) {
	u, err := s.Me(ctx, username)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(u.Username, string(u.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.TokenResult{Token: token}, nil
}

// CreateUser registers a doctor account.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, role models.Role) (*models.DoctorUser, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	case len(password) < 6:
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidUser)
	case role != models.RoleDoctor && role != models.RoleAdmin:
		return nil, fmt.Errorf("%w: role must be doctor or admin", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidUser)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	d := &Doctor{Username: username, Email: email, HashedPassword: hash, Role: role}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("username", username).Str("role", string(role)).Msg("user created")
	u := d.ToUser()
	return &u, nil
}

// EnsureDefaultAdmin creates the development admin account. created is false
// when it already exists.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) (created bool, err error) {
	_, err = s.doctors.GetByUsername(ctx, DefaultAdminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, fmt.Errorf("load admin: %w", err)
	}
	_, err = s.CreateUser(ctx, DefaultAdminUsername, DefaultAdminEmail, DefaultAdminPassword, models.RoleAdmin)
	if errors.Is(err, ErrUserExists) {
		return false, nil
	}
	return err == nil, err
}

var dummyHash, _ = auth.HashPassword("medq-unknown-user")
