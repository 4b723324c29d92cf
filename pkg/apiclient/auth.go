package apiclient

import (
	"context"
	"net/http"

	"github.com/medq/medq/pkg/models"
)

type AuthService struct {
	c *Client
}

// Login exchanges credentials for a token and stores it in the session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	var out models.LoginResult
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   models.LoginRequest{Username: username, Password: password},
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := s.c.session.SetToken(out.Token); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Me(ctx context.Context) (*models.DoctorUser, error) {
	var out models.DoctorUser
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh swaps the session token for a fresh one.
func (s *AuthService) Refresh(ctx context.Context) (string, error) {
	var out models.TokenResult
	if err := s.c.do(ctx, request{method: http.MethodPost, path: "/api/auth/refresh"}, &out); err != nil {
		return "", err
	}
	if err := s.c.session.SetToken(out.Token); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Logout notifies the server and clears the session. The session is
// cleared even when the server call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.c.do(ctx, request{method: http.MethodPost, path: "/api/auth/logout"}, nil)
	if cerr := s.c.session.Clear(); cerr != nil {
		return cerr
	}
	return err
}

// Verify checks the session token and returns its owner.
func (s *AuthService) Verify(ctx context.Context) (*models.DoctorUser, error) {
	var out models.DoctorUser
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/auth/verify"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
