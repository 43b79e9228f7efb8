// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/angelamos/tutoring-portal/internal/core"
	"github.com/angelamos/tutoring-portal/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	eventRegister       = "register"
	eventLogin          = "login"
	eventLogout         = "logout"
	eventVerify         = "verify"
	eventChangePassword = "change_password"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeError   = "error"
)

// UserInfo is an account as the credential store holds it, digest included.
// It never leaves this package unprojected.
type UserInfo struct {
	ID              string
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	Role            string
	Language        string
	IsEmailVerified bool
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Language     string
}

// UserProvider is the credential store. Lookups by email are exact.
// Missing rows wrap core.ErrNotFound and unique violations wrap
// core.ErrDuplicateKey.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, nu NewUser) (*UserInfo, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

type Service struct {
	tokens *TokenManager
	users  UserProvider
	events EventRecorder
	now    func() time.Time
}

func NewService(
	tokens *TokenManager,
	users UserProvider,
	events EventRecorder,
) *Service {
	return &Service{
		tokens: tokens,
		users:  users,
		events: events,
		now:    time.Now,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Register")
	defer span.End()

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		s.record(eventRegister, outcomeError)
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		s.record(eventRegister, outcomeFailure)
		return nil, ErrEmailExists
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		s.record(eventRegister, outcomeError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	user, err := s.users.Create(ctx, NewUser{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Language:     language,
	})
	if err != nil {
		// a concurrent registration won the unique constraint
		if errors.Is(err, core.ErrDuplicateKey) {
			s.record(eventRegister, outcomeFailure)
			return nil, ErrEmailExists
		}
		s.record(eventRegister, outcomeError)
		return nil, fmt.Errorf("create user: %w", err)
	}

	resp, err := s.authResponse(user, "User registered successfully")
	if err != nil {
		s.record(eventRegister, outcomeError)
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.record(eventRegister, outcomeSuccess)

	return resp, nil
}

// Login answers ErrInvalidCredentials both for an unknown email and for a
// wrong password, and pays for one hash verification in either case.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*AuthResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // equalises timing with the wrong-password path
			_, _ = core.CheckPassword(req.Password, "")
			s.record(eventLogin, outcomeFailure)
			return nil, ErrInvalidCredentials
		}
		s.record(eventLogin, outcomeError)
		return nil, fmt.Errorf("get user: %w", err)
	}

	check, err := core.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.record(eventLogin, outcomeError)
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !check.Match {
		s.record(eventLogin, outcomeFailure)
		return nil, ErrInvalidCredentials
	}

	if check.Rehash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, check.Rehash); err != nil {
			slog.WarnContext(ctx, "password rehash failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.record(eventLogin, outcomeError)
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	resp, err := s.authResponse(user, "Login successful")
	if err != nil {
		s.record(eventLogin, outcomeError)
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.record(eventLogin, outcomeSuccess)

	return resp, nil
}

// VerifyToken never fails with an error. Callers branch on Valid.
func (s *Service) VerifyToken(
	_ context.Context,
	token string,
) middleware.Verification {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.record(eventVerify, outcomeFailure)
		return middleware.Verification{
			Valid:   false,
			Expired: errors.Is(err, core.ErrTokenExpired),
		}
	}

	s.record(eventVerify, outcomeSuccess)

	return middleware.Verification{
		Valid:     true,
		Identity:  claims.Identity,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}
}

func (s *Service) GetUserByID(
	ctx context.Context,
	id string,
) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("get user %s: %w: %w", id, ErrUserNotFound, err)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	resp := NewUserResponse(user)
	return &resp, nil
}

// Logout has nothing to invalidate server side; the client discards its
// token. It exists so the event is observable.
func (s *Service) Logout(ctx context.Context, id middleware.Identity) {
	slog.DebugContext(ctx, "user logged out", "user_id", id.UserID)
	s.record(eventLogout, outcomeSuccess)
}

// ChangePassword replaces the stored digest. Tokens issued before the change
// stay valid until they expire.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.record(eventChangePassword, outcomeFailure)
			return fmt.Errorf("change password: %w: %w", ErrUserNotFound, err)
		}
		s.record(eventChangePassword, outcomeError)
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		s.record(eventChangePassword, outcomeError)
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		s.record(eventChangePassword, outcomeFailure)
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		s.record(eventChangePassword, outcomeError)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		s.record(eventChangePassword, outcomeError)
		return fmt.Errorf("update password: %w", err)
	}

	s.record(eventChangePassword, outcomeSuccess)
	return nil
}

func (s *Service) authResponse(
	user *UserInfo,
	message string,
) (*AuthResponse, error) {
	token, err := s.tokens.CreateToken(middleware.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &AuthResponse{
		Success: true,
		User:    NewUserResponse(user),
		Token:   token,
		Message: message,
	}, nil
}

func (s *Service) record(event, outcome string) {
	if s.events != nil {
		s.events.RecordAuthEvent(event, outcome)
	}
}
