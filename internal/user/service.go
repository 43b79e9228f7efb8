// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelamos/tutoring-portal/internal/auth"
	"github.com/angelamos/tutoring-portal/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

// Create inserts a new account. Role is always student; nothing a caller
// passes can change that.
func (s *Service) Create(
	ctx context.Context,
	nu auth.NewUser,
) (*auth.UserInfo, error) {
	language := nu.Language
	if language == "" {
		language = DefaultLanguage
	}

	user := &User{
		ID:              uuid.New().String(),
		Email:           nu.Email,
		PasswordHash:    nu.PasswordHash,
		FirstName:       nu.FirstName,
		LastName:        nu.LastName,
		Role:            RoleStudent,
		Language:        language,
		IsEmailVerified: false,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdateLastLogin(
	ctx context.Context,
	userID string,
	at time.Time,
) error {
	return s.repo.UpdateLastLogin(ctx, userID, at)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

// GetUser answers core.ErrNotFound for ids that are not UUIDs without
// querying, since no such row can exist.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if err := checkID(id); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()
	return s.repo.List(ctx, params)
}

// UpdateUserRole changes the role of an existing account. Tokens already
// issued keep the old role until they expire.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != RoleStudent && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}
	if err := checkID(id); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	return s.repo.UpdateRole(ctx, id, role)
}

func (s *Service) CountByRole(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByRole(ctx)
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("user id %q: %w", id, core.ErrNotFound)
	}
	return nil
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Role:            u.Role,
		Language:        u.Language,
		IsEmailVerified: u.IsEmailVerified,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
