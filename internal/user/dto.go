// AngelaMos | 2026
// dto.go

package user

import (
	"github.com/angelamos/tutoring-portal/internal/auth"
)

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student admin"`
}

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ToUserResponse projects through auth.NewUserResponse so the admin API and
// the session endpoints render accounts identically.
func ToUserResponse(u *User) auth.UserResponse {
	return auth.NewUserResponse(toUserInfo(u))
}

func ToUserResponseList(users []User) []auth.UserResponse {
	responses := make([]auth.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
