// AngelaMos | 2026
// validation_test.go

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStrongPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"Str0ng!Pw", true},
		{"Aa1!aaaa", true},
		{"Aa1!aaa", false},
		{"str0ng!pw", false},
		{"STR0NG!PW", false},
		{"Strong!Pw", false},
		{"Str0ngPw1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStrongPassword(tt.password))
		})
	}
}

type signup struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
	Language string `json:"language" validate:"omitempty,bcp47_language_tag"`
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()

	err := v.Struct(signup{Email: "nope", Password: "weak", Language: "en"})
	require.Error(t, err)

	fields := FieldErrors(err)
	require.Len(t, fields, 2)

	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "email", fields[0].Code)
	assert.Equal(t, "Invalid email address", fields[0].Message)

	assert.Equal(t, "password", fields[1].Field)
	assert.Equal(t, "strongpassword", fields[1].Code)
	assert.Contains(t, fields[1].Message, "special character")
}

func TestValidatorAcceptsValidInput(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Struct(signup{
		Email:    "alice@example.com",
		Password: "Str0ng!Pw",
		Language: "en-US",
	}))
}

func TestFieldErrorsNonValidationError(t *testing.T) {
	fields := FieldErrors(errors.New("boom"))
	require.Len(t, fields, 1)
	assert.Equal(t, "body", fields[0].Field)
}
