package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrPermissionDenied", ErrPermissionDenied},
		{"ErrUnauthorized", ErrUnauthorized},
		{"ErrForbidden", ErrForbidden},
		{"ErrNoEmail", ErrNoEmail},
		{"ErrInvalidEmail", ErrInvalidEmail},
		{"ErrEmptyGroup", ErrEmptyGroup},
		{"ErrGroupDecode", ErrGroupDecode},
		{"ErrDelegationFailed", ErrDelegationFailed},
		{"ErrMissingToken", ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrForbidden_Message(t *testing.T) {
	assert.Equal(t, "not authorized to access requested item", ErrForbidden.Error())
}

func TestIsEntityReject(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no email", ErrNoEmail, true},
		{"invalid email wrapped", fmt.Errorf("contact 7: %w", ErrInvalidEmail), true},
		{"empty group", ErrEmptyGroup, true},
		{"decode failure", ErrGroupDecode, true},
		{"permission denied", ErrPermissionDenied, false},
		{"other", errors.New("disk on fire"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEntityReject(tt.err))
		})
	}
}
