package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type signupInput struct {
	Email    string `validate:"required,email,no_disposable_email"`
	Password string `validate:"required,password_strength"`
}

func TestValidatePasswordStrength(t *testing.T) {
	v := New()

	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"strong password", "Str0ngEnough", true},
		{"too short", "Ab1", false},
		{"no uppercase", "weakpassword1", false},
		{"no digit", "WeakPassword", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(signupInput{Email: "runner@example.com", Password: tt.password})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateNoDisposableEmail(t *testing.T) {
	v := New()

	err := v.Validate(signupInput{Email: "runner@mailinator.com", Password: "Str0ngEnough"})
	assert.Error(t, err)

	err = v.Validate(signupInput{Email: "runner@example.com", Password: "Str0ngEnough"})
	assert.NoError(t, err)
}
