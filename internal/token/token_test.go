package token

import (
	"testing"
	"time"

	"raceday/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	userID := uuid.New()

	signed, err := issuer.Issue(userID, model.RoleMarshal)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	parsedID, role, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, parsedID)
	assert.Equal(t, model.RoleMarshal, role)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	other := NewIssuer("other-secret", time.Hour)

	signed, err := issuer.Issue(uuid.New(), model.RoleRunner)
	require.NoError(t, err)

	_, _, err = other.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute)

	signed, err := issuer.Issue(uuid.New(), model.RoleRunner)
	require.NoError(t, err)

	_, _, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	_, _, err := issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
