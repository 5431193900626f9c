package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-key-for-jwt-signing"
	testIssuer = "causeway-service"
)

func TestGenerateAndValidateTokenPair(t *testing.T) {
	userID := uuid.New()

	pair, err := GenerateTokenPair(userID, "ops@example.com", "admin", testSecret, testIssuer, 900, 86400)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := ValidateToken(pair.AccessToken, testSecret, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	pair, err := GenerateTokenPair(uuid.New(), "ops@example.com", "operator", testSecret, testIssuer, 900, 86400)
	require.NoError(t, err)

	_, err = ValidateToken(pair.AccessToken, "a-different-secret", testIssuer)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	pair, err := GenerateTokenPair(uuid.New(), "ops@example.com", "operator", testSecret, "some-other-service", 900, 86400)
	require.NoError(t, err)

	_, err = ValidateToken(pair.AccessToken, testSecret, testIssuer)
	assert.Error(t, err)

	// Empty expected issuer skips the check.
	_, err = ValidateToken(pair.AccessToken, testSecret, "")
	assert.NoError(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	pair, err := GenerateTokenPair(uuid.New(), "ops@example.com", "operator", testSecret, testIssuer, -60, 86400)
	require.NoError(t, err)

	_, err = ValidateToken(pair.AccessToken, testSecret, testIssuer)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateToken("not-a-jwt", testSecret, testIssuer)
	assert.Error(t, err)
}
