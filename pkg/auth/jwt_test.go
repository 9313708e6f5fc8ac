package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/booking-api/internal/model"
)

const testSecret = "test-secret-key"

func testUser() *model.User {
	return &model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "dr.house@example.com",
		Role:  model.RoleDoctor,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Hour)
	user := testUser()

	token, expiresAt, err := mgr.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, model.RoleDoctor, claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _, err := NewJWTManager(testSecret, time.Hour).GenerateToken(testUser())
	require.NoError(t, err)

	_, err = NewJWTManager("a-different-secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	mgr := NewJWTManager(testSecret, -time.Minute)
	token, _, err := mgr.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenWrongMethod(t *testing.T) {
	// alg=none tokens must never validate regardless of payload.
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTManager(testSecret, time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := NewJWTManager(testSecret, time.Hour).ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestValidateTokenBadSubject(t *testing.T) {
	claims := &Claims{
		Email: "x@example.com",
		Role:  string(model.RolePatient),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewJWTManager(testSecret, time.Hour).ValidateToken(token)
	assert.ErrorContains(t, err, "invalid user ID")
}
