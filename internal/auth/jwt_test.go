package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "jobhouse")

	token, err := manager.Generate("65a1f0c2e4b0a1b2c3d4e5f6", "admin")
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", claims.Subject)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, "jobhouse", claims.Issuer)
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "jobhouse")

	_, err := manager.Generate("", "admin")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "jobhouse")

	_, err := manager.Validate("  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestJWTValidateRejects(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "jobhouse")

	expired, err := NewJWTManager("secret", -time.Minute, "jobhouse").Generate("user", "user")
	require.NoError(t, err)
	_, err = manager.Validate(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherSecret, err := NewJWTManager("other", time.Hour, "jobhouse").Generate("user", "user")
	require.NoError(t, err)
	_, err = manager.Validate(otherSecret)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := NewJWTManager("secret", time.Hour, "elsewhere").Generate("user", "user")
	require.NoError(t, err)
	_, err = manager.Validate(otherIssuer)
	require.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user", Issuer: "jobhouse"},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = manager.Validate(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	require.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer abc.def")
	require.NoError(t, err)
	require.Equal(t, "abc.def", token)
}

func TestRoles(t *testing.T) {
	require.Equal(t, RoleAdmin, NormalizeRole(" ADMIN "))
	require.Equal(t, RoleUser, NormalizeRole("editor"))
	require.True(t, ValidRole("user"))
	require.False(t, ValidRole("Admin"))
	require.True(t, IsAdmin("admin"))
	require.False(t, IsAdmin(""))
}

func TestCallerContext(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	require.False(t, ok)

	caller := NewCaller("u1", " Admin ")
	got, ok := CallerFrom(WithCaller(context.Background(), caller))
	require.True(t, ok)
	require.Equal(t, "u1", got.UserID)
	require.True(t, got.IsAdmin)
}
