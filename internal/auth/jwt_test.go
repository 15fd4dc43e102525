package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret", "guild")
	token, err := v.Issue(42, "alice", time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Username: "alice"}, id)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewJWTVerifier("secret", "")
	token, err := v.Issue(42, "alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := NewJWTVerifier("other", "guild").Issue(1, "", time.Minute)
	require.NoError(t, err)
	_, err = NewJWTVerifier("secret", "guild").Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalid)

	token, err = NewJWTVerifier("secret", "elsewhere").Issue(1, "", time.Minute)
	require.NoError(t, err)
	_, err = NewJWTVerifier("secret", "guild").Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsNonNumericSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "access",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret", "").Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret", "").Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic h")
	assert.Equal(t, "", TokenFromRequest(req))
}
