package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestParseTokenRejects(t *testing.T) {
	good, err := GenerateToken(7, "s3cret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(7, "s3cret", -time.Minute)
	require.NoError(t, err)
	noUser, err := GenerateToken(0, "s3cret", time.Hour)
	require.NoError(t, err)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 7})
	otherAlg, err := hs512.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "other"},
		{"empty secret", good, ""},
		{"expired", expired, "s3cret"},
		{"missing user", noUser, "s3cret"},
		{"unexpected algorithm", otherAlg, "s3cret"},
		{"garbage", "not.a.token", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
