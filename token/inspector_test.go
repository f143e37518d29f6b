package token_test

import (
	"encoding/base64"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/repairshop-client/token"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestDecodeExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("valid exp", func(t *testing.T) {
		got, ok := token.DecodeExpiry(signed(t, jwtlib.MapClaims{"sub": "u1", "exp": exp.Unix()}))
		require.True(t, ok)
		require.True(t, exp.Equal(got))
	})

	t.Run("already expired still decodes", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		got, ok := token.DecodeExpiry(signed(t, jwtlib.MapClaims{"exp": past.Unix()}))
		require.True(t, ok)
		require.True(t, past.Equal(got))
	})

	t.Run("signature is not checked", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"exp": exp.Unix()})
		tampered := raw[:len(raw)-4] + "AAAA"
		_, ok := token.DecodeExpiry(tampered)
		require.True(t, ok)
	})

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "single segment", raw: "opaque-token"},
		{name: "two segments", raw: header + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1}`))},
		{name: "payload not base64", raw: header + ".!!!.sig"},
		{name: "payload not json", raw: header + "." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"},
		{name: "payload not object", raw: header + "." + base64.RawURLEncoding.EncodeToString([]byte("[1,2]")) + ".sig"},
		{name: "missing exp", raw: signed(t, jwtlib.MapClaims{"sub": "u1"})},
		{name: "zero exp", raw: signed(t, jwtlib.MapClaims{"exp": 0})},
		{name: "exp wrong type", raw: signed(t, jwtlib.MapClaims{"exp": "tomorrow"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := token.DecodeExpiry(tt.raw)
			require.False(t, ok)
			require.True(t, got.IsZero())
		})
	}
}

func TestInspect(t *testing.T) {
	iat := time.Now().Truncate(time.Second)
	raw := signed(t, jwtlib.MapClaims{"sub": "user-1", "iat": iat.Unix()})

	c, ok := token.Inspect(raw)
	require.True(t, ok)
	require.Equal(t, "user-1", c.Subject)
	require.True(t, iat.Equal(c.IssuedAt))
	require.False(t, c.HasExpiry())
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	orig := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return now }
	defer func() { token.NowTimeFunc = orig }()

	raw := signed(t, jwtlib.MapClaims{"exp": now.Add(90 * time.Second).Unix()})
	d, ok := token.Remaining(raw)
	require.True(t, ok)
	require.Equal(t, 90*time.Second, d)

	_, ok = token.Remaining("garbage")
	require.False(t, ok)
}
