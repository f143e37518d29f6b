package fakeapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/pkg/errors"
)

// DefaultSecret signs tokens when no secret is configured.
const DefaultSecret = "repairshop-fakeapi-secret"

// Signer mints and verifies HS256 access tokens.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	if secret == "" {
		secret = DefaultSecret
	}
	return &Signer{secret: []byte(secret)}
}

// Mint issues a token for user valid from issuedAt until expiresAt.
func (s *Signer) Mint(user *users.Profile, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"shop": user.ShopID,
		"role": string(user.Role),
		"iat":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
		"jti":  uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

// Verify checks the signature and returns the claims. Expiry is checked
// against now unless ignoreExpiry is set.
func (s *Signer) Verify(raw string, now time.Time, ignoreExpiry bool) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if ignoreExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	}
	_, err := jwt.ParseWithClaims(raw, claims, s.verificationKey, options...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}
	return claims, nil
}

func (s *Signer) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

// MintToken signs a token for subject expiring at expiresAt with the default
// secret. It panics on failure and is meant for tests.
func MintToken(subject string, expiresAt time.Time) string {
	tok, err := NewSigner("").Mint(&users.Profile{ID: subject}, expiresAt.Add(-time.Hour), expiresAt)
	if err != nil {
		panic(err)
	}
	return tok
}
