package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the advisory view of a bearer token. Nothing in it is verified;
// the server stays authoritative for validity.
type Claims struct {
	Subject   string    // sub
	IssuedAt  time.Time // iat, zero when absent
	ExpiresAt time.Time // exp, zero when absent
}

// HasExpiry reports whether the token carried a usable exp claim.
func (c Claims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Inspect parses the token payload without checking the signature.
// It returns false for anything that is not a three segment JWT with a JSON object payload.
func Inspect(rawToken string) (Claims, bool) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Claims{}, false
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, false
	}

	mapClaims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, false
	}

	var c Claims
	c.Subject, _ = mapClaims.GetSubject()
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil && exp.Unix() > 0 {
		c.ExpiresAt = exp.Time
	}
	return c, true
}

// DecodeExpiry extracts the exp claim of a bearer token.
// A false result is a normal outcome: the session stays usable but is not proactively scheduled.
func DecodeExpiry(rawToken string) (time.Time, bool) {
	c, ok := Inspect(rawToken)
	if !ok || !c.HasExpiry() {
		return time.Time{}, false
	}
	return c.ExpiresAt, true
}

// Remaining returns how long until the advisory expiry, negative once passed.
func Remaining(rawToken string) (time.Duration, bool) {
	exp, ok := DecodeExpiry(rawToken)
	if !ok {
		return 0, false
	}
	return exp.Sub(NowTimeFunc()), true
}
