package sessions

import (
	"github.com/jrsteele09/repairshop-client/users"
)

const (
	// Namespace groups the persisted session keys.
	Namespace = "repairshop"
	// TokenKey holds the raw bearer token.
	TokenKey = Namespace + ".token"
	// UserKey holds the JSON serialised user profile.
	UserKey = Namespace + ".user"
)

// Session is the current authentication state of the client.
// Token and User are either both set or both empty.
type Session struct {
	Token string         // Bearer token presented on every call
	User  *users.Profile // Profile returned with the token
}

// IsZero reports whether there is no session at all.
func (s Session) IsZero() bool {
	return s.Token == "" && s.User == nil
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.User.Valid()
}

// SameToken reports whether two sessions were issued with the same bearer token.
func (s Session) SameToken(other Session) bool {
	return s.Token != "" && s.Token == other.Token
}

// Record is the raw persisted form: the two keys as stored in the medium.
type Record struct {
	Token string // value of TokenKey
	User  string // value of UserKey
}

// Empty reports whether either key is missing, which is read as no session.
func (r Record) Empty() bool {
	return r.Token == "" || r.User == ""
}
