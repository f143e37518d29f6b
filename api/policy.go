package api

import (
	"time"

	"github.com/jrsteele09/repairshop-client/expiry"
)

// StalePolicy decides what happens to a refresh result that arrives after
// the session it was refreshing has been cleared or replaced.
type StalePolicy int

const (
	// StaleDiscard drops the late result and keeps whatever the store holds.
	StaleDiscard StalePolicy = iota
	// StaleAccept writes the late result anyway. Last write wins.
	StaleAccept
)

func (p StalePolicy) String() string {
	if p == StaleAccept {
		return "accept"
	}
	return "discard"
}

const (
	DefaultRefreshEndpoint  = "/auth/refresh"
	DefaultRefreshLead      = 60 * time.Second
	DefaultForcedLogoutSkew = 2 * time.Second
)

// RefreshPolicy is fixed for the lifetime of the process.
type RefreshPolicy struct {
	Enabled          bool
	Endpoint         string
	RefreshLead      time.Duration
	ForcedLogoutSkew time.Duration
	StaleResult      StalePolicy
}

func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{
		Endpoint:         DefaultRefreshEndpoint,
		RefreshLead:      DefaultRefreshLead,
		ForcedLogoutSkew: DefaultForcedLogoutSkew,
		StaleResult:      StaleDiscard,
	}
}

// ExpiryPolicy is the part of the policy the expiry scheduler needs.
func (p RefreshPolicy) ExpiryPolicy() expiry.Policy {
	return expiry.Policy{
		RefreshEnabled:   p.Enabled,
		RefreshLead:      p.RefreshLead,
		ForcedLogoutSkew: p.ForcedLogoutSkew,
	}
}

func (p RefreshPolicy) withDefaults() RefreshPolicy {
	if p.Endpoint == "" {
		p.Endpoint = DefaultRefreshEndpoint
	}
	if p.RefreshLead <= 0 {
		p.RefreshLead = DefaultRefreshLead
	}
	if p.ForcedLogoutSkew < 0 {
		p.ForcedLogoutSkew = 0
	}
	return p
}
