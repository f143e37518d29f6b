// Package repairshop is the typed surface of the repair shop API. Every call
// goes through the session-aware api.Client, so a 401 here is handled the
// same way as anywhere else.
package repairshop

import (
	"net/url"

	"github.com/jrsteele09/repairshop-client/api"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/pkg/errors"
)

// UserSource reports who is signed in. *auth.Service satisfies it.
type UserSource interface {
	CurrentUser() *users.Profile
}

// Client groups the resource endpoints.
type Client struct {
	api   *api.Client
	users UserSource

	Dashboard *Dashboard
	Customers *Customers
	Devices   *Devices
	Orders    *Orders
	Inventory *Inventory
	Templates *Templates
}

func New(client *api.Client, source UserSource) (*Client, error) {
	if client == nil {
		return nil, errors.New("[repairshop.New] api client is required")
	}
	if source == nil {
		return nil, errors.New("[repairshop.New] user source is required")
	}
	c := &Client{api: client, users: source}
	c.Dashboard = &Dashboard{c: c}
	c.Customers = &Customers{c: c}
	c.Devices = &Devices{c: c}
	c.Orders = &Orders{c: c}
	c.Inventory = &Inventory{c: c}
	c.Templates = &Templates{c: c}
	return c, nil
}

// requireAdmin refuses admin-only calls locally, before any request is sent.
func (c *Client) requireAdmin() error {
	return users.RequireAdmin(c.users.CurrentUser())
}

// path joins escaped segments into an API path.
func path(segments ...string) string {
	p := ""
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	return p
}
