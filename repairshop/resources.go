package repairshop

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jrsteele09/repairshop-client/api"
)

type Dashboard struct{ c *Client }

func (d *Dashboard) Summary(ctx context.Context) (DashboardSummary, error) {
	return api.Get[DashboardSummary](ctx, d.c.api, "/dashboard/summary", nil)
}

type Customers struct{ c *Client }

func (r *Customers) List(ctx context.Context, page api.Page) ([]Customer, error) {
	return api.Get[[]Customer](ctx, r.c.api, "/customers", page.Values())
}

func (r *Customers) Get(ctx context.Context, id string) (Customer, error) {
	return api.Get[Customer](ctx, r.c.api, path("customers", id), nil)
}

func (r *Customers) Create(ctx context.Context, in CustomerInput) (Customer, error) {
	if err := r.c.requireAdmin(); err != nil {
		return Customer{}, err
	}
	return api.Post[Customer](ctx, r.c.api, "/customers", in)
}

func (r *Customers) Update(ctx context.Context, id string, in CustomerInput) (Customer, error) {
	if err := r.c.requireAdmin(); err != nil {
		return Customer{}, err
	}
	return api.Put[Customer](ctx, r.c.api, path("customers", id), in)
}

func (r *Customers) Remove(ctx context.Context, id string) error {
	if err := r.c.requireAdmin(); err != nil {
		return err
	}
	return api.Delete(ctx, r.c.api, path("customers", id))
}

type Devices struct{ c *Client }

func (r *Devices) ListByCustomer(ctx context.Context, customerID string, page api.Page) ([]Device, error) {
	return api.Get[[]Device](ctx, r.c.api, path("devices", "by-customer", customerID), page.Values())
}

func (r *Devices) Get(ctx context.Context, id string) (Device, error) {
	return api.Get[Device](ctx, r.c.api, path("devices", id), nil)
}

func (r *Devices) Create(ctx context.Context, in DeviceCreate) (Device, error) {
	if err := r.c.requireAdmin(); err != nil {
		return Device{}, err
	}
	return api.Post[Device](ctx, r.c.api, "/devices", in)
}

func (r *Devices) Update(ctx context.Context, id string, in DeviceUpdate) (Device, error) {
	if err := r.c.requireAdmin(); err != nil {
		return Device{}, err
	}
	return api.Put[Device](ctx, r.c.api, path("devices", id), in)
}

func (r *Devices) Remove(ctx context.Context, id string) error {
	if err := r.c.requireAdmin(); err != nil {
		return err
	}
	return api.Delete(ctx, r.c.api, path("devices", id))
}

// Orders is open to every role except Remove.
type Orders struct{ c *Client }

func (r *Orders) List(ctx context.Context, page api.Page) ([]Order, error) {
	return api.Get[[]Order](ctx, r.c.api, "/orders", page.Values())
}

func (r *Orders) Get(ctx context.Context, id string) (Order, error) {
	return api.Get[Order](ctx, r.c.api, path("orders", id), nil)
}

func (r *Orders) Create(ctx context.Context, in OrderCreate) (Order, error) {
	return api.Post[Order](ctx, r.c.api, "/orders", in)
}

func (r *Orders) Update(ctx context.Context, id string, in OrderUpdate) (Order, error) {
	return api.Put[Order](ctx, r.c.api, path("orders", id), in)
}

func (r *Orders) Remove(ctx context.Context, id string) error {
	if err := r.c.requireAdmin(); err != nil {
		return err
	}
	return api.Delete(ctx, r.c.api, path("orders", id))
}

func (r *Orders) ChangeStatus(ctx context.Context, id string, change StatusChange) (StatusChangeResult, error) {
	return api.Post[StatusChangeResult](ctx, r.c.api, path("orders", id, "status"), change)
}

func (r *Orders) History(ctx context.Context, id string) ([]StatusHistoryEntry, error) {
	return api.Get[[]StatusHistoryEntry](ctx, r.c.api, path("orders", id, "history"), nil)
}

func (r *Orders) Notes(ctx context.Context, id string) ([]OrderNote, error) {
	return api.Get[[]OrderNote](ctx, r.c.api, path("orders", id, "notes"), nil)
}

func (r *Orders) AddNote(ctx context.Context, id, body string) (OrderNote, error) {
	return api.Post[OrderNote](ctx, r.c.api, path("orders", id, "notes"), map[string]string{"body": body})
}

type Inventory struct{ c *Client }

func (r *Inventory) List(ctx context.Context, includeInactive bool, page api.Page) ([]InventoryItem, error) {
	query := page.Values()
	if includeInactive {
		query.Set("includeInactive", strconv.FormatBool(true))
	}
	return api.Get[[]InventoryItem](ctx, r.c.api, "/inventory", query)
}

func (r *Inventory) Get(ctx context.Context, id string) (InventoryItem, error) {
	return api.Get[InventoryItem](ctx, r.c.api, path("inventory", id), nil)
}

func (r *Inventory) Create(ctx context.Context, in InventoryCreate) (InventoryItem, error) {
	if err := r.c.requireAdmin(); err != nil {
		return InventoryItem{}, err
	}
	return api.Post[InventoryItem](ctx, r.c.api, "/inventory", in)
}

func (r *Inventory) Update(ctx context.Context, id string, in InventoryUpdate) (InventoryItem, error) {
	if err := r.c.requireAdmin(); err != nil {
		return InventoryItem{}, err
	}
	return api.Put[InventoryItem](ctx, r.c.api, path("inventory", id), in)
}

func (r *Inventory) Adjustments(ctx context.Context, id string, page api.Page) ([]Adjustment, error) {
	return api.Get[[]Adjustment](ctx, r.c.api, path("inventory", id, "adjustments"), page.Values())
}

// AddAdjustment records a stock movement and returns the item with its new quantity.
func (r *Inventory) AddAdjustment(ctx context.Context, id string, in AdjustmentCreate) (InventoryItem, error) {
	return api.Post[InventoryItem](ctx, r.c.api, path("inventory", id, "adjustments"), in)
}

type Templates struct{ c *Client }

func (r *Templates) List(ctx context.Context, includeInactive bool) ([]Template, error) {
	var query url.Values
	if includeInactive {
		query = url.Values{"includeInactive": {"true"}}
	}
	return api.Get[[]Template](ctx, r.c.api, "/templates", query)
}

func (r *Templates) Get(ctx context.Context, id string) (Template, error) {
	return api.Get[Template](ctx, r.c.api, path("templates", id), nil)
}

func (r *Templates) GetByKey(ctx context.Context, key string) (Template, error) {
	return api.Get[Template](ctx, r.c.api, path("templates", "by-key", key), nil)
}

func (r *Templates) Create(ctx context.Context, in TemplateCreate) (Template, error) {
	if err := r.c.requireAdmin(); err != nil {
		return Template{}, err
	}
	return api.Post[Template](ctx, r.c.api, "/templates", in)
}

func (r *Templates) Update(ctx context.Context, id string, in TemplateUpdate) (Template, error) {
	if err := r.c.requireAdmin(); err != nil {
		return Template{}, err
	}
	return api.Put[Template](ctx, r.c.api, path("templates", id), in)
}

func (r *Templates) Remove(ctx context.Context, id string) error {
	if err := r.c.requireAdmin(); err != nil {
		return err
	}
	return api.Delete(ctx, r.c.api, path("templates", id))
}
