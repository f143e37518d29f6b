package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderStatuses are the order states by their numeric value.
var OrderStatuses = []string{"Received", "Diagnosing", "InProgress", "Ready", "Delivered", "Cancelled"}

type record map[string]any

func (r record) clone() record {
	c := make(record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

type collection struct {
	name      string
	required  []string
	adminOnly map[string]bool
	prepare   func(rec record)
	items     map[string]record
	order     []string
}

func (c *collection) list(filter func(record) bool) []record {
	out := make([]record, 0, len(c.order))
	for _, id := range c.order {
		rec := c.items[id]
		if filter == nil || filter(rec) {
			out = append(out, rec.clone())
		}
	}
	return out
}

func (c *collection) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

type dataStore struct {
	lock        sync.Mutex
	collections map[string]*collection
	children    map[string][]record
}

func admin(methods ...string) map[string]bool {
	m := make(map[string]bool, len(methods))
	for _, method := range methods {
		m[method] = true
	}
	return m
}

func newDataStore() *dataStore {
	writes := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	d := &dataStore{
		collections: make(map[string]*collection),
		children:    make(map[string][]record),
	}
	for _, c := range []*collection{
		{name: "customers", required: []string{"fullName", "phone"}, adminOnly: admin(writes...)},
		{name: "devices", required: []string{"customerId", "brand", "model"}, adminOnly: admin(writes...)},
		{name: "orders", required: []string{"customerId", "deviceId", "issueDescription"}, adminOnly: admin(http.MethodDelete), prepare: prepareOrder},
		{name: "inventory", required: []string{"sku", "name"}, adminOnly: admin(writes...), prepare: prepareInventory},
		{name: "templates", required: []string{"key", "title", "body"}, adminOnly: admin(writes...)},
	} {
		c.items = make(map[string]record)
		d.collections[c.name] = c
	}
	return d
}

func prepareOrder(rec record) {
	rec["status"] = OrderStatuses[0]
}

func prepareInventory(rec record) {
	rec["quantityOnHand"] = rec["initialQuantity"]
	if rec["quantityOnHand"] == nil {
		rec["quantityOnHand"] = float64(0)
	}
	delete(rec, "initialQuantity")
}

func (s *Server) mountResources(r chi.Router) {
	r.Get("/dashboard/summary", s.dashboard)

	extras := map[string]func(r chi.Router){
		"devices": func(r chi.Router) {
			r.Get("/by-customer/{customerId}", func(w http.ResponseWriter, r *http.Request) {
				customerID := chi.URLParam(r, "customerId")
				s.listItems(s.data.collections["devices"], func(rec record) bool {
					return rec["customerId"] == customerID
				})(w, r)
			})
		},
		"orders": func(r chi.Router) {
			r.Post("/{id}/status", s.changeStatus)
			r.Get("/{id}/history", s.listChildren("history"))
			r.Get("/{id}/notes", s.listChildren("notes"))
			r.Post("/{id}/notes", s.addNote)
		},
		"inventory": func(r chi.Router) {
			r.Get("/{id}/adjustments", s.listChildren("adjustments"))
			r.Post("/{id}/adjustments", s.addAdjustment)
		},
		"templates": func(r chi.Router) {
			r.Get("/by-key/{key}", s.templateByKey)
		},
	}

	for _, name := range []string{"customers", "devices", "orders", "inventory", "templates"} {
		c := s.data.collections[name]
		extra := extras[name]
		r.Route("/"+name, func(r chi.Router) {
			r.Get("/", s.listItems(c, nil))
			r.Post("/", s.createItem(c))
			r.Get("/{id}", s.getItem(c))
			r.Put("/{id}", s.updateItem(c))
			r.Delete("/{id}", s.deleteItem(c))
			if extra != nil {
				extra(r)
			}
		})
	}
}

func page(r *http.Request, items []record) []record {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	take, _ := strconv.Atoi(r.URL.Query().Get("take"))
	if skip > len(items) {
		skip = len(items)
	}
	items = items[skip:]
	if take > 0 && take < len(items) {
		items = items[:take]
	}
	return items
}

func (s *Server) listItems(c *collection, filter func(record) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.data.lock.Lock()
		items := page(r, c.list(filter))
		s.data.lock.Unlock()
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) getItem(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.data.lock.Lock()
		rec, ok := c.items[chi.URLParam(r, "id")]
		rec = rec.clone()
		s.data.lock.Unlock()
		if !ok {
			writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// forbidden writes a 403 when the method on c is reserved for admins.
func forbidden(w http.ResponseWriter, r *http.Request, c *collection) bool {
	user := userFrom(r.Context())
	if c.adminOnly[r.Method] && !user.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin role required", nil)
		return true
	}
	return false
}

func decodeRecord(w http.ResponseWriter, r *http.Request, required []string) (record, bool) {
	rec := record{}
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body", err.Error(), nil)
		return nil, false
	}
	fieldErrors := map[string][]string{}
	for _, field := range required {
		if v, ok := rec[field]; !ok || v == nil || v == "" {
			name := fieldName(field)
			fieldErrors[name] = []string{fmt.Sprintf("The %s field is required.", name)}
		}
	}
	if len(fieldErrors) > 0 {
		writeProblem(w, http.StatusBadRequest, "One or more validation errors occurred.", "", fieldErrors)
		return nil, false
	}
	return rec, true
}

func fieldName(field string) string {
	if field == "" {
		return field
	}
	return string(field[0]-'a'+'A') + field[1:]
}

func (s *Server) createItem(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if forbidden(w, r, c) {
			return
		}
		rec, ok := decodeRecord(w, r, c.required)
		if !ok {
			return
		}
		user := userFrom(r.Context())
		now := s.now().UTC().Format(time.RFC3339)
		rec["id"] = uuid.NewString()
		rec["shopId"] = user.ShopID
		rec["createdAtUtc"] = now
		rec["updatedAtUtc"] = now
		if c.prepare != nil {
			c.prepare(rec)
		}

		s.data.lock.Lock()
		c.items[rec["id"].(string)] = rec
		c.order = append(c.order, rec["id"].(string))
		rec = rec.clone()
		s.data.lock.Unlock()
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (s *Server) updateItem(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if forbidden(w, r, c) {
			return
		}
		patch, ok := decodeRecord(w, r, nil)
		if !ok {
			return
		}

		s.data.lock.Lock()
		defer s.data.lock.Unlock()
		rec, ok := c.items[chi.URLParam(r, "id")]
		if !ok {
			writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
			return
		}
		for k, v := range patch {
			switch k {
			case "id", "shopId", "createdAtUtc", "customerId":
				continue
			}
			rec[k] = v
		}
		rec["updatedAtUtc"] = s.now().UTC().Format(time.RFC3339)
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) deleteItem(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if forbidden(w, r, c) {
			return
		}
		s.data.lock.Lock()
		removed := c.remove(chi.URLParam(r, "id"))
		s.data.lock.Unlock()
		if !removed {
			writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) templateByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.data.lock.Lock()
	matches := s.data.collections["templates"].list(func(rec record) bool { return rec["key"] == key })
	s.data.lock.Unlock()
	if len(matches) == 0 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
		return
	}
	writeJSON(w, http.StatusOK, matches[0])
}

func (s *Server) listChildren(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.data.lock.Lock()
		items := []record{}
		for _, rec := range s.data.children[kind+":"+chi.URLParam(r, "id")] {
			items = append(items, rec.clone())
		}
		s.data.lock.Unlock()
		writeJSON(w, http.StatusOK, page(r, items))
	}
}

func statusIndex(name any) int {
	for i, s := range OrderStatuses {
		if s == name {
			return i
		}
	}
	return 0
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status *int `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == nil || *req.Status < 0 || *req.Status >= len(OrderStatuses) {
		writeProblem(w, http.StatusBadRequest, "One or more validation errors occurred.", "", map[string][]string{
			"Status": {"The Status field is invalid."},
		})
		return
	}

	orderID := chi.URLParam(r, "id")
	user := userFrom(r.Context())
	now := s.now().UTC().Format(time.RFC3339)

	s.data.lock.Lock()
	defer s.data.lock.Unlock()
	order, ok := s.data.collections["orders"].items[orderID]
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
		return
	}
	from := statusIndex(order["status"])
	order["status"] = OrderStatuses[*req.Status]
	order["updatedAtUtc"] = now
	s.data.children["history:"+orderID] = append(s.data.children["history:"+orderID], record{
		"id":              uuid.NewString(),
		"fromStatus":      from,
		"toStatus":        *req.Status,
		"changedByUserId": user.ID,
		"changedAtUtc":    now,
	})
	writeJSON(w, http.StatusOK, record{
		"orderId":          orderID,
		"fromStatus":       from,
		"toStatus":         *req.Status,
		"suggestedMessage": fmt.Sprintf("Your repair order is now %s.", OrderStatuses[*req.Status]),
	})
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r, []string{"body"})
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")
	note := record{
		"id":              uuid.NewString(),
		"body":            rec["body"],
		"createdByUserId": userFrom(r.Context()).ID,
		"createdAtUtc":    s.now().UTC().Format(time.RFC3339),
	}

	s.data.lock.Lock()
	defer s.data.lock.Unlock()
	if _, ok := s.data.collections["orders"].items[orderID]; !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
		return
	}
	s.data.children["notes:"+orderID] = append(s.data.children["notes:"+orderID], note)
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) addAdjustment(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r, []string{"deltaQuantity", "reason"})
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")
	delta, _ := rec["deltaQuantity"].(float64)

	s.data.lock.Lock()
	defer s.data.lock.Unlock()
	item, ok := s.data.collections["inventory"].items[itemID]
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "", nil)
		return
	}
	onHand, _ := item["quantityOnHand"].(float64)
	item["quantityOnHand"] = onHand + delta
	item["updatedAtUtc"] = s.now().UTC().Format(time.RFC3339)
	s.data.children["adjustments:"+itemID] = append(s.data.children["adjustments:"+itemID], record{
		"id":              uuid.NewString(),
		"inventoryItemId": itemID,
		"type":            rec["type"],
		"deltaQuantity":   delta,
		"reason":          rec["reason"],
		"createdByUserId": userFrom(r.Context()).ID,
		"createdAtUtc":    s.now().UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	counts := make([]int, len(OrderStatuses))

	s.data.lock.Lock()
	orders := s.data.collections["orders"].list(nil)
	for _, o := range orders {
		counts[statusIndex(o["status"])]++
	}
	s.data.lock.Unlock()

	writeJSON(w, http.StatusOK, record{
		"shopId":              user.ShopID,
		"totalOrders":         len(orders),
		"openOrders":          counts[0] + counts[1] + counts[2],
		"readyOrders":         counts[3],
		"deliveredOrders":     counts[4],
		"cancelledOrders":     counts[5],
		"totalPaymentsAmount": 0,
		"generatedAtUtc":      s.now().UTC().Format(time.RFC3339),
	})
}
