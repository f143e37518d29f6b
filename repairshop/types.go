package repairshop

import (
	"strings"
	"time"

	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
	"github.com/pkg/errors"
)

type DashboardSummary struct {
	ShopID              string    `json:"shopId"`
	TotalOrders         int       `json:"totalOrders"`
	OpenOrders          int       `json:"openOrders"`
	ReadyOrders         int       `json:"readyOrders"`
	DeliveredOrders     int       `json:"deliveredOrders"`
	CancelledOrders     int       `json:"cancelledOrders"`
	TotalPaymentsAmount float64   `json:"totalPaymentsAmount"`
	PaymentsCurrency    *string   `json:"paymentsCurrency,omitempty"`
	GeneratedAt         time.Time `json:"generatedAtUtc"`
}

type Customer struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shopId"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAtUtc"`
	UpdatedAt time.Time `json:"updatedAtUtc"`
}

// CustomerInput is used for both create and update.
type CustomerInput struct {
	FullName string  `json:"fullName"`
	Phone    string  `json:"phone"`
	Notes    *string `json:"notes,omitempty"`
}

type Device struct {
	ID           string    `json:"id"`
	ShopID       string    `json:"shopId"`
	CustomerID   string    `json:"customerId"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	SerialNumber *string   `json:"serialNumber,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAtUtc"`
	UpdatedAt    time.Time `json:"updatedAtUtc"`
}

type DeviceCreate struct {
	CustomerID   string  `json:"customerId"`
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	SerialNumber *string `json:"serialNumber,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// DeviceUpdate cannot move a device to another customer.
type DeviceUpdate struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	SerialNumber *string `json:"serialNumber,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// OrderStatus is the numeric order state the status endpoint accepts.
type OrderStatus int

const (
	StatusReceived OrderStatus = iota
	StatusDiagnosing
	StatusInProgress
	StatusReady
	StatusDelivered
	StatusCancelled
)

var orderStatusNames = []string{"Received", "Diagnosing", "InProgress", "Ready", "Delivered", "Cancelled"}

func (s OrderStatus) String() string {
	if s < 0 || int(s) >= len(orderStatusNames) {
		return "Unknown"
	}
	return orderStatusNames[s]
}

// ParseOrderStatus accepts a status name, case-insensitively.
func ParseOrderStatus(name string) (OrderStatus, error) {
	for i, n := range orderStatusNames {
		if strings.EqualFold(n, name) {
			return OrderStatus(i), nil
		}
	}
	return 0, errors.Wrapf(apperrors.ErrUnsupported, "order status %q", name)
}

type Order struct {
	ID                   string     `json:"id"`
	ShopID               string     `json:"shopId"`
	CustomerID           string     `json:"customerId"`
	DeviceID             string     `json:"deviceId"`
	IssueDescription     string     `json:"issueDescription"`
	Notes                *string    `json:"notes,omitempty"`
	Status               string     `json:"status"`
	QuoteAmount          *float64   `json:"quoteAmount,omitempty"`
	QuoteCurrency        *string    `json:"quoteCurrency,omitempty"`
	QuoteUpdatedByUserID *string    `json:"quoteUpdatedByUserId,omitempty"`
	QuoteUpdatedAt       *time.Time `json:"quoteUpdatedAtUtc,omitempty"`
	CreatedAt            time.Time  `json:"createdAtUtc"`
	UpdatedAt            time.Time  `json:"updatedAtUtc"`
}

type OrderCreate struct {
	CustomerID       string  `json:"customerId"`
	DeviceID         string  `json:"deviceId"`
	IssueDescription string  `json:"issueDescription"`
	Notes            *string `json:"notes,omitempty"`
}

type OrderUpdate struct {
	IssueDescription string  `json:"issueDescription"`
	Notes            *string `json:"notes,omitempty"`
}

type StatusChange struct {
	Status        OrderStatus `json:"status"`
	EnqueueOutbox bool        `json:"enqueueOutbox,omitempty"`
	Channel       *int        `json:"channel,omitempty"`
}

type StatusChangeResult struct {
	OrderID          string      `json:"orderId"`
	FromStatus       OrderStatus `json:"fromStatus"`
	ToStatus         OrderStatus `json:"toStatus"`
	SuggestedMessage string      `json:"suggestedMessage"`
	OutboxItemID     *string     `json:"outboxItemId,omitempty"`
}

type StatusHistoryEntry struct {
	ID              string      `json:"id"`
	FromStatus      OrderStatus `json:"fromStatus"`
	ToStatus        OrderStatus `json:"toStatus"`
	ChangedByUserID string      `json:"changedByUserId"`
	ChangedAt       time.Time   `json:"changedAtUtc"`
}

type OrderNote struct {
	ID              string    `json:"id"`
	Body            string    `json:"body"`
	CreatedByUserID string    `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAtUtc"`
}

type InventoryItem struct {
	ID               string     `json:"id"`
	ShopID           string     `json:"shopId"`
	SKU              string     `json:"sku"`
	Name             string     `json:"name"`
	QuantityOnHand   float64    `json:"quantityOnHand"`
	UnitCost         *float64   `json:"unitCost,omitempty"`
	UnitCostCurrency *string    `json:"unitCostCurrency,omitempty"`
	IsActive         bool       `json:"isActive"`
	CreatedAt        time.Time  `json:"createdAtUtc"`
	UpdatedAt        *time.Time `json:"updatedAtUtc,omitempty"`
}

type InventoryCreate struct {
	SKU              string   `json:"sku"`
	Name             string   `json:"name"`
	InitialQuantity  float64  `json:"initialQuantity"`
	UnitCost         *float64 `json:"unitCost,omitempty"`
	UnitCostCurrency *string  `json:"unitCostCurrency,omitempty"`
	IsActive         bool     `json:"isActive"`
}

type InventoryUpdate struct {
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// AdjustmentType classifies a stock movement.
type AdjustmentType int

const (
	AdjustmentCorrection AdjustmentType = iota
	AdjustmentPurchase
	AdjustmentConsumption
	AdjustmentOther
)

type Adjustment struct {
	ID              string         `json:"id"`
	InventoryItemID string         `json:"inventoryItemId"`
	Type            AdjustmentType `json:"type"`
	DeltaQuantity   float64        `json:"deltaQuantity"`
	Reason          string         `json:"reason"`
	RepairOrderID   *string        `json:"repairOrderId,omitempty"`
	CreatedByUserID string         `json:"createdByUserId"`
	CreatedAt       time.Time      `json:"createdAtUtc"`
}

type AdjustmentCreate struct {
	Type          AdjustmentType `json:"type"`
	DeltaQuantity float64        `json:"deltaQuantity"`
	Reason        string         `json:"reason"`
}

type Template struct {
	ID        string     `json:"id"`
	ShopID    string     `json:"shopId"`
	Key       string     `json:"key"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAtUtc"`
	UpdatedAt *time.Time `json:"updatedAtUtc,omitempty"`
}

type TemplateCreate struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	IsActive bool   `json:"isActive"`
}

type TemplateUpdate struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	IsActive bool   `json:"isActive"`
}
