package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusPending:        true,
	StatusConfirmed:      true,
	StatusShipped:        true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
	StatusCancelled:      true,
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !knownStatuses[s] {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether an order in this status may move to next.
// Any move is allowed except out of a terminal status or onto itself.
func (s Status) CanTransitionTo(next Status) bool {
	return !s.Terminal() && s != next
}

// Actor types recorded on status events.
const (
	ActorAdmin  = "admin"
	ActorSystem = "system"
	ActorUser   = "user"
)

// Address is a postal address frozen onto the order at checkout.
type Address struct {
	FullName   string  `json:"fullName"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
}

// Order is an immutable record of a completed checkout. Prices, names, and
// images are snapshots; later catalog edits never reach past orders.
type Order struct {
	ID              string    `json:"id"`
	Number          string    `json:"orderNumber"`
	SessionKey      *string   `json:"-"`
	UserID          *string   `json:"userId,omitempty"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail"`
	CustomerPhone   string    `json:"customerPhone"`
	ShippingAddress Address   `json:"shippingAddress"`
	BillingAddress  *Address  `json:"billingAddress,omitempty"`
	Status          Status    `json:"status"`
	Subtotal        float64   `json:"subtotal"`
	ShippingCost    float64   `json:"shippingCost"`
	Tax             float64   `json:"tax"`
	Total           float64   `json:"total"`
	PaymentMethod   string    `json:"paymentMethod"`
	PaymentStatus   *string   `json:"paymentStatus,omitempty"`
	TransactionID   *string   `json:"transactionId,omitempty"`
	Items           []Item    `json:"items"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Item is one purchased line of an order.
type Item struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"-"`
	ProductID     string  `json:"productId"`
	VariantID     *string `json:"variantId,omitempty"`
	ProductName   string  `json:"productName"`
	ProductSlug   string  `json:"productSlug"`
	VariantWeight *string `json:"variantWeight,omitempty"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
	Total         float64 `json:"total"`
	ImageURL      *string `json:"imageUrl,omitempty"`
}

// StatusEvent is one entry of the order's status audit trail.
type StatusEvent struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	From      *Status   `json:"from,omitempty"`
	To        Status    `json:"to"`
	ActorType string    `json:"actorType"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
