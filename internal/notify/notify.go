package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/cnfroast/storefront-backend/internal/order"
)

// SendGrid delivers order emails through the SendGrid API. The order service
// treats delivery as best-effort; errors returned here are logged there, not
// surfaced to customers.
type SendGrid struct {
	client     *sendgrid.Client
	from       *mail.Email
	adminEmail string
}

func NewSendGrid(apiKey, fromAddr, adminEmail string) *SendGrid {
	return &SendGrid{
		client:     sendgrid.NewSendClient(apiKey),
		from:       mail.NewEmail("CNF Roast", fromAddr),
		adminEmail: adminEmail,
	}
}

func (s *SendGrid) OrderConfirmation(ctx context.Context, ord order.Order) error {
	to := mail.NewEmail(ord.CustomerName, ord.CustomerEmail)
	subject := fmt.Sprintf("Order %s confirmed", ord.Number)
	plain := orderSummary(ord)
	html := "<pre>" + plain + "</pre>"
	return s.send(ctx, mail.NewSingleEmail(s.from, subject, to, plain, html))
}

func (s *SendGrid) AdminAlert(ctx context.Context, ord order.Order) error {
	if s.adminEmail == "" {
		return nil
	}
	to := mail.NewEmail("Store admin", s.adminEmail)
	subject := fmt.Sprintf("New order %s (%.2f)", ord.Number, ord.Total)
	plain := orderSummary(ord)
	html := "<pre>" + plain + "</pre>"
	return s.send(ctx, mail.NewSingleEmail(s.from, subject, to, plain, html))
}

func (s *SendGrid) send(ctx context.Context, msg *mail.SGMailV3) error {
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func orderSummary(ord order.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Order %s\n\n", ord.Number)
	for _, it := range ord.Items {
		label := it.ProductName
		if it.VariantWeight != nil {
			label += " (" + *it.VariantWeight + ")"
		}
		fmt.Fprintf(&sb, "  %d x %s @ %.2f = %.2f\n", it.Quantity, label, it.UnitPrice, it.Total)
	}
	fmt.Fprintf(&sb, "\nSubtotal: %.2f\nShipping: %.2f\nTax: %.2f\nTotal: %.2f\n",
		ord.Subtotal, ord.ShippingCost, ord.Tax, ord.Total)
	fmt.Fprintf(&sb, "\nShip to: %s, %s, %s %s, %s\n",
		ord.ShippingAddress.FullName, ord.ShippingAddress.Line1,
		ord.ShippingAddress.City, ord.ShippingAddress.PostalCode, ord.ShippingAddress.Country)
	return sb.String()
}

// Log is the no-credential fallback used in local setups: it prints what
// would have been mailed and always succeeds.
type Log struct{}

func (Log) OrderConfirmation(ctx context.Context, ord order.Order) error {
	fmt.Printf("[notify] order confirmation for %s -> %s\n", ord.Number, ord.CustomerEmail)
	return nil
}

func (Log) AdminAlert(ctx context.Context, ord order.Order) error {
	fmt.Printf("[notify] admin alert for %s (total %.2f)\n", ord.Number, ord.Total)
	return nil
}
