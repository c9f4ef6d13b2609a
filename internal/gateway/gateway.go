// Package gateway abstracts the billing provider behind a narrow interface
// with two implementations: the live Razorpay client and a deterministic
// mock used outside production. Which one runs is a configuration decision,
// never a runtime credential sniff.
package gateway

import (
	"context"
	"fmt"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/config"
)

// Order is a created gateway order. Amount stays in whole rupees; the minor
// unit conversion lives inside the adapter.
type Order struct {
	ID       string
	Amount   int
	Currency string
	Receipt  string
}

// PayLink is a manual-flow payment link bound to an order.
type PayLink struct {
	OrderID string
	URL     string
}

// Gateway is the contract the billing service drives.
type Gateway interface {
	// CreateOrder registers an order for the given amount.
	CreateOrder(ctx context.Context, amount int, receipt string) (*Order, error)
	// CreatePaymentLink opens a manual-flow checkout for the given amount.
	CreatePaymentLink(ctx context.Context, amount int, description string) (*PayLink, error)
	// VerifySignature checks the checkout callback signature for an order.
	VerifySignature(orderID, paymentID, signature string) bool
	// VerifyTransactionRef checks a manually submitted transaction reference.
	VerifyTransactionRef(ref, orderID string) bool
}

// NewFromConfig selects the gateway implementation. The mock provider or
// missing credentials are fatal when the production flag is set.
func NewFromConfig(cfg *config.Config) (Gateway, error) {
	const op = "gateway.NewFromConfig"
	switch cfg.Payment.Provider {
	case "razorpay":
		if cfg.Payment.KeyID == "" || cfg.Payment.KeySecret == "" {
			return nil, fmt.Errorf("%s: razorpay credentials are not set", op)
		}
		return NewRazorpay(cfg.Payment.KeyID, cfg.Payment.KeySecret), nil
	case "mock", "":
		if cfg.IsProd() {
			return nil, fmt.Errorf("%s: mock gateway is not allowed in prod", op)
		}
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%s: unknown payment provider %q", op, cfg.Payment.Provider)
	}
}
