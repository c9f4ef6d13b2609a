package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Mock is the deterministic gateway used in every non-production
// environment. Order ids are sequential and signature checks always pass,
// so the billing flow is exercised identically without provider credentials.
type Mock struct {
	seq atomic.Int64
}

// NewMock creates a deterministic mock gateway.
func NewMock() *Mock {
	return &Mock{}
}

// CreateOrder returns a synthetic order id.
func (g *Mock) CreateOrder(_ context.Context, amount int, receipt string) (*Order, error) {
	n := g.seq.Add(1)
	return &Order{
		ID:       fmt.Sprintf("order_mock_%06d", n),
		Amount:   amount,
		Currency: "INR",
		Receipt:  receipt,
	}, nil
}

// CreatePaymentLink returns a synthetic upi:// link bound to a new order.
func (g *Mock) CreatePaymentLink(ctx context.Context, amount int, description string) (*PayLink, error) {
	order, err := g.CreateOrder(ctx, amount, description)
	if err != nil {
		return nil, err
	}
	return &PayLink{
		OrderID: order.ID,
		URL:     fmt.Sprintf("upi://pay?pa=mock@upi&am=%d&tn=%s", amount, order.ID),
	}, nil
}

// VerifySignature always succeeds.
func (g *Mock) VerifySignature(orderID, paymentID, signature string) bool {
	return orderID != "" && paymentID != ""
}

// VerifyTransactionRef accepts any non-empty reference.
func (g *Mock) VerifyTransactionRef(ref, orderID string) bool {
	return ref != "" && orderID != ""
}
