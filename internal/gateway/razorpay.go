package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	razorpay "github.com/razorpay/razorpay-go"
)

// upiRefPattern matches a 12-digit UPI transaction reference (UTR).
var upiRefPattern = regexp.MustCompile(`^\d{12}$`)

// Razorpay implements Gateway against the live Razorpay API.
type Razorpay struct {
	client    *razorpay.Client
	keySecret string
}

// NewRazorpay creates a Razorpay adapter from API credentials.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
	}
}

// CreateOrder registers an order. The catalog amount in rupees is converted
// to paise only here, at the call boundary.
func (g *Razorpay) CreateOrder(_ context.Context, amount int, receipt string) (*Order, error) {
	const op = "gateway.Razorpay.CreateOrder"
	data := map[string]interface{}{
		"amount":   amount * 100,
		"currency": "INR",
		"receipt":  receipt,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	id, ok := body["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%s: order response has no id", op)
	}
	return &Order{
		ID:       id,
		Amount:   amount,
		Currency: "INR",
		Receipt:  receipt,
	}, nil
}

// CreatePaymentLink opens a hosted payment link for the manual checkout flow.
func (g *Razorpay) CreatePaymentLink(_ context.Context, amount int, description string) (*PayLink, error) {
	const op = "gateway.Razorpay.CreatePaymentLink"
	data := map[string]interface{}{
		"amount":      amount * 100,
		"currency":    "INR",
		"description": description,
	}
	body, err := g.client.PaymentLink.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	id, _ := body["id"].(string)
	shortURL, ok := body["short_url"].(string)
	if !ok || shortURL == "" {
		return nil, fmt.Errorf("%s: payment link response has no short_url", op)
	}
	return &PayLink{OrderID: id, URL: shortURL}, nil
}

// VerifySignature checks the HMAC-SHA256 of "orderID|paymentID" against the
// signature Razorpay returned to the checkout.
func (g *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyTransactionRef accepts a manually submitted UPI reference when it
// looks like a UTR and an order is named. Final acceptance or rejection of
// the payment stays a manual admin decision.
func (g *Razorpay) VerifyTransactionRef(ref, orderID string) bool {
	return orderID != "" && upiRefPattern.MatchString(ref)
}
