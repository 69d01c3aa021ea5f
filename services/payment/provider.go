package payment

import (
	"context"
	"errors"
)

// Session payment statuses as reported by the provider
const (
	StatusPaid   = "paid"
	StatusUnpaid = "unpaid"
)

var (
	// ErrProvider wraps transport or unexpected-response failures from the
	// provider. Callers must treat the operation as failed-but-possibly-
	// succeeded and retry; the reconciliation idempotency key protects
	// against double-effects.
	ErrProvider = errors.New("payment provider error")
)

// SessionLineItem is one price entry in a provider-hosted checkout session.
// Amounts are in the major currency unit; the client converts to cents.
type SessionLineItem struct {
	Name   string
	Amount float64
}

// CreateSessionParams describes a checkout session to open with the provider.
type CreateSessionParams struct {
	CustomerEmail string
	LineItems     []SessionLineItem
	// CouponID is a provider-side amount-off coupon created beforehand;
	// empty means no discount.
	CouponID   string
	SuccessURL string
	CancelURL  string
	// Metadata is free-form and echoed back on retrieval. The checkout
	// service stores its versioned line-item payload here so reconciliation
	// needs no second database round trip.
	Metadata map[string]string
}

// Session is the provider's view of a checkout session.
type Session struct {
	ID              string
	URL             string
	PaymentStatus   string
	AmountTotal     float64
	PaymentIntentID string
	Metadata        map[string]string
}

// Provider is the external payment service consumed by checkout. All calls
// are blocking I/O with bounded timeouts configured on the implementation.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
	// CreateAmountOffCoupon mirrors a platform-computed discount as a
	// provider-side fixed-amount coupon and returns its id. Always
	// amount-off: the platform has already converted percentage coupons to
	// a concrete figure.
	CreateAmountOffCoupon(ctx context.Context, amount float64) (string, error)
}
