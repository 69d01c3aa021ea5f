package payment

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const stripeBaseURL = "https://api.stripe.com/v1"

// StripeClient implements Provider against Stripe's Checkout REST API.
type StripeClient struct {
	client *resty.Client
}

// NewStripeClient creates a Stripe client with a bounded request timeout.
func NewStripeClient(secretKey string) *StripeClient {
	client := resty.New().
		SetBaseURL(stripeBaseURL).
		SetAuthToken(secretKey).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/x-www-form-urlencoded")

	return &StripeClient{client: client}
}

type stripeSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"` // cents
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeCoupon struct {
	ID string `json:"id"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession opens a provider-hosted checkout session with one
// price entry per line item.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	form := map[string]string{
		"mode":           "payment",
		"customer_email": params.CustomerEmail,
		"success_url":    params.SuccessURL,
		"cancel_url":     params.CancelURL,
	}
	form["payment_method_types[0]"] = "card"

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form[prefix+"[price_data][currency]"] = "usd"
		form[prefix+"[price_data][product_data][name]"] = item.Name
		form[prefix+"[price_data][unit_amount]"] = strconv.FormatInt(toCents(item.Amount), 10)
		form[prefix+"[quantity]"] = "1"
	}

	if params.CouponID != "" {
		form["discounts[0][coupon]"] = params.CouponID
	}

	for key, value := range params.Metadata {
		form[fmt.Sprintf("metadata[%s]", key)] = value
	}

	var result stripeSession
	var apiErr stripeError
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		SetError(&apiErr).
		Post("/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrProvider, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: create session: %s", ErrProvider, apiErr.Error.Message)
	}

	return result.toSession(), nil
}

// RetrieveSession fetches the session's current state from the provider.
func (s *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	var result stripeSession
	var apiErr stripeError
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		Get("/checkout/sessions/" + sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve session: %v", ErrProvider, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: retrieve session: %s", ErrProvider, apiErr.Error.Message)
	}

	return result.toSession(), nil
}

// CreateAmountOffCoupon creates a single-use fixed-amount provider coupon.
func (s *StripeClient) CreateAmountOffCoupon(ctx context.Context, amount float64) (string, error) {
	var result stripeCoupon
	var apiErr stripeError
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"amount_off": strconv.FormatInt(toCents(amount), 10),
			"currency":   "usd",
			"duration":   "once",
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/coupons")
	if err != nil {
		return "", fmt.Errorf("%w: create coupon: %v", ErrProvider, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: create coupon: %s", ErrProvider, apiErr.Error.Message)
	}

	return result.ID, nil
}

func (ss *stripeSession) toSession() *Session {
	return &Session{
		ID:              ss.ID,
		URL:             ss.URL,
		PaymentStatus:   ss.PaymentStatus,
		AmountTotal:     float64(ss.AmountTotal) / 100,
		PaymentIntentID: ss.PaymentIntent,
		Metadata:        ss.Metadata,
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
