package payment

import (
	"context"
	"fmt"
	"sync"
)

// FakeProvider is an in-memory Provider used by tests and local development
// without provider credentials. Sessions start unpaid; MarkPaid simulates
// the customer completing the hosted checkout.
type FakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*Session
	coupons  int
	seq      int

	// Fail, when set, makes every call return ErrProvider.
	Fail bool
}

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{sessions: make(map[string]*Session)}
}

func (f *FakeProvider) CreateCheckoutSession(_ context.Context, params CreateSessionParams) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return nil, fmt.Errorf("%w: fake failure", ErrProvider)
	}

	f.seq++
	var total float64
	for _, item := range params.LineItems {
		total += item.Amount
	}

	session := &Session{
		ID:            fmt.Sprintf("cs_test_%d", f.seq),
		URL:           fmt.Sprintf("https://checkout.example.test/pay/cs_test_%d", f.seq),
		PaymentStatus: StatusUnpaid,
		AmountTotal:   total,
		Metadata:      params.Metadata,
	}
	f.sessions[session.ID] = session
	return copySession(session), nil
}

func (f *FakeProvider) RetrieveSession(_ context.Context, sessionID string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return nil, fmt.Errorf("%w: fake failure", ErrProvider)
	}

	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no such session %s", ErrProvider, sessionID)
	}
	return copySession(session), nil
}

func (f *FakeProvider) CreateAmountOffCoupon(_ context.Context, amount float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return "", fmt.Errorf("%w: fake failure", ErrProvider)
	}

	f.coupons++
	return fmt.Sprintf("fake_coupon_%d", f.coupons), nil
}

// MarkPaid flips a session to paid, deducting the given discount from its
// total the way the real provider applies an amount-off coupon.
func (f *FakeProvider) MarkPaid(sessionID string, discount float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[sessionID]; ok {
		session.PaymentStatus = StatusPaid
		session.AmountTotal -= discount
		session.PaymentIntentID = "pi_" + sessionID
	}
}

func copySession(s *Session) *Session {
	dup := *s
	dup.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		dup.Metadata[k] = v
	}
	return &dup
}
