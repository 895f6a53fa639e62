package checkout

import (
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
)

type SessionState string

const (
	// StateLoading: payment plans are being fetched for the cart.
	StateLoading SessionState = "loading"
	// StateReady: cart and plans loaded, editable. A failed submission
	// returns here with ErrorMessage set.
	StateReady SessionState = "ready"
	// StateSubmitting: an order-draft submission is in flight. No cart
	// mutation is accepted until it resolves.
	StateSubmitting SessionState = "submitting"
	// StateSucceeded: terminal for this session; the cart is cleared
	// after a fixed display delay.
	StateSucceeded SessionState = "succeeded"
	// StateEmpty: all lines removed. Re-adding a line returns to ready.
	StateEmpty SessionState = "empty"
)

func (s SessionState) IsTerminal() bool {
	return s == StateSucceeded
}

func (s SessionState) String() string {
	return string(s)
}

// Session holds one checkout's state: the cart lines being priced, the
// resolved payment plans, customer input, and the submission outcome.
// Totals are never stored on the session; they are derived on every read.
type Session struct {
	ID        string
	UserID    string
	State     SessionState
	Lines     []domain.CartLine
	Schedules map[int64]domain.PaymentPlanSchedule
	Customer  domain.CustomerInfo

	// FieldErrors holds per-field validation messages from the last
	// submit attempt; ErrorMessage is the single generic message set
	// when a submission fails externally.
	FieldErrors  map[string]string
	ErrorMessage string

	OrderID string
	SignURL string

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// syncState keeps the empty/ready display states consistent with the
// line list. Only meaningful while the session is editable.
func (s *Session) syncState() {
	switch s.State {
	case StateReady, StateEmpty:
		if len(s.Lines) == 0 {
			s.State = StateEmpty
		} else {
			s.State = StateReady
		}
	}
}
