package checkout

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/cart"
	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/pricing"
	"github.com/ErezMalka/bite-checkout-signing/internal/signing"
	"github.com/ErezMalka/bite-checkout-signing/internal/validate"
	"github.com/google/uuid"
)

// CartService is the shopper-cart collaborator the checkout mutates
// through so the persisted cart stays in step with the session.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID string, line domain.CartLine) error
	UpdateLine(ctx context.Context, userID string, productID int64, upd cart.LineUpdate) error
	RemoveLine(ctx context.Context, userID string, productID int64) error
	ClearCart(ctx context.Context, userID string) error
}

// PlanResolver resolves payment-plan schedules; it degrades internally
// and never fails.
type PlanResolver interface {
	Resolve(ctx context.Context, productIDs []int64) map[int64]domain.PaymentPlanSchedule
}

// DraftStore persists order drafts through their pending/sent/failed
// lifecycle.
type DraftStore interface {
	CreateOrderDraft(ctx context.Context, draft *domain.OrderDraft) error
	UpdateOrderDraftStatus(ctx context.Context, id string, status domain.OrderStatus, signURL string) error
}

// ProductLoader supplies the catalog name and price for a line being
// added, so sessions never trust client-supplied values.
type ProductLoader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Service struct {
	sessions *SessionStore
	carts    CartService
	resolver PlanResolver
	signer   signing.Client
	drafts   DraftStore
	products ProductLoader

	currency string
	// clearDelay is how long a succeeded session keeps showing its lines
	// before the cart is emptied.
	clearDelay time.Duration
}

func NewService(sessions *SessionStore, carts CartService, resolver PlanResolver, signer signing.Client, drafts DraftStore, products ProductLoader, currency string) *Service {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &Service{
		sessions:   sessions,
		carts:      carts,
		resolver:   resolver,
		signer:     signer,
		drafts:     drafts,
		products:   products,
		currency:   currency,
		clearDelay: 3 * time.Second,
	}
}

// Start opens a checkout session for the user's current cart: loads the
// cart, resolves payment plans for its products, and lands in ready (or
// empty). Plan resolution may degrade to defaults but never blocks the
// session from opening.
func (s *Service) Start(ctx context.Context, userID string) (*Session, error) {
	userCart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		State:     StateLoading,
		Lines:     userCart.Lines,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}

	session.Schedules = s.resolver.Resolve(ctx, productIDs(session.Lines))

	// Loading -> ready regardless of resolver outcome
	session.State = StateReady
	session.syncState()

	s.sessions.Put(session)
	return s.sessions.Get(session.ID)
}

func (s *Service) Get(sessionID string) (*Session, error) {
	return s.sessions.Get(sessionID)
}

// Totals derives order totals from the session's current lines. Nothing
// is cached; every call recomputes from scratch.
func (s *Service) Totals(sessionID string) (domain.OrderTotals, []pricing.LineTotals, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.OrderTotals{}, nil, err
	}

	lineTotals := make([]pricing.LineTotals, 0, len(session.Lines))
	for _, line := range session.Lines {
		lineTotals = append(lineTotals, pricing.ComputeLineTotals(line, session.Schedules[line.ProductID]))
	}
	return pricing.ComputeOrderTotals(session.Lines, session.Schedules), lineTotals, nil
}

// AddLine puts a product back into the checkout; an empty session
// becomes ready again. Name and price come from the catalog, not the
// caller.
func (s *Service) AddLine(ctx context.Context, sessionID string, line domain.CartLine) (*Session, error) {
	product, err := s.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	line.ProductName = product.Name
	line.UnitPrice = product.Price

	// Resolve the schedule before taking the store lock; a slow plan
	// fetch must not stall reads and writes on other sessions.
	current, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var resolved map[int64]domain.PaymentPlanSchedule
	if _, ok := current.Schedules[line.ProductID]; !ok {
		resolved = s.resolver.Resolve(ctx, []int64{line.ProductID})
	}

	var userID string
	err = s.sessions.Update(sessionID, func(session *Session) error {
		if err := editable(session); err != nil {
			return err
		}
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		if line.PaymentMethod == "" {
			line.PaymentMethod = domain.PaymentFull
		}
		if line.Installments < 1 {
			line.Installments = 1
		}
		line.AddedAt = time.Now()

		replaced := false
		for i := range session.Lines {
			if session.Lines[i].ProductID == line.ProductID {
				session.Lines[i] = line
				replaced = true
				break
			}
		}
		if !replaced {
			session.Lines = append(session.Lines, line)
		}

		if _, ok := session.Schedules[line.ProductID]; !ok && resolved != nil {
			if session.Schedules == nil {
				session.Schedules = make(map[int64]domain.PaymentPlanSchedule, 1)
			}
			session.Schedules[line.ProductID] = resolved[line.ProductID]
		}

		session.syncState()
		userID = session.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if errAdd := s.carts.AddLine(ctx, userID, line); errAdd != nil {
		log.Printf("failed to persist added line: %v", errAdd)
	}
	return s.sessions.Get(sessionID)
}

// UpdateLine edits quantity, payment method, or installment count of one
// line. Quantity is clamped to [1,99]; switching to full payment resets
// installments to 1, switching to installments defaults to 3; installment
// choices are validated against the offered set.
func (s *Service) UpdateLine(ctx context.Context, sessionID string, productID int64, upd cart.LineUpdate) (*Session, error) {
	var userID string
	err := s.sessions.Update(sessionID, func(session *Session) error {
		if err := editable(session); err != nil {
			return err
		}

		var line *domain.CartLine
		for i := range session.Lines {
			if session.Lines[i].ProductID == productID {
				line = &session.Lines[i]
				break
			}
		}
		if line == nil {
			return cart.ErrLineNotFound
		}

		if upd.Quantity != nil {
			q := *upd.Quantity
			if q < 1 {
				q = 1
			}
			if q > 99 {
				q = 99
			}
			line.Quantity = q
			upd.Quantity = &q
		}

		if upd.PaymentMethod != nil {
			switch *upd.PaymentMethod {
			case domain.PaymentFull:
				line.PaymentMethod = domain.PaymentFull
				one := 1
				line.Installments = one
				upd.Installments = &one
			case domain.PaymentInstallments:
				line.PaymentMethod = domain.PaymentInstallments
				if upd.Installments == nil && line.Installments <= 1 {
					three := 3
					line.Installments = three
					upd.Installments = &three
				}
			default:
				return ErrValidationFailed
			}
		}

		if upd.Installments != nil && line.PaymentMethod == domain.PaymentInstallments {
			n := *upd.Installments
			if !domain.ValidInstallments(n) || n < 3 {
				n = 3
			}
			line.Installments = n
			upd.Installments = &n
		}

		session.syncState()
		userID = session.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if errUpd := s.carts.UpdateLine(ctx, userID, productID, upd); errUpd != nil {
		log.Printf("failed to persist line update: %v", errUpd)
	}
	return s.sessions.Get(sessionID)
}

// RemoveLine deletes a line; removing the last one lands the session in
// the empty display state.
func (s *Service) RemoveLine(ctx context.Context, sessionID string, productID int64) (*Session, error) {
	var userID string
	err := s.sessions.Update(sessionID, func(session *Session) error {
		if err := editable(session); err != nil {
			return err
		}

		found := false
		for i, line := range session.Lines {
			if line.ProductID == productID {
				session.Lines = append(session.Lines[:i], session.Lines[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return cart.ErrLineNotFound
		}

		session.syncState()
		userID = session.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if errRemove := s.carts.RemoveLine(ctx, userID, productID); errRemove != nil {
		log.Printf("failed to persist line removal: %v", errRemove)
	}
	return s.sessions.Get(sessionID)
}

// Submit validates the customer fields and, if they pass, sends the
// priced order to the external signing service. Exactly one external
// submission happens per call; there is no automatic retry. A failed
// submission returns the session to ready with one generic error and the
// cart untouched.
func (s *Service) Submit(ctx context.Context, sessionID string, customer domain.CustomerInfo) (*Session, error) {
	customer.Name = strings.TrimSpace(customer.Name)

	var lines []domain.CartLine
	var schedules map[int64]domain.PaymentPlanSchedule
	var userID string

	err := s.sessions.Update(sessionID, func(session *Session) error {
		switch session.State {
		case StateSubmitting:
			return ErrSubmitInFlight
		case StateSucceeded:
			return ErrSessionClosed
		case StateEmpty:
			return ErrCartEmpty
		}

		session.Customer = customer
		fieldErrors := validateCustomer(customer)
		if len(fieldErrors) > 0 {
			session.FieldErrors = fieldErrors
			return ErrValidationFailed
		}

		session.FieldErrors = nil
		session.ErrorMessage = ""
		session.State = StateSubmitting

		lines = append([]domain.CartLine(nil), session.Lines...)
		schedules = session.Schedules
		userID = session.UserID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidationFailed) {
			session, getErr := s.sessions.Get(sessionID)
			if getErr != nil {
				return nil, getErr
			}
			return session, ErrValidationFailed
		}
		return nil, err
	}

	payload := domain.OrderPayload{
		Currency: s.currency,
		Lines:    pricing.BuildOrderLines(lines, schedules),
		Totals:   pricing.ComputeOrderTotals(lines, schedules),
	}

	draft := &domain.OrderDraft{
		ID:            uuid.New().String(),
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		CustomerEmail: customer.Email,
		Currency:      s.currency,
		Payload:       payload,
		Status:        domain.OrderStatusPending,
	}

	if errDraft := s.drafts.CreateOrderDraft(ctx, draft); errDraft != nil {
		log.Printf("failed to create order draft: %v", errDraft)
		return s.failSubmission(sessionID)
	}

	result, errSign := s.signer.CreateOrderDraft(ctx, customer, payload)
	if errSign != nil {
		log.Printf("signing submission failed: %v", errSign)
		if errStatus := s.drafts.UpdateOrderDraftStatus(ctx, draft.ID, domain.OrderStatusFailed, ""); errStatus != nil {
			log.Printf("failed to mark draft failed: %v", errStatus)
		}
		return s.failSubmission(sessionID)
	}

	if errStatus := s.drafts.UpdateOrderDraftStatus(ctx, draft.ID, domain.OrderStatusSent, result.SignURL); errStatus != nil {
		log.Printf("failed to mark draft sent: %v", errStatus)
	}

	errDone := s.sessions.Update(sessionID, func(session *Session) error {
		session.State = StateSucceeded
		session.OrderID = draft.ID
		session.SignURL = result.SignURL
		return nil
	})
	if errDone != nil {
		return nil, errDone
	}

	// Cosmetic: keep showing the order briefly, then empty the cart and
	// tell the cart collaborator.
	time.AfterFunc(s.clearDelay, func() {
		clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errClear := s.carts.ClearCart(clearCtx, userID); errClear != nil {
			log.Printf("failed to clear cart after checkout: %v", errClear)
		}
		_ = s.sessions.Update(sessionID, func(session *Session) error {
			session.Lines = nil
			return nil
		})
	})

	return s.sessions.Get(sessionID)
}

// failSubmission returns the session to ready with a single generic
// error. The cart lines are untouched so the user can retry.
func (s *Service) failSubmission(sessionID string) (*Session, error) {
	err := s.sessions.Update(sessionID, func(session *Session) error {
		session.State = StateReady
		session.ErrorMessage = "order submission failed, please try again"
		session.syncState()
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session, ErrSubmissionFailed
}

func validateCustomer(customer domain.CustomerInfo) map[string]string {
	fieldErrors := make(map[string]string)

	if strings.TrimSpace(customer.Name) == "" {
		fieldErrors["name"] = "name is required"
	}
	if strings.TrimSpace(customer.Phone) == "" {
		fieldErrors["phone"] = "phone is required"
	} else if !validate.IsValidPhone(customer.Phone) {
		fieldErrors["phone"] = "invalid phone number"
	}
	if strings.TrimSpace(customer.Email) == "" {
		fieldErrors["email"] = "email is required"
	} else if !validate.IsValidEmail(customer.Email) {
		fieldErrors["email"] = "invalid email address"
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func productIDs(lines []domain.CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func editable(session *Session) error {
	switch session.State {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateSucceeded:
		return ErrSessionClosed
	}
	return nil
}
