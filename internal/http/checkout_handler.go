package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/cart"
	"github.com/ErezMalka/bite-checkout-signing/internal/checkout"
	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/money"
	"github.com/ErezMalka/bite-checkout-signing/internal/pricing"
	"github.com/go-chi/chi/v5"
)

// CheckoutService is the slice of checkout behavior the HTTP layer needs.
type CheckoutService interface {
	Start(ctx context.Context, userID string) (*checkout.Session, error)
	Get(sessionID string) (*checkout.Session, error)
	AddLine(ctx context.Context, sessionID string, line domain.CartLine) (*checkout.Session, error)
	UpdateLine(ctx context.Context, sessionID string, productID int64, upd cart.LineUpdate) (*checkout.Session, error)
	RemoveLine(ctx context.Context, sessionID string, productID int64) (*checkout.Session, error)
	Submit(ctx context.Context, sessionID string, customer domain.CustomerInfo) (*checkout.Session, error)
}

type CheckoutHandler struct {
	checkouts CheckoutService
	timeout   time.Duration
}

func NewCheckoutHandler(checkouts CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		timeout:   timeout,
	}
}

type CheckoutLineDTO struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	UnitPrice      int64  `json:"unit_price"`
	Quantity       int    `json:"quantity"`
	PaymentMethod  string `json:"payment_method"`
	Installments   int    `json:"installments"`
	Subtotal       int64  `json:"subtotal"`
	Surcharge      int64  `json:"surcharge"`
	Total          int64  `json:"total"`
	TotalDisplay   string `json:"total_display"`
	MonthlyPayment int64  `json:"monthly_payment"`
	MonthlyDisplay string `json:"monthly_display,omitempty"`
}

type CheckoutTotalsDTO struct {
	Subtotal          int64  `json:"subtotal"`
	Surcharge         int64  `json:"surcharge"`
	GrandTotal        int64  `json:"grand_total"`
	GrandTotalDisplay string `json:"grand_total_display"`
	MaxMonthlyPayment int64  `json:"max_monthly_payment"`
	MaxMonthlyDisplay string `json:"max_monthly_display,omitempty"`
}

type CheckoutResponseDTO struct {
	SessionID    string            `json:"session_id"`
	State        string            `json:"state"`
	Lines        []CheckoutLineDTO `json:"lines"`
	Totals       CheckoutTotalsDTO `json:"totals"`
	FieldErrors  map[string]string `json:"field_errors,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	OrderID      string            `json:"order_id,omitempty"`
	SignURL      string            `json:"sign_url,omitempty"`
}

type SubmitRequestDTO struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	session, err := h.checkouts.Start(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to start checkout")
		return
	}

	h.respondSession(w, http.StatusCreated, session)
}

// GET /api/v1/checkout/{session_id}
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	session, err := h.checkouts.Get(sessionID)
	if err != nil {
		h.handleCheckoutError(w, r, err)
		return
	}

	h.respondSession(w, http.StatusOK, session)
}

// POST /api/v1/checkout/{session_id}/lines
func (h *CheckoutHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := chi.URLParam(r, "session_id")

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	method, installments, ok := parsePaymentChoice(req.PaymentMethod, req.Installments)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_payment", "unsupported payment method or installment count")
		return
	}

	session, err := h.checkouts.AddLine(ctx, sessionID, domain.CartLine{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		PaymentMethod: method,
		Installments:  installments,
	})
	if err != nil {
		h.handleCheckoutError(w, r, err)
		return
	}

	h.respondSession(w, http.StatusOK, session)
}

// PATCH /api/v1/checkout/{session_id}/lines/{product_id}
func (h *CheckoutHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := chi.URLParam(r, "session_id")
	productID, ok := parseLineProductID(w, r)
	if !ok {
		return
	}

	var req UpdateLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	upd, ok := lineUpdateFromRequest(&req)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "unsupported field value")
		return
	}

	session, err := h.checkouts.UpdateLine(ctx, sessionID, productID, upd)
	if err != nil {
		h.handleCheckoutError(w, r, err)
		return
	}

	h.respondSession(w, http.StatusOK, session)
}

// DELETE /api/v1/checkout/{session_id}/lines/{product_id}
func (h *CheckoutHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := chi.URLParam(r, "session_id")
	productID, ok := parseLineProductID(w, r)
	if !ok {
		return
	}

	session, err := h.checkouts.RemoveLine(ctx, sessionID, productID)
	if err != nil {
		h.handleCheckoutError(w, r, err)
		return
	}

	h.respondSession(w, http.StatusOK, session)
}

// POST /api/v1/checkout/{session_id}/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := chi.URLParam(r, "session_id")

	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := h.checkouts.Submit(ctx, sessionID, domain.CustomerInfo{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		if errors.Is(err, checkout.ErrValidationFailed) && session != nil {
			respondFieldErrors(w, session.FieldErrors)
			return
		}
		if errors.Is(err, checkout.ErrSubmissionFailed) && session != nil {
			respondJSON(w, http.StatusBadGateway, h.sessionResponse(session))
			return
		}
		h.handleCheckoutError(w, r, err)
		return
	}

	h.respondSession(w, http.StatusOK, session)
}

func (h *CheckoutHandler) handleCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", "checkout session not found")
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "not_found", "line not found in checkout")
	case errors.Is(err, checkout.ErrSubmitInFlight):
		respondError(w, http.StatusConflict, "submit_in_flight", "a submission is already in progress")
	case errors.Is(err, checkout.ErrSessionClosed):
		respondError(w, http.StatusConflict, "session_closed", "checkout already completed")
	case errors.Is(err, checkout.ErrCartEmpty):
		respondError(w, http.StatusBadRequest, "cart_empty", "cannot submit an empty cart")
	default:
		log.Printf("checkout request %s failed: %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CheckoutHandler) respondSession(w http.ResponseWriter, status int, session *checkout.Session) {
	respondJSON(w, status, h.sessionResponse(session))
}

func (h *CheckoutHandler) sessionResponse(session *checkout.Session) CheckoutResponseDTO {
	totals := pricing.ComputeOrderTotals(session.Lines, session.Schedules)

	lines := make([]CheckoutLineDTO, len(session.Lines))
	for i, line := range session.Lines {
		lt := pricing.ComputeLineTotals(line, session.Schedules[line.ProductID])
		dto := CheckoutLineDTO{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			UnitPrice:      int64(line.UnitPrice),
			Quantity:       line.Quantity,
			PaymentMethod:  string(line.PaymentMethod),
			Installments:   lt.Installments,
			Subtotal:       int64(lt.Subtotal),
			Surcharge:      int64(lt.Surcharge),
			Total:          int64(lt.Total),
			TotalDisplay:   money.FormatPrice(lt.Total),
			MonthlyPayment: int64(lt.MonthlyPayment),
		}
		if lt.MonthlyPayment > 0 {
			dto.MonthlyDisplay = money.FormatPrice(lt.MonthlyPayment)
		}
		lines[i] = dto
	}

	resp := CheckoutResponseDTO{
		SessionID: session.ID,
		State:     session.State.String(),
		Lines:     lines,
		Totals: CheckoutTotalsDTO{
			Subtotal:          int64(totals.Subtotal),
			Surcharge:         int64(totals.Surcharge),
			GrandTotal:        int64(totals.GrandTotal),
			GrandTotalDisplay: money.FormatPrice(totals.GrandTotal),
			MaxMonthlyPayment: int64(totals.MaxMonthlyPayment),
		},
		FieldErrors:  session.FieldErrors,
		ErrorMessage: session.ErrorMessage,
		OrderID:      session.OrderID,
		SignURL:      session.SignURL,
	}
	if totals.MaxMonthlyPayment > 0 {
		resp.Totals.MaxMonthlyDisplay = money.FormatPrice(totals.MaxMonthlyPayment)
	}
	return resp
}
