package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/cart"
	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/repository"
	"github.com/go-chi/chi/v5"
)

// CartService is the slice of cart behavior the HTTP layer needs.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID string, line domain.CartLine) error
	UpdateLine(ctx context.Context, userID string, productID int64, upd cart.LineUpdate) error
	RemoveLine(ctx context.Context, userID string, productID int64) error
	ClearCart(ctx context.Context, userID string) error
}

// ProductLoader resolves a product so cart lines carry a trusted name
// and price instead of client-supplied ones.
type ProductLoader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartHandler struct {
	carts    CartService
	products ProductLoader
	timeout  time.Duration
}

func NewCartHandler(carts CartService, products ProductLoader, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		timeout:  timeout,
	}
}

type AddLineRequestDTO struct {
	ProductID     int64  `json:"product_id"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"payment_method"`
	Installments  int    `json:"installments"`
}

type UpdateLineRequestDTO struct {
	Quantity      *int    `json:"quantity"`
	PaymentMethod *string `json:"payment_method"`
	Installments  *int    `json:"installments"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	userCart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, userCart)
}

// POST /api/v1/cart/lines
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	method, installments, ok := parsePaymentChoice(req.PaymentMethod, req.Installments)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_payment", "unsupported payment method or installment count")
		return
	}

	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}
	if !product.Active {
		respondError(w, http.StatusConflict, "product_inactive", "product is not available")
		return
	}

	line := domain.CartLine{
		ProductID:     product.ID,
		ProductName:   product.Name,
		UnitPrice:     product.Price,
		Quantity:      req.Quantity,
		PaymentMethod: method,
		Installments:  installments,
	}

	if err := h.carts.AddLine(ctx, userID, line); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add line")
		return
	}

	h.respondCart(ctx, w, http.StatusCreated, userID)
}

// PATCH /api/v1/cart/lines/{product_id}
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

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

	if err := h.carts.UpdateLine(ctx, userID, productID, upd); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) || errors.Is(err, cart.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "line not found in cart")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update line")
		return
	}

	h.respondCart(ctx, w, http.StatusOK, userID)
}

// DELETE /api/v1/cart/lines/{product_id}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := parseLineProductID(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveLine(ctx, userID, productID); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) || errors.Is(err, cart.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "line not found in cart")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove line")
		return
	}

	h.respondCart(ctx, w, http.StatusOK, userID)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.ClearCart(ctx, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear cart")
		return
	}

	h.respondCart(ctx, w, http.StatusOK, userID)
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, status int, userID string) {
	userCart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}
	respondJSON(w, status, userCart)
}

func parseLineProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func parsePaymentChoice(method string, installments int) (domain.PaymentMethod, int, bool) {
	switch domain.PaymentMethod(method) {
	case "", domain.PaymentFull:
		return domain.PaymentFull, 1, true
	case domain.PaymentInstallments:
		if installments == 0 {
			installments = 3
		}
		if !domain.ValidInstallments(installments) || installments < 3 {
			return "", 0, false
		}
		return domain.PaymentInstallments, installments, true
	}
	return "", 0, false
}

func lineUpdateFromRequest(req *UpdateLineRequestDTO) (cart.LineUpdate, bool) {
	var upd cart.LineUpdate

	if req.Quantity != nil {
		if *req.Quantity < 1 || *req.Quantity > 99 {
			return upd, false
		}
		upd.Quantity = req.Quantity
	}
	if req.PaymentMethod != nil {
		method := domain.PaymentMethod(*req.PaymentMethod)
		if method != domain.PaymentFull && method != domain.PaymentInstallments {
			return upd, false
		}
		upd.PaymentMethod = &method
	}
	if req.Installments != nil {
		if !domain.ValidInstallments(*req.Installments) {
			return upd, false
		}
		upd.Installments = req.Installments
	}

	return upd, true
}
