package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/money"
	"github.com/ErezMalka/bite-checkout-signing/internal/plans"
	"github.com/ErezMalka/bite-checkout-signing/internal/repository"
	"github.com/ErezMalka/bite-checkout-signing/internal/validate"
	"github.com/go-chi/chi/v5"
)

const (
	maxImageSize     = 5 << 20
	maxImagesPerItem = 10
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type ProductHandler struct {
	repo    repository.RepoInterface
	images  ImageStore
	cache   plans.ScheduleCache
	timeout time.Duration
}

func NewProductHandler(repo repository.RepoInterface, images ImageStore, cache plans.ScheduleCache, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		repo:    repo,
		images:  images,
		cache:   cache,
		timeout: timeout,
	}
}

type ProductRequestDTO struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Active      *bool  `json:"active"`
}

type ProductResponseDTO struct {
	ID           int64                  `json:"id"`
	SKU          string                 `json:"sku"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Price        int64                  `json:"price"`
	PriceDisplay string                 `json:"price_display"`
	Currency     string                 `json:"currency"`
	Active       bool                   `json:"active"`
	Images       []*domain.ProductImage `json:"images,omitempty"`
	Plans        []PlanResponseDTO      `json:"plans,omitempty"`
}

type ProductsResponseDTO struct {
	Products []ProductResponseDTO `json:"products"`
}

type PlanRequestDTO struct {
	Installments int     `json:"installments"`
	SurchargePct float64 `json:"surcharge_pct"`
}

type PlanResponseDTO struct {
	Installments int     `json:"installments"`
	SurchargePct float64 `json:"surcharge_pct"`
}

func toProductResponse(p *domain.Product) ProductResponseDTO {
	return ProductResponseDTO{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Description:  p.Description,
		Price:        int64(p.Price),
		PriceDisplay: money.FormatPrice(p.Price),
		Currency:     p.Currency,
		Active:       p.Active,
	}
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.repo.ListProducts(ctx, true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}

	out := make([]ProductResponseDTO, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	respondJSON(w, http.StatusOK, ProductsResponseDTO{Products: out})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	resp := toProductResponse(product)

	if images, err := h.repo.ListProductImages(ctx, id); err == nil {
		resp.Images = images
	}
	if rows, err := h.repo.FetchPlans(ctx, []int64{id}); err == nil {
		for _, row := range rows {
			resp.Plans = append(resp.Plans, PlanResponseDTO{
				Installments: row.Installments,
				SurchargePct: row.SurchargePct,
			})
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/admin/products
func (h *ProductHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.repo.ListProducts(ctx, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}

	out := make([]ProductResponseDTO, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	respondJSON(w, http.StatusOK, ProductsResponseDTO{Products: out})
}

// POST /api/v1/admin/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, fields := productFromRequest(&req)
	if len(fields) > 0 {
		respondFieldErrors(w, fields)
		return
	}

	if err := h.repo.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			respondError(w, http.StatusConflict, "duplicate_sku", "a product with this SKU already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create product")
		return
	}

	respondJSON(w, http.StatusCreated, toProductResponse(product))
}

// PUT /api/v1/admin/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req ProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, fields := productFromRequest(&req)
	if len(fields) > 0 {
		respondFieldErrors(w, fields)
		return
	}
	product.ID = id

	if err := h.repo.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		if errors.Is(err, repository.ErrDuplicateSKU) {
			respondError(w, http.StatusConflict, "duplicate_sku", "a product with this SKU already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update product")
		return
	}

	respondJSON(w, http.StatusOK, toProductResponse(product))
}

// DELETE /api/v1/admin/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete product")
		return
	}

	h.invalidatePlans(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/admin/products/{id}/plans
func (h *ProductHandler) UpsertPlan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req PlanRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if !domain.ValidInstallments(req.Installments) {
		respondError(w, http.StatusBadRequest, "invalid_installments",
			fmt.Sprintf("installments must be one of %v", domain.InstallmentOptions))
		return
	}
	if req.SurchargePct < 0 || req.SurchargePct >= 1 {
		respondError(w, http.StatusBadRequest, "invalid_surcharge", "surcharge_pct must be in [0, 1)")
		return
	}

	if err := h.repo.UpsertPlan(ctx, id, req.Installments, req.SurchargePct); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save payment plan")
		return
	}

	// Stale schedules must not outlive the change.
	h.invalidatePlans(r.Context(), id)
	respondJSON(w, http.StatusOK, PlanResponseDTO{
		Installments: req.Installments,
		SurchargePct: req.SurchargePct,
	})
}

// POST /api/v1/admin/products/{id}/images
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	existing, err := h.repo.ListProductImages(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list images")
		return
	}
	if len(existing) >= maxImagesPerItem {
		respondError(w, http.StatusBadRequest, "too_many_images",
			fmt.Sprintf("a product may have at most %d images", maxImagesPerItem))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		respondError(w, http.StatusBadRequest, "image_too_large", "image must be at most 5MB")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_image", "image file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		respondError(w, http.StatusBadRequest, "unsupported_image_type",
			"image must be jpeg, png, webp, or gif")
		return
	}

	url, err := h.images.Save(id, header.Filename, file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to store image")
		return
	}

	img := &domain.ProductImage{
		ProductID: id,
		URL:       url,
		Position:  len(existing),
	}
	if err := h.repo.AddProductImage(ctx, img); err != nil {
		h.images.Remove(url)
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save image")
		return
	}

	respondJSON(w, http.StatusCreated, img)
}

// DELETE /api/v1/admin/products/{id}/images/{image_id}
func (h *ProductHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, ok := parseProductID(w, r); !ok {
		return
	}

	imageIDStr := chi.URLParam(r, "image_id")
	imageID, err := strconv.ParseInt(imageIDStr, 10, 64)
	if err != nil || imageID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_image_id", "image_id must be a positive integer")
		return
	}

	if err := h.repo.DeleteProductImage(ctx, imageID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete image")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) invalidatePlans(ctx context.Context, productID int64) {
	if h.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.cache.Delete(cctx, productID); err != nil {
		// Cache entries expire on their own; a failed invalidation only
		// delays visibility.
		return
	}
}

func productFromRequest(req *ProductRequestDTO) (*domain.Product, map[string]string) {
	fields := make(map[string]string)

	name := validate.SanitizeText(req.Name)
	if len(name) < validate.MinProductNameLen || len(name) > validate.MaxProductNameLen {
		fields["name"] = fmt.Sprintf("name must be %d-%d characters",
			validate.MinProductNameLen, validate.MaxProductNameLen)
	}

	description := validate.SanitizeText(req.Description)
	if len(description) > validate.MaxDescriptionLen {
		fields["description"] = fmt.Sprintf("description must be at most %d characters",
			validate.MaxDescriptionLen)
	}

	if !validate.IsValidSKU(req.SKU) {
		fields["sku"] = "sku may only contain letters, digits, and dashes"
	}
	if !validate.IsValidPrice(float64(req.Price)) || req.Price <= 0 || req.Price > validate.MaxPriceAgorot {
		fields["price"] = "price must be a positive amount in agorot"
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if len(fields) > 0 {
		return nil, fields
	}

	return &domain.Product{
		SKU:         req.SKU,
		Name:        name,
		Description: description,
		Price:       money.Amount(req.Price),
		Currency:    currency,
		Active:      active,
	}, nil
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return 0, false
	}
	return id, true
}
