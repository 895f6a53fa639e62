package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/ErezMalka/bite-checkout-signing/internal/plans"
	"github.com/ErezMalka/bite-checkout-signing/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	products map[int64]*domain.Product
	images   map[int64][]*domain.ProductImage
	planRows []plans.PlanRow

	createErr error
	upserts   []plans.PlanRow
	nextID    int64
}

func newRepoMock() *repoMock {
	return &repoMock{
		products: make(map[int64]*domain.Product),
		images:   make(map[int64][]*domain.ProductImage),
		nextID:   1,
	}
}

func (m *repoMock) FetchPlans(_ context.Context, productIDs []int64) ([]plans.PlanRow, error) {
	var out []plans.PlanRow
	for _, row := range m.planRows {
		for _, id := range productIDs {
			if row.ProductID == id {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (m *repoMock) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *repoMock) ListProducts(_ context.Context, activeOnly bool) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *repoMock) CreateProduct(_ context.Context, p *domain.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = m.nextID
	m.nextID++
	m.products[p.ID] = p
	return nil
}

func (m *repoMock) UpdateProduct(_ context.Context, p *domain.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *repoMock) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *repoMock) AddProductImage(_ context.Context, img *domain.ProductImage) error {
	if _, ok := m.products[img.ProductID]; !ok {
		return repository.ErrProductNotFound
	}
	img.ID = m.nextID
	m.nextID++
	m.images[img.ProductID] = append(m.images[img.ProductID], img)
	return nil
}

func (m *repoMock) ListProductImages(_ context.Context, productID int64) ([]*domain.ProductImage, error) {
	return m.images[productID], nil
}

func (m *repoMock) DeleteProductImage(_ context.Context, _ int64) error {
	return nil
}

func (m *repoMock) UpsertPlan(_ context.Context, productID int64, installments int, surchargePct float64) error {
	m.upserts = append(m.upserts, plans.PlanRow{
		ProductID:    productID,
		Installments: installments,
		SurchargePct: surchargePct,
	})
	return nil
}

func (m *repoMock) CreateOrderDraft(_ context.Context, _ *domain.OrderDraft) error { return nil }
func (m *repoMock) UpdateOrderDraftStatus(_ context.Context, _ string, _ domain.OrderStatus, _ string) error {
	return nil
}
func (m *repoMock) GetOrderDraft(_ context.Context, _ string) (*domain.OrderDraft, error) {
	return nil, repository.ErrDraftNotFound
}
func (m *repoMock) Close() error { return nil }

type imageStoreMock struct {
	saved   []string
	removed []string
}

func (m *imageStoreMock) Save(_ int64, filename string, _ io.Reader) (string, error) {
	url := "/static/images/" + filename
	m.saved = append(m.saved, url)
	return url, nil
}

func (m *imageStoreMock) Remove(url string) error {
	m.removed = append(m.removed, url)
	return nil
}

func newProductFixture() (*ProductHandler, *repoMock, *imageStoreMock) {
	repo := newRepoMock()
	images := &imageStoreMock{}
	return NewProductHandler(repo, images, nil, 5*time.Second), repo, images
}

func TestProductList_ActiveOnly(t *testing.T) {
	handler, repo, _ := newProductFixture()
	repo.products[1] = &domain.Product{ID: 1, Name: "Blender", Price: 10000, Active: true}
	repo.products[2] = &domain.Product{ID: 2, Name: "Old Kettle", Price: 5000, Active: false}

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp ProductsResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Blender", resp.Products[0].Name)
	assert.Equal(t, "₪100", resp.Products[0].PriceDisplay)
}

func TestProductGet_IncludesPlans(t *testing.T) {
	handler, repo, _ := newProductFixture()
	repo.products[1] = &domain.Product{ID: 1, Name: "Blender", Price: 10000, Active: true}
	repo.planRows = []plans.PlanRow{
		{ProductID: 1, Installments: 3, SurchargePct: 0.02},
		{ProductID: 1, Installments: 12, SurchargePct: 0.08},
	}

	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest("GET", "/1", nil), "id", "1")
	handler.Get(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp ProductResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	require.Len(t, resp.Plans, 2)
	assert.Equal(t, 0.08, resp.Plans[1].SurchargePct)
}

func TestProductGet_NotFound(t *testing.T) {
	handler, _, _ := newProductFixture()

	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest("GET", "/9", nil), "id", "9")
	handler.Get(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestProductCreate_Success(t *testing.T) {
	handler, repo, _ := newProductFixture()

	body, _ := json.Marshal(ProductRequestDTO{
		SKU:         "BLND-100",
		Name:        "Blender",
		Description: "A good blender",
		Price:       10000,
	})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, recorder.Code)
	require.Len(t, repo.products, 1)
	assert.True(t, repo.products[1].Active)
	assert.Equal(t, domain.DefaultCurrency, repo.products[1].Currency)
}

func TestProductCreate_ValidationErrors(t *testing.T) {
	handler, repo, _ := newProductFixture()

	body, _ := json.Marshal(ProductRequestDTO{
		SKU:   "bad sku!",
		Name:  "B",
		Price: -5,
	})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "sku")
	assert.Contains(t, resp.Fields, "name")
	assert.Contains(t, resp.Fields, "price")
	assert.Empty(t, repo.products)
}

func TestProductCreate_SanitizesMarkup(t *testing.T) {
	handler, repo, _ := newProductFixture()

	body, _ := json.Marshal(ProductRequestDTO{
		SKU:   "BLND-100",
		Name:  "Blender <script>alert(1)</script>",
		Price: 10000,
	})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "Blender", repo.products[1].Name)
}

func TestProductCreate_DuplicateSKU(t *testing.T) {
	handler, repo, _ := newProductFixture()
	repo.createErr = repository.ErrDuplicateSKU

	body, _ := json.Marshal(ProductRequestDTO{SKU: "BLND-100", Name: "Blender", Price: 10000})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, httptest.NewRequest("POST", "/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestUpsertPlan_Success(t *testing.T) {
	handler, repo, _ := newProductFixture()
	repo.products[1] = &domain.Product{ID: 1, Name: "Blender", Active: true}

	body, _ := json.Marshal(PlanRequestDTO{Installments: 6, SurchargePct: 0.04})
	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest("PUT", "/1/plans", bytes.NewReader(body)), "id", "1")
	handler.UpsertPlan(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, repo.upserts, 1)
	assert.Equal(t, 6, repo.upserts[0].Installments)
}

func TestUpsertPlan_InvalidInstallments(t *testing.T) {
	handler, _, _ := newProductFixture()

	body, _ := json.Marshal(PlanRequestDTO{Installments: 7, SurchargePct: 0.04})
	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest("PUT", "/1/plans", bytes.NewReader(body)), "id", "1")
	handler.UpsertPlan(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUpsertPlan_SurchargeOutOfRange(t *testing.T) {
	handler, _, _ := newProductFixture()

	body, _ := json.Marshal(PlanRequestDTO{Installments: 6, SurchargePct: 1.5})
	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest("PUT", "/1/plans", bytes.NewReader(body)), "id", "1")
	handler.UpsertPlan(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func multipartImage(t *testing.T, fieldContentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo.jpg"`)
	header.Set("Content-Type", fieldContentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	part.Write([]byte("fake image bytes"))
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func TestUploadImage_Success(t *testing.T) {
	handler, repo, images := newProductFixture()
	repo.products[1] = &domain.Product{ID: 1, Name: "Blender", Active: true}

	body, contentType := multipartImage(t, "image/jpeg")
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/1/images", body)
	request.Header.Set("Content-Type", contentType)
	request = withURLParam(request, "id", "1")

	handler.UploadImage(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)
	require.Len(t, images.saved, 1)
	require.Len(t, repo.images[1], 1)
}

func TestUploadImage_UnsupportedType(t *testing.T) {
	handler, repo, _ := newProductFixture()
	repo.products[1] = &domain.Product{ID: 1, Name: "Blender", Active: true}

	body, contentType := multipartImage(t, "application/pdf")
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/1/images", body)
	request.Header.Set("Content-Type", contentType)
	request = withURLParam(request, "id", "1")

	handler.UploadImage(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUploadImage_TooManyImages(t *testing.T) {
	handler, repo, _ := newProductFixture()
	repo.products[1] = &domain.Product{ID: 1, Name: "Blender", Active: true}
	for i := 0; i < maxImagesPerItem; i++ {
		repo.images[1] = append(repo.images[1], &domain.ProductImage{ProductID: 1})
	}

	body, contentType := multipartImage(t, "image/jpeg")
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/1/images", body)
	request.Header.Set("Content-Type", contentType)
	request = withURLParam(request, "id", "1")

	handler.UploadImage(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
