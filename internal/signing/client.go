package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client creates order drafts at the external document-signing service.
type Client interface {
	CreateOrderDraft(ctx context.Context, customer domain.CustomerInfo, order domain.OrderPayload) (*DraftResult, error)
}

type DraftResult struct {
	OrderID string `json:"order_id"`
	SignURL string `json:"sign_url"`
}

type createRequest struct {
	Customer domain.CustomerInfo `json:"customer"`
	Order    domain.OrderPayload `json:"order"`
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*DraftResult]
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	breaker := gobreaker.NewCircuitBreaker[*DraftResult](gobreaker.Settings{
		Name:    "signing-service",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

func (c *HTTPClient) CreateOrderDraft(ctx context.Context, customer domain.CustomerInfo, order domain.OrderPayload) (*DraftResult, error) {
	return c.breaker.Execute(func() (*DraftResult, error) {
		return c.doCreate(ctx, customer, order)
	})
}

func (c *HTTPClient) doCreate(ctx context.Context, customer domain.CustomerInfo, order domain.OrderPayload) (*DraftResult, error) {
	body, err := json.Marshal(createRequest{
		Customer: customer,
		Order:    order,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal signing request: %w", err)
	}

	url := c.baseURL + "/api/signing/create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("signing service returned status %d", resp.StatusCode)
	}

	var result DraftResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode signing response: %w", err)
	}

	return &result, nil
}
