package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPClient implements PaymentGateway over the provider's JSON API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a gateway client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Authorize places a hold and returns the provider's authorization id.
func (c *HTTPClient) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	var result struct {
		AuthorizationID string `json:"authorization_id"`
	}
	if err := c.post(ctx, "/authorizations", req, &result); err != nil {
		return "", err
	}
	if result.AuthorizationID == "" {
		return "", fmt.Errorf("gateway: empty authorization id")
	}

	return result.AuthorizationID, nil
}

// Capture settles a hold.
func (c *HTTPClient) Capture(ctx context.Context, authorizationID string, amount decimal.Decimal) error {
	payload := map[string]any{
		"authorization_id": authorizationID,
		"amount":           amount,
	}
	return c.post(ctx, "/captures", payload, nil)
}

// Refund releases or reverses a hold.
func (c *HTTPClient) Refund(ctx context.Context, authorizationID string, amount decimal.Decimal) error {
	payload := map[string]any{
		"authorization_id": authorizationID,
		"amount":           amount,
	}
	return c.post(ctx, "/refunds", payload, nil)
}

// Payout transfers funds out to a bank account.
func (c *HTTPClient) Payout(ctx context.Context, req PayoutRequest) (string, error) {
	var result struct {
		PayoutID string `json:"payout_id"`
	}
	if err := c.post(ctx, "/payouts", req, &result); err != nil {
		return "", err
	}
	if result.PayoutID == "" {
		return "", fmt.Errorf("gateway: empty payout id")
	}

	return result.PayoutID, nil
}

// post sends a JSON request and decodes the response into out (if non-nil).
func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("gateway: base URL is not set: %w", ErrUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway: status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("gateway: status %d: %v: %w", resp.StatusCode, errorBody, ErrDeclined)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("gateway: decode response %w", err)
		}
	}

	return nil
}
