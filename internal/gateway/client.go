// Package gateway содержит клиент внешнего платёжного шлюза.
// Ядро использует только интерфейс Client; протокольные детали шлюза
// остаются за его пределами.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound = errors.New("payment not found in gateway")
)

// PaymentStatus - статус платежа на стороне шлюза.
type PaymentStatus string

const (
	StatusCreated  PaymentStatus = "created"
	StatusCaptured PaymentStatus = "captured"
	StatusFailed   PaymentStatus = "failed"
)

// Client - интерфейс платёжного шлюза, потребляемый леджером.
type Client interface {
	CreateEscrowOrder(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	FetchPaymentStatus(ctx context.Context, gatewayPaymentID string) (PaymentStatus, error)
}

// HTTPClient реализует Client поверх HTTP API шлюза.
type HTTPClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewHTTPClient создаёт HTTP-клиент шлюза.
func NewHTTPClient(baseURL, secret string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type createOrderRequest struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateEscrowOrder регистрирует эскроу-заказ в шлюзе и возвращает его идентификатор.
func (c *HTTPClient) CreateEscrowOrder(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway base url: %w", err)
	}
	u.Path = u.Path + "/api/orders"

	body, err := json.Marshal(createOrderRequest{
		Amount:   amount.String(),
		Currency: currency,
		Notes:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected gateway status: %d", resp.StatusCode)
	}

	var payload createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	return payload.ID, nil
}

// VerifySignature проверяет подпись шлюза локально по общему секрету.
func (c *HTTPClient) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type paymentStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// FetchPaymentStatus запрашивает статус платежа у шлюза.
func (c *HTTPClient) FetchPaymentStatus(ctx context.Context, gatewayPaymentID string) (PaymentStatus, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway base url: %w", err)
	}
	u.Path = fmt.Sprintf("%s/api/payments/%s", u.Path, gatewayPaymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload paymentStatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", fmt.Errorf("decode payment status: %w", err)
		}
		return PaymentStatus(payload.Status), nil
	case http.StatusNotFound:
		return "", ErrPaymentNotFound
	default:
		return "", fmt.Errorf("unexpected gateway status: %d", resp.StatusCode)
	}
}
