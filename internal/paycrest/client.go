// Package paycrest implements the payment-processor REST client used to
// verify bank recipients, look up token rates and manage payout orders.
package paycrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"NairaOfframp/internal/models"
)

var (
	// ErrRejected means the processor answered with a non-success envelope.
	ErrRejected = errors.New("processor rejected request")
	// ErrUnknownStatus means the processor reported a status outside the
	// documented set. Callers must not treat such an order as usable.
	ErrUnknownStatus = errors.New("unknown order status")
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, retryMax int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    rc.StandardClient(),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Every response wraps its payload in a status envelope.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type verifyAccountRequest struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
}

type verifyAccountData struct {
	AccountName string `json:"accountName"`
}

// VerifyAccount resolves the legal account name for a bank recipient.
func (c *Client) VerifyAccount(ctx context.Context, institution, accountIdentifier string) (string, error) {
	body := verifyAccountRequest{
		Institution:       institution,
		AccountIdentifier: accountIdentifier,
	}
	var data verifyAccountData
	if err := c.call(ctx, http.MethodPost, "/verify-account", body, &data); err != nil {
		return "", err
	}
	if data.AccountName == "" {
		return "", fmt.Errorf("verify account: empty account name")
	}
	return data.AccountName, nil
}

// GetRate fetches the current token to fiat exchange rate for the given
// notional amount. The processor returns the rate either as a JSON number
// or as a numeric string.
func (c *Client) GetRate(ctx context.Context, token string, amount decimal.Decimal, fiat string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/rates/%s/%s/%s", token, amount.String(), fiat)
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return decimal.Zero, err
	}

	rate, err := decimal.NewFromString(strings.Trim(string(raw), `"`))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", string(raw), err)
	}
	if rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive rate %s", rate)
	}
	return rate, nil
}

type Recipient struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
	AccountName       string `json:"accountName"`
	Memo              string `json:"memo,omitempty"`
}

type CreateOrderRequest struct {
	Amount        float64   `json:"amount"`
	Token         string    `json:"token"`
	Network       string    `json:"network"`
	ReturnAddress string    `json:"returnAddress"`
	Reference     string    `json:"reference,omitempty"`
	Recipient     Recipient `json:"recipient"`
}

type CreatedOrder struct {
	ID             string
	ReceiveAddress string
	ValidUntil     time.Time
	Reference      string
	SenderFee      string
	TransactionFee string
}

type createdOrderData struct {
	ID             string `json:"id"`
	ReceiveAddress string `json:"receiveAddress"`
	ValidUntil     string `json:"validUntil"`
	Reference      string `json:"reference"`
	SenderFee      string `json:"senderFee"`
	TransactionFee string `json:"transactionFee"`
}

// CreateOrder submits a payout order. The processor assigns the order id,
// the deposit (receive) address and its validity window.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreatedOrder, error) {
	var data createdOrderData
	if err := c.call(ctx, http.MethodPost, "/sender/orders", req, &data); err != nil {
		return nil, err
	}
	if data.ID == "" || data.ReceiveAddress == "" {
		return nil, fmt.Errorf("create order: incomplete response")
	}

	validUntil, err := time.Parse(time.RFC3339, data.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("parse validUntil %q: %w", data.ValidUntil, err)
	}

	return &CreatedOrder{
		ID:             data.ID,
		ReceiveAddress: data.ReceiveAddress,
		ValidUntil:     validUntil,
		Reference:      data.Reference,
		SenderFee:      data.SenderFee,
		TransactionFee: data.TransactionFee,
	}, nil
}

type orderStatusData struct {
	Status string `json:"status"`
}

// GetOrderStatus queries the live status of an order. Unknown remote
// statuses yield ErrUnknownStatus rather than a guessed mapping.
func (c *Client) GetOrderStatus(ctx context.Context, id string) (models.OrderStatus, error) {
	var data orderStatusData
	if err := c.call(ctx, http.MethodGet, "/sender/orders/"+id, nil, &data); err != nil {
		return "", err
	}

	switch strings.ToLower(data.Status) {
	case "initiated", "pending", "processing":
		return models.OrderInitiated, nil
	case "settled", "fulfilled":
		return models.OrderSettled, nil
	case "refunded", "reverted":
		return models.OrderRefunded, nil
	case "expired", "cancelled":
		return models.OrderExpired, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, data.Status)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status != "success" {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
