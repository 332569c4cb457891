package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"collections-engine/internal/config"
	"collections-engine/internal/infrastructure/monitoring"
	"collections-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// Client creates payment links through the Razorpay payment-links API.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.RazorpayConfig, logger *slog.Logger) *Client {
	if logger == nil {
		panic("logger cannot be nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &Client{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "RazorpayClient"),
	}
}

type paymentLinkRequest struct {
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	AcceptPartial  bool                   `json:"accept_partial"`
	Description    string                 `json:"description"`
	Customer       paymentLinkCustomer    `json:"customer"`
	Notify         map[string]bool        `json:"notify"`
	ReminderEnable bool                   `json:"reminder_enable"`
}

type paymentLinkCustomer struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type paymentLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

// CreatePaymentLink creates a short payment URL for the given installment
// amount. The amount is converted to the currency's minor unit (paise).
func (c *Client) CreatePaymentLink(ctx context.Context, name, contact string, amount decimal.Decimal) (string, error) {
	payload := paymentLinkRequest{
		Amount:        amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:      "INR",
		AcceptPartial: false,
		Description:   fmt.Sprintf("EMI payment for %s", name),
		Customer: paymentLinkCustomer{
			Name:    name,
			Contact: contact,
		},
		Notify:         map[string]bool{"sms": true, "email": false},
		ReminderEnable: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling payment link request: %w", apperrors.ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_links", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %w", apperrors.ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	c.logger.InfoContext(ctx, "Creating payment link", slog.String("contact", contact))
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Payment link request failed", slog.Any("error", err))
		return "", fmt.Errorf("%w: %w", apperrors.ErrGateway, err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", apperrors.ErrGateway, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "Payment link rejected", slog.Int("status", httpResp.StatusCode))
		return "", fmt.Errorf("%w: payment link creation failed with status %d", apperrors.ErrGateway, httpResp.StatusCode)
	}

	var resp paymentLinkResponse
	if err := json.Unmarshal(rawBody, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", apperrors.ErrGateway, err)
	}
	if resp.ShortURL == "" {
		return "", fmt.Errorf("%w: payment link response missing short_url", apperrors.ErrGateway)
	}

	monitoring.RecordPaymentLinkCreated()
	c.logger.InfoContext(ctx, "Payment link created", slog.String("id", resp.ID))
	return resp.ShortURL, nil
}
