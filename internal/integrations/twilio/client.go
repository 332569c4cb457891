package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collections-engine/internal/config"
	"collections-engine/internal/infrastructure/monitoring"
	"collections-engine/internal/pkg/apperrors"
)

const apiVersion = "2010-04-01"

// Client is a thin REST client for the Twilio voice and messaging APIs. It
// implements dialer.VoiceGateway and the voice-menu handlers' MessageGateway.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.TwilioConfig, logger *slog.Logger) *Client {
	if logger == nil {
		panic("logger cannot be nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "TwilioClient"),
	}
}

type createResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PlaceCall starts an outbound call that fetches its voice-menu instructions
// from callbackURL. It returns the provider's call SID.
func (c *Client) PlaceCall(ctx context.Context, to, callbackURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Url", callbackURL)

	c.logger.InfoContext(ctx, "Placing outbound call", slog.String("to", to))
	resp, err := c.post(ctx, fmt.Sprintf("/%s/Accounts/%s/Calls.json", apiVersion, c.accountSID), form)
	if err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "Call created", slog.String("sid", resp.SID), slog.String("status", resp.Status))
	return resp.SID, nil
}

// SendSMS sends a text message and returns the provider's message SID.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	c.logger.InfoContext(ctx, "Sending SMS", slog.String("to", to))
	resp, err := c.post(ctx, fmt.Sprintf("/%s/Accounts/%s/Messages.json", apiVersion, c.accountSID), form)
	if err != nil {
		return "", err
	}

	monitoring.RecordSMSSent()
	c.logger.InfoContext(ctx, "SMS created", slog.String("sid", resp.SID), slog.String("status", resp.Status))
	return resp.SID, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*createResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", apperrors.ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Gateway request failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGateway, err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", apperrors.ErrGateway, err)
	}

	var resp createResponse
	if err := json.Unmarshal(rawBody, &resp); err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode gateway response",
			slog.Int("status", httpResp.StatusCode), slog.Any("error", err))
		return nil, fmt.Errorf("%w: decoding response (status %d): %w", apperrors.ErrGateway, httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "Gateway rejected request",
			slog.Int("status", httpResp.StatusCode),
			slog.Int("code", resp.Code),
			slog.String("message", resp.Message))
		return nil, fmt.Errorf("%w: status %d code %d: %s", apperrors.ErrGateway, httpResp.StatusCode, resp.Code, resp.Message)
	}

	return &resp, nil
}
