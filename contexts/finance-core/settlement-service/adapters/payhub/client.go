package payhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainerrors "chorus/contexts/finance-core/settlement-service/domain/errors"
	"chorus/contexts/finance-core/settlement-service/ports"

	"github.com/cenkalti/backoff/v4"
)

const defaultTimeout = 15 * time.Second

// Config holds the provider connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the mobile-money processor over HTTP. Every call is
// bounded by the configured timeout; transport failures surface as
// ErrProviderUnavailable so callers can tell "no answer" from "rejected".
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type paymentBody struct {
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	PhoneNumber   string `json:"phone_number"`
	Network       string `json:"network"`
	Note          string `json:"narration,omitempty"`
}

type statusBody struct {
	TransactionID string `json:"transaction_id"`
}

type providerReply struct {
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func (c *Client) Collect(ctx context.Context, req ports.PaymentRequest) (ports.ProviderResponse, error) {
	return c.post(ctx, "/collections", paymentBody{
		TransactionID: req.TransactionID,
		Amount:        minorToDecimal(req.AmountMinor),
		PhoneNumber:   req.PhoneNumber,
		Network:       req.Network,
		Note:          req.Note,
	})
}

func (c *Client) Disburse(ctx context.Context, req ports.PaymentRequest) (ports.ProviderResponse, error) {
	return c.post(ctx, "/disbursements", paymentBody{
		TransactionID: req.TransactionID,
		Amount:        minorToDecimal(req.AmountMinor),
		PhoneNumber:   req.PhoneNumber,
		Network:       req.Network,
		Note:          req.Note,
	})
}

// CheckStatus is read-only, so transient transport failures are retried with
// exponential backoff before giving up. Submission calls are never retried
// here; duplicates are the state machine's concern.
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (ports.ProviderResponse, error) {
	var response ports.ProviderResponse
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.Retry(func() error {
		var err error
		response, err = c.post(ctx, "/status-check", statusBody{TransactionID: transactionID})
		if err == nil {
			return nil
		}
		if isUnavailable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	return response, err
}

func (c *Client) post(ctx context.Context, path string, body any) (ports.ProviderResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return ports.ProviderResponse{}, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return ports.ProviderResponse{}, err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(request)
	if err != nil {
		c.logger.Error("provider request failed",
			"event", "payhub_request_failed",
			"module", "finance-core/settlement-service",
			"layer", "adapter",
			"path", path,
			"error", err.Error(),
		)
		return ports.ProviderResponse{}, fmt.Errorf("%w: %v", domainerrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("%w: %v", domainerrors.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return ports.ProviderResponse{}, fmt.Errorf("%w: http %d", domainerrors.ErrProviderUnavailable, resp.StatusCode)
	}

	var reply providerReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.StatusCode == "" {
		c.logger.Error("provider response malformed",
			"event", "payhub_response_malformed",
			"module", "finance-core/settlement-service",
			"layer", "adapter",
			"path", path,
			"http_status", resp.StatusCode,
		)
		return ports.ProviderResponse{}, domainerrors.ErrProviderResponseInvalid
	}
	return ports.ProviderResponse{
		Code:    reply.StatusCode,
		Message: reply.StatusMessage,
		Raw:     string(raw),
	}, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, domainerrors.ErrProviderUnavailable)
}

func minorToDecimal(amountMinor int64) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d", sign, amountMinor/100, amountMinor%100)
}

var _ ports.PaymentProvider = (*Client)(nil)
