package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

// Request describes one mobile-money payout.
type Request struct {
	PhoneNumber string
	Country     string
	AmountUSD   float64
	UserID      string
	IntentID    string
}

// Result is the typed outcome of a payout attempt. The gateway never returns
// a Go error: the provider has a well-defined error envelope, and a failed
// payout is an expected result, not an exception.
type Result struct {
	Success        bool
	PayoutID       string
	ProviderStatus string
	Error          string
}

// Gateway is the engine-facing contract of the off-ramp provider.
type Gateway interface {
	Payout(ctx context.Context, req Request) Result
}

// Client calls the payout provider's HTTP API.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a payout client. An empty apiURL yields a disabled
// client whose payouts fail with a configuration message.
func NewClient(apiURL, apiKey string, log logger.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: log,
	}
}

// Enabled reports whether the provider is configured.
func (c *Client) Enabled() bool {
	return c.apiURL != "" && c.apiKey != ""
}

type payoutEntry struct {
	PhoneNumber string            `json:"phoneNumber"`
	ValueInUSD  float64           `json:"valueInUSD"`
	Country     string            `json:"country"`
	Reference   string            `json:"reference"`
	Meta        map[string]string `json:"meta"`
}

type payoutRequestBody struct {
	Payouts []payoutEntry `json:"payouts"`
}

type payoutResponseBody struct {
	Status string `json:"status"`
	Data   struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
	Error string `json:"error"`
}

// Payout submits a mobile-money payout and interprets the provider envelope.
func (c *Client) Payout(ctx context.Context, req Request) Result {
	if !c.Enabled() {
		return Result{Success: false, Error: "payout provider is not configured"}
	}

	body := payoutRequestBody{
		Payouts: []payoutEntry{{
			PhoneNumber: req.PhoneNumber,
			ValueInUSD:  req.AmountUSD,
			Country:     req.Country,
			Reference:   fmt.Sprintf("streampay-%s", req.IntentID),
			Meta: map[string]string{
				"userId":   req.UserID,
				"intentId": req.IntentID,
			},
		}},
	}

	respBody, err := c.post(ctx, "/payouts/mobile-money", body)
	if err != nil {
		c.logger.ErrorWithScope(logger.Payout, "Payout request for intent %s failed: %v", req.IntentID, err)
		return Result{Success: false, Error: err.Error()}
	}

	var resp payoutResponseBody
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to decode provider response: %v", err)}
	}

	if resp.Status != "success" {
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "payout failed"
		}
		return Result{Success: false, Error: errMsg}
	}

	return Result{
		Success:        true,
		PayoutID:       resp.Data.ID,
		ProviderStatus: resp.Data.Status,
	}
}

// BankRequest describes one bank-transfer payout.
type BankRequest struct {
	AccountNumber string
	BankCode      string
	Country       string
	AmountUSD     float64
	UserID        string
	IntentID      string
}

type bankPayoutEntry struct {
	AccountNumber string            `json:"accountNumber"`
	BankCode      string            `json:"bankCode"`
	ValueInUSD    float64           `json:"valueInUSD"`
	Country       string            `json:"country"`
	Reference     string            `json:"reference"`
	Meta          map[string]string `json:"meta"`
}

type bankPayoutRequestBody struct {
	Payouts []bankPayoutEntry `json:"payouts"`
}

// BankPayout submits a bank-transfer payout through the same provider.
func (c *Client) BankPayout(ctx context.Context, req BankRequest) Result {
	if !c.Enabled() {
		return Result{Success: false, Error: "payout provider is not configured"}
	}

	body := bankPayoutRequestBody{
		Payouts: []bankPayoutEntry{{
			AccountNumber: req.AccountNumber,
			BankCode:      req.BankCode,
			ValueInUSD:    req.AmountUSD,
			Country:       req.Country,
			Reference:     fmt.Sprintf("streampay-%s", req.IntentID),
			Meta: map[string]string{
				"userId":   req.UserID,
				"intentId": req.IntentID,
			},
		}},
	}

	respBody, err := c.post(ctx, "/payouts/bank", body)
	if err != nil {
		c.logger.ErrorWithScope(logger.Payout, "Bank payout request for intent %s failed: %v", req.IntentID, err)
		return Result{Success: false, Error: err.Error()}
	}

	var resp payoutResponseBody
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to decode provider response: %v", err)}
	}

	if resp.Status != "success" {
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "payout failed"
		}
		return Result{Success: false, Error: errMsg}
	}

	return Result{
		Success:        true,
		PayoutID:       resp.Data.ID,
		ProviderStatus: resp.Data.Status,
	}
}

// Status fetches the provider-side status of a previously submitted payout.
func (c *Client) Status(ctx context.Context, payoutID string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("payout provider is not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/payouts/status?id="+payoutID, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("status request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read status response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var status payoutResponseBody
	if err := json.Unmarshal(respBody, &status); err != nil {
		return "", fmt.Errorf("failed to decode status response: %v", err)
	}
	return status.Data.Status, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The provider reports payout errors inside the envelope; surface
		// whichever message it gave us.
		var envelope payoutResponseBody
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != "" {
			return nil, fmt.Errorf("%s", envelope.Error)
		}
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
