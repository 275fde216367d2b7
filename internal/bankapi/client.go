// Package bankapi implements the HTTP/JSON contract of the remote account
// service. It knows nothing about session or account state; it only shapes
// requests, decodes responses and classifies failures.
package bankapi

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
)

// Client is a thin wrapper over the account service endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds an API client for the service rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SignupRequest carries all fields of the signup verification phase. The
// server checks the OTP atomically against the reserved email.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
	PIN      string `json:"pin"`
}

// BalanceResponse is the raw /balance payload. Transactions are kept as
// loosely-typed records; the caller normalizes them.
type BalanceResponse struct {
	Balance      float64          `json:"balance"`
	Transactions []map[string]any `json:"transactions"`
}

// apiMessage covers the two field names the service uses interchangeably for
// human-readable responses.
type apiMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (m apiMessage) text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}

// Login submits credentials and returns the server greeting on success.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out apiMessage
	err := c.postJSON(ctx, "/login", map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return "", err
	}
	return out.text(), nil
}

// SendOTP reserves an email for a one-time signup code.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/send_otp", map[string]string{"email": email}, nil)
}

// VerifySignup presents all signup fields plus the emailed code atomically.
func (c *Client) VerifySignup(ctx context.Context, req SignupRequest) (string, error) {
	var out apiMessage
	if err := c.postJSON(ctx, "/verify_otp", req, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// FetchBalance returns the server's current balance and raw transaction
// history for the logged-in account.
func (c *Client) FetchBalance(ctx context.Context) (BalanceResponse, error) {
	var out BalanceResponse
	if err := c.getJSON(ctx, "/balance", &out); err != nil {
		return BalanceResponse{}, err
	}
	return out, nil
}

// Deposit credits the account.
func (c *Client) Deposit(ctx context.Context, amount float64) (string, error) {
	var out apiMessage
	if err := c.postJSON(ctx, "/deposit", map[string]any{"amount": amount}, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// Withdraw debits the account, gated by the secondary PIN.
func (c *Client) Withdraw(ctx context.Context, amount float64, pin string) (string, error) {
	var out apiMessage
	if err := c.postJSON(ctx, "/withdraw", map[string]any{"amount": amount, "pin": pin}, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// Transfer moves funds to another account, gated by the secondary PIN.
func (c *Client) Transfer(ctx context.Context, toUser string, amount float64, pin string) (string, error) {
	var out apiMessage
	body := map[string]any{"to_user": toUser, "amount": amount, "pin": pin}
	if err := c.postJSON(ctx, "/transfer", body, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// DownloadCSV streams the transaction history export.
func (c *Client) DownloadCSV(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download_csv", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Message: decodeMessage(data)}
	}
	return data, nil
}

// Rate submits the exit rating. The response body is ignored.
func (c *Client) Rate(ctx context.Context, rating int) error {
	return c.postJSON(ctx, "/rate", map[string]int{"rating": rating}, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Non-2xx bodies are parsed as JSON when possible; anything
		// unparsable degrades to an empty message.
		return &StatusError{Code: resp.StatusCode, Message: decodeMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", ErrUnreachable, err)
	}
	return nil
}

func decodeMessage(data []byte) string {
	var msg apiMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ""
	}
	return msg.text()
}
