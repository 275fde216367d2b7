package fakebank

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-atm/smart_atm/internal/logging"
)

func newTestServer(t *testing.T) (*Server, OTPStore) {
	t.Helper()
	core, err := NewCore(NewMemoryStore(), logging.Discard())
	require.NoError(t, err)
	otp := NewMemoryOTPStore()
	return NewServer(core, otp, 5*time.Minute, logging.Discard()), otp
}

func postJSON(t *testing.T, srv *Server, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func getPath(t *testing.T, srv *Server, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signupAndLogin(t *testing.T, srv *Server, otp OTPStore, username string) {
	t.Helper()
	email := username + "@example.com"
	require.NoError(t, otp.Put(context.Background(), email, "123456", time.Minute))

	resp := postJSON(t, srv, "/verify_otp", map[string]string{
		"username": username,
		"email":    email,
		"password": "secret",
		"otp":      "123456",
		"pin":      "1234",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/login", map[string]string{"username": username, "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRootEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getPath(t, srv, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ATM stub service is running", body["message"])
}

func TestLoginEndpoint(t *testing.T) {
	srv, otp := newTestServer(t)
	signupAndLogin(t, srv, otp, "alice")

	resp := postJSON(t, srv, "/login", map[string]string{"username": "alice", "password": "wrong"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Incorrect password.", body["error"])

	resp = postJSON(t, srv, "/login", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Welcome back, alice!", body["message"])
}

func TestSendOTPEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/send_otp", map[string]string{"email": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/send_otp", map[string]string{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "OTP sent successfully", body["message"])
}

func TestVerifyOTPEndpoint(t *testing.T) {
	srv, otp := newTestServer(t)
	require.NoError(t, otp.Put(context.Background(), "a@example.com", "123456", time.Minute))

	resp := postJSON(t, srv, "/verify_otp", map[string]string{
		"username": "alice", "email": "a@example.com", "password": "secret", "otp": "999999", "pin": "1234",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invalid OTP", body["error"])

	resp = postJSON(t, srv, "/verify_otp", map[string]string{
		"username": "alice", "email": "a@example.com", "password": "secret", "otp": "123456", "pin": "1234",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Email verified & signup successful!", body["message"])
}

func TestBalanceRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getPath(t, srv, "/balance")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No user logged in", body["message"])
}

func TestMoneyEndpoints(t *testing.T) {
	srv, otp := newTestServer(t)
	signupAndLogin(t, srv, otp, "alice")
	signupAndLogin(t, srv, otp, "bob")
	// bob's login displaced alice; log her back in.
	resp := postJSON(t, srv, "/login", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/deposit", map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 500.0, body["balance"])

	resp = postJSON(t, srv, "/withdraw", map[string]any{"amount": 100, "pin": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "PIN is required", body["message"])

	resp = postJSON(t, srv, "/withdraw", map[string]any{"amount": 1000, "pin": "1234"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Insufficient funds.", body["message"])
	assert.Equal(t, 500.0, body["balance"])

	resp = postJSON(t, srv, "/transfer", map[string]any{"to_user": "bob", "amount": 200, "pin": "1234"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 300.0, body["balance"])

	resp = getPath(t, srv, "/balance")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, 300.0, body["balance"])
	assert.Len(t, body["transactions"], 2)
}

func TestDownloadCSVEndpoint(t *testing.T) {
	srv, otp := newTestServer(t)
	signupAndLogin(t, srv, otp, "alice")

	resp := postJSON(t, srv, "/deposit", map[string]any{"amount": 250})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = getPath(t, srv, "/download_csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Disposition"), "alice_transactions.csv")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Type,Amount,Timestamp", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Deposit,250,"))
}

func TestRateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv, "/rate", map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Thanks for rating us 5!", body["message"])
}

func TestChangePINEndpoint(t *testing.T) {
	srv, otp := newTestServer(t)
	signupAndLogin(t, srv, otp, "alice")

	resp := postJSON(t, srv, "/change_pin", map[string]string{"old_pin": "0000", "new_pin": "4321"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Incorrect old PIN.", body["message"])

	resp = postJSON(t, srv, "/change_pin", map[string]string{"old_pin": "1234", "new_pin": "4321"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "PIN changed successfully.", body["message"])
}
