// Package session owns the authentication and signup state machine. It
// produces an authenticated identity which the account client consumes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smart-atm/smart_atm/internal/bankapi"
	"github.com/smart-atm/smart_atm/internal/status"
)

// State is a position in the auth state machine.
type State string

const (
	StateAnonymous         State = "anonymous"
	StateAuthenticating    State = "authenticating"
	StateCollectingDetails State = "collecting_signup_details"
	StateOtpRequested      State = "otp_requested"
	StateOtpVerified       State = "otp_verified"
	StateAuthenticated     State = "authenticated"
)

// Mode is the user's current intent on the auth screen.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

var (
	// ErrEmailRequired is a local validation failure; no network call is made.
	ErrEmailRequired = errors.New("email is required")

	// ErrAlreadyAuthenticated rejects auth operations on a live session.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
)

// Fallback messages when the server supplies none.
const (
	msgLoginFallback   = "Error connecting to server"
	msgSendOTPFallback = "Error sending OTP"
	msgVerifyFallback  = "Error verifying OTP"
	msgOTPSent         = "OTP sent to your email!"
	msgSignupComplete  = "Signup successful! You can now log in."
)

const defaultResetDelay = 1500 * time.Millisecond

// Identity is the authenticated principal handed to the account client. It
// lives for exactly one session.
type Identity struct {
	Username string
}

// Manager drives the login and OTP-gated signup flows. Credentials pass
// through call arguments only and are never retained.
type Manager struct {
	api    *bankapi.Client
	status *status.Channel
	logger *slog.Logger

	// resetDelay defers the post-signup return to the login screen so the
	// server's confirmation stays visible for a beat.
	resetDelay time.Duration

	mu       sync.Mutex
	state    State
	mode     Mode
	identity *Identity
}

// NewManager builds a manager in the anonymous state with login intent.
func NewManager(api *bankapi.Client, st *status.Channel, logger *slog.Logger) *Manager {
	return &Manager{
		api:        api,
		status:     st,
		logger:     logger,
		resetDelay: defaultResetDelay,
		state:      StateAnonymous,
		mode:       ModeLogin,
	}
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the current auth intent.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Identity returns the authenticated identity, or nil.
func (m *Manager) Identity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Login submits credentials. Success yields the session identity; failure
// leaves the machine anonymous and publishes the server message. No retry is
// attempted.
func (m *Manager) Login(ctx context.Context, username, password string) (*Identity, error) {
	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		return nil, ErrAlreadyAuthenticated
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	message, err := m.api.Login(ctx, username, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateAnonymous
		m.publishFailure(err, msgLoginFallback)
		return nil, err
	}

	m.identity = &Identity{Username: username}
	m.state = StateAuthenticated
	if message != "" {
		m.status.Publish(message)
	}
	m.logger.Info("session authenticated", "username", username)
	return m.identity, nil
}

// RequestOTP reserves the email for a one-time signup code (phase one of the
// signup handshake). An empty email fails locally without a network call.
func (m *Manager) RequestOTP(ctx context.Context, email string) error {
	if email == "" {
		m.status.Publish("Enter a valid email first!")
		return ErrEmailRequired
	}

	if err := m.api.SendOTP(ctx, email); err != nil {
		m.publishFailure(err, msgSendOTPFallback)
		return err
	}

	m.mu.Lock()
	m.state = StateOtpRequested
	m.mu.Unlock()
	m.status.Publish(msgOTPSent)
	return nil
}

// VerifySignup presents all signup fields plus the code (phase two). Success
// returns the machine to anonymous login intent after a short delay, with a
// persistent confirmation; failure stays in the OTP-requested state.
func (m *Manager) VerifySignup(ctx context.Context, username, email, password, otp, pin string) error {
	message, err := m.api.VerifySignup(ctx, bankapi.SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
		OTP:      otp,
		PIN:      pin,
	})
	if err != nil {
		m.publishFailure(err, msgVerifyFallback)
		return err
	}

	m.mu.Lock()
	m.state = StateOtpVerified
	m.mu.Unlock()
	if message != "" {
		m.status.Publish(message)
	}

	time.AfterFunc(m.resetDelay, func() {
		m.mu.Lock()
		if m.state != StateOtpVerified {
			m.mu.Unlock()
			return
		}
		m.state = StateAnonymous
		m.mode = ModeLogin
		m.mu.Unlock()
		m.status.PublishPersistent(msgSignupComplete)
	})
	return nil
}

// ToggleMode switches between login and signup intent. Any in-progress signup
// state is fully abandoned: OTP progress is reset and the status cleared.
func (m *Manager) ToggleMode() {
	m.mu.Lock()
	if m.mode == ModeLogin {
		m.mode = ModeSignup
		m.state = StateCollectingDetails
	} else {
		m.mode = ModeLogin
		m.state = StateAnonymous
	}
	m.mu.Unlock()
	m.status.Clear()
}

// Logout destroys the identity and returns to the anonymous state.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity != nil {
		m.logger.Info("session terminated", "username", m.identity.Username)
	}
	m.identity = nil
	m.state = StateAnonymous
	m.mode = ModeLogin
}

// publishFailure surfaces the server message when present, otherwise the
// fallback.
func (m *Manager) publishFailure(err error, fallback string) {
	if msg, ok := bankapi.ServerMessage(err); ok {
		m.status.Publish(msg)
		return
	}
	m.status.Publish(fallback)
}
