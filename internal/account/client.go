// Package account is the client-side source of truth for one session's
// balance and transaction history. It serializes mutating requests against
// the account service and reconciles local state by re-fetching after every
// confirmed mutation; balances are never adjusted optimistically.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/smart-atm/smart_atm/internal/bankapi"
	"github.com/smart-atm/smart_atm/internal/session"
	"github.com/smart-atm/smart_atm/internal/status"
	"github.com/smart-atm/smart_atm/internal/transaction"
)

// Status messages, kept aligned with the production demo UI strings.
const (
	msgInvalidAmount     = "Enter a valid positive amount"
	msgRecipientRequired = "Enter recipient username"
	msgPINRequired       = "PIN is required"
	msgUnreachable       = "Server unreachable"
	msgFetchFailed       = "Failed to fetch balance"
	msgConnectFailed     = "Failed to connect"
	msgActionFailed      = "Action failed"
	msgDeposited         = "Deposited successfully"
	msgWithdrawn         = "Withdrawn successfully"
	msgTransferred       = "Transfer successful"
	msgNoHistory         = "No transaction history available yet."
	msgCSVDownloaded     = "CSV downloaded successfully!"
	msgCSVFailed         = "Error downloading CSV."
)

// Snapshot is the client's copy of the server account state. It is replaced
// wholesale on every reconciliation; the server is the sole source of truth.
type Snapshot struct {
	Balance      float64
	Transactions []transaction.Transaction
}

// Client owns the account snapshot for one authenticated identity and
// enforces the at-most-one-in-flight operation discipline.
type Client struct {
	api      *bankapi.Client
	status   *status.Channel
	logger   *slog.Logger
	identity *session.Identity

	mu       sync.Mutex
	busy     bool
	snapshot Snapshot
}

// New builds an account client for an authenticated identity. The caller is
// expected to reconcile immediately via FetchBalance.
func New(api *bankapi.Client, st *status.Channel, logger *slog.Logger, identity *session.Identity) *Client {
	return &Client{
		api:      api,
		status:   st,
		logger:   logger,
		identity: identity,
		snapshot: Snapshot{Transactions: []transaction.Transaction{}},
	}
}

// Snapshot returns a copy of the current account state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Snapshot{Balance: c.snapshot.Balance}
	out.Transactions = append([]transaction.Transaction(nil), c.snapshot.Transactions...)
	return out
}

// Username returns the owning identity's username.
func (c *Client) Username() string {
	return c.identity.Username
}

// FetchBalance replaces the local snapshot with the server's current state.
// Any fetch failure zeroes the balance and empties the history rather than
// leaving stale data displayed. Note the server contract conflates "account
// empty" with "server unreachable" on this path; that behavior is reproduced
// deliberately.
func (c *Client) FetchBalance(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	return c.reconcile(ctx)
}

// Deposit credits the account. Validation is local; the balance change is
// observed only through the reconciliation fetch that follows server
// confirmation.
func (c *Client) Deposit(ctx context.Context, amount float64) error {
	if err := validateAmount(amount); err != nil {
		c.status.Publish(msgInvalidAmount)
		return err
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	message, err := c.api.Deposit(ctx, amount)
	if err != nil {
		c.publishFailure(err)
		return err
	}
	c.publishSuccess(message, msgDeposited)
	c.reconcileAfterMutation(ctx)
	return nil
}

// BeginWithdraw validates the amount and suspends a withdrawal awaiting the
// PIN. The busy flag is held until the pending operation is resumed or
// abandoned.
func (c *Client) BeginWithdraw(amount float64) (*PendingOperation, error) {
	if err := validateAmount(amount); err != nil {
		c.status.Publish(msgInvalidAmount)
		return nil, err
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	return &PendingOperation{client: c, kind: OpWithdraw, amount: amount}, nil
}

// BeginTransfer validates recipient then amount, in that order, and suspends
// a transfer awaiting the PIN.
func (c *Client) BeginTransfer(recipient string, amount float64) (*PendingOperation, error) {
	if recipient == "" {
		c.status.Publish(msgRecipientRequired)
		return nil, ErrRecipientRequired
	}
	if err := validateAmount(amount); err != nil {
		c.status.Publish(msgInvalidAmount)
		return nil, err
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	return &PendingOperation{client: c, kind: OpTransfer, amount: amount, recipient: recipient}, nil
}

// ExportCSV downloads the server's transaction export and writes it to
// <username>_transactions.csv under dir. An empty local history fails
// locally without a network call.
func (c *Client) ExportCSV(ctx context.Context, dir string) (string, error) {
	c.mu.Lock()
	empty := len(c.snapshot.Transactions) == 0
	c.mu.Unlock()
	if empty {
		c.status.Publish(msgNoHistory)
		return "", ErrNoTransactions
	}

	data, err := c.api.DownloadCSV(ctx)
	if err != nil {
		c.status.Publish(msgCSVFailed)
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_transactions.csv", c.identity.Username))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.status.Publish(msgCSVFailed)
		return "", err
	}
	c.status.Publish(msgCSVDownloaded)
	return path, nil
}

// reconcile fetches and installs the server state. Callers hold the busy
// flag, which guarantees the fetch observes the server after any mutation
// that triggered it.
func (c *Client) reconcile(ctx context.Context) error {
	resp, err := c.api.FetchBalance(ctx)
	if err != nil {
		c.mu.Lock()
		c.snapshot = Snapshot{Transactions: []transaction.Transaction{}}
		c.mu.Unlock()

		if errors.Is(err, bankapi.ErrUnreachable) {
			c.status.Publish(msgUnreachable)
		} else if msg, ok := bankapi.ServerMessage(err); ok {
			c.status.Publish(msg)
		} else {
			c.status.Publish(msgFetchFailed)
		}
		return err
	}

	c.mu.Lock()
	c.snapshot = Snapshot{
		Balance:      resp.Balance,
		Transactions: transaction.NormalizeAll(resp.Transactions),
	}
	c.mu.Unlock()
	return nil
}

// reconcileAfterMutation refreshes state after a confirmed mutation. The
// mutation already succeeded server-side, so a failed refresh is surfaced via
// the status channel but does not fail the operation.
func (c *Client) reconcileAfterMutation(ctx context.Context) {
	if err := c.reconcile(ctx); err != nil {
		c.logger.Warn("reconciliation fetch failed after mutation", "error", err)
	}
}

func (c *Client) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Client) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Client) publishSuccess(serverMessage, fallback string) {
	if serverMessage != "" {
		c.status.Publish(serverMessage)
		return
	}
	c.status.Publish(fallback)
}

func (c *Client) publishFailure(err error) {
	if errors.Is(err, bankapi.ErrUnreachable) {
		c.status.Publish(msgConnectFailed)
		return
	}
	if msg, ok := bankapi.ServerMessage(err); ok {
		c.status.Publish(msg)
		return
	}
	c.status.Publish(msgActionFailed)
}

// validateAmount accepts only finite positive numbers.
func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
