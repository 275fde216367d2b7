// Package fakebank is an in-process stand-in for the remote account service.
// It reproduces the observable behavior of the production demo backend
// (endpoints, response shapes, message strings) so the client stack can be
// developed and tested without external infrastructure.
package fakebank

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxDeposit caps a single deposit.
const MaxDeposit = 50000.0

const timestampLayout = "2006-01-02 15:04:05"

// ErrNoSession means no user is logged in; handlers map it to 401.
var ErrNoSession = errors.New("No user logged in")

// User is a stored account record. Transactions are kept as raw records so
// the wire exposes the same heterogeneous shapes the production service does.
type User struct {
	Email        string           `json:"email,omitempty"`
	PasswordHash []byte           `json:"password_hash"`
	PINHash      []byte           `json:"pin_hash"`
	Balance      float64          `json:"balance"`
	Transactions []map[string]any `json:"transactions"`
	Rating       float64          `json:"rating,omitempty"`
	LoggedIn     bool             `json:"logged_in"`
}

// Core holds all account state. Like the production demo it tracks a single
// active session process-wide.
type Core struct {
	store  Store
	logger *slog.Logger

	mu          sync.RWMutex
	users       map[string]*User
	currentUser string
}

// NewCore loads accounts from the store and builds the core.
func NewCore(store Store, logger *slog.Logger) (*Core, error) {
	users, err := store.Load()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]*User)
	}
	return &Core{store: store, logger: logger, users: users}, nil
}

// CreateUser registers an account with hashed credentials. An empty PIN falls
// back to the default "0000".
func (c *Core) CreateUser(username, email, password, pin string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("All fields required")
	}
	if pin == "" {
		pin = "0000"
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.users[username]; exists {
		return errors.New("Username already exists")
	}
	c.users[username] = &User{
		Email:        email,
		PasswordHash: passwordHash,
		PINHash:      pinHash,
		Transactions: []map[string]any{},
	}
	c.persistLocked()
	return nil
}

// Login verifies credentials and makes username the active session.
func (c *Core) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)

	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[username]
	if !ok {
		return "", errors.New("No such user.")
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return "", errors.New("Incorrect password.")
	}

	for _, u := range c.users {
		u.LoggedIn = false
	}
	user.LoggedIn = true
	c.currentUser = username
	c.persistLocked()
	return fmt.Sprintf("Welcome back, %s!", username), nil
}

// Balance returns the active session's balance and raw history.
func (c *Core) Balance() (float64, []map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	user, err := c.sessionUserLocked()
	if err != nil {
		return 0, nil, err
	}
	history := append([]map[string]any(nil), user.Transactions...)
	return user.Balance, history, nil
}

// Deposit credits the active account.
func (c *Core) Deposit(amount float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.sessionUserLocked()
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", errors.New("Amount must be positive.")
	}
	if amount > MaxDeposit {
		return "", fmt.Errorf("Deposit exceeds max of %.1f.", MaxDeposit)
	}

	user.Balance += amount
	c.addTransactionLocked(user, "Deposit", amount)
	return fmt.Sprintf("Deposited ₹%.2f. New balance: ₹%.2f", amount, user.Balance), nil
}

// Withdraw debits the active account after verifying the PIN.
func (c *Core) Withdraw(amount float64, pin string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.sessionUserLocked()
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", errors.New("Amount must be positive.")
	}
	if bcrypt.CompareHashAndPassword(user.PINHash, []byte(pin)) != nil {
		return "", errors.New("Incorrect PIN.")
	}
	if amount > user.Balance {
		return "", errors.New("Insufficient funds.")
	}

	user.Balance -= amount
	c.addTransactionLocked(user, "Withdraw", amount)
	return fmt.Sprintf("Withdrew ₹%.2f. New balance: ₹%.2f", amount, user.Balance), nil
}

// Transfer moves funds from the active account to another user. The sender's
// ledger entry carries a negative amount, matching the production service.
func (c *Core) Transfer(toUser string, amount float64, pin string) (string, error) {
	toUser = strings.TrimSpace(toUser)

	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.sessionUserLocked()
	if err != nil {
		return "", err
	}
	recipient, ok := c.users[toUser]
	if !ok {
		return "", errors.New("Recipient not found.")
	}
	if toUser == c.currentUser {
		return "", errors.New("Cannot transfer to yourself.")
	}
	if amount <= 0 {
		return "", errors.New("Amount must be positive.")
	}
	if bcrypt.CompareHashAndPassword(user.PINHash, []byte(pin)) != nil {
		return "", errors.New("Incorrect PIN.")
	}
	if amount > user.Balance {
		return "", errors.New("Insufficient funds.")
	}

	user.Balance -= amount
	recipient.Balance += amount

	ts := time.Now().Format(timestampLayout)
	user.Transactions = append(user.Transactions, map[string]any{
		"id":        uuid.NewString(),
		"type":      fmt.Sprintf("Transfer to %s", toUser),
		"amount":    -amount,
		"timestamp": ts,
		"to":        toUser,
	})
	recipient.Transactions = append(recipient.Transactions, map[string]any{
		"id":        uuid.NewString(),
		"type":      fmt.Sprintf("Transfer from %s", c.currentUser),
		"amount":    amount,
		"timestamp": ts,
	})
	c.persistLocked()
	return fmt.Sprintf("Transferred ₹%.2f to %s. New balance: ₹%.2f", amount, toUser, user.Balance), nil
}

// ChangePIN rotates the secondary credential of the active account.
func (c *Core) ChangePIN(oldPIN, newPIN string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.sessionUserLocked()
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword(user.PINHash, []byte(oldPIN)) != nil {
		return "", errors.New("Incorrect old PIN.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	user.PINHash = hash
	c.persistLocked()
	return "PIN changed successfully.", nil
}

// SubmitRating stores the exit rating against the active account when one is
// still logged in; anonymous ratings are accepted and only logged.
func (c *Core) SubmitRating(rating float64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user, err := c.sessionUserLocked(); err == nil {
		user.Rating = rating
		c.persistLocked()
	} else {
		c.logger.Info("anonymous rating received", "rating", rating)
	}
	return fmt.Sprintf("Thanks for rating us %g!", rating)
}

// CurrentUser returns the active session's username, empty when anonymous.
func (c *Core) CurrentUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentUser
}

func (c *Core) sessionUserLocked() (*User, error) {
	if c.currentUser == "" {
		return nil, ErrNoSession
	}
	user, ok := c.users[c.currentUser]
	if !ok {
		return nil, ErrNoSession
	}
	return user, nil
}

func (c *Core) addTransactionLocked(user *User, txType string, amount float64) {
	user.Transactions = append(user.Transactions, map[string]any{
		"id":        uuid.NewString(),
		"type":      txType,
		"amount":    amount,
		"timestamp": time.Now().Format(timestampLayout),
	})
	c.persistLocked()
}

// persistLocked snapshots all users. Persistence failures are logged, never
// fatal to the request.
func (c *Core) persistLocked() {
	if err := c.store.Save(c.users); err != nil {
		c.logger.Error("persist users", "error", err)
	}
}
