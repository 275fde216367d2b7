package account

import "errors"

// Local validation failures. None of these ever reaches the network.
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrPINRequired       = errors.New("PIN is required")
	ErrRecipientRequired = errors.New("recipient is required")
	ErrNoTransactions    = errors.New("no transaction history available")

	// ErrBusy rejects a second operation while one is in flight. Concurrent
	// attempts are refused, never queued.
	ErrBusy = errors.New("another operation is in progress")

	// ErrSettled rejects resuming or abandoning a pending operation twice.
	ErrSettled = errors.New("operation already settled")
)
