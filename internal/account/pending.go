package account

import (
	"context"
	"sync"
)

// OpKind identifies a PIN-gated mutation.
type OpKind string

const (
	OpWithdraw OpKind = "withdraw"
	OpTransfer OpKind = "transfer"
)

// PendingOperation is a validated mutation suspended while the PIN is
// collected. It holds the owning client's busy flag from creation until it is
// resumed or abandoned, so no other operation can interleave. The interactive
// PIN prompt of the UI becomes this explicit two-step protocol.
type PendingOperation struct {
	client    *Client
	kind      OpKind
	amount    float64
	recipient string

	mu      sync.Mutex
	settled bool
}

// Kind reports which mutation is suspended.
func (p *PendingOperation) Kind() OpKind { return p.kind }

// Amount reports the validated amount.
func (p *PendingOperation) Amount() float64 { return p.amount }

// Recipient reports the transfer target, empty for withdrawals.
func (p *PendingOperation) Recipient() string { return p.recipient }

// Resume supplies the PIN and performs the suspended mutation. An empty PIN
// is a local validation failure: the operation is released without any
// network call. On server confirmation the client reconciles before the busy
// flag is dropped.
func (p *PendingOperation) Resume(ctx context.Context, pin string) error {
	if err := p.settle(); err != nil {
		return err
	}
	defer p.client.release()

	if pin == "" {
		p.client.status.Publish(msgPINRequired)
		return ErrPINRequired
	}

	var (
		message string
		err     error
	)
	switch p.kind {
	case OpTransfer:
		message, err = p.client.api.Transfer(ctx, p.recipient, p.amount, pin)
	default:
		message, err = p.client.api.Withdraw(ctx, p.amount, pin)
	}
	if err != nil {
		p.client.publishFailure(err)
		return err
	}

	fallback := msgWithdrawn
	if p.kind == OpTransfer {
		fallback = msgTransferred
	}
	p.client.publishSuccess(message, fallback)
	p.client.reconcileAfterMutation(ctx)
	return nil
}

// Abandon cancels the pending mutation and releases the busy flag. Nothing is
// sent to the account service.
func (p *PendingOperation) Abandon() error {
	if err := p.settle(); err != nil {
		return err
	}
	p.client.release()
	return nil
}

func (p *PendingOperation) settle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return ErrSettled
	}
	p.settled = true
	return nil
}
