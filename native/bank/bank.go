package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	ErrInvalidAmount     = errors.New("bank: amount must be positive")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrRecipientRejected = errors.New("bank: recipient rejected transfer")
	errNilState          = errors.New("bank: state not configured")
)

type balanceState interface {
	Balance(addr [20]byte) (*big.Int, error)
	SetBalance(addr [20]byte, amount *big.Int) error
}

type revertible interface {
	Snapshot() int
	RevertToSnapshot(int)
}

// ReceiveHook is invoked after funds are credited to a hooked recipient.
// Returning an error rejects the transfer, which is then rolled back. The
// context is the one supplied to Transfer so a hook may call back into the
// component that initiated the payment. Such callbacks must use that context:
// the marketplace engine recognises its own operation through it, and a
// callback on any other context waits on the lock the payment's operation
// holds.
type ReceiveHook func(ctx context.Context, from [20]byte, amount *big.Int) error

// Bank moves native value between accounts held in a balance store.
type Bank struct {
	state balanceState
	mu    sync.RWMutex
	hooks map[[20]byte]ReceiveHook
}

// New creates a bank operating on the provided balance store.
func New(state balanceState) *Bank {
	return &Bank{state: state, hooks: make(map[[20]byte]ReceiveHook)}
}

// SetReceiveHook installs hook for addr. Passing nil removes it.
func (b *Bank) SetReceiveHook(addr [20]byte, hook ReceiveHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hook == nil {
		delete(b.hooks, addr)
		return
	}
	b.hooks[addr] = hook
}

func (b *Bank) hook(addr [20]byte) ReceiveHook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hooks[addr]
}

// BalanceOf returns the balance of addr.
func (b *Bank) BalanceOf(addr [20]byte) (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	return b.state.Balance(addr)
}

// Deposit credits amount to addr out of thin air. Intended for sandboxes and
// tests.
func (b *Bank) Deposit(addr [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := b.state.Balance(addr)
	if err != nil {
		return err
	}
	return b.state.SetBalance(addr, new(big.Int).Add(balance, amount))
}

// Transfer moves amount from one account to another. Either the debit, the
// credit and the recipient hook all succeed or the balances are left
// untouched.
func (b *Bank) Transfer(ctx context.Context, from, to [20]byte, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	snapshot := b.Snapshot()
	if err := b.move(from, to, amount); err != nil {
		b.RevertToSnapshot(snapshot)
		return err
	}
	if hook := b.hook(to); hook != nil {
		if err := hook(ctx, from, new(big.Int).Set(amount)); err != nil {
			b.RevertToSnapshot(snapshot)
			return fmt.Errorf("%w: %w", ErrRecipientRejected, err)
		}
	}
	return nil
}

func (b *Bank) move(from, to [20]byte, amount *big.Int) error {
	fromBalance, err := b.state.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBalance, amount)
	}
	if from == to {
		return nil
	}
	if err := b.state.SetBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := b.state.Balance(to)
	if err != nil {
		return err
	}
	return b.state.SetBalance(to, new(big.Int).Add(toBalance, amount))
}

// Snapshot returns a revision of the underlying store when it supports
// journaling.
func (b *Bank) Snapshot() int {
	if r, ok := b.state.(revertible); ok {
		return r.Snapshot()
	}
	return 0
}

// RevertToSnapshot rolls the underlying store back to id.
func (b *Bank) RevertToSnapshot(id int) {
	if r, ok := b.state.(revertible); ok {
		r.RevertToSnapshot(id)
	}
}
