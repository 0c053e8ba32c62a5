package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"nftmarket/core/events"
	"nftmarket/crypto"
)

// WithdrawPending pays out the caller's pending withdrawal balance, built up
// from payouts the caller rejected while the engine ran with PayoutCredit.
// It is not subject to the pause switch or the blacklist.
func (e *Engine) WithdrawPending(ctx context.Context, caller [20]byte) (*big.Int, error) {
	var paid *big.Int
	err := e.run(ctx, "withdraw_pending", func(ctx context.Context, op *operation) error {
		op.annotate(zap.String("caller", crypto.Format(crypto.AccountPrefix, caller)))
		pending, err := e.state.PayoutCreditGet(caller)
		if err != nil {
			return err
		}
		if pending.Sign() <= 0 {
			return ErrNothingToWithdraw
		}
		if err := e.state.PayoutCreditPut(caller, big.NewInt(0)); err != nil {
			return err
		}
		if err := e.funds.Transfer(ctx, e.address, caller, cloneBigInt(pending)); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		op.emit(events.PayoutWithdrawn{Recipient: caller, Amount: cloneBigInt(pending)})
		paid = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// PendingWithdrawal returns the amount addr can claim with WithdrawPending.
func (e *Engine) PendingWithdrawal(ctx context.Context, addr [20]byte) (*big.Int, error) {
	var pending *big.Int
	err := e.query(ctx, func() error {
		var err error
		pending, err = e.state.PayoutCreditGet(addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}
