package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"nftmarket/core/events"
	"nftmarket/crypto"
)

// InitPolicy stores the initial policy. feeRecipient defaults to owner when
// zero. It fails once a policy exists.
func (e *Engine) InitPolicy(ctx context.Context, owner, feeRecipient [20]byte, feeBps uint32) error {
	return e.run(ctx, "init", func(ctx context.Context, op *operation) error {
		if _, exists, err := e.state.PolicyGet(); err != nil {
			return err
		} else if exists {
			return ErrAlreadyInitialised
		}
		if owner == ([20]byte{}) {
			return ErrZeroAddress
		}
		if feeBps > MaxTradingFeeBps {
			return ErrFeeTooHigh
		}
		if feeRecipient == ([20]byte{}) {
			feeRecipient = owner
		}
		op.annotate(zap.String("owner", crypto.Format(crypto.AccountPrefix, owner)))
		return e.state.PolicyPut(&Policy{Owner: owner, FeeRecipient: feeRecipient, TradingFeeBps: feeBps})
	})
}

// admin runs fn as an owner-only operation. Admin operations ignore the pause
// switch so a paused marketplace can still be administered.
func (e *Engine) admin(ctx context.Context, name string, caller [20]byte, fn func(ctx context.Context, op *operation, policy *Policy) error) error {
	return e.run(ctx, name, func(ctx context.Context, op *operation) error {
		op.annotate(zap.String("caller", crypto.Format(crypto.AccountPrefix, caller)))
		policy, err := e.loadPolicy()
		if err != nil {
			return err
		}
		if caller != policy.Owner {
			return ErrUnauthorized
		}
		return fn(ctx, op, policy)
	})
}

// SetPaused toggles the owner pause switch.
func (e *Engine) SetPaused(ctx context.Context, caller [20]byte, paused bool) error {
	return e.admin(ctx, "set_paused", caller, func(_ context.Context, op *operation, policy *Policy) error {
		policy.Paused = paused
		if err := e.state.PolicyPut(policy); err != nil {
			return err
		}
		op.emit(events.PauseChanged{Paused: paused, By: caller})
		return nil
	})
}

// SetBlacklist adds addr to or removes it from the blacklist.
func (e *Engine) SetBlacklist(ctx context.Context, caller [20]byte, addr [20]byte, blacklisted bool) error {
	return e.admin(ctx, "set_blacklist", caller, func(_ context.Context, op *operation, _ *Policy) error {
		if err := e.state.BlacklistPut(addr, blacklisted); err != nil {
			return err
		}
		op.annotate(zap.String("target", crypto.Format(crypto.AccountPrefix, addr)), zap.Bool("blacklisted", blacklisted))
		op.emit(events.BlacklistUpdated{Address: addr, Blacklisted: blacklisted})
		return nil
	})
}

// SetTradingFee updates the trading fee, capped at MaxTradingFeeBps.
func (e *Engine) SetTradingFee(ctx context.Context, caller [20]byte, bps uint32) error {
	return e.admin(ctx, "set_trading_fee", caller, func(_ context.Context, op *operation, policy *Policy) error {
		if bps > MaxTradingFeeBps {
			return fmt.Errorf("%w: %d bps", ErrFeeTooHigh, bps)
		}
		previous := policy.TradingFeeBps
		policy.TradingFeeBps = bps
		if err := e.state.PolicyPut(policy); err != nil {
			return err
		}
		op.emit(events.TradingFeeUpdated{PreviousBps: previous, Bps: bps})
		return nil
	})
}

// SetFeeRecipient changes where trading fees are paid.
func (e *Engine) SetFeeRecipient(ctx context.Context, caller [20]byte, recipient [20]byte) error {
	return e.admin(ctx, "set_fee_recipient", caller, func(_ context.Context, op *operation, policy *Policy) error {
		if recipient == ([20]byte{}) {
			return ErrZeroAddress
		}
		previous := policy.FeeRecipient
		policy.FeeRecipient = recipient
		if err := e.state.PolicyPut(policy); err != nil {
			return err
		}
		op.emit(events.FeeRecipientChanged{Previous: previous, Current: recipient})
		return nil
	})
}

// TransferOwnership hands the admin role to newOwner.
func (e *Engine) TransferOwnership(ctx context.Context, caller [20]byte, newOwner [20]byte) error {
	return e.admin(ctx, "transfer_ownership", caller, func(_ context.Context, op *operation, policy *Policy) error {
		if newOwner == ([20]byte{}) {
			return ErrZeroAddress
		}
		previous := policy.Owner
		policy.Owner = newOwner
		if err := e.state.PolicyPut(policy); err != nil {
			return err
		}
		op.emit(events.OwnershipTransferred{Previous: previous, Current: newOwner})
		return nil
	})
}

// Withdraw sends the vault surplus to the owner. Escrowed bids and pending
// withdrawals are never part of the surplus.
func (e *Engine) Withdraw(ctx context.Context, caller [20]byte) (*big.Int, error) {
	var withdrawn *big.Int
	err := e.admin(ctx, "withdraw", caller, func(ctx context.Context, op *operation, policy *Policy) error {
		surplus, err := e.surplus()
		if err != nil {
			return err
		}
		if surplus.Sign() <= 0 {
			return ErrNothingToWithdraw
		}
		if err := e.funds.Transfer(ctx, e.address, policy.Owner, cloneBigInt(surplus)); err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		op.annotate(zap.String("amount", surplus.String()))
		op.emit(events.FeesWithdrawn{Recipient: policy.Owner, Amount: cloneBigInt(surplus)})
		withdrawn = surplus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// surplus is the vault balance minus escrowed bids and pending withdrawals.
func (e *Engine) surplus() (*big.Int, error) {
	balance, err := e.funds.BalanceOf(e.address)
	if err != nil {
		return nil, err
	}
	reserved, err := e.reserved()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(balance, reserved), nil
}

func (e *Engine) reserved() (*big.Int, error) {
	total := big.NewInt(0)
	if err := e.state.ListingIterate(func(l *Listing) error {
		if l.Mode == Auction && l.HasBid() {
			total.Add(total, l.HighestBid)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := e.state.PayoutCreditIterate(func(_ [20]byte, amount *big.Int) error {
		total.Add(total, amount)
		return nil
	}); err != nil {
		return nil, err
	}
	return total, nil
}

// Policy returns a copy of the current policy.
func (e *Engine) Policy(ctx context.Context) (*Policy, error) {
	var policy *Policy
	err := e.query(ctx, func() error {
		var err error
		policy, err = e.loadPolicy()
		return err
	})
	if err != nil {
		return nil, err
	}
	return policy.Clone(), nil
}

// IsBlacklisted reports whether addr is barred from listing, buying and
// bidding.
func (e *Engine) IsBlacklisted(ctx context.Context, addr [20]byte) (bool, error) {
	var listed bool
	err := e.query(ctx, func() error {
		var err error
		listed, err = e.state.BlacklistGet(addr)
		return err
	})
	return listed, err
}

// WithdrawableFees returns the amount Withdraw would currently transfer.
func (e *Engine) WithdrawableFees(ctx context.Context) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var surplus *big.Int
	err := e.query(ctx, func() error {
		var err error
		surplus, err = e.surplus()
		return err
	})
	if err != nil {
		return nil, err
	}
	if surplus.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return surplus, nil
}
