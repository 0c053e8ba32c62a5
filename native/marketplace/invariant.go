package marketplace

import (
	"context"
	"fmt"
)

// verifyEscrow checks, for every key the operation touched, that a listing
// exists exactly when the registry records the marketplace as the owner.
func (e *Engine) verifyEscrow(ctx context.Context, op *operation) error {
	for key := range op.touched {
		if err := e.checkEscrow(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkEscrow(ctx context.Context, key ListingKey) error {
	_, listed, err := e.state.ListingGet(key)
	if err != nil {
		return err
	}
	id := key.AssetID
	owner, err := e.registry.OwnerOf(ctx, key.Collection, &id)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvariantViolated, key, err)
	}
	escrowed := owner == e.address
	if listed != escrowed {
		return fmt.Errorf("%w: %s listed=%t escrowed=%t", ErrInvariantViolated, key, listed, escrowed)
	}
	return nil
}

// VerifyEscrow runs the escrow invariant check for a single asset outside of
// any operation.
func (e *Engine) VerifyEscrow(ctx context.Context, key ListingKey) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.query(ctx, func() error {
		return e.checkEscrow(ctx, key)
	})
}
