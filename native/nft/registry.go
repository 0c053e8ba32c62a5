package nft

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

var (
	ErrNonexistentAsset = errors.New("nft: asset does not exist")
	ErrAlreadyMinted    = errors.New("nft: asset already minted")
	ErrNotOwner         = errors.New("nft: from is not the owner")
	ErrUnauthorized     = errors.New("nft: operator not authorized")
	ErrZeroAddress      = errors.New("nft: zero address")
	ErrReceiverRejected = errors.New("nft: receiver rejected asset")
	errNilState         = errors.New("nft: state not configured")
)

type registryState interface {
	NFTOwner(collection [20]byte, assetID [32]byte) ([20]byte, bool, error)
	NFTSetOwner(collection [20]byte, assetID [32]byte, owner [20]byte) error
	NFTApproval(collection [20]byte, assetID [32]byte) ([20]byte, bool, error)
	NFTSetApproval(collection [20]byte, assetID [32]byte, operator [20]byte, clear bool) error
	NFTOperatorApproved(collection, owner, operator [20]byte) (bool, error)
	NFTSetOperatorApproved(collection, owner, operator [20]byte, approved bool) error
}

type revertible interface {
	Snapshot() int
	RevertToSnapshot(int)
}

// ReceiveHook is invoked after an asset is moved to a hooked recipient.
// Returning an error rejects the transfer. ctx is the context supplied to
// TransferFrom; callbacks into the operator that moved the asset must use it,
// since the marketplace engine deadlocks on a callback made under any other
// context.
type ReceiveHook func(ctx context.Context, collection [20]byte, assetID *uint256.Int, from [20]byte) error

// Registry records asset ownership and approvals for any number of
// collections and moves custody on behalf of authorized operators.
type Registry struct {
	state registryState
	mu    sync.RWMutex
	hooks map[[20]byte]ReceiveHook
}

// NewRegistry creates a registry backed by the provided store.
func NewRegistry(state registryState) *Registry {
	return &Registry{state: state, hooks: make(map[[20]byte]ReceiveHook)}
}

// SetReceiveHook installs hook for recipient. Passing nil removes it.
func (r *Registry) SetReceiveHook(recipient [20]byte, hook ReceiveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook == nil {
		delete(r.hooks, recipient)
		return
	}
	r.hooks[recipient] = hook
}

func (r *Registry) hook(addr [20]byte) ReceiveHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks[addr]
}

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return errNilState
	}
	return nil
}

// Mint creates a new asset owned by to.
func (r *Registry) Mint(collection [20]byte, assetID *uint256.Int, to [20]byte) error {
	if err := r.ready(); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	id := assetID.Bytes32()
	if _, exists, err := r.state.NFTOwner(collection, id); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, assetID.Dec())
	}
	return r.state.NFTSetOwner(collection, id, to)
}

// OwnerOf returns the current owner of the asset.
func (r *Registry) OwnerOf(_ context.Context, collection [20]byte, assetID *uint256.Int) ([20]byte, error) {
	if err := r.ready(); err != nil {
		return [20]byte{}, err
	}
	owner, exists, err := r.state.NFTOwner(collection, assetID.Bytes32())
	if err != nil {
		return [20]byte{}, err
	}
	if !exists {
		return [20]byte{}, fmt.Errorf("%w: %s", ErrNonexistentAsset, assetID.Dec())
	}
	return owner, nil
}

// GetApproved returns the per-asset approved operator, or the zero address.
func (r *Registry) GetApproved(ctx context.Context, collection [20]byte, assetID *uint256.Int) ([20]byte, error) {
	if _, err := r.OwnerOf(ctx, collection, assetID); err != nil {
		return [20]byte{}, err
	}
	operator, _, err := r.state.NFTApproval(collection, assetID.Bytes32())
	return operator, err
}

// IsApprovedForAll reports whether operator holds blanket approval over the
// owner's assets in collection.
func (r *Registry) IsApprovedForAll(_ context.Context, collection, owner, operator [20]byte) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	return r.state.NFTOperatorApproved(collection, owner, operator)
}

// IsApproved reports whether operator may move the asset on owner's behalf,
// either through a per-asset approval or a blanket operator approval.
func (r *Registry) IsApproved(ctx context.Context, collection [20]byte, assetID *uint256.Int, owner, operator [20]byte) (bool, error) {
	approved, err := r.GetApproved(ctx, collection, assetID)
	if err != nil {
		return false, err
	}
	if approved == operator && operator != ([20]byte{}) {
		return true, nil
	}
	return r.IsApprovedForAll(ctx, collection, owner, operator)
}

// Approve grants operator the right to move a single asset. The caller must
// be the owner or one of its blanket operators. The zero operator clears the
// approval.
func (r *Registry) Approve(ctx context.Context, caller [20]byte, collection [20]byte, assetID *uint256.Int, operator [20]byte) error {
	owner, err := r.OwnerOf(ctx, collection, assetID)
	if err != nil {
		return err
	}
	if caller != owner {
		allowed, err := r.state.NFTOperatorApproved(collection, owner, caller)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrUnauthorized
		}
	}
	return r.state.NFTSetApproval(collection, assetID.Bytes32(), operator, operator == ([20]byte{}))
}

// SetApprovalForAll grants or revokes blanket approval for operator over the
// caller's assets in collection.
func (r *Registry) SetApprovalForAll(_ context.Context, caller [20]byte, collection [20]byte, operator [20]byte, approved bool) error {
	if err := r.ready(); err != nil {
		return err
	}
	if operator == ([20]byte{}) {
		return ErrZeroAddress
	}
	return r.state.NFTSetOperatorApproved(collection, caller, operator, approved)
}

// TransferFrom moves the asset from its owner to a new holder. The operator
// must be the owner or approved by it. Per-asset approval is cleared on
// every transfer.
func (r *Registry) TransferFrom(ctx context.Context, operator [20]byte, collection [20]byte, assetID *uint256.Int, from, to [20]byte) error {
	owner, err := r.OwnerOf(ctx, collection, assetID)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if operator != owner {
		approved, err := r.IsApproved(ctx, collection, assetID, owner, operator)
		if err != nil {
			return err
		}
		if !approved {
			return ErrUnauthorized
		}
	}
	snapshot := r.Snapshot()
	id := assetID.Bytes32()
	if err := r.state.NFTSetApproval(collection, id, [20]byte{}, true); err != nil {
		r.RevertToSnapshot(snapshot)
		return err
	}
	if err := r.state.NFTSetOwner(collection, id, to); err != nil {
		r.RevertToSnapshot(snapshot)
		return err
	}
	if hook := r.hook(to); hook != nil {
		if err := hook(ctx, collection, new(uint256.Int).Set(assetID), from); err != nil {
			r.RevertToSnapshot(snapshot)
			return fmt.Errorf("%w: %w", ErrReceiverRejected, err)
		}
	}
	return nil
}

// Snapshot returns a revision of the underlying store when it supports
// journaling.
func (r *Registry) Snapshot() int {
	if j, ok := r.state.(revertible); ok {
		return j.Snapshot()
	}
	return 0
}

// RevertToSnapshot rolls the underlying store back to id.
func (r *Registry) RevertToSnapshot(id int) {
	if j, ok := r.state.(revertible); ok {
		j.RevertToSnapshot(id)
	}
}
