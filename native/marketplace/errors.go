package marketplace

import (
	"errors"
	"fmt"

	nativecommon "nftmarket/native/common"
)

var (
	errNilState    = errors.New("marketplace engine: state not configured")
	errNilRegistry = errors.New("marketplace engine: asset registry not configured")
	errNilFunds    = errors.New("marketplace engine: funds transfer not configured")
	errNilPolicy   = errors.New("marketplace engine: policy not initialised")
)

// Admission errors.
var (
	ErrPaused      = nativecommon.ErrModulePaused
	ErrBlacklisted = nativecommon.ErrBlacklisted
)

// Precondition errors.
var (
	ErrInvalidPrice        = errors.New("marketplace: invalid price")
	ErrNotOwner            = errors.New("marketplace: caller does not own asset")
	ErrNotApproved         = errors.New("marketplace: marketplace not approved for asset")
	ErrInvalidEndTime      = errors.New("marketplace: auction end time must be in the future")
	ErrInvalidSaleMode     = errors.New("marketplace: invalid sale mode")
	ErrNotListed           = errors.New("marketplace: asset not listed")
	ErrListingNotActive    = fmt.Errorf("%w: listing not active", ErrNotListed)
	ErrNotSeller           = errors.New("marketplace: caller is not the seller")
	ErrBidExists           = errors.New("marketplace: auction already has a bid")
	ErrWrongSaleType       = errors.New("marketplace: listing is not a fixed price sale")
	ErrWrongPayment        = errors.New("marketplace: payment does not match price")
	ErrNotAuction          = errors.New("marketplace: listing is not an auction")
	ErrAuctionEnded        = errors.New("marketplace: auction ended")
	ErrAuctionStillRunning = errors.New("marketplace: auction still running")
	ErrBidTooLow           = errors.New("marketplace: bid too low")
	ErrBidTooHigh          = errors.New("marketplace: bid too high")
)

// Admin errors.
var (
	ErrUnauthorized       = errors.New("marketplace: caller is not the marketplace owner")
	ErrFeeTooHigh         = errors.New("marketplace: trading fee exceeds cap")
	ErrZeroAddress        = errors.New("marketplace: zero address")
	ErrNothingToWithdraw  = errors.New("marketplace: nothing to withdraw")
	ErrAlreadyInitialised = errors.New("marketplace: policy already initialised")
)

// Execution errors.
var (
	ErrTransferFailed        = errors.New("marketplace: funds transfer failed")
	ErrCustodyTransferFailed = errors.New("marketplace: custody transfer failed")
	ErrReentrantCall         = errors.New("marketplace: reentrant call")
	ErrInvariantViolated     = errors.New("marketplace: escrow invariant violated")
)
