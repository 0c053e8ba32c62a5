package events

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"

	"nftmarket/core/types"
	"nftmarket/crypto"
)

const (
	TypeListed               = "marketplace.listed"
	TypePurchase             = "marketplace.purchase"
	TypeCancelled            = "marketplace.cancelled"
	TypeNewBid               = "marketplace.new_bid"
	TypeAuctionFinalized     = "marketplace.auction_finalized"
	TypeFeeRecipientChanged  = "marketplace.fee_recipient_changed"
	TypePauseChanged         = "marketplace.pause_changed"
	TypeBlacklistUpdated     = "marketplace.blacklist_updated"
	TypeTradingFeeUpdated    = "marketplace.trading_fee_updated"
	TypeFeesWithdrawn        = "marketplace.fees_withdrawn"
	TypePayoutCredited       = "marketplace.payout_credited"
	TypePayoutWithdrawn      = "marketplace.payout_withdrawn"
	TypeOwnershipTransferred = "marketplace.ownership_transferred"
)

// Listed is emitted when an asset enters escrow under a new listing.
type Listed struct {
	Collection [20]byte
	AssetID    uint256.Int
	Seller     [20]byte
	Price      *big.Int
	Mode       uint8
	ModeName   string
	EndTime    int64
}

func (Listed) EventType() string { return TypeListed }

func (e Listed) Event() *types.Event {
	attrs := listingAttrs(e.Collection, e.AssetID)
	attrs["seller"] = account(e.Seller)
	attrs["price"] = formatAmount(e.Price)
	attrs["mode"] = strconv.FormatUint(uint64(e.Mode), 10)
	attrs["modeName"] = e.ModeName
	attrs["endTime"] = intToString(e.EndTime)
	return &types.Event{Type: TypeListed, Attributes: attrs}
}

// Purchase is emitted when a fixed price listing is bought.
type Purchase struct {
	Collection   [20]byte
	AssetID      uint256.Int
	Seller       [20]byte
	Buyer        [20]byte
	Price        *big.Int
	Fee          *big.Int
	SellerAmount *big.Int
	FeeRecipient [20]byte
}

func (Purchase) EventType() string { return TypePurchase }

func (e Purchase) Event() *types.Event {
	attrs := listingAttrs(e.Collection, e.AssetID)
	attrs["seller"] = account(e.Seller)
	attrs["buyer"] = account(e.Buyer)
	attrs["price"] = formatAmount(e.Price)
	attrs["fee"] = formatAmount(e.Fee)
	attrs["sellerAmount"] = formatAmount(e.SellerAmount)
	attrs["feeRecipient"] = account(e.FeeRecipient)
	return &types.Event{Type: TypePurchase, Attributes: attrs}
}

// Cancelled is emitted when a seller withdraws a listing.
type Cancelled struct {
	Collection [20]byte
	AssetID    uint256.Int
	Seller     [20]byte
}

func (Cancelled) EventType() string { return TypeCancelled }

func (e Cancelled) Event() *types.Event {
	attrs := listingAttrs(e.Collection, e.AssetID)
	attrs["seller"] = account(e.Seller)
	return &types.Event{Type: TypeCancelled, Attributes: attrs}
}

// NewBid is emitted for every accepted auction bid. PreviousBidder is the zero
// address for the opening bid.
type NewBid struct {
	Collection     [20]byte
	AssetID        uint256.Int
	Bidder         [20]byte
	Amount         *big.Int
	PreviousBidder [20]byte
	PreviousBid    *big.Int
	EndTime        int64
}

func (NewBid) EventType() string { return TypeNewBid }

func (e NewBid) Event() *types.Event {
	attrs := listingAttrs(e.Collection, e.AssetID)
	attrs["bidder"] = account(e.Bidder)
	attrs["amount"] = formatAmount(e.Amount)
	attrs["previousBidder"] = account(e.PreviousBidder)
	attrs["previousBid"] = formatAmount(e.PreviousBid)
	attrs["endTime"] = intToString(e.EndTime)
	return &types.Event{Type: TypeNewBid, Attributes: attrs}
}

// AuctionFinalized is emitted when an ended auction settles. A zero Winner and
// zero Amount denote the no-bid outcome where the asset returns to the seller.
type AuctionFinalized struct {
	Collection   [20]byte
	AssetID      uint256.Int
	Seller       [20]byte
	Winner       [20]byte
	Amount       *big.Int
	Fee          *big.Int
	SellerAmount *big.Int
	FeeRecipient [20]byte
}

func (AuctionFinalized) EventType() string { return TypeAuctionFinalized }

func (e AuctionFinalized) Event() *types.Event {
	attrs := listingAttrs(e.Collection, e.AssetID)
	attrs["seller"] = account(e.Seller)
	attrs["winner"] = account(e.Winner)
	attrs["amount"] = formatAmount(e.Amount)
	attrs["fee"] = formatAmount(e.Fee)
	attrs["sellerAmount"] = formatAmount(e.SellerAmount)
	attrs["feeRecipient"] = account(e.FeeRecipient)
	return &types.Event{Type: TypeAuctionFinalized, Attributes: attrs}
}

type FeeRecipientChanged struct {
	Previous [20]byte
	Current  [20]byte
}

func (FeeRecipientChanged) EventType() string { return TypeFeeRecipientChanged }

func (e FeeRecipientChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeRecipientChanged,
		Attributes: map[string]string{
			"previous": account(e.Previous),
			"current":  account(e.Current),
		},
	}
}

type PauseChanged struct {
	Paused bool
	By     [20]byte
}

func (PauseChanged) EventType() string { return TypePauseChanged }

func (e PauseChanged) Event() *types.Event {
	return &types.Event{
		Type: TypePauseChanged,
		Attributes: map[string]string{
			"paused": strconv.FormatBool(e.Paused),
			"by":     account(e.By),
		},
	}
}

type BlacklistUpdated struct {
	Address     [20]byte
	Blacklisted bool
}

func (BlacklistUpdated) EventType() string { return TypeBlacklistUpdated }

func (e BlacklistUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBlacklistUpdated,
		Attributes: map[string]string{
			"address":     account(e.Address),
			"blacklisted": strconv.FormatBool(e.Blacklisted),
		},
	}
}

type TradingFeeUpdated struct {
	PreviousBps uint32
	Bps         uint32
}

func (TradingFeeUpdated) EventType() string { return TypeTradingFeeUpdated }

func (e TradingFeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeTradingFeeUpdated,
		Attributes: map[string]string{
			"previousBps": strconv.FormatUint(uint64(e.PreviousBps), 10),
			"bps":         strconv.FormatUint(uint64(e.Bps), 10),
		},
	}
}

type FeesWithdrawn struct {
	Recipient [20]byte
	Amount    *big.Int
}

func (FeesWithdrawn) EventType() string { return TypeFeesWithdrawn }

func (e FeesWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesWithdrawn,
		Attributes: map[string]string{
			"recipient": account(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// PayoutCredited records a rejected outgoing payment kept in the vault for the
// recipient to claim later. Reason is one of "refund", "proceeds" or "fee".
type PayoutCredited struct {
	Recipient [20]byte
	Amount    *big.Int
	Reason    string
}

func (PayoutCredited) EventType() string { return TypePayoutCredited }

func (e PayoutCredited) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutCredited,
		Attributes: map[string]string{
			"recipient": account(e.Recipient),
			"amount":    formatAmount(e.Amount),
			"reason":    e.Reason,
		},
	}
}

type PayoutWithdrawn struct {
	Recipient [20]byte
	Amount    *big.Int
}

func (PayoutWithdrawn) EventType() string { return TypePayoutWithdrawn }

func (e PayoutWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutWithdrawn,
		Attributes: map[string]string{
			"recipient": account(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

type OwnershipTransferred struct {
	Previous [20]byte
	Current  [20]byte
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnershipTransferred,
		Attributes: map[string]string{
			"previous": account(e.Previous),
			"current":  account(e.Current),
		},
	}
}

func listingAttrs(collection [20]byte, assetID uint256.Int) map[string]string {
	return map[string]string{
		"collection": crypto.Format(crypto.CollectionPrefix, collection),
		"assetId":    assetID.Dec(),
	}
}

func account(addr [20]byte) string {
	return crypto.Format(crypto.AccountPrefix, addr)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
