package marketplace

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// SaleMode selects how a listing resolves.
type SaleMode uint8

const (
	FixedPrice SaleMode = iota
	Auction
)

// Valid reports whether the mode value is within the supported range.
func (m SaleMode) Valid() bool {
	switch m {
	case FixedPrice, Auction:
		return true
	default:
		return false
	}
}

func (m SaleMode) String() string {
	switch m {
	case FixedPrice:
		return "fixed"
	case Auction:
		return "auction"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseSaleMode maps the wire names ("fixed", "auction") and numeric codes
// ("0", "1") onto a SaleMode.
func ParseSaleMode(s string) (SaleMode, error) {
	switch s {
	case "0", "fixed", "fixed-price", "fixedprice":
		return FixedPrice, nil
	case "1", "auction":
		return Auction, nil
	default:
		return 0, fmt.Errorf("marketplace: unknown sale mode %q", s)
	}
}

// ListingKey identifies an asset inside a collection.
type ListingKey struct {
	Collection [20]byte
	AssetID    uint256.Int
}

// NewListingKey builds a key from a collection address and asset id.
func NewListingKey(collection [20]byte, assetID *uint256.Int) ListingKey {
	key := ListingKey{Collection: collection}
	if assetID != nil {
		key.AssetID = *assetID
	}
	return key
}

func (k ListingKey) String() string {
	return fmt.Sprintf("%x/%s", k.Collection, k.AssetID.Dec())
}

// Listing is the escrow record of an asset currently held by the marketplace.
// For FixedPrice listings Price is the exact payment; for Auction listings it
// is the minimum opening bid and EndTime is the bidding deadline.
type Listing struct {
	Collection    [20]byte
	AssetID       uint256.Int
	Seller        [20]byte
	Mode          SaleMode
	Price         *big.Int
	EndTime       int64
	HighestBidder [20]byte
	HighestBid    *big.Int
	CreatedAt     int64
}

// Key returns the ledger key of the listing.
func (l *Listing) Key() ListingKey {
	return ListingKey{Collection: l.Collection, AssetID: l.AssetID}
}

// HasBid reports whether an auction listing has a leading bid.
func (l *Listing) HasBid() bool {
	return l != nil && l.HighestBid != nil && l.HighestBid.Sign() > 0
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Price = cloneBigInt(l.Price)
	clone.HighestBid = cloneBigInt(l.HighestBid)
	return &clone
}

// SanitizeListing validates the listing and returns a normalised clone with
// non-nil amounts. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if !clone.Mode.Valid() {
		return nil, fmt.Errorf("invalid sale mode: %d", clone.Mode)
	}
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("listing price must be positive")
	}
	if clone.HighestBid.Sign() < 0 {
		return nil, fmt.Errorf("highest bid must be non-negative")
	}
	if clone.EndTime < 0 || clone.CreatedAt < 0 {
		return nil, fmt.Errorf("listing timestamps must be non-negative")
	}
	if clone.Mode == FixedPrice {
		clone.EndTime = 0
		clone.HighestBidder = [20]byte{}
		clone.HighestBid = big.NewInt(0)
	}
	return clone, nil
}

// PayoutPolicy controls what happens when an outgoing payment is rejected by
// its recipient.
type PayoutPolicy uint8

const (
	// PayoutPush aborts the whole operation when a recipient rejects funds.
	PayoutPush PayoutPolicy = iota
	// PayoutCredit records the rejected amount as a pending withdrawal held in
	// the vault.
	PayoutCredit
)

func (p PayoutPolicy) String() string {
	if p == PayoutCredit {
		return "credit"
	}
	return "push"
}

// ParsePayoutPolicy maps "push" and "credit" onto a PayoutPolicy.
func ParsePayoutPolicy(s string) (PayoutPolicy, error) {
	switch s {
	case "", "push":
		return PayoutPush, nil
	case "credit":
		return PayoutCredit, nil
	default:
		return 0, fmt.Errorf("marketplace: unknown payout policy %q", s)
	}
}

// Policy is the admin-controlled configuration read by every entry point.
// The blacklist is stored separately as a set keyed by address.
type Policy struct {
	Owner         [20]byte
	FeeRecipient  [20]byte
	TradingFeeBps uint32
	Paused        bool
}

// Clone returns a copy of the policy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
