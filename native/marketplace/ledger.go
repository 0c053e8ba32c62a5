package marketplace

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"nftmarket/core/events"
)

// Settlement summarises the funds movement of a completed sale.
type Settlement struct {
	Key          ListingKey
	Seller       [20]byte
	Buyer        [20]byte
	Price        *big.Int
	Fee          *big.Int
	SellerAmount *big.Int
	FeeRecipient [20]byte
}

// List moves the asset from the caller into escrow and records a listing.
// For FixedPrice listings price is the exact sale price and endTime is
// ignored; for Auction listings price is the minimum opening bid and endTime
// must lie in the future.
func (e *Engine) List(ctx context.Context, caller [20]byte, collection [20]byte, assetID *uint256.Int, price *big.Int, mode SaleMode, endTime int64) (*Listing, error) {
	var created *Listing
	key := NewListingKey(collection, assetID)
	err := e.run(ctx, "list", func(ctx context.Context, op *operation) error {
		op.annotate(listingFields(key, caller)...)
		policy, err := e.loadPolicy()
		if err != nil {
			return err
		}
		if err := e.admit(policy, caller); err != nil {
			return err
		}
		if !mode.Valid() {
			return ErrInvalidSaleMode
		}
		if !e.validPrice(price) {
			return ErrInvalidPrice
		}
		id := key.AssetID
		owner, err := e.registry.OwnerOf(ctx, collection, &id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotOwner, err)
		}
		if owner != caller {
			return ErrNotOwner
		}
		approved, err := e.registry.IsApproved(ctx, collection, &id, caller, e.address)
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotApproved
		}
		now := e.now()
		if mode == Auction && endTime <= now {
			return ErrInvalidEndTime
		}
		if _, exists, err := e.state.ListingGet(key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: %s listed while owned by seller", ErrInvariantViolated, key)
		}
		listing := &Listing{
			Collection: collection,
			AssetID:    key.AssetID,
			Seller:     caller,
			Mode:       mode,
			Price:      cloneBigInt(price),
			EndTime:    endTime,
			HighestBid: big.NewInt(0),
			CreatedAt:  now,
		}
		if mode == FixedPrice {
			listing.EndTime = 0
		}
		if err := e.state.ListingPut(listing); err != nil {
			return err
		}
		op.touch(key)
		if err := e.transferAsset(ctx, key, caller, e.address); err != nil {
			return err
		}
		op.emit(events.Listed{
			Collection: collection,
			AssetID:    key.AssetID,
			Seller:     caller,
			Price:      cloneBigInt(price),
			Mode:       uint8(mode),
			ModeName:   mode.String(),
			EndTime:    listing.EndTime,
		})
		created = listing.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CancelListing returns the escrowed asset to its seller. Auctions can only be
// cancelled before the first bid. It is exempt from the pause switch and the
// blacklist so a seller can always recover an escrowed asset.
func (e *Engine) CancelListing(ctx context.Context, caller [20]byte, collection [20]byte, assetID *uint256.Int) error {
	key := NewListingKey(collection, assetID)
	return e.run(ctx, "cancel", func(ctx context.Context, op *operation) error {
		op.annotate(listingFields(key, caller)...)
		listing, exists, err := e.state.ListingGet(key)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotListed
		}
		if listing.Seller != caller {
			return ErrNotSeller
		}
		if listing.Mode == Auction && listing.HasBid() {
			return ErrBidExists
		}
		if err := e.state.ListingDelete(key); err != nil {
			return err
		}
		op.touch(key)
		if err := e.transferAsset(ctx, key, e.address, listing.Seller); err != nil {
			return err
		}
		op.emit(events.Cancelled{Collection: collection, AssetID: key.AssetID, Seller: listing.Seller})
		return nil
	})
}

// Buy settles a FixedPrice listing. payment must equal the listed price
// exactly; it is pulled from the caller into the vault and split between the
// seller and the fee recipient before the asset is released to the caller.
func (e *Engine) Buy(ctx context.Context, caller [20]byte, collection [20]byte, assetID *uint256.Int, payment *big.Int) (*Settlement, error) {
	var settlement *Settlement
	key := NewListingKey(collection, assetID)
	err := e.run(ctx, "buy", func(ctx context.Context, op *operation) error {
		op.annotate(listingFields(key, caller)...)
		policy, err := e.loadPolicy()
		if err != nil {
			return err
		}
		if err := e.admit(policy, caller); err != nil {
			return err
		}
		listing, exists, err := e.state.ListingGet(key)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotListed
		}
		if listing.Mode != FixedPrice {
			return ErrWrongSaleType
		}
		if payment == nil || payment.Cmp(listing.Price) != 0 {
			return ErrWrongPayment
		}
		// The ledger entry goes first so a re-entrant buy or cancel on the same
		// key sees it as not listed.
		if err := e.state.ListingDelete(key); err != nil {
			return err
		}
		op.touch(key)
		if err := e.collect(ctx, caller, listing.Price); err != nil {
			return err
		}
		fee, sellerAmount := splitFee(listing.Price, policy.TradingFeeBps)
		if err := e.pay(ctx, op, listing.Seller, sellerAmount, "proceeds"); err != nil {
			return err
		}
		if err := e.pay(ctx, op, policy.FeeRecipient, fee, "fee"); err != nil {
			return err
		}
		if err := e.transferAsset(ctx, key, e.address, caller); err != nil {
			return err
		}
		op.emit(events.Purchase{
			Collection:   collection,
			AssetID:      key.AssetID,
			Seller:       listing.Seller,
			Buyer:        caller,
			Price:        cloneBigInt(listing.Price),
			Fee:          fee,
			SellerAmount: sellerAmount,
			FeeRecipient: policy.FeeRecipient,
		})
		op.annotate(zap.String("price", listing.Price.String()), zap.String("fee", fee.String()))
		settlement = &Settlement{
			Key:          key,
			Seller:       listing.Seller,
			Buyer:        caller,
			Price:        cloneBigInt(listing.Price),
			Fee:          cloneBigInt(fee),
			SellerAmount: cloneBigInt(sellerAmount),
			FeeRecipient: policy.FeeRecipient,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// GetListing returns the active listing for the asset, if any.
func (e *Engine) GetListing(ctx context.Context, collection [20]byte, assetID *uint256.Int) (*Listing, bool, error) {
	var (
		listing *Listing
		exists  bool
	)
	err := e.query(ctx, func() error {
		var err error
		listing, exists, err = e.state.ListingGet(NewListingKey(collection, assetID))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return listing, exists, nil
}

// ListedIDsForSeller returns the keys of every active listing created by
// seller, ordered by collection then asset id.
func (e *Engine) ListedIDsForSeller(ctx context.Context, seller [20]byte) ([]ListingKey, error) {
	var keys []ListingKey
	err := e.query(ctx, func() error {
		inOp := e.inOperation(ctx)
		cacheKey := hex.EncodeToString(seller[:])
		if !inOp {
			if cached, ok := e.sellerView.Get(cacheKey); ok {
				keys = append([]ListingKey(nil), cached.([]ListingKey)...)
				return nil
			}
		}
		keys = make([]ListingKey, 0)
		if err := e.state.ListingIterate(func(l *Listing) error {
			if l.Seller == seller {
				keys = append(keys, l.Key())
			}
			return nil
		}); err != nil {
			return err
		}
		if !inOp {
			e.sellerView.SetDefault(cacheKey, append([]ListingKey(nil), keys...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// AllListedIDs returns the asset ids of every active listing in collection in
// ascending order. Resolved listings never appear because the view is read
// straight from the ledger.
func (e *Engine) AllListedIDs(ctx context.Context, collection [20]byte) ([]*uint256.Int, error) {
	listings, err := e.ActiveListings(ctx, collection)
	if err != nil {
		return nil, err
	}
	ids := make([]*uint256.Int, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, new(uint256.Int).Set(&l.AssetID))
	}
	return ids, nil
}

// ActiveListings returns the full records of every active listing in
// collection in ascending asset id order.
func (e *Engine) ActiveListings(ctx context.Context, collection [20]byte) ([]*Listing, error) {
	var out []*Listing
	err := e.query(ctx, func() error {
		out = make([]*Listing, 0)
		return e.state.ListingIterateCollection(collection, func(l *Listing) error {
			out = append(out, l.Clone())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SyncMetrics counts the active listings in the ledger and seeds the active
// listings gauge with that count. It returns the count.
func (e *Engine) SyncMetrics(ctx context.Context) (int, error) {
	count := 0
	err := e.query(ctx, func() error {
		return e.state.ListingIterate(func(*Listing) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	e.metrics.SetActiveListings(count)
	return count, nil
}
