package marketplace

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"nftmarket/core/events"
)

// minimumBid returns the amount a new bid must strictly exceed: the leading
// bid, or the reserve price while the auction has no bids.
func minimumBid(l *Listing) *big.Int {
	if l.HasBid() && l.HighestBid.Cmp(l.Price) > 0 {
		return l.HighestBid
	}
	return l.Price
}

// PlaceBid escrows amount from the caller as the new leading bid and refunds
// the previous leader. The bid must exceed both the reserve price and the
// current leading bid and must arrive strictly before the end time.
func (e *Engine) PlaceBid(ctx context.Context, caller [20]byte, collection [20]byte, assetID *uint256.Int, amount *big.Int) error {
	key := NewListingKey(collection, assetID)
	return e.run(ctx, "bid", func(ctx context.Context, op *operation) error {
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
		if listing.Mode != Auction {
			return ErrNotAuction
		}
		if e.now() >= listing.EndTime {
			return ErrAuctionEnded
		}
		if amount != nil && amount.Cmp(e.maxPrice) > 0 {
			return ErrBidTooHigh
		}
		if amount == nil || amount.Cmp(minimumBid(listing)) <= 0 {
			return ErrBidTooLow
		}
		previousBidder := listing.HighestBidder
		previousBid := cloneBigInt(listing.HighestBid)

		updated := listing.Clone()
		updated.HighestBidder = caller
		updated.HighestBid = cloneBigInt(amount)
		if err := e.state.ListingPut(updated); err != nil {
			return err
		}
		op.touch(key)
		if err := e.collect(ctx, caller, amount); err != nil {
			return err
		}
		if previousBid.Sign() > 0 {
			if err := e.pay(ctx, op, previousBidder, previousBid, "refund"); err != nil {
				return err
			}
		}
		op.emit(events.NewBid{
			Collection:     collection,
			AssetID:        key.AssetID,
			Bidder:         caller,
			Amount:         cloneBigInt(amount),
			PreviousBidder: previousBidder,
			PreviousBid:    previousBid,
			EndTime:        listing.EndTime,
		})
		op.annotate(zap.String("amount", amount.String()))
		return nil
	})
}

// Finalize settles an auction whose end time has passed. Anyone may call it.
// With a leading bid the asset goes to the winner and the bid is split
// between seller and fee recipient; without one the asset returns to the
// seller. The returned settlement has a zero Buyer and Price for the no-bid
// outcome. Finalize is exempt from the pause switch and the blacklist so an
// ended auction can always settle.
func (e *Engine) Finalize(ctx context.Context, caller [20]byte, collection [20]byte, assetID *uint256.Int) (*Settlement, error) {
	var settlement *Settlement
	key := NewListingKey(collection, assetID)
	err := e.run(ctx, "finalize", func(ctx context.Context, op *operation) error {
		op.annotate(listingFields(key, caller)...)
		listing, exists, err := e.state.ListingGet(key)
		if err != nil {
			return err
		}
		if !exists {
			return ErrListingNotActive
		}
		if listing.Mode != Auction {
			return ErrNotAuction
		}
		if e.now() < listing.EndTime {
			return ErrAuctionStillRunning
		}
		if err := e.state.ListingDelete(key); err != nil {
			return err
		}
		op.touch(key)

		if !listing.HasBid() {
			if err := e.transferAsset(ctx, key, e.address, listing.Seller); err != nil {
				return err
			}
			op.emit(events.AuctionFinalized{
				Collection:   collection,
				AssetID:      key.AssetID,
				Seller:       listing.Seller,
				Amount:       big.NewInt(0),
				Fee:          big.NewInt(0),
				SellerAmount: big.NewInt(0),
			})
			settlement = &Settlement{
				Key:          key,
				Seller:       listing.Seller,
				Price:        big.NewInt(0),
				Fee:          big.NewInt(0),
				SellerAmount: big.NewInt(0),
			}
			return nil
		}

		policy, err := e.loadPolicy()
		if err != nil {
			return err
		}
		winner := listing.HighestBidder
		if err := e.transferAsset(ctx, key, e.address, winner); err != nil {
			return err
		}
		fee, sellerAmount := splitFee(listing.HighestBid, policy.TradingFeeBps)
		if err := e.pay(ctx, op, listing.Seller, sellerAmount, "proceeds"); err != nil {
			return err
		}
		if err := e.pay(ctx, op, policy.FeeRecipient, fee, "fee"); err != nil {
			return err
		}
		op.emit(events.AuctionFinalized{
			Collection:   collection,
			AssetID:      key.AssetID,
			Seller:       listing.Seller,
			Winner:       winner,
			Amount:       cloneBigInt(listing.HighestBid),
			Fee:          fee,
			SellerAmount: sellerAmount,
			FeeRecipient: policy.FeeRecipient,
		})
		settlement = &Settlement{
			Key:          key,
			Seller:       listing.Seller,
			Buyer:        winner,
			Price:        cloneBigInt(listing.HighestBid),
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
