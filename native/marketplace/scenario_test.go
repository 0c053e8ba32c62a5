package marketplace_test

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"nftmarket/core/events"
	"nftmarket/native/marketplace"
)

func TestScenarioAFixedPriceSale(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.fund(buyerAddr, units(1000))

	h.listFixed(asset, units(500))
	require.Equal(t, marketAddr, h.ownerOf(asset))
	h.requireEscrowInvariant(asset)

	settlement, err := h.engine.Buy(h.ctx, buyerAddr, collection, asset, units(500))
	require.NoError(t, err)
	require.Equal(t, units(500).String(), settlement.Price.String())
	require.Zero(t, settlement.Fee.Sign())

	require.Equal(t, buyerAddr, h.ownerOf(asset))
	h.requireBalance(sellerAddr, units(500))
	h.requireBalance(buyerAddr, units(500))
	h.requireBalance(marketAddr, big.NewInt(0))
	h.requireEscrowInvariant(asset)

	purchases := h.recorder.OfType(events.TypePurchase)
	require.Len(t, purchases, 1)
	purchase := purchases[0].(events.Purchase)
	require.Equal(t, buyerAddr, purchase.Buyer)
	require.Equal(t, sellerAddr, purchase.Seller)
	require.Equal(t, uint64(1), purchase.AssetID.Uint64())
	require.Equal(t, units(500).String(), purchase.SellerAmount.String())
}

func TestScenarioBAuctionWithOutbid(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.fund(bidderA, units(1000))
	h.fund(bidderB, units(1000))

	h.listAuction(asset, units(500), 100)

	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(600)))
	h.requireBalance(bidderA, units(400))

	err := h.engine.PlaceBid(h.ctx, bidderB, collection, asset, units(550))
	require.ErrorIs(t, err, marketplace.ErrBidTooLow)

	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderB, collection, asset, units(700)))
	h.requireBalance(bidderA, units(1000))
	h.requireBalance(bidderB, units(300))
	h.requireBalance(marketAddr, units(700))

	h.now += 100
	settlement, err := h.engine.Finalize(h.ctx, outsider, collection, asset)
	require.NoError(t, err)
	require.Equal(t, bidderB, settlement.Buyer)

	require.Equal(t, bidderB, h.ownerOf(asset))
	h.requireBalance(sellerAddr, units(700))
	h.requireBalance(marketAddr, big.NewInt(0))
	h.requireEscrowInvariant(asset)

	bids := h.recorder.OfType(events.TypeNewBid)
	require.Len(t, bids, 2)
	second := bids[1].(events.NewBid)
	require.Equal(t, bidderA, second.PreviousBidder)
	require.Equal(t, units(600).String(), second.PreviousBid.String())

	finals := h.recorder.OfType(events.TypeAuctionFinalized)
	require.Len(t, finals, 1)
	final := finals[0].(events.AuctionFinalized)
	require.Equal(t, bidderB, final.Winner)
	require.Equal(t, units(700).String(), final.Amount.String())
}

func TestScenarioCAuctionWithoutBids(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.listAuction(asset, units(500), 100)

	h.now += 99
	_, err := h.engine.Finalize(h.ctx, outsider, collection, asset)
	require.ErrorIs(t, err, marketplace.ErrAuctionStillRunning)

	h.now++
	settlement, err := h.engine.Finalize(h.ctx, outsider, collection, asset)
	require.NoError(t, err)
	require.Equal(t, [20]byte{}, settlement.Buyer)
	require.Equal(t, sellerAddr, h.ownerOf(asset))

	finals := h.recorder.OfType(events.TypeAuctionFinalized)
	require.Len(t, finals, 1)
	final := finals[0].(events.AuctionFinalized)
	require.Equal(t, [20]byte{}, final.Winner)
	require.Zero(t, final.Amount.Sign())

	_, err = h.engine.Finalize(h.ctx, outsider, collection, asset)
	require.ErrorIs(t, err, marketplace.ErrListingNotActive)
	require.ErrorIs(t, err, marketplace.ErrNotListed)
}

func TestScenarioDCancelListing(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.listFixed(asset, units(500))

	require.ErrorIs(t, h.engine.CancelListing(h.ctx, outsider, collection, asset), marketplace.ErrNotSeller)
	require.NoError(t, h.engine.CancelListing(h.ctx, sellerAddr, collection, asset))
	require.Equal(t, sellerAddr, h.ownerOf(asset))
	_, listed := h.listing(asset)
	require.False(t, listed)
	require.Len(t, h.recorder.OfType(events.TypeCancelled), 1)

	require.ErrorIs(t, h.engine.CancelListing(h.ctx, sellerAddr, collection, asset), marketplace.ErrNotListed)
}

func TestScenarioETradingFee(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.fund(buyerAddr, units(1000))

	require.NoError(t, h.engine.SetTradingFee(h.ctx, ownerAddr, 500))
	require.NoError(t, h.engine.SetFeeRecipient(h.ctx, ownerAddr, feeRecipient))
	h.listFixed(asset, units(1000))

	settlement, err := h.engine.Buy(h.ctx, buyerAddr, collection, asset, units(1000))
	require.NoError(t, err)
	require.Equal(t, units(50).String(), settlement.Fee.String())
	require.Equal(t, units(950).String(), settlement.SellerAmount.String())

	h.requireBalance(sellerAddr, units(950))
	h.requireBalance(feeRecipient, units(50))
	h.requireBalance(buyerAddr, big.NewInt(0))
}

func TestScenarioFBlacklist(t *testing.T) {
	h := newHarness(t)
	mine := h.mint(1, outsider)
	fixed := h.mint(2, sellerAddr)
	auction := h.mint(3, sellerAddr)
	h.fund(outsider, units(5000))
	h.fund(buyerAddr, units(5000))

	h.listFixed(fixed, units(500))
	h.listAuction(auction, units(500), 100)

	require.NoError(t, h.engine.SetBlacklist(h.ctx, ownerAddr, outsider, true))
	listed, err := h.engine.IsBlacklisted(h.ctx, outsider)
	require.NoError(t, err)
	require.True(t, listed)

	_, err = h.engine.List(h.ctx, outsider, collection, mine, units(100), marketplace.FixedPrice, 0)
	require.ErrorIs(t, err, marketplace.ErrBlacklisted)
	_, err = h.engine.Buy(h.ctx, outsider, collection, fixed, units(500))
	require.ErrorIs(t, err, marketplace.ErrBlacklisted)
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, outsider, collection, auction, units(600)), marketplace.ErrBlacklisted)

	require.Equal(t, outsider, h.ownerOf(mine))
	h.requireBalance(outsider, units(5000))

	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, fixed, units(500))
	require.NoError(t, err)
	require.NoError(t, h.engine.PlaceBid(h.ctx, buyerAddr, collection, auction, units(600)))

	require.NoError(t, h.engine.SetBlacklist(h.ctx, ownerAddr, outsider, false))
	_, err = h.engine.List(h.ctx, outsider, collection, mine, units(100), marketplace.FixedPrice, 0)
	require.NoError(t, err)
}

func TestListRejectsBadInputsWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	unapproved := uint256.NewInt(2)
	require.NoError(t, h.registry.Mint(collection2, unapproved, sellerAddr))
	require.NoError(t, h.mgr.Commit())

	tooHigh := new(big.Int).Add(marketplace.DefaultMaxPrice, big.NewInt(1))
	cases := []struct {
		name   string
		caller [20]byte
		coll   [20]byte
		asset  *uint256.Int
		price  *big.Int
		mode   marketplace.SaleMode
		end    int64
		want   error
	}{
		{"zero price", sellerAddr, collection, asset, big.NewInt(0), marketplace.FixedPrice, 0, marketplace.ErrInvalidPrice},
		{"nil price", sellerAddr, collection, asset, nil, marketplace.FixedPrice, 0, marketplace.ErrInvalidPrice},
		{"above max", sellerAddr, collection, asset, tooHigh, marketplace.FixedPrice, 0, marketplace.ErrInvalidPrice},
		{"not owner", outsider, collection, asset, units(1), marketplace.FixedPrice, 0, marketplace.ErrNotOwner},
		{"missing asset", sellerAddr, collection, uint256.NewInt(42), units(1), marketplace.FixedPrice, 0, marketplace.ErrNotOwner},
		{"not approved", sellerAddr, collection2, unapproved, units(1), marketplace.FixedPrice, 0, marketplace.ErrNotApproved},
		{"end time now", sellerAddr, collection, asset, units(1), marketplace.Auction, startTime, marketplace.ErrInvalidEndTime},
		{"end time past", sellerAddr, collection, asset, units(1), marketplace.Auction, startTime - 1, marketplace.ErrInvalidEndTime},
		{"bad mode", sellerAddr, collection, asset, units(1), marketplace.SaleMode(9), 0, marketplace.ErrInvalidSaleMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.List(h.ctx, tc.caller, tc.coll, tc.asset, tc.price, tc.mode, tc.end)
			require.ErrorIs(t, err, tc.want)
		})
	}

	require.Equal(t, sellerAddr, h.ownerOf(asset))
	require.Equal(t, sellerAddr, h.ownerIn(collection2, unapproved))
	_, listed := h.listing(asset)
	require.False(t, listed)
	require.Empty(t, h.recorder.Events())
}

func TestListAtMaxPriceAccepted(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.listFixed(asset, marketplace.DefaultMaxPrice)

	h.engine.SetMaxPrice(units(10))
	other := h.mint(2, sellerAddr)
	_, err := h.engine.List(h.ctx, sellerAddr, collection, other, units(11), marketplace.FixedPrice, 0)
	require.ErrorIs(t, err, marketplace.ErrInvalidPrice)
}

func TestFixedPriceListingIgnoresEndTime(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	listing, err := h.engine.List(h.ctx, sellerAddr, collection, asset, units(1), marketplace.FixedPrice, startTime-500)
	require.NoError(t, err)
	require.Zero(t, listing.EndTime)
	require.Equal(t, startTime, listing.CreatedAt)
}

func TestBuyPreconditions(t *testing.T) {
	h := newHarness(t)
	fixed := h.mint(1, sellerAddr)
	auction := h.mint(2, sellerAddr)
	h.fund(buyerAddr, units(5000))
	h.listFixed(fixed, units(500))
	h.listAuction(auction, units(500), 100)

	_, err := h.engine.Buy(h.ctx, buyerAddr, collection, fixed, units(501))
	require.ErrorIs(t, err, marketplace.ErrWrongPayment)
	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, fixed, units(499))
	require.ErrorIs(t, err, marketplace.ErrWrongPayment)
	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, fixed, nil)
	require.ErrorIs(t, err, marketplace.ErrWrongPayment)
	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, auction, units(500))
	require.ErrorIs(t, err, marketplace.ErrWrongSaleType)
	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, uint256.NewInt(77), units(500))
	require.ErrorIs(t, err, marketplace.ErrNotListed)

	h.requireBalance(buyerAddr, units(5000))
	h.requireEscrowInvariant(fixed)
}

func TestBuyWithInsufficientFundsRollsBack(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.fund(buyerAddr, units(100))
	h.listFixed(asset, units(500))

	_, err := h.engine.Buy(h.ctx, buyerAddr, collection, asset, units(500))
	require.ErrorIs(t, err, marketplace.ErrTransferFailed)

	_, listed := h.listing(asset)
	require.True(t, listed)
	h.requireEscrowInvariant(asset)
	require.Empty(t, h.recorder.OfType(events.TypePurchase))
}

func TestBidPreconditions(t *testing.T) {
	h := newHarness(t)
	fixed := h.mint(1, sellerAddr)
	auction := h.mint(2, sellerAddr)
	h.fund(bidderA, new(big.Int).Add(marketplace.DefaultMaxPrice, units(1)))
	h.listFixed(fixed, units(500))
	h.listAuction(auction, units(500), 100)

	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, bidderA, collection, fixed, units(600)), marketplace.ErrNotAuction)
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, bidderA, collection, uint256.NewInt(9), units(600)), marketplace.ErrNotListed)
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, bidderA, collection, auction, units(500)), marketplace.ErrBidTooLow, "the reserve is the floor for the first bid")
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, bidderA, collection, auction, nil), marketplace.ErrBidTooLow)
	tooHigh := new(big.Int).Add(marketplace.DefaultMaxPrice, big.NewInt(1))
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, bidderA, collection, auction, tooHigh), marketplace.ErrBidTooHigh)
	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, auction, marketplace.DefaultMaxPrice))
}

func TestNoLateBids(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.fund(bidderA, units(10_000))
	h.listAuction(asset, units(500), 100)

	h.now += 100
	err := h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(9_000))
	require.ErrorIs(t, err, marketplace.ErrAuctionEnded)
	h.now += 1_000
	err = h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(600))
	require.ErrorIs(t, err, marketplace.ErrAuctionEnded)
	h.requireBalance(bidderA, units(10_000))
}

func TestCancelAuctionRules(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.fund(bidderA, units(1000))
	h.listAuction(asset, units(500), 100)

	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(600)))
	require.ErrorIs(t, h.engine.CancelListing(h.ctx, sellerAddr, collection, asset), marketplace.ErrBidExists)

	other := h.mint(2, sellerAddr)
	h.listAuction(other, units(500), 100)
	require.NoError(t, h.engine.CancelListing(h.ctx, sellerAddr, collection, other))
	require.Equal(t, sellerAddr, h.ownerOf(other))
}

func TestFinalizeRejectsFixedPrice(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	h.listFixed(asset, units(500))
	_, err := h.engine.Finalize(h.ctx, outsider, collection, asset)
	require.ErrorIs(t, err, marketplace.ErrNotAuction)
}
