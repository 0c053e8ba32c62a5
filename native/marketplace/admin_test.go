package marketplace_test

import (
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/marketplace"
	"nftmarket/storage"
)

func TestInitPolicyOnlyOnce(t *testing.T) {
	h := newHarness(t)
	err := h.engine.InitPolicy(h.ctx, outsider, outsider, 0)
	require.ErrorIs(t, err, marketplace.ErrAlreadyInitialised)

	policy, err := h.engine.Policy(h.ctx)
	require.NoError(t, err)
	require.Equal(t, ownerAddr, policy.Owner)
	require.Equal(t, ownerAddr, policy.FeeRecipient, "fee recipient defaults to the owner")
}

func TestAdminOperations(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.engine.SetTradingFee(h.ctx, outsider, 100), marketplace.ErrUnauthorized)
	require.ErrorIs(t, h.engine.SetTradingFee(h.ctx, ownerAddr, marketplace.MaxTradingFeeBps+1), marketplace.ErrFeeTooHigh)
	require.NoError(t, h.engine.SetTradingFee(h.ctx, ownerAddr, marketplace.MaxTradingFeeBps))

	require.ErrorIs(t, h.engine.SetFeeRecipient(h.ctx, ownerAddr, [20]byte{}), marketplace.ErrZeroAddress)
	require.NoError(t, h.engine.SetFeeRecipient(h.ctx, ownerAddr, feeRecipient))

	require.ErrorIs(t, h.engine.SetBlacklist(h.ctx, outsider, buyerAddr, true), marketplace.ErrUnauthorized)
	require.NoError(t, h.engine.SetBlacklist(h.ctx, ownerAddr, buyerAddr, true))
	listed, err := h.engine.IsBlacklisted(h.ctx, buyerAddr)
	require.NoError(t, err)
	require.True(t, listed)

	require.ErrorIs(t, h.engine.TransferOwnership(h.ctx, ownerAddr, [20]byte{}), marketplace.ErrZeroAddress)
	require.NoError(t, h.engine.TransferOwnership(h.ctx, ownerAddr, outsider))
	require.ErrorIs(t, h.engine.SetPaused(h.ctx, ownerAddr, true), marketplace.ErrUnauthorized)
	require.NoError(t, h.engine.SetPaused(h.ctx, outsider, true))

	policy, err := h.engine.Policy(h.ctx)
	require.NoError(t, err)
	require.Equal(t, &marketplace.Policy{
		Owner:         outsider,
		FeeRecipient:  feeRecipient,
		TradingFeeBps: marketplace.MaxTradingFeeBps,
		Paused:        true,
	}, policy)

	var kinds []string
	for _, evt := range h.recorder.Events() {
		kinds = append(kinds, evt.EventType())
	}
	require.Equal(t, []string{
		events.TypeTradingFeeUpdated,
		events.TypeFeeRecipientChanged,
		events.TypeBlacklistUpdated,
		events.TypeOwnershipTransferred,
		events.TypePauseChanged,
	}, kinds)
}

func TestPauseGatesTradingOnly(t *testing.T) {
	h := newHarness(t)
	fixed := h.mint(1, sellerAddr)
	auction := h.mint(2, sellerAddr)
	spare := h.mint(3, sellerAddr)
	h.fund(buyerAddr, units(1_000))
	h.fund(bidderA, units(1_000))
	h.listFixed(fixed, units(500))
	h.listAuction(auction, units(100), 50)
	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, auction, units(200)))

	require.NoError(t, h.engine.SetPaused(h.ctx, ownerAddr, true))
	h.recorder.Reset()

	_, err := h.engine.List(h.ctx, sellerAddr, collection, spare, units(1), marketplace.FixedPrice, 0)
	require.ErrorIs(t, err, marketplace.ErrPaused)
	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, fixed, units(500))
	require.ErrorIs(t, err, marketplace.ErrPaused)
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, buyerAddr, collection, auction, units(300)), marketplace.ErrPaused)
	require.Empty(t, h.recorder.Events())

	// Resolving existing listings stays possible while paused.
	require.NoError(t, h.engine.CancelListing(h.ctx, sellerAddr, collection, fixed))
	h.now += 50
	_, err = h.engine.Finalize(h.ctx, outsider, collection, auction)
	require.NoError(t, err)
	require.Equal(t, bidderA, h.ownerOf(auction))

	require.NoError(t, h.engine.SetPaused(h.ctx, ownerAddr, false))
	h.listFixed(spare, units(1))
}

func TestOperatorKillSwitch(t *testing.T) {
	h := newHarness(t)
	asset := h.mint(1, sellerAddr)
	kill := nativecommon.StaticPauses{marketplace.ModuleName: true}
	h.engine.SetPauses(kill)

	_, err := h.engine.List(h.ctx, sellerAddr, collection, asset, units(1), marketplace.FixedPrice, 0)
	require.ErrorIs(t, err, marketplace.ErrPaused)

	kill[marketplace.ModuleName] = false
	h.listFixed(asset, units(1))
}

func TestBlacklistedCallersRejected(t *testing.T) {
	h := newHarness(t)
	fixed := h.mint(1, sellerAddr)
	auction := h.mint(2, sellerAddr)
	h.fund(buyerAddr, units(1_000))
	h.listFixed(fixed, units(500))
	h.listAuction(auction, units(100), 50)

	require.NoError(t, h.engine.SetBlacklist(h.ctx, ownerAddr, buyerAddr, true))
	_, err := h.engine.Buy(h.ctx, buyerAddr, collection, fixed, units(500))
	require.ErrorIs(t, err, marketplace.ErrBlacklisted)
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, buyerAddr, collection, auction, units(200)), marketplace.ErrBlacklisted)

	// A blacklisted seller can still withdraw an existing listing.
	require.NoError(t, h.engine.SetBlacklist(h.ctx, ownerAddr, sellerAddr, true))
	require.NoError(t, h.engine.CancelListing(h.ctx, sellerAddr, collection, fixed))
	require.Equal(t, sellerAddr, h.ownerOf(fixed))

	require.NoError(t, h.engine.SetBlacklist(h.ctx, ownerAddr, buyerAddr, false))
	require.NoError(t, h.engine.PlaceBid(h.ctx, buyerAddr, collection, auction, units(200)))
}

func TestWithdrawLeavesEscrowedBidsUntouched(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.SetTradingFee(h.ctx, ownerAddr, 500))
	require.NoError(t, h.engine.SetFeeRecipient(h.ctx, ownerAddr, marketAddr))
	fixed := h.mint(1, sellerAddr)
	auction := h.mint(2, sellerAddr)
	h.fund(buyerAddr, units(1_000))
	h.fund(bidderA, units(1_000))

	h.listFixed(fixed, units(1_000))
	_, err := h.engine.Buy(h.ctx, buyerAddr, collection, fixed, units(1_000))
	require.NoError(t, err)
	h.listAuction(auction, units(100), 50)
	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, auction, units(600)))
	h.requireBalance(marketAddr, units(650))

	fees, err := h.engine.WithdrawableFees(h.ctx)
	require.NoError(t, err)
	require.Equal(t, units(50).String(), fees.String())

	_, err = h.engine.Withdraw(h.ctx, outsider)
	require.ErrorIs(t, err, marketplace.ErrUnauthorized)

	paid, err := h.engine.Withdraw(h.ctx, ownerAddr)
	require.NoError(t, err)
	require.Equal(t, units(50).String(), paid.String())
	h.requireBalance(ownerAddr, units(50))
	h.requireBalance(marketAddr, units(600))

	_, err = h.engine.Withdraw(h.ctx, ownerAddr)
	require.ErrorIs(t, err, marketplace.ErrNothingToWithdraw)

	// The escrowed bid still settles in full.
	h.now += 50
	settlement, err := h.engine.Finalize(h.ctx, outsider, collection, auction)
	require.NoError(t, err)
	require.Equal(t, units(570).String(), settlement.SellerAmount.String())
	h.requireBalance(marketAddr, units(30))
}

func TestListingQueries(t *testing.T) {
	h := newHarness(t)
	for _, id := range []uint64{3, 1, 2} {
		h.listFixed(h.mint(id, sellerAddr), units(int64(id)))
	}
	other := uint256.NewInt(7)
	require.NoError(t, h.registry.Mint(collection2, other, sellerAddr))
	require.NoError(t, h.registry.SetApprovalForAll(h.ctx, sellerAddr, collection2, marketAddr, true))
	require.NoError(t, h.mgr.Commit())
	_, err := h.engine.List(h.ctx, sellerAddr, collection2, other, units(7), marketplace.FixedPrice, 0)
	require.NoError(t, err)
	foreign := h.mint(9, buyerAddr)
	_, err = h.engine.List(h.ctx, buyerAddr, collection, foreign, units(9), marketplace.FixedPrice, 0)
	require.NoError(t, err)

	ids, err := h.engine.AllListedIDs(h.ctx, collection)
	require.NoError(t, err)
	require.Equal(t, []*uint256.Int{uint256.NewInt(1), uint256.NewInt(2), uint256.NewInt(3), uint256.NewInt(9)}, ids)

	active, err := h.engine.ActiveListings(h.ctx, collection2)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, units(7).String(), active[0].Price.String())

	keys, err := h.engine.ListedIDsForSeller(h.ctx, sellerAddr)
	require.NoError(t, err)
	require.Equal(t, []marketplace.ListingKey{
		marketplace.NewListingKey(collection, uint256.NewInt(1)),
		marketplace.NewListingKey(collection, uint256.NewInt(2)),
		marketplace.NewListingKey(collection, uint256.NewInt(3)),
		marketplace.NewListingKey(collection2, other),
	}, keys)

	// The cached seller view follows ledger changes.
	h.fund(buyerAddr, units(2))
	_, err = h.engine.Buy(h.ctx, buyerAddr, collection, uint256.NewInt(2), units(2))
	require.NoError(t, err)
	require.NoError(t, h.engine.CancelListing(h.ctx, sellerAddr, collection2, other))

	keys, err = h.engine.ListedIDsForSeller(h.ctx, sellerAddr)
	require.NoError(t, err)
	require.Equal(t, []marketplace.ListingKey{
		marketplace.NewListingKey(collection, uint256.NewInt(1)),
		marketplace.NewListingKey(collection, uint256.NewInt(3)),
	}, keys)

	ids, err = h.engine.AllListedIDs(h.ctx, collection)
	require.NoError(t, err)
	require.Equal(t, []*uint256.Int{uint256.NewInt(1), uint256.NewInt(3), uint256.NewInt(9)}, ids)

	empty, err := h.engine.ListedIDsForSeller(h.ctx, outsider)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestLedgerSurvivesReopen(t *testing.T) {
	for _, backend := range []string{storage.BackendLevelDB, storage.BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			db, err := storage.Open(backend, dir)
			require.NoError(t, err)

			h := newHarnessOn(t, db)
			require.NoError(t, h.engine.SetTradingFee(h.ctx, ownerAddr, 250))
			asset := h.mint(1, sellerAddr)
			h.fund(bidderA, units(1_000))
			h.listAuction(asset, units(100), 60)
			require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(400)))
			db.Close()

			db, err = storage.Open(backend, dir)
			require.NoError(t, err)
			t.Cleanup(db.Close)
			h = newHarnessOn(t, db)

			policy, err := h.engine.Policy(h.ctx)
			require.NoError(t, err)
			require.Equal(t, uint32(250), policy.TradingFeeBps)
			listing, ok := h.listing(asset)
			require.True(t, ok)
			require.Equal(t, bidderA, listing.HighestBidder)
			require.Equal(t, startTime+60, listing.EndTime)
			h.requireEscrowInvariant(asset)

			h.now += 60
			settlement, err := h.engine.Finalize(h.ctx, outsider, collection, asset)
			require.NoError(t, err)
			require.Equal(t, units(10).String(), settlement.Fee.String())
			require.Equal(t, bidderA, h.ownerOf(asset))
			h.requireBalance(sellerAddr, units(390))
		})
	}
}

func TestBusEmitterReceivesCommittedEventsOnly(t *testing.T) {
	h := newHarness(t)
	bus := events.NewBusEmitter(nil)
	h.engine.SetEmitter(bus)

	var (
		mu      sync.Mutex
		records []*types.Event
		bids    int
	)
	require.NoError(t, bus.Subscribe(events.TopicAll, func(_ events.Event, record *types.Event) {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, record)
	}))
	require.NoError(t, bus.Subscribe(events.TypeNewBid, func(evt events.Event, _ *types.Event) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := evt.(events.NewBid); ok {
			bids++
		}
	}))

	asset := h.mint(1, sellerAddr)
	h.fund(bidderA, units(1_000))
	h.listAuction(asset, units(100), 10)
	require.ErrorIs(t, h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(50)), marketplace.ErrBidTooLow)
	require.NoError(t, h.engine.PlaceBid(h.ctx, bidderA, collection, asset, units(150)))
	h.now += 10
	_, err := h.engine.Finalize(h.ctx, outsider, collection, asset)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, bids)
	require.Len(t, records, 3)
	for i, record := range records {
		require.Equal(t, uint64(i+1), record.Sequence)
	}
	require.Equal(t, events.TypeListed, records[0].Type)
	require.Equal(t, events.TypeNewBid, records[1].Type)
	require.Equal(t, events.TypeAuctionFinalized, records[2].Type)
	require.Equal(t, units(150).String(), records[2].Attributes["amount"])
	require.Equal(t, uint64(3), bus.Sequence())
}
