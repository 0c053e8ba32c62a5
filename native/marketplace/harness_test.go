package marketplace_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/native/bank"
	"nftmarket/native/marketplace"
	"nftmarket/native/nft"
	"nftmarket/storage"
)

var (
	marketAddr   = [20]byte{0x4d, 0x4b, 0x54}
	ownerAddr    = [20]byte{0x0a}
	feeRecipient = [20]byte{0xfe}
	sellerAddr   = [20]byte{0x5e}
	buyerAddr    = [20]byte{0xb1}
	bidderA      = [20]byte{0xa0}
	bidderB      = [20]byte{0xb0}
	outsider     = [20]byte{0x99}
	collection   = [20]byte{0xc0, 0x01}
	collection2  = [20]byte{0xc0, 0x02}
)

const startTime int64 = 1_700_000_000

// units converts thousandths of a native unit into 18-decimal base units.
func units(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	db       storage.Database
	mgr      *state.Manager
	registry *nft.Registry
	bank     *bank.Bank
	engine   *marketplace.Engine
	recorder *events.Recorder
	now      int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return newHarnessOn(t, db)
}

func newHarnessOn(t *testing.T, db storage.Database) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), db: db, now: startTime}
	h.mgr = state.NewManager(db)
	h.registry = nft.NewRegistry(h.mgr)
	h.bank = bank.New(h.mgr)
	h.recorder = &events.Recorder{}

	h.engine = marketplace.NewEngine(marketAddr)
	h.engine.SetState(h.mgr)
	h.engine.SetRegistry(h.registry)
	h.engine.SetFunds(h.bank)
	h.engine.SetEmitter(h.recorder)
	h.engine.SetNowFunc(func() int64 { return h.now })
	h.engine.SetDebugAssertions(true)

	if _, err := h.engine.Policy(h.ctx); err != nil {
		require.NoError(t, h.engine.InitPolicy(h.ctx, ownerAddr, [20]byte{}, 0))
	}
	h.recorder.Reset()
	return h
}

// mint creates asset id for to and grants the marketplace blanket approval.
func (h *harness) mint(id uint64, to [20]byte) *uint256.Int {
	h.t.Helper()
	asset := uint256.NewInt(id)
	require.NoError(h.t, h.registry.Mint(collection, asset, to))
	require.NoError(h.t, h.registry.SetApprovalForAll(h.ctx, to, collection, marketAddr, true))
	require.NoError(h.t, h.mgr.Commit())
	return asset
}

func (h *harness) fund(addr [20]byte, amount *big.Int) {
	h.t.Helper()
	require.NoError(h.t, h.bank.Deposit(addr, amount))
	require.NoError(h.t, h.mgr.Commit())
}

func (h *harness) balance(addr [20]byte) *big.Int {
	h.t.Helper()
	bal, err := h.bank.BalanceOf(addr)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) requireBalance(addr [20]byte, want *big.Int) {
	h.t.Helper()
	require.Equal(h.t, want.String(), h.balance(addr).String())
}

func (h *harness) ownerOf(asset *uint256.Int) [20]byte {
	h.t.Helper()
	return h.ownerIn(collection, asset)
}

func (h *harness) ownerIn(coll [20]byte, asset *uint256.Int) [20]byte {
	h.t.Helper()
	owner, err := h.registry.OwnerOf(h.ctx, coll, asset)
	require.NoError(h.t, err)
	return owner
}

func (h *harness) listFixed(asset *uint256.Int, price *big.Int) {
	h.t.Helper()
	_, err := h.engine.List(h.ctx, sellerAddr, collection, asset, price, marketplace.FixedPrice, 0)
	require.NoError(h.t, err)
}

func (h *harness) listAuction(asset *uint256.Int, reserve *big.Int, duration int64) {
	h.t.Helper()
	_, err := h.engine.List(h.ctx, sellerAddr, collection, asset, reserve, marketplace.Auction, h.now+duration)
	require.NoError(h.t, err)
}

func (h *harness) listing(asset *uint256.Int) (*marketplace.Listing, bool) {
	h.t.Helper()
	l, ok, err := h.engine.GetListing(h.ctx, collection, asset)
	require.NoError(h.t, err)
	return l, ok
}

// requireEscrowInvariant asserts listing exists iff the marketplace holds the
// asset.
func (h *harness) requireEscrowInvariant(asset *uint256.Int) {
	h.t.Helper()
	_, listed := h.listing(asset)
	escrowed := h.ownerOf(asset) == marketAddr
	require.Equal(h.t, listed, escrowed, "listed=%t escrowed=%t", listed, escrowed)
	require.NoError(h.t, h.engine.VerifyEscrow(h.ctx, marketplace.NewListingKey(collection, asset)))
}
