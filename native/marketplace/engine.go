package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nftmarket/core/events"
	"nftmarket/crypto"
	nativecommon "nftmarket/native/common"
	"nftmarket/observability/metrics"
)

const (
	// ModuleName keys the marketplace in pause views.
	ModuleName = "marketplace"
	// TracerName names the tracer used when none is configured.
	TracerName = "nftmarket/marketplace"

	// FeeBasis is the denominator for basis point fees.
	FeeBasis = 10_000
	// MaxTradingFeeBps caps the trading fee at 10%.
	MaxTradingFeeBps = 1_000
)

// DefaultMaxPrice bounds listing prices and bids: one million native units
// expressed in 18-decimal base units.
var DefaultMaxPrice = new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// AssetRegistry is the custody collaborator. TransferFrom must fail when the
// operator is not authorised or the asset does not exist.
//
// The context passed to every method marks the running engine operation.
// Anything the registry calls back into the engine with must carry that
// context; see Engine.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, collection [20]byte, assetID *uint256.Int) ([20]byte, error)
	IsApproved(ctx context.Context, collection [20]byte, assetID *uint256.Int, owner, operator [20]byte) (bool, error)
	TransferFrom(ctx context.Context, operator [20]byte, collection [20]byte, assetID *uint256.Int, from, to [20]byte) error
}

// FundsTransfer moves native value. A failed transfer must leave balances
// untouched. As with AssetRegistry, callbacks into the engine made while
// handling Transfer must carry the context Transfer received.
type FundsTransfer interface {
	Transfer(ctx context.Context, from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// Revertible is implemented by collaborators that journal their writes. The
// engine snapshots every revertible collaborator before an operation and
// reverts them all when it fails.
type Revertible interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

type committer interface {
	Commit() error
}

type engineState interface {
	ListingGet(key ListingKey) (*Listing, bool, error)
	ListingPut(listing *Listing) error
	ListingDelete(key ListingKey) error
	ListingIterate(fn func(*Listing) error) error
	ListingIterateCollection(collection [20]byte, fn func(*Listing) error) error
	PolicyGet() (*Policy, bool, error)
	PolicyPut(policy *Policy) error
	BlacklistGet(addr [20]byte) (bool, error)
	BlacklistPut(addr [20]byte, blacklisted bool) error
	PayoutCreditGet(addr [20]byte) (*big.Int, error)
	PayoutCreditPut(addr [20]byte, amount *big.Int) error
	PayoutCreditIterate(fn func(addr [20]byte, amount *big.Int) error) error
}

// Engine runs the listing ledger, auction rules and policy guard over an
// explicit store. Every operation and query is serialised by one mutex and
// each mutating operation is atomic: on any error the store and every
// revertible collaborator are rolled back and no event is emitted.
//
// Collaborators receive a context that marks the running operation. They may
// call back into the engine with that context: queries observe the
// in-progress state and mutating operations fail with ErrReentrantCall.
// A callback made with an unrelated context waits for the engine lock, which
// the calling operation never releases: it deadlocks unless that context is
// cancelled or times out, in which case the callback returns ctx.Err().
// Callers from other goroutines wait the same way and may bound the wait
// with a deadline.
type Engine struct {
	lock       chan struct{}
	address    [20]byte
	state      engineState
	registry   AssetRegistry
	funds      FundsTransfer
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	nowFn      func() int64
	logger     *zap.Logger
	metrics    *metrics.MarketplaceMetrics
	tracer     trace.Tracer
	maxPrice   *big.Int
	payout     PayoutPolicy
	debug      bool
	sellerView *cache.Cache
}

// NewEngine creates an engine whose escrow account and vault is address.
func NewEngine(address [20]byte) *Engine {
	return &Engine{
		lock:       make(chan struct{}, 1),
		address:    address,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(TracerName),
		maxPrice:   new(big.Int).Set(DefaultMaxPrice),
		sellerView: cache.New(time.Minute, 5*time.Minute),
	}
}

// Address returns the marketplace escrow address.
func (e *Engine) Address() [20]byte { return e.address }

// SetState configures the store backing the ledger and policy.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the asset custody collaborator.
func (e *Engine) SetRegistry(registry AssetRegistry) { e.registry = registry }

// SetFunds configures the funds transfer collaborator.
func (e *Engine) SetFunds(funds FundsTransfer) { e.funds = funds }

// SetPauses wires an operator kill switch consulted in addition to the
// owner-controlled pause flag.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger.With(zap.String("module", ModuleName))
}

func (e *Engine) SetMetrics(m *metrics.MarketplaceMetrics) { e.metrics = m }

// SetTracer overrides the tracer that opens one span per operation. Passing
// nil restores the global provider's tracer.
func (e *Engine) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	e.tracer = tracer
}

// SetMaxPrice overrides the upper bound for prices and bids. Non-positive
// values restore the default.
func (e *Engine) SetMaxPrice(max *big.Int) {
	if max == nil || max.Sign() <= 0 {
		e.maxPrice = new(big.Int).Set(DefaultMaxPrice)
		return
	}
	e.maxPrice = new(big.Int).Set(max)
}

func (e *Engine) SetPayoutPolicy(p PayoutPolicy) { e.payout = p }

// SetDebugAssertions toggles the post-operation escrow invariant check.
func (e *Engine) SetDebugAssertions(enabled bool) { e.debug = enabled }

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	if e.funds == nil {
		return errNilFunds
	}
	return nil
}

type opKey struct{}

// operation carries the buffered effects of one running engine call.
type operation struct {
	engine  *Engine
	name    string
	id      string
	fields  []zap.Field
	span    trace.Span
	events  []events.Event
	touched map[ListingKey]struct{}
}

func (op *operation) emit(evt events.Event) { op.events = append(op.events, evt) }

func (op *operation) touch(key ListingKey) { op.touched[key] = struct{}{} }

// annotate adds log fields to the operation. String and bool fields are
// mirrored onto the operation span.
func (op *operation) annotate(fields ...zap.Field) {
	op.fields = append(op.fields, fields...)
	for _, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			op.span.SetAttributes(attribute.String(f.Key, f.String))
		case zapcore.BoolType:
			op.span.SetAttributes(attribute.Bool(f.Key, f.Integer == 1))
		}
	}
}

// inOperation reports whether ctx was handed out by a running operation of
// this engine.
func (e *Engine) inOperation(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	op, ok := ctx.Value(opKey{}).(*operation)
	return ok && op.engine == e
}

// run executes fn as one atomic, serialised operation.
func (e *Engine) run(ctx context.Context, name string, fn func(ctx context.Context, op *operation) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.inOperation(ctx) {
		return ErrReentrantCall
	}
	if err := e.ready(); err != nil {
		return err
	}
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	op := &operation{
		engine:  e,
		name:    name,
		id:      uuid.NewString(),
		touched: make(map[ListingKey]struct{}),
	}
	ctx, op.span = e.tracer.Start(ctx, "marketplace."+name,
		trace.WithAttributes(attribute.String("op", name), attribute.String("opId", op.id)))
	defer op.span.End()
	ctx = context.WithValue(ctx, opKey{}, op)
	snapshots := e.snapshot()

	err = fn(ctx, op)
	if err == nil && e.debug {
		err = e.verifyEscrow(ctx, op)
	}
	if err == nil {
		err = e.commit()
	}
	fields := append([]zap.Field{zap.String("op", name), zap.String("opId", op.id)}, op.fields...)
	if err != nil {
		e.revert(snapshots)
		op.span.RecordError(err)
		op.span.SetAttributes(attribute.Bool("rolledBack", true))
		op.span.SetStatus(codes.Error, err.Error())
		e.metrics.ObserveOperation(name, resultLabel(err), time.Since(start))
		e.logger.Info("marketplace operation rejected", append(fields, zap.Error(err))...)
		return err
	}
	if len(op.touched) > 0 {
		e.sellerView.Flush()
	}
	e.flush(op)
	op.span.SetAttributes(attribute.Int("events", len(op.events)))
	op.span.SetStatus(codes.Ok, "")
	e.metrics.ObserveOperation(name, "ok", time.Since(start))
	e.logger.Debug("marketplace operation applied", append(fields, zap.Int("events", len(op.events)))...)
	return nil
}

// query runs fn under the engine lock unless ctx already belongs to a running
// operation, in which case the lock is held by that operation.
func (e *Engine) query(ctx context.Context, fn func() error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.inOperation(ctx) {
		return fn()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// acquire takes the engine lock, giving up when ctx is done first.
func (e *Engine) acquire(ctx context.Context) (func(), error) {
	select {
	case e.lock <- struct{}{}:
		return func() { <-e.lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) revertibles() []Revertible {
	candidates := []interface{}{e.state, e.registry, e.funds}
	out := make([]Revertible, 0, len(candidates))
	for _, c := range candidates {
		if r, ok := c.(Revertible); ok {
			out = append(out, r)
		}
	}
	return out
}

type snapshotSet struct {
	targets []Revertible
	ids     []int
}

func (e *Engine) snapshot() snapshotSet {
	targets := e.revertibles()
	ids := make([]int, len(targets))
	for i, r := range targets {
		ids[i] = r.Snapshot()
	}
	return snapshotSet{targets: targets, ids: ids}
}

func (e *Engine) revert(s snapshotSet) {
	for i := len(s.targets) - 1; i >= 0; i-- {
		s.targets[i].RevertToSnapshot(s.ids[i])
	}
}

func (e *Engine) commit() error {
	seen := make(map[interface{}]struct{})
	for _, c := range []interface{}{e.state, e.registry, e.funds} {
		cm, ok := c.(committer)
		if !ok {
			continue
		}
		if _, dup := seen[cm]; dup {
			continue
		}
		seen[cm] = struct{}{}
		if err := cm.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) flush(op *operation) {
	for _, evt := range op.events {
		e.observe(evt)
		e.emitter.Emit(evt)
	}
}

func (e *Engine) observe(evt events.Event) {
	switch ev := evt.(type) {
	case events.Listed:
		e.metrics.AddActiveListings(1)
	case events.Cancelled:
		e.metrics.AddActiveListings(-1)
	case events.Purchase:
		e.metrics.AddActiveListings(-1)
		e.metrics.ObserveSettlement(FixedPrice.String(), ev.Price, ev.Fee)
	case events.AuctionFinalized:
		e.metrics.AddActiveListings(-1)
		if ev.Amount != nil && ev.Amount.Sign() > 0 {
			e.metrics.ObserveSettlement(Auction.String(), ev.Amount, ev.Fee)
		}
	case events.PayoutCredited:
		e.metrics.ObservePayoutCredited(ev.Reason)
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrTransferFailed), errors.Is(err, ErrCustodyTransferFailed), errors.Is(err, ErrInvariantViolated):
		return "failed"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	default:
		return "rejected"
	}
}

func (e *Engine) loadPolicy() (*Policy, error) {
	policy, ok, err := e.state.PolicyGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNilPolicy
	}
	return policy, nil
}

type policyPause bool

func (p policyPause) IsPaused(string) bool { return bool(p) }

type stateBlacklist struct{ state engineState }

func (b stateBlacklist) IsBlacklisted(addr [20]byte) (bool, error) {
	return b.state.BlacklistGet(addr)
}

// admit applies the policy guard: owner pause, operator pause, then the
// caller blacklist.
func (e *Engine) admit(policy *Policy, caller [20]byte) error {
	pauses := []nativecommon.PauseView{policyPause(policy.Paused), e.pauses}
	return nativecommon.Admit(pauses, stateBlacklist{state: e.state}, ModuleName, caller)
}

func (e *Engine) validPrice(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && v.Cmp(e.maxPrice) <= 0
}

// splitFee returns fee = amount*bps/FeeBasis (floor) and amount-fee.
func splitFee(amount *big.Int, bps uint32) (*big.Int, *big.Int) {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	fee.Quo(fee, big.NewInt(FeeBasis))
	return fee, new(big.Int).Sub(amount, fee)
}

// collect pulls amount from payer into the vault.
func (e *Engine) collect(ctx context.Context, payer [20]byte, amount *big.Int) error {
	if err := e.funds.Transfer(ctx, payer, e.address, cloneBigInt(amount)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// pay sends amount from the vault to recipient. Under PayoutCredit a rejected
// payment is kept in the vault as a pending withdrawal for recipient.
func (e *Engine) pay(ctx context.Context, op *operation, recipient [20]byte, amount *big.Int, reason string) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	err := e.funds.Transfer(ctx, e.address, recipient, cloneBigInt(amount))
	if err == nil {
		return nil
	}
	if e.payout != PayoutCredit {
		return fmt.Errorf("%w: %s to %s: %w", ErrTransferFailed, reason, crypto.Format(crypto.AccountPrefix, recipient), err)
	}
	pending, cerr := e.state.PayoutCreditGet(recipient)
	if cerr != nil {
		return cerr
	}
	if cerr := e.state.PayoutCreditPut(recipient, new(big.Int).Add(pending, amount)); cerr != nil {
		return cerr
	}
	op.emit(events.PayoutCredited{Recipient: recipient, Amount: cloneBigInt(amount), Reason: reason})
	op.annotate(zap.NamedError("payoutError", err))
	return nil
}

// transferAsset moves custody with the marketplace acting as operator.
func (e *Engine) transferAsset(ctx context.Context, key ListingKey, from, to [20]byte) error {
	id := key.AssetID
	if err := e.registry.TransferFrom(ctx, e.address, key.Collection, &id, from, to); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCustodyTransferFailed, key, err)
	}
	return nil
}

func listingFields(key ListingKey, caller [20]byte) []zap.Field {
	return []zap.Field{
		zap.String("collection", crypto.Format(crypto.CollectionPrefix, key.Collection)),
		zap.String("assetId", key.AssetID.Dec()),
		zap.String("caller", crypto.Format(crypto.AccountPrefix, caller)),
	}
}
