package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/marketplace"
)

type storedListing struct {
	Collection    [20]byte
	AssetID       [32]byte
	Seller        [20]byte
	Mode          uint8
	Price         *big.Int
	EndTime       uint64
	HighestBidder [20]byte
	HighestBid    *big.Int
	CreatedAt     uint64
}

type storedPolicy struct {
	Owner         [20]byte
	FeeRecipient  [20]byte
	TradingFeeBps uint32
	Paused        bool
}

func newStoredListing(l *marketplace.Listing) *storedListing {
	return &storedListing{
		Collection:    l.Collection,
		AssetID:       l.AssetID.Bytes32(),
		Seller:        l.Seller,
		Mode:          uint8(l.Mode),
		Price:         new(big.Int).Set(l.Price),
		EndTime:       uint64(l.EndTime),
		HighestBidder: l.HighestBidder,
		HighestBid:    new(big.Int).Set(l.HighestBid),
		CreatedAt:     uint64(l.CreatedAt),
	}
}

func (s *storedListing) toListing() (*marketplace.Listing, error) {
	listing := &marketplace.Listing{
		Collection:    s.Collection,
		Seller:        s.Seller,
		Mode:          marketplace.SaleMode(s.Mode),
		Price:         s.Price,
		EndTime:       int64(s.EndTime),
		HighestBidder: s.HighestBidder,
		HighestBid:    s.HighestBid,
		CreatedAt:     int64(s.CreatedAt),
	}
	listing.AssetID.SetBytes32(s.AssetID[:])
	return marketplace.SanitizeListing(listing)
}

// ListingPut stores the listing under its (collection, asset id) key.
func (m *Manager) ListingPut(listing *marketplace.Listing) error {
	sanitized, err := marketplace.SanitizeListing(listing)
	if err != nil {
		return fmt.Errorf("state: listing: %w", err)
	}
	return m.KVPut(MarketListingKey(sanitized.Collection, sanitized.AssetID.Bytes32()), newStoredListing(sanitized))
}

// ListingGet loads the listing for key. The boolean reports whether a listing
// exists.
func (m *Manager) ListingGet(key marketplace.ListingKey) (*marketplace.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet(MarketListingKey(key.Collection, key.AssetID.Bytes32()), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	listing, err := stored.toListing()
	if err != nil {
		return nil, false, err
	}
	return listing, true, nil
}

// ListingDelete removes the listing for key.
func (m *Manager) ListingDelete(key marketplace.ListingKey) error {
	return m.KVDelete(MarketListingKey(key.Collection, key.AssetID.Bytes32()))
}

// ListingIterate visits every active listing ordered by collection then asset
// id.
func (m *Manager) ListingIterate(fn func(*marketplace.Listing) error) error {
	return m.iterateListings(marketListingPrefix, fn)
}

// ListingIterateCollection visits the active listings of one collection in
// ascending asset id order.
func (m *Manager) ListingIterateCollection(collection [20]byte, fn func(*marketplace.Listing) error) error {
	return m.iterateListings(MarketListingCollectionPrefix(collection), fn)
}

func (m *Manager) iterateListings(prefix []byte, fn func(*marketplace.Listing) error) error {
	return m.KVIterate(prefix, func(key, value []byte) error {
		var stored storedListing
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			return fmt.Errorf("state: decode listing %x: %w", key, err)
		}
		listing, err := stored.toListing()
		if err != nil {
			return err
		}
		return fn(listing)
	})
}

// PolicyGet loads the marketplace policy.
func (m *Manager) PolicyGet() (*marketplace.Policy, bool, error) {
	var stored storedPolicy
	ok, err := m.KVGet(marketPolicyKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &marketplace.Policy{
		Owner:         stored.Owner,
		FeeRecipient:  stored.FeeRecipient,
		TradingFeeBps: stored.TradingFeeBps,
		Paused:        stored.Paused,
	}, true, nil
}

// PolicyPut persists the marketplace policy.
func (m *Manager) PolicyPut(policy *marketplace.Policy) error {
	if policy == nil {
		return fmt.Errorf("state: nil policy")
	}
	return m.KVPut(marketPolicyKey, &storedPolicy{
		Owner:         policy.Owner,
		FeeRecipient:  policy.FeeRecipient,
		TradingFeeBps: policy.TradingFeeBps,
		Paused:        policy.Paused,
	})
}

// BlacklistGet reports whether addr is blacklisted.
func (m *Manager) BlacklistGet(addr [20]byte) (bool, error) {
	return m.KVGet(MarketBlacklistKey(addr), nil)
}

// BlacklistPut adds or removes addr from the blacklist set.
func (m *Manager) BlacklistPut(addr [20]byte, blacklisted bool) error {
	if !blacklisted {
		return m.KVDelete(MarketBlacklistKey(addr))
	}
	return m.KVPut(MarketBlacklistKey(addr), true)
}

// PayoutCreditGet returns the pending withdrawal balance of addr.
func (m *Manager) PayoutCreditGet(addr [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(MarketCreditKey(addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// PayoutCreditPut overwrites the pending withdrawal balance of addr. A zero
// amount removes the entry.
func (m *Manager) PayoutCreditPut(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(MarketCreditKey(addr))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative payout credit")
	}
	return m.KVPut(MarketCreditKey(addr), amount)
}

// PayoutCreditIterate visits every address holding a pending withdrawal.
func (m *Manager) PayoutCreditIterate(fn func(addr [20]byte, amount *big.Int) error) error {
	return m.KVIterate(marketCreditPrefix, func(key, value []byte) error {
		var addr [20]byte
		copy(addr[:], key[len(marketCreditPrefix):])
		amount := new(big.Int)
		if err := rlp.DecodeBytes(value, amount); err != nil {
			return fmt.Errorf("state: decode credit %x: %w", addr, err)
		}
		return fn(addr, amount)
	})
}
