package main

import (
	"fmt"
	"math/big"

	"nftmarket/native/marketplace"
)

type listingView struct {
	Collection    string `json:"collection" yaml:"collection"`
	AssetID       string `json:"assetId" yaml:"assetId"`
	Seller        string `json:"seller" yaml:"seller"`
	Mode          string `json:"mode" yaml:"mode"`
	Price         string `json:"price" yaml:"price"`
	EndTime       int64  `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	HighestBidder string `json:"highestBidder,omitempty" yaml:"highestBidder,omitempty"`
	HighestBid    string `json:"highestBid,omitempty" yaml:"highestBid,omitempty"`
	CreatedAt     int64  `json:"createdAt" yaml:"createdAt"`
}

func newListingView(l *marketplace.Listing) listingView {
	v := listingView{
		Collection: formatCollection(l.Collection),
		AssetID:    l.AssetID.Dec(),
		Seller:     formatAccount(l.Seller),
		Mode:       l.Mode.String(),
		Price:      l.Price.String(),
		EndTime:    l.EndTime,
		CreatedAt:  l.CreatedAt,
	}
	if l.HasBid() {
		v.HighestBidder = formatAccount(l.HighestBidder)
		v.HighestBid = l.HighestBid.String()
	}
	return v
}

func (v listingView) lines() []string {
	out := []string{
		"collection:  " + v.Collection,
		"asset:       " + v.AssetID,
		"seller:      " + v.Seller,
		"mode:        " + v.Mode,
		"price:       " + v.Price,
		fmt.Sprintf("created:     %d", v.CreatedAt),
	}
	if v.EndTime != 0 {
		out = append(out, fmt.Sprintf("ends:        %d", v.EndTime))
	}
	if v.HighestBid != "" {
		out = append(out, "highBidder:  "+v.HighestBidder, "highBid:     "+v.HighestBid)
	}
	return out
}

type listingsView []listingView

func (v listingsView) lines() []string {
	if len(v) == 0 {
		return []string{"no active listings"}
	}
	out := make([]string, 0, len(v))
	for _, l := range v {
		line := fmt.Sprintf("%s/%s %s price=%s seller=%s", l.Collection, l.AssetID, l.Mode, l.Price, l.Seller)
		if l.HighestBid != "" {
			line += " highBid=" + l.HighestBid
		}
		out = append(out, line)
	}
	return out
}

type keyView struct {
	Collection string `json:"collection" yaml:"collection"`
	AssetID    string `json:"assetId" yaml:"assetId"`
}

type keysView []keyView

func newKeysView(keys []marketplace.ListingKey) keysView {
	out := make(keysView, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyView{Collection: formatCollection(k.Collection), AssetID: k.AssetID.Dec()})
	}
	return out
}

func (v keysView) lines() []string {
	if len(v) == 0 {
		return []string{"no active listings"}
	}
	out := make([]string, 0, len(v))
	for _, k := range v {
		out = append(out, k.Collection+"/"+k.AssetID)
	}
	return out
}

type settlementView struct {
	Buyer        string `json:"buyer,omitempty" yaml:"buyer,omitempty"`
	Price        string `json:"price" yaml:"price"`
	Fee          string `json:"fee" yaml:"fee"`
	SellerAmount string `json:"sellerAmount" yaml:"sellerAmount"`
}

func newSettlementView(s *marketplace.Settlement) settlementView {
	v := settlementView{Price: s.Price.String(), Fee: s.Fee.String(), SellerAmount: s.SellerAmount.String()}
	if s.Buyer != ([20]byte{}) {
		v.Buyer = formatAccount(s.Buyer)
	}
	return v
}

func (v settlementView) lines() []string {
	if v.Buyer == "" {
		return []string{"no bids: asset returned to seller"}
	}
	return []string{fmt.Sprintf("settled to %s price=%s fee=%s seller=%s", v.Buyer, v.Price, v.Fee, v.SellerAmount)}
}

type policyView struct {
	Owner         string `json:"owner" yaml:"owner"`
	FeeRecipient  string `json:"feeRecipient" yaml:"feeRecipient"`
	TradingFeeBps uint32 `json:"tradingFeeBps" yaml:"tradingFeeBps"`
	Paused        bool   `json:"paused" yaml:"paused"`
	Withdrawable  string `json:"withdrawable" yaml:"withdrawable"`
}

func (v policyView) lines() []string {
	return []string{
		"owner:         " + v.Owner,
		"feeRecipient:  " + v.FeeRecipient,
		fmt.Sprintf("tradingFee:    %d bps", v.TradingFeeBps),
		fmt.Sprintf("paused:        %t", v.Paused),
		"withdrawable:  " + v.Withdrawable,
	}
}

type amountView struct {
	Address string `json:"address" yaml:"address"`
	Amount  string `json:"amount" yaml:"amount"`
}

func newAmountView(addr [20]byte, amount *big.Int) amountView {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return amountView{Address: formatAccount(addr), Amount: amount.String()}
}

func (v amountView) lines() []string { return []string{v.Address + " " + v.Amount} }

type messageView struct {
	Message string `json:"message" yaml:"message"`
}

func (v messageView) lines() []string { return []string{v.Message} }
