package state

var (
	marketListingPrefix   = []byte("mkt/listing/")
	marketPolicyKey       = []byte("mkt/policy")
	marketBlacklistPrefix = []byte("mkt/blacklist/")
	marketCreditPrefix    = []byte("mkt/credit/")

	nftOwnerPrefix    = []byte("nft/owner/")
	nftApprovalPrefix = []byte("nft/approval/")
	nftOperatorPrefix = []byte("nft/operator/")

	bankBalancePrefix = []byte("bank/balance/")
)

func concatKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// MarketListingKey returns the ledger key for (collection, asset id). The asset
// id is encoded as a 32 byte big-endian word so keys sort numerically.
func MarketListingKey(collection [20]byte, assetID [32]byte) []byte {
	return concatKey(marketListingPrefix, collection[:], assetID[:])
}

// MarketListingCollectionPrefix returns the prefix shared by every listing of
// a collection.
func MarketListingCollectionPrefix(collection [20]byte) []byte {
	return concatKey(marketListingPrefix, collection[:])
}

func MarketBlacklistKey(addr [20]byte) []byte {
	return concatKey(marketBlacklistPrefix, addr[:])
}

func MarketCreditKey(addr [20]byte) []byte {
	return concatKey(marketCreditPrefix, addr[:])
}

func NFTOwnerKey(collection [20]byte, assetID [32]byte) []byte {
	return concatKey(nftOwnerPrefix, collection[:], assetID[:])
}

func NFTApprovalKey(collection [20]byte, assetID [32]byte) []byte {
	return concatKey(nftApprovalPrefix, collection[:], assetID[:])
}

func NFTOperatorKey(collection, owner, operator [20]byte) []byte {
	return concatKey(nftOperatorPrefix, collection[:], owner[:], operator[:])
}

func BankBalanceKey(addr [20]byte) []byte {
	return concatKey(bankBalancePrefix, addr[:])
}
