package state

// NFTOwner returns the recorded owner of an asset and whether it exists.
func (m *Manager) NFTOwner(collection [20]byte, assetID [32]byte) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := m.KVGet(NFTOwnerKey(collection, assetID), &owner)
	return owner, ok, err
}

// NFTSetOwner records owner as the holder of the asset.
func (m *Manager) NFTSetOwner(collection [20]byte, assetID [32]byte, owner [20]byte) error {
	return m.KVPut(NFTOwnerKey(collection, assetID), owner)
}

// NFTApproval returns the per-asset approved operator, if any.
func (m *Manager) NFTApproval(collection [20]byte, assetID [32]byte) ([20]byte, bool, error) {
	var operator [20]byte
	ok, err := m.KVGet(NFTApprovalKey(collection, assetID), &operator)
	return operator, ok, err
}

// NFTSetApproval sets or, when clear is true, removes the per-asset approval.
func (m *Manager) NFTSetApproval(collection [20]byte, assetID [32]byte, operator [20]byte, clear bool) error {
	if clear {
		return m.KVDelete(NFTApprovalKey(collection, assetID))
	}
	return m.KVPut(NFTApprovalKey(collection, assetID), operator)
}

// NFTOperatorApproved reports whether operator may move every asset of owner
// within collection.
func (m *Manager) NFTOperatorApproved(collection, owner, operator [20]byte) (bool, error) {
	return m.KVGet(NFTOperatorKey(collection, owner, operator), nil)
}

func (m *Manager) NFTSetOperatorApproved(collection, owner, operator [20]byte, approved bool) error {
	if !approved {
		return m.KVDelete(NFTOperatorKey(collection, owner, operator))
	}
	return m.KVPut(NFTOperatorKey(collection, owner, operator), true)
}
