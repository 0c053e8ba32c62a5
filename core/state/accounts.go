package state

import (
	"fmt"
	"math/big"
)

// Balance returns the native balance held by addr. Unknown accounts hold zero.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(BankBalanceKey(addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetBalance overwrites the native balance of addr.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(BankBalanceKey(addr))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %x", addr)
	}
	return m.KVPut(BankBalanceKey(addr), amount)
}
