package types

import "math/big"

// Account holds the per-denom balances tracked by the venue. Balances are
// keyed by the canonical uppercase denom symbol.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an empty account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the balance for the denom, treating missing entries as zero.
func (a *Account) Balance(denom string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	bal, ok := a.Balances[denom]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// SetBalance overwrites the balance for the denom.
func (a *Account) SetBalance(denom string, amount *big.Int) {
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[denom] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[string]*big.Int, len(a.Balances))}
	for denom, bal := range a.Balances {
		if bal == nil {
			bal = big.NewInt(0)
		}
		clone.Balances[denom] = new(big.Int).Set(bal)
	}
	return clone
}
