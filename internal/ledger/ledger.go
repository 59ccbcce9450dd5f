/*

In-memory fungible ledger used for both pool share accounting and the local
token balances backing the pools. The sum of all balances always equals the
issued total: value only enters via Mint and leaves via Burn.

*/

package ledger

import (
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"github.com/lumefi/bridgepool/internal/types"
)

// FungibleLedger is the accounting capability both pools compose. Implemented
// by Ledger; declared as an interface so alternative backings (e.g. a
// persistent ledger) can be swapped in.
type FungibleLedger interface {
	Mint(holder types.Address, amount math.Int) error
	Burn(holder types.Address, amount math.Int) error
	Transfer(from, to types.Address, amount math.Int) error
	BalanceOf(holder types.Address) math.Int
	TotalShares() math.Int
}

// Ledger is the mutex-guarded in-memory implementation.
type Ledger struct {
	mu       sync.RWMutex
	name     string
	balances map[types.Address]math.Int
	total    math.Int
}

// New creates an empty ledger. The name appears in error messages only.
func New(name string) *Ledger {
	return &Ledger{
		name:     name,
		balances: make(map[types.Address]math.Int),
		total:    math.ZeroInt(),
	}
}

// Mint credits amount to holder and grows the issued total.
func (l *Ledger) Mint(holder types.Address, amount math.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[holder] = l.balanceLocked(holder).Add(amount)
	l.total = l.total.Add(amount)
	return nil
}

// Burn debits amount from holder and shrinks the issued total. Fails with
// ErrInsufficientBalance if holder does not carry amount.
func (l *Ledger) Burn(holder types.Address, amount math.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balanceLocked(holder)
	if balance.LT(amount) {
		return fmt.Errorf("%w: %s burn of %s exceeds balance %s of %s",
			types.ErrInsufficientBalance, l.name, amount, balance, holder)
	}
	l.balances[holder] = balance.Sub(amount)
	l.total = l.total.Sub(amount)
	return nil
}

// Transfer moves amount between holders without changing the issued total.
func (l *Ledger) Transfer(from, to types.Address, amount math.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balanceLocked(from)
	if balance.LT(amount) {
		return fmt.Errorf("%w: %s transfer of %s exceeds balance %s of %s",
			types.ErrInsufficientBalance, l.name, amount, balance, from)
	}
	l.balances[from] = balance.Sub(amount)
	l.balances[to] = l.balanceLocked(to).Add(amount)
	return nil
}

// BalanceOf returns holder's balance, zero for unknown holders.
func (l *Ledger) BalanceOf(holder types.Address) math.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(holder)
}

// TotalShares returns the issued total.
func (l *Ledger) TotalShares() math.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

func (l *Ledger) balanceLocked(holder types.Address) math.Int {
	if balance, ok := l.balances[holder]; ok {
		return balance
	}
	return math.ZeroInt()
}

func validateAmount(amount math.Int) error {
	if amount.IsNil() {
		return types.ErrAmountNil
	}
	if amount.IsNegative() {
		return types.ErrAmountNegative
	}
	return nil
}
