package token

import (
	"cosmossdk.io/math"
)

// Dollar is the pegged token.  On top of the plain ledger it supports a
// protocol-level rebase: a signed supply delta applied pro-rata to every
// non-exempt balance.  Exempt accounts (the treasury and the boardrooms)
// neither scale on rebase nor count toward RebaseSupply, which is the base
// the policy engine uses for contraction accounting.
type Dollar struct {
	*Ledger
	rebaseExempt map[Address]bool
}

func NewDollar(symbol string) *Dollar {
	return &Dollar{
		Ledger:       NewLedger(symbol),
		rebaseExempt: map[Address]bool{},
	}
}

func (d *Dollar) SetRebaseExempt(a Address, exempt bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if exempt {
		d.rebaseExempt[a] = true
	} else {
		delete(d.rebaseExempt, a)
	}
}

// RebaseSupply is the total held by rebase-participating accounts.
func (d *Dollar) RebaseSupply() math.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rebaseSupplyLocked()
}

func (d *Dollar) rebaseSupplyLocked() math.Int {
	supply := math.ZeroInt()
	for a, b := range d.balances {
		if !d.rebaseExempt[a] {
			supply = supply.Add(b)
		}
	}
	return supply
}

// Rebase scales every non-exempt balance by (rebaseSupply+delta)/rebaseSupply
// with truncating division and returns the new total supply.  A zero delta or
// an empty rebase set is a no-op.  Per-balance truncation means the applied
// delta can differ from the requested one by dust, at most one unit per
// participating account.
func (d *Dollar) Rebase(epoch uint64, delta math.Int) (math.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	supply := d.rebaseSupplyLocked()
	if delta.IsZero() || supply.IsZero() {
		return d.total, nil
	}
	if delta.IsNegative() && delta.Neg().GTE(supply) {
		return d.total, ErrRebaseExceedsSupply
	}

	target := supply.Add(delta)
	for a, bal := range d.balances {
		if d.rebaseExempt[a] || bal.IsZero() {
			continue
		}
		scaled := bal.Mul(target).Quo(supply)
		d.balances[a] = scaled
		d.total = d.total.Add(scaled.Sub(bal))
	}
	return d.total, nil
}
