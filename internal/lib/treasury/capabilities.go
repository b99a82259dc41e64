package treasury

import (
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/token"
)

// The treasury consumes its collaborators through the interfaces below;
// internal/lib/token provides the in-process implementations and an on-chain
// deployment would provide adapters.

// DollarToken is the pegged token capability.
type DollarToken interface {
	Address() token.Address
	TotalSupply() math.Int
	BalanceOf(a token.Address) math.Int
	Mint(to token.Address, amount math.Int) error
	BurnFrom(spender, holder token.Address, amount math.Int) error
	Transfer(from, to token.Address, amount math.Int) error
	Approve(owner, spender token.Address, amount math.Int) error
	Rebase(epoch uint64, delta math.Int) (math.Int, error)
	RebaseSupply() math.Int
}

// BondToken is the debt instrument capability.
type BondToken interface {
	Address() token.Address
	TotalSupply() math.Int
	BalanceOf(a token.Address) math.Int
	Mint(to token.Address, amount math.Int) error
	BurnFrom(spender, holder token.Address, amount math.Int) error
	Transfer(from, to token.Address, amount math.Int) error
}

// ShareToken is the mint-limited share capability; the treasury derives its
// per-epoch share-reward headroom from limit minus minted.
type ShareToken interface {
	Address() token.Address
	TotalSupply() math.Int
	BalanceOf(a token.Address) math.Int
	MintBy(minter, to token.Address, amount math.Int) error
	MintLimitOf(minter token.Address) math.Int
	MintedAmountOf(minter token.Address) math.Int
	Transfer(from, to token.Address, amount math.Int) error
	Approve(owner, spender token.Address, amount math.Int) error
}

// PriceOracle supplies the time-weighted dollar price.  Update is
// best-effort from the treasury's point of view; Consult is not.
type PriceOracle interface {
	Update() error
	Consult(asset token.Address, amountIn math.Int) (math.Int, error)
}

// SeigniorageReceiver is a boardroom from the treasury's point of view.
type SeigniorageReceiver interface {
	AllocateSeigniorage(caller token.Address, cash, share math.Int) error
	TotalStaked() math.Int
}

// BoardroomAllocation is one registry entry: where to route, whether it is
// active, and its weight in each reward stream.
type BoardroomAllocation struct {
	Addr        token.Address
	Target      SeigniorageReceiver
	Active      bool
	CashPoints  math.Int
	SharePoints math.Int
}

// AllocationRegistry enumerates boardrooms and allocation weights.  The
// treasury only ever reads it.
type AllocationRegistry interface {
	Count() int
	Boardroom(i int) (BoardroomAllocation, error)
	TotalCashAllocationPoints() math.Int
	TotalShareAllocationPoints() math.Int
}

// RecoverableAsset is the minimal surface needed to sweep a stray token out
// of the treasury account.
type RecoverableAsset interface {
	Address() token.Address
	Transfer(from, to token.Address, amount math.Int) error
}
