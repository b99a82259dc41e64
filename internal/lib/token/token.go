// Package token holds the in-process asset ledgers the policy engine runs
// against: the pegged dollar (mint/burn/rebase), the share token with
// per-minter mint limits, and the bond token (a bare ledger).  Balances,
// supplies and allowances are cosmossdk math.Int; every mutating call names
// the acting account explicitly since there is no ambient "sender" here.
package token

import (
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"
)

type Address string

const ZeroAddress Address = ""

var (
	ErrInsufficientBalance   = sdkerrors.Register("token", 2, "insufficient balance")
	ErrInsufficientAllowance = sdkerrors.Register("token", 3, "insufficient allowance")
	ErrNegativeAmount        = sdkerrors.Register("token", 4, "negative amount")
	ErrRebaseExceedsSupply   = sdkerrors.Register("token", 5, "rebase delta exceeds rebase supply")
	ErrMintLimitExceeded     = sdkerrors.Register("token", 6, "minter over its mint limit")
)

// Ledger is a plain transferable asset: total supply, balances, allowances.
// The bond token is a Ledger as-is; the dollar and share tokens embed it.
type Ledger struct {
	addr   Address
	symbol string

	mu         sync.Mutex
	total      math.Int
	balances   map[Address]math.Int
	allowances map[Address]map[Address]math.Int
}

func NewLedger(symbol string) *Ledger {
	return &Ledger{
		addr:       Address(symbol),
		symbol:     symbol,
		total:      math.ZeroInt(),
		balances:   map[Address]math.Int{},
		allowances: map[Address]map[Address]math.Int{},
	}
}

func (l *Ledger) Address() Address { return l.addr }
func (l *Ledger) Symbol() string   { return l.symbol }

func (l *Ledger) TotalSupply() math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Ledger) BalanceOf(a Address) math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(a)
}

func (l *Ledger) Allowance(owner, spender Address) math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return math.ZeroInt()
}

// Approve sets (not adds to) the spender's allowance over owner's balance.
func (l *Ledger) Approve(owner, spender Address, amount math.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = map[Address]math.Int{}
		l.allowances[owner] = m
	}
	m[spender] = amount
	return nil
}

func (l *Ledger) Mint(to Address, amount math.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creditLocked(to, amount)
	l.total = l.total.Add(amount)
	return nil
}

func (l *Ledger) Burn(holder Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burnLocked(holder, amount)
}

func (l *Ledger) BurnFrom(spender, holder Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.spendAllowanceLocked(holder, spender, amount); err != nil {
		return err
	}
	return l.burnLocked(holder, amount)
}

func (l *Ledger) Transfer(from, to Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(from, to, amount)
}

func (l *Ledger) TransferFrom(spender, from, to Address, amount math.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.spendAllowanceLocked(from, spender, amount); err != nil {
		return err
	}
	return l.moveLocked(from, to, amount)
}

func (l *Ledger) balanceLocked(a Address) math.Int {
	if b, ok := l.balances[a]; ok {
		return b
	}
	return math.ZeroInt()
}

func (l *Ledger) creditLocked(a Address, amount math.Int) {
	l.balances[a] = l.balanceLocked(a).Add(amount)
}

func (l *Ledger) moveLocked(from, to Address, amount math.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	bal := l.balanceLocked(from)
	if bal.LT(amount) {
		return sdkerrors.Wrapf(ErrInsufficientBalance, "%s has %s, needs %s %s", from, bal, amount, l.symbol)
	}
	l.balances[from] = bal.Sub(amount)
	l.creditLocked(to, amount)
	return nil
}

func (l *Ledger) burnLocked(holder Address, amount math.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	bal := l.balanceLocked(holder)
	if bal.LT(amount) {
		return sdkerrors.Wrapf(ErrInsufficientBalance, "%s has %s, burning %s %s", holder, bal, amount, l.symbol)
	}
	l.balances[holder] = bal.Sub(amount)
	l.total = l.total.Sub(amount)
	return nil
}

func (l *Ledger) spendAllowanceLocked(owner, spender Address, amount math.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	m := l.allowances[owner]
	cur := math.ZeroInt()
	if m != nil {
		if a, ok := m[spender]; ok {
			cur = a
		}
	}
	if cur.LT(amount) {
		return sdkerrors.Wrapf(ErrInsufficientAllowance, "%s allowed %s by %s, needs %s", spender, cur, owner, amount)
	}
	m[spender] = cur.Sub(amount)
	return nil
}
