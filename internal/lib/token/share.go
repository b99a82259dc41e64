package token

import (
	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"
)

type minterInfo struct {
	limit  math.Int
	minted math.Int
}

// Share is the governance/share token.  Minting goes through per-minter
// limits: the treasury is granted a limit and the policy engine derives its
// per-epoch share-reward headroom from limit minus minted.
type Share struct {
	*Ledger
	minters map[Address]*minterInfo
}

func NewShare(symbol string) *Share {
	return &Share{
		Ledger:  NewLedger(symbol),
		minters: map[Address]*minterInfo{},
	}
}

// SetMinterLimit grants (or adjusts) a minter's lifetime mint limit.
func (s *Share) SetMinterLimit(minter Address, limit math.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.minters[minter]
	if !ok {
		info = &minterInfo{limit: math.ZeroInt(), minted: math.ZeroInt()}
		s.minters[minter] = info
	}
	info.limit = limit
}

func (s *Share) MintLimitOf(minter Address) math.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.minters[minter]; ok {
		return info.limit
	}
	return math.ZeroInt()
}

func (s *Share) MintedAmountOf(minter Address) math.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.minters[minter]; ok {
		return info.minted
	}
	return math.ZeroInt()
}

// MintBy mints within the minter's remaining limit.
func (s *Share) MintBy(minter, to Address, amount math.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.minters[minter]
	if !ok || info.minted.Add(amount).GT(info.limit) {
		return sdkerrors.Wrapf(ErrMintLimitExceeded, "minter %s", minter)
	}
	info.minted = info.minted.Add(amount)
	s.creditLocked(to, amount)
	s.total = s.total.Add(amount)
	return nil
}
