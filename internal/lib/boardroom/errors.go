package boardroom

import (
	sdkerrors "cosmossdk.io/errors"
)

var (
	ErrUnauthorized      = sdkerrors.Register(codespace, 2, "caller is not the boardroom operator")
	ErrZeroAmount        = sdkerrors.Register(codespace, 3, "amount must be positive")
	ErrNoStake           = sdkerrors.Register(codespace, 4, "participant has no stake")
	ErrInsufficientStake = sdkerrors.Register(codespace, 5, "withdraw exceeds staked balance")
	ErrWithdrawLocked    = sdkerrors.Register(codespace, 6, "stake still in withdraw lockup")
	ErrRewardLocked      = sdkerrors.Register(codespace, 7, "rewards still in reward lockup")
	ErrNoStakers         = sdkerrors.Register(codespace, 8, "cannot allocate to an empty pool")
	ErrNothingToAllocate = sdkerrors.Register(codespace, 9, "both allocation amounts are zero")
	ErrSameTick          = sdkerrors.Register(codespace, 10, "one guarded action per actor per tick")
	ErrLockupRange       = sdkerrors.Register(codespace, 11, "lockup epochs out of range")
)

const codespace = "boardroom"
