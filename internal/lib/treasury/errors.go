package treasury

import (
	sdkerrors "cosmossdk.io/errors"
)

const codespace = "treasury"

var (
	ErrNotInitialized         = sdkerrors.Register(codespace, 2, "treasury not initialized")
	ErrAlreadyInitialized     = sdkerrors.Register(codespace, 3, "treasury already initialized")
	ErrMigrated               = sdkerrors.Register(codespace, 4, "treasury migrated; operation disabled")
	ErrAlreadyMigrated        = sdkerrors.Register(codespace, 5, "treasury already migrated")
	ErrUnauthorized           = sdkerrors.Register(codespace, 6, "caller is not the treasury operator")
	ErrZeroAmount             = sdkerrors.Register(codespace, 7, "amount must be positive")
	ErrPriceNotBelowPeg       = sdkerrors.Register(codespace, 8, "dollar price not below peg; bonds not on sale")
	ErrPriceNotAboveCeiling   = sdkerrors.Register(codespace, 9, "dollar price not above ceiling; bonds not redeemable")
	ErrContractionCapExceeded = sdkerrors.Register(codespace, 10, "amount exceeds remaining epoch contraction")
	ErrDebtRatioExceeded      = sdkerrors.Register(codespace, 11, "bond supply would exceed max debt ratio")
	ErrInsufficientFunds      = sdkerrors.Register(codespace, 12, "treasury has not enough dollars for redemption")
	ErrSeigniorageDepleted    = sdkerrors.Register(codespace, 13, "seigniorage saved less than redemption amount")
	ErrParamOutOfRange        = sdkerrors.Register(codespace, 14, "parameter outside its valid range")
	ErrOracleConsult          = sdkerrors.Register(codespace, 15, "failed to consult dollar price")
	ErrCoreAssetRecovery      = sdkerrors.Register(codespace, 16, "core protocol assets cannot be recovered")
)
