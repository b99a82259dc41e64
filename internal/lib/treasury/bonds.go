package treasury

import (
	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/events"
	"github.com/stableunit/policyd/internal/lib/misc"
	"github.com/stableunit/policyd/internal/lib/token"
)

// BuyBonds burns the buyer's dollars and mints bonds 1:1.  Only permitted
// below peg, within the per-epoch contraction cap, and while the resulting
// bond supply stays under the max debt ratio.
func (t *Treasury) BuyBonds(buyer token.Address, amount math.Int) error {
	t.Lock()
	defer t.Unlock()

	if !t.initialized {
		return ErrNotInitialized
	}
	if t.migrated {
		return ErrMigrated
	}
	if !amount.IsPositive() {
		return ErrZeroAmount
	}

	price, err := t.dollarPriceLocked()
	if err != nil {
		return err
	}
	if price.GTE(t.cfg.DollarPriceOne) {
		return sdkerrors.Wrapf(ErrPriceNotBelowPeg, "price %s", price)
	}
	if amount.GT(t.epochSupplyContractionLeft) {
		return sdkerrors.Wrapf(ErrContractionCapExceeded, "%s left this epoch", t.epochSupplyContractionLeft)
	}
	if t.dollar.BalanceOf(buyer).LT(amount) {
		return sdkerrors.Wrapf(token.ErrInsufficientBalance, "buyer %s short of %s dollars", buyer, amount)
	}
	debtCap := t.dollar.TotalSupply().MulRaw(int64(t.cfg.MaxDebtRatioPercent)).QuoRaw(bpsDenom)
	if t.bond.TotalSupply().Add(amount).GT(debtCap) {
		return sdkerrors.Wrapf(ErrDebtRatioExceeded, "cap %s", debtCap)
	}

	if err := t.dollar.BurnFrom(t.addr, buyer, amount); err != nil {
		return err
	}
	if err := t.bond.Mint(buyer, amount); err != nil {
		return err
	}
	t.epochSupplyContractionLeft = t.epochSupplyContractionLeft.Sub(amount)

	if err := t.oracle.Update(); err != nil {
		promOracleUpdateFailures.Inc()
		misc.Debugf(t.logger, "post-trade oracle update failed: %v", err)
	}
	t.recorder.Emit(EventBoughtBonds,
		events.S("buyer", string(buyer)),
		events.M("amount", amount))
	return nil
}

// RedeemBonds burns the holder's bonds and pays out dollars 1:1 from the
// seigniorage reserve.  Only permitted above the price ceiling and while
// both the reserve counter and the treasury's dollar balance cover it.
func (t *Treasury) RedeemBonds(holder token.Address, amount math.Int) error {
	t.Lock()
	defer t.Unlock()

	if !t.initialized {
		return ErrNotInitialized
	}
	if t.migrated {
		return ErrMigrated
	}
	if !amount.IsPositive() {
		return ErrZeroAmount
	}

	price, err := t.dollarPriceLocked()
	if err != nil {
		return err
	}
	if price.LTE(t.cfg.DollarPriceCeiling) {
		return sdkerrors.Wrapf(ErrPriceNotAboveCeiling, "price %s", price)
	}
	if t.seigniorageSaved.LT(amount) {
		return sdkerrors.Wrapf(ErrSeigniorageDepleted, "saved %s, redeeming %s", t.seigniorageSaved, amount)
	}
	if t.dollar.BalanceOf(t.addr).LT(amount) {
		return sdkerrors.Wrapf(ErrInsufficientFunds, "redeeming %s", amount)
	}

	t.seigniorageSaved = t.seigniorageSaved.Sub(amount)
	if err := t.bond.BurnFrom(t.addr, holder, amount); err != nil {
		return err
	}
	if err := t.dollar.Transfer(t.addr, holder, amount); err != nil {
		return err
	}

	if err := t.oracle.Update(); err != nil {
		promOracleUpdateFailures.Inc()
		misc.Debugf(t.logger, "post-trade oracle update failed: %v", err)
	}
	t.recorder.Emit(EventRedeemedBonds,
		events.S("holder", string(holder)),
		events.M("amount", amount))
	return nil
}
