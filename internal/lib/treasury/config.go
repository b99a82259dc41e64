package treasury

import (
	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/token"
)

// Percent-style parameters are expressed in basis points of 10000.
const bpsDenom = 10000

// Config holds the tunable monetary-policy parameters.  All prices are
// 1e18 fixed-point; all *Percent fields are basis points.
type Config struct {
	DollarPriceOne            math.Int
	DollarPriceCeiling        math.Int
	TriggerRebasePriceCeiling math.Int

	// Contraction also triggers after this many consecutive under-peg epochs,
	// even when price has not fallen through TriggerRebasePriceCeiling.
	TriggerRebaseNumEpochFloor uint64

	MaxSupplyContractionPercent uint64
	MaxDebtRatioPercent         uint64
	BondDepletionFloorPercent   uint64
	BondRepayPercent            uint64

	ExpansionIndex   uint64
	ContractionIndex uint64

	DevPercentage uint64
	DevFund       token.Address

	SharesMintedPerEpoch math.Int
}

// DefaultConfig returns the launch parameters: peg 1.00, expansion ceiling
// 1.01, rebase trigger 0.80 or 21 under-peg epochs, 3% max contraction, 35%
// max debt ratio, 100% depletion floor, 15% bond repayment, 10% expansion
// index, 100% contraction index, 2% dev cut and 9000 shares per epoch.
func DefaultConfig(devFund token.Address) Config {
	one := math.NewIntWithDecimal(1, 18)
	return Config{
		DollarPriceOne:              one,
		DollarPriceCeiling:          one.MulRaw(101).QuoRaw(100),
		TriggerRebasePriceCeiling:   one.MulRaw(80).QuoRaw(100),
		TriggerRebaseNumEpochFloor:  21,
		MaxSupplyContractionPercent: 300,
		MaxDebtRatioPercent:         3500,
		BondDepletionFloorPercent:   10000,
		BondRepayPercent:            1500,
		ExpansionIndex:              1000,
		ContractionIndex:            10000,
		DevPercentage:               200,
		DevFund:                     devFund,
		SharesMintedPerEpoch:        math.NewIntWithDecimal(9000, 18),
	}
}

// Setters below are operator-gated and range-checked; out-of-range values
// are rejected rather than clamped.

func (t *Treasury) SetDollarPriceCeiling(caller token.Address, ceiling math.Int) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	one := t.cfg.DollarPriceOne
	if ceiling.LT(one) || ceiling.GT(one.MulRaw(110).QuoRaw(100)) {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "ceiling %s outside [peg, peg*1.10]", ceiling)
	}
	t.cfg.DollarPriceCeiling = ceiling
	return nil
}

func (t *Treasury) SetTriggerRebasePriceCeiling(caller token.Address, ceiling math.Int) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if !ceiling.IsPositive() || ceiling.GTE(t.cfg.DollarPriceOne) {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "rebase trigger %s outside (0, peg)", ceiling)
	}
	t.cfg.TriggerRebasePriceCeiling = ceiling
	return nil
}

func (t *Treasury) SetTriggerRebaseNumEpochFloor(caller token.Address, epochs uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if epochs < 1 || epochs > 100 {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "epoch floor %d outside [1, 100]", epochs)
	}
	t.cfg.TriggerRebaseNumEpochFloor = epochs
	return nil
}

func (t *Treasury) SetMaxSupplyContractionPercent(caller token.Address, bps uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps < 100 || bps > 1500 {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "max contraction %dbps outside [100, 1500]", bps)
	}
	t.cfg.MaxSupplyContractionPercent = bps
	return nil
}

func (t *Treasury) SetMaxDebtRatioPercent(caller token.Address, bps uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps < 1000 || bps > 10000 {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "max debt ratio %dbps outside [1000, 10000]", bps)
	}
	t.cfg.MaxDebtRatioPercent = bps
	return nil
}

func (t *Treasury) SetBondDepletionFloorPercent(caller token.Address, bps uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps < 500 || bps > 10000 {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "depletion floor %dbps outside [500, 10000]", bps)
	}
	t.cfg.BondDepletionFloorPercent = bps
	return nil
}

func (t *Treasury) SetBondRepayPercent(caller token.Address, bps uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps > bpsDenom {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "bond repay %dbps above 10000", bps)
	}
	t.cfg.BondRepayPercent = bps
	return nil
}

func (t *Treasury) SetExpansionIndex(caller token.Address, bps uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps > bpsDenom {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "expansion index %dbps above 10000", bps)
	}
	t.cfg.ExpansionIndex = bps
	return nil
}

func (t *Treasury) SetContractionIndex(caller token.Address, bps uint64) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps > bpsDenom {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "contraction index %dbps above 10000", bps)
	}
	t.cfg.ContractionIndex = bps
	return nil
}

// SetDevPercentage adjusts the developer cut taken from the boardroom share
// of seigniorage.  20% and above is rejected outright.
func (t *Treasury) SetDevPercentage(caller token.Address, bps uint64, fund token.Address) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if bps >= 2000 {
		return sdkerrors.Wrapf(ErrParamOutOfRange, "dev percentage %dbps must stay below 2000", bps)
	}
	if fund == token.ZeroAddress {
		return sdkerrors.Wrap(ErrParamOutOfRange, "dev fund address unset")
	}
	t.cfg.DevPercentage = bps
	t.cfg.DevFund = fund
	return nil
}

func (t *Treasury) SetSharesMintedPerEpoch(caller token.Address, amount math.Int) error {
	t.Lock()
	defer t.Unlock()
	if err := t.gateConfigLocked(caller); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkerrors.Wrap(ErrParamOutOfRange, "shares per epoch must be non-negative")
	}
	t.cfg.SharesMintedPerEpoch = amount
	return nil
}

func (t *Treasury) gateConfigLocked(caller token.Address) error {
	if !t.initialized {
		return ErrNotInitialized
	}
	if t.migrated {
		return ErrMigrated
	}
	if caller != t.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	return nil
}
