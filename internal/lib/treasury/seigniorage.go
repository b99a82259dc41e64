package treasury

import (
	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/chrono"
	"github.com/stableunit/policyd/internal/lib/events"
	"github.com/stableunit/policyd/internal/lib/misc"
)

// AllocateSeigniorage runs one epoch of monetary policy.  All validation
// happens before any mutation: an error return means nothing changed, not
// even the epoch counter.  The oracle Update is the one deliberate
// exception - it is best-effort, a stale feed must not stall the protocol,
// but a Consult failure aborts the whole transition.
func (t *Treasury) AllocateSeigniorage() error {
	t.Lock()
	defer t.Unlock()

	if !t.initialized {
		return ErrNotInitialized
	}
	if t.migrated {
		return ErrMigrated
	}
	if !t.clock.Due() {
		return chrono.ErrNotDue
	}

	if err := t.oracle.Update(); err != nil {
		promOracleUpdateFailures.Inc()
		misc.Warnf(t.logger, "oracle update failed, consulting stale price: %v", err)
	}
	price, err := t.dollarPriceLocked()
	if err != nil {
		return err
	}

	epoch, err := t.clock.AdvanceIfDue()
	if err != nil {
		return err
	}

	// Reset the per-epoch bond window and roll the under-peg streak.
	t.epochSupplyContractionLeft = t.dollar.TotalSupply().
		MulRaw(int64(t.cfg.MaxSupplyContractionPercent)).QuoRaw(bpsDenom)
	if price.LT(t.cfg.DollarPriceOne) {
		t.epochsUnderPeg++
	} else {
		t.epochsUnderPeg = 0
	}

	shareRewards := t.shareRewardHeadroomLocked()

	switch {
	case price.GT(t.cfg.DollarPriceCeiling):
		if err := t.expandLocked(epoch, price, shareRewards); err != nil {
			return err
		}
	case price.LTE(t.cfg.TriggerRebasePriceCeiling) ||
		(price.LT(t.cfg.DollarPriceOne) && t.epochsUnderPeg > t.cfg.TriggerRebaseNumEpochFloor):
		if err := t.contractLocked(epoch, price, shareRewards); err != nil {
			return err
		}
	default:
		if err := t.sendToBoardroomsLocked(math.ZeroInt(), shareRewards); err != nil {
			return err
		}
	}

	t.observeEpochLocked(epoch, price)
	misc.Infof(t.logger, "epoch %d allocated at price %s", epoch, price)
	return nil
}

// expandLocked mints seigniorage proportional to the peg overshoot, splits
// it between bond repayment and the boardrooms, and carves the dev cut out
// of the boardroom half.
func (t *Treasury) expandLocked(epoch uint64, price, shareRewards math.Int) error {
	delta := t.supplyDeltaLocked(price)
	seigniorage := delta.MulRaw(int64(t.cfg.ExpansionIndex)).QuoRaw(bpsDenom)
	if !seigniorage.IsPositive() {
		return t.sendToBoardroomsLocked(math.ZeroInt(), shareRewards)
	}

	savedForBond, forBoardrooms := t.splitSeigniorageLocked(seigniorage)
	devCut := forBoardrooms.MulRaw(int64(t.cfg.DevPercentage)).QuoRaw(bpsDenom)
	forBoardrooms = forBoardrooms.Sub(devCut)

	if savedForBond.IsPositive() {
		t.seigniorageSaved = t.seigniorageSaved.Add(savedForBond)
		if err := t.dollar.Mint(t.addr, savedForBond); err != nil {
			return err
		}
		t.recorder.Emit(EventTreasuryFunded,
			events.U("epoch", epoch), events.M("amount", savedForBond))
	}
	if devCut.IsPositive() {
		if err := t.dollar.Mint(t.cfg.DevFund, devCut); err != nil {
			return err
		}
		t.recorder.Emit(EventDevsFunded,
			events.U("epoch", epoch), events.M("amount", devCut))
	}
	return t.sendToBoardroomsLocked(forBoardrooms, shareRewards)
}

// contractLocked rebases the non-exempt supply down by the scaled deficit.
// Share rewards still flow so governance stays funded through the downturn.
func (t *Treasury) contractLocked(epoch uint64, price, shareRewards math.Int) error {
	delta := t.supplyDeltaLocked(price)
	scaled := delta.MulRaw(int64(t.cfg.ContractionIndex)).QuoRaw(bpsDenom)
	if scaled.IsNegative() {
		newSupply, err := t.dollar.Rebase(epoch, scaled)
		if err != nil {
			return err
		}
		misc.Infof(t.logger, "epoch %d rebased by %s, rebase supply now %s", epoch, scaled, newSupply)
	}
	return t.sendToBoardroomsLocked(math.ZeroInt(), shareRewards)
}

// supplyDeltaLocked is base * (price - peg) / peg, truncating toward zero.
// Below peg the base is the rebase-eligible supply; at or above it is the
// circulating supply.
func (t *Treasury) supplyDeltaLocked(price math.Int) math.Int {
	one := t.cfg.DollarPriceOne
	var base math.Int
	if price.LT(one) {
		base = t.dollar.RebaseSupply()
	} else {
		base = t.circulatingSupplyLocked()
	}
	return base.Mul(price.Sub(one)).Quo(one)
}

// splitSeigniorageLocked decides how much of the epoch's seigniorage repays
// bond debt.  With reserves at or above the depletion floor of the bond
// supply everything goes to the boardrooms; otherwise up to BondRepayPercent
// of the seigniorage goes to reserves, capped at the outstanding deficit.
func (t *Treasury) splitSeigniorageLocked(seigniorage math.Int) (savedForBond, forBoardrooms math.Int) {
	bondSupply := t.bond.TotalSupply()
	floor := bondSupply.MulRaw(int64(t.cfg.BondDepletionFloorPercent)).QuoRaw(bpsDenom)
	if t.seigniorageSaved.GTE(floor) {
		return math.ZeroInt(), seigniorage
	}
	deficit := bondSupply.Sub(t.seigniorageSaved)
	saved := seigniorage.MulRaw(int64(t.cfg.BondRepayPercent)).QuoRaw(bpsDenom)
	if saved.GT(deficit) {
		saved = deficit
	}
	return saved, seigniorage.Sub(saved)
}

// shareRewardHeadroomLocked is the per-epoch share emission clamped to what
// the treasury's mint allowance still permits.
func (t *Treasury) shareRewardHeadroomLocked() math.Int {
	headroom := t.share.MintLimitOf(t.addr).Sub(t.share.MintedAmountOf(t.addr))
	if headroom.IsNegative() {
		headroom = math.ZeroInt()
	}
	if t.cfg.SharesMintedPerEpoch.LT(headroom) {
		return t.cfg.SharesMintedPerEpoch
	}
	return headroom
}

// sendToBoardroomsLocked mints the epoch rewards and fans them out by
// allocation points, floor division per target.  Inactive entries and empty
// pools are skipped; skipped cash stays on the treasury account.
func (t *Treasury) sendToBoardroomsLocked(cash, shareRewards math.Int) error {
	if cash.IsPositive() {
		if err := t.dollar.Mint(t.addr, cash); err != nil {
			return err
		}
	}
	if shareRewards.IsPositive() {
		if err := t.share.MintBy(t.addr, t.addr, shareRewards); err != nil {
			return err
		}
	}

	totalCashPoints := t.registry.TotalCashAllocationPoints()
	totalSharePoints := t.registry.TotalShareAllocationPoints()

	for i := 0; i < t.registry.Count(); i++ {
		entry, err := t.registry.Boardroom(i)
		if err != nil {
			return err
		}
		if !entry.Active {
			continue
		}

		cashAmt, shareAmt := math.ZeroInt(), math.ZeroInt()
		if cash.IsPositive() && totalCashPoints.IsPositive() {
			cashAmt = cash.Mul(entry.CashPoints).Quo(totalCashPoints)
		}
		if shareRewards.IsPositive() && totalSharePoints.IsPositive() {
			shareAmt = shareRewards.Mul(entry.SharePoints).Quo(totalSharePoints)
		}
		if cashAmt.IsZero() && shareAmt.IsZero() {
			continue
		}
		if entry.Target.TotalStaked().IsZero() {
			misc.Warnf(t.logger, "boardroom %s has no stakers, withholding allocation", entry.Addr)
			continue
		}

		if cashAmt.IsPositive() {
			if err := t.dollar.Approve(t.addr, entry.Addr, cashAmt); err != nil {
				return err
			}
		}
		if shareAmt.IsPositive() {
			if err := t.share.Approve(t.addr, entry.Addr, shareAmt); err != nil {
				return err
			}
		}
		if err := entry.Target.AllocateSeigniorage(t.addr, cashAmt, shareAmt); err != nil {
			return sdkerrors.Wrapf(err, "funding boardroom %s", entry.Addr)
		}
		t.recorder.Emit(EventBoardroomFunded,
			events.S("boardroom", string(entry.Addr)),
			events.M("cash", cashAmt),
			events.M("share", shareAmt))
	}
	return nil
}
