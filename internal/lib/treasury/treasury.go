// Package treasury implements the epoch-driven monetary policy engine:
// seigniorage expansion, rebase contraction, and the bond debt market that
// bridges the two.  All state transitions happen under one lock so that a
// failed operation leaves no partial state behind.
package treasury

import (
	"log/slog"
	"sync"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/chrono"
	"github.com/stableunit/policyd/internal/lib/events"
	"github.com/stableunit/policyd/internal/lib/token"
)

// Event types recorded by the treasury.
const (
	EventInitialized     events.Type = "treasury_initialized"
	EventMigration       events.Type = "migration"
	EventBoughtBonds     events.Type = "bought_bonds"
	EventRedeemedBonds   events.Type = "redeemed_bonds"
	EventTreasuryFunded  events.Type = "treasury_funded"
	EventDevsFunded      events.Type = "devs_funded"
	EventBoardroomFunded events.Type = "boardroom_funded"
)

// Treasury owns the policy state machine.  It consumes tokens, oracle and
// registry through the capability interfaces in this package and never
// reaches into their internals.
type Treasury struct {
	sync.RWMutex

	logger   *slog.Logger
	recorder *events.Recorder

	addr     token.Address
	operator token.Address

	clock    *chrono.Clock
	dollar   DollarToken
	bond     BondToken
	share    ShareToken
	oracle   PriceOracle
	registry AllocationRegistry

	cfg Config

	seigniorageSaved           math.Int
	epochSupplyContractionLeft math.Int
	epochsUnderPeg             uint64

	initialized bool
	migrated    bool
}

// New wires a treasury over its collaborators.  Initialize must be called
// before any policy operation.
func New(logger *slog.Logger, recorder *events.Recorder, addr, operator token.Address,
	clock *chrono.Clock, dollar DollarToken, bond BondToken, share ShareToken,
	oracle PriceOracle, registry AllocationRegistry,
) *Treasury {
	return &Treasury{
		logger:                     logger.With("component", "treasury"),
		recorder:                   recorder,
		addr:                       addr,
		operator:                   operator,
		clock:                      clock,
		dollar:                     dollar,
		bond:                       bond,
		share:                      share,
		oracle:                     oracle,
		registry:                   registry,
		seigniorageSaved:           math.ZeroInt(),
		epochSupplyContractionLeft: math.ZeroInt(),
	}
}

// Initialize installs the launch parameters and arms the state machine.
// It is a one-shot: a second call fails.
func (t *Treasury) Initialize(caller, devFund token.Address) error {
	t.Lock()
	defer t.Unlock()
	if t.initialized {
		return ErrAlreadyInitialized
	}
	if caller != t.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	t.cfg = DefaultConfig(devFund)
	t.seigniorageSaved = t.dollar.BalanceOf(t.addr)
	t.epochSupplyContractionLeft = math.ZeroInt()
	t.initialized = true
	t.recorder.Emit(EventInitialized, events.S("operator", string(t.operator)))
	t.logger.Info("treasury initialized", "operator", t.operator, "devFund", devFund)
	return nil
}

// Migrate sweeps every core-token balance the treasury holds to the target
// and latches the migrated flag, permanently disabling all mutating
// operations on this instance.
func (t *Treasury) Migrate(caller, target token.Address) error {
	t.Lock()
	defer t.Unlock()
	if caller != t.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	if t.migrated {
		return ErrAlreadyMigrated
	}
	if bal := t.dollar.BalanceOf(t.addr); bal.IsPositive() {
		if err := t.dollar.Transfer(t.addr, target, bal); err != nil {
			return err
		}
	}
	if bal := t.bond.BalanceOf(t.addr); bal.IsPositive() {
		if err := t.bond.Transfer(t.addr, target, bal); err != nil {
			return err
		}
	}
	if bal := t.share.BalanceOf(t.addr); bal.IsPositive() {
		if err := t.share.Transfer(t.addr, target, bal); err != nil {
			return err
		}
	}
	t.migrated = true
	t.recorder.Emit(EventMigration, events.S("target", string(target)))
	t.logger.Warn("treasury migrated", "target", target)
	return nil
}

// RecoverUnsupportedToken sweeps a stray asset out of the treasury account.
// The three core tokens are refused.
func (t *Treasury) RecoverUnsupportedToken(caller token.Address, asset RecoverableAsset, to token.Address, amount math.Int) error {
	t.Lock()
	defer t.Unlock()
	if caller != t.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	switch asset.Address() {
	case t.dollar.Address(), t.bond.Address(), t.share.Address():
		return sdkerrors.Wrapf(ErrCoreAssetRecovery, "%s", asset.Address())
	}
	return asset.Transfer(t.addr, to, amount)
}

func (t *Treasury) Address() token.Address  { return t.addr }
func (t *Treasury) Operator() token.Address { return t.operator }

// Epoch clock views delegate straight to the clock, which carries its own
// lock; callers inside a locked treasury section stay deadlock-free.
func (t *Treasury) Epoch() uint64 { return t.clock.Epoch() }

func (t *Treasury) NextEpochPoint() time.Time { return t.clock.NextEpochPoint() }

func (t *Treasury) Period() time.Duration { return t.clock.Period() }

func (t *Treasury) Initialized() bool {
	t.RLock()
	defer t.RUnlock()
	return t.initialized
}

func (t *Treasury) Migrated() bool {
	t.RLock()
	defer t.RUnlock()
	return t.migrated
}

func (t *Treasury) SeigniorageSaved() math.Int {
	t.RLock()
	defer t.RUnlock()
	return t.seigniorageSaved
}

func (t *Treasury) EpochSupplyContractionLeft() math.Int {
	t.RLock()
	defer t.RUnlock()
	return t.epochSupplyContractionLeft
}

func (t *Treasury) EpochsUnderPeg() uint64 {
	t.RLock()
	defer t.RUnlock()
	return t.epochsUnderPeg
}

func (t *Treasury) Config() Config {
	t.RLock()
	defer t.RUnlock()
	return t.cfg
}

// GetDollarPrice consults the oracle for the price of one dollar unit.
func (t *Treasury) GetDollarPrice() (math.Int, error) {
	t.RLock()
	defer t.RUnlock()
	return t.dollarPriceLocked()
}

func (t *Treasury) dollarPriceLocked() (math.Int, error) {
	price, err := t.oracle.Consult(t.dollar.Address(), t.cfg.DollarPriceOne)
	if err != nil {
		return math.Int{}, sdkerrors.Wrapf(ErrOracleConsult, "%v", err)
	}
	return price, nil
}

// CirculatingSupply is total dollar supply minus protocol-held balances:
// the treasury's own account and every registered boardroom, active or not.
func (t *Treasury) CirculatingSupply() math.Int {
	t.RLock()
	defer t.RUnlock()
	return t.circulatingSupplyLocked()
}

func (t *Treasury) circulatingSupplyLocked() math.Int {
	supply := t.dollar.TotalSupply().Sub(t.dollar.BalanceOf(t.addr))
	for i := 0; i < t.registry.Count(); i++ {
		entry, err := t.registry.Boardroom(i)
		if err != nil {
			continue
		}
		supply = supply.Sub(t.dollar.BalanceOf(entry.Addr))
	}
	return supply
}
