// Package boardroom implements the seigniorage staking pool: members stake
// the deposit token and earn the cash and share rewards the treasury routes
// in each epoch.  Reward accounting is the cumulative reward-per-share
// snapshot scheme - appending a snapshot is O(1) in the member count and
// accruing a member is O(1) in the snapshot count.
package boardroom

import (
	"log/slog"
	"sync"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/events"
	"github.com/stableunit/policyd/internal/lib/misc"
	"github.com/stableunit/policyd/internal/lib/token"
)

const (
	EventInitialized events.Type = "boardroom_initialized"
	EventStaked      events.Type = "staked"
	EventWithdrawn   events.Type = "withdrawn"
	EventRewardPaid  events.Type = "reward_paid"
	EventRewardAdded events.Type = "reward_added"
)

// accrualScale is the 1e18 fixed-point used by the reward-per-share sums.
var accrualScale = math.NewIntWithDecimal(1, 18)

// Asset is the slice of token behavior the boardroom needs.
type Asset interface {
	Transfer(from, to token.Address, amount math.Int) error
	TransferFrom(spender, from, to token.Address, amount math.Int) error
	BalanceOf(a token.Address) math.Int
}

// EpochSource is the treasury capability the boardroom reads lockup clocks
// from.  It never advances the epoch through this.
type EpochSource interface {
	Epoch() uint64
	NextEpochPoint() time.Time
	Period() time.Duration
}

// TickSource supplies the block-equivalent tick for the same-tick guard.
type TickSource func() uint64

// Snapshot is one element of the append-only reward history.  The per-share
// fields are cumulative and non-decreasing across the sequence.
type Snapshot struct {
	Time                time.Time
	CashRewardReceived  math.Int
	CashRewardPerShare  math.Int
	ShareRewardReceived math.Int
	ShareRewardPerShare math.Int
}

// Seat is a member's checkpoint into the snapshot history plus rewards
// accrued but not yet claimed.
type Seat struct {
	LastSnapshotIndex int
	CashRewardEarned  math.Int
	ShareRewardEarned math.Int
	EpochTimerStart   uint64
}

type Config struct {
	WithdrawLockupEpochs uint64
	RewardLockupEpochs   uint64
}

func DefaultConfig() Config {
	return Config{WithdrawLockupEpochs: 6, RewardLockupEpochs: 3}
}

// maxLockupEpochs bounds both lockups (8 weeks of 6h epochs).
const maxLockupEpochs = 56

func (c Config) Validate() error {
	if c.WithdrawLockupEpochs > maxLockupEpochs {
		return sdkerrors.Wrapf(ErrLockupRange, "withdraw lockup %d > %d", c.WithdrawLockupEpochs, maxLockupEpochs)
	}
	if c.RewardLockupEpochs > c.WithdrawLockupEpochs {
		return sdkerrors.Wrapf(ErrLockupRange, "reward lockup %d > withdraw lockup %d", c.RewardLockupEpochs, c.WithdrawLockupEpochs)
	}
	return nil
}

type Boardroom struct {
	logger *slog.Logger
	rec    *events.Recorder

	addr     token.Address // the boardroom's own account on the asset ledgers
	operator token.Address // the treasury; sole caller of AllocateSeigniorage

	stake Asset // deposit token
	cash  Asset // dollar rewards
	share Asset // share rewards

	epochs EpochSource
	tick   TickSource

	mu        sync.Mutex
	cfg       Config
	total     math.Int
	balances  map[token.Address]math.Int
	seats     map[token.Address]*Seat
	snapshots []Snapshot
	lastTick  map[token.Address]uint64 // stored as tick+1; 0 means never
}

func New(logger *slog.Logger, rec *events.Recorder, addr, operator token.Address,
	stake, cash, share Asset, epochs EpochSource, tick TickSource) *Boardroom {

	b := &Boardroom{
		logger:   logger,
		rec:      rec,
		addr:     addr,
		operator: operator,
		stake:    stake,
		cash:     cash,
		share:    share,
		epochs:   epochs,
		tick:     tick,
		cfg:      DefaultConfig(),
		total:    math.ZeroInt(),
		balances: map[token.Address]math.Int{},
		seats:    map[token.Address]*Seat{},
		// the genesis snapshot anchors all later cumulative sums
		snapshots: []Snapshot{{
			CashRewardReceived:  math.ZeroInt(),
			CashRewardPerShare:  math.ZeroInt(),
			ShareRewardReceived: math.ZeroInt(),
			ShareRewardPerShare: math.ZeroInt(),
		}},
		lastTick: map[token.Address]uint64{},
	}
	rec.Emit(EventInitialized, events.S("boardroom", string(addr)))
	return b
}

func (b *Boardroom) Address() token.Address { return b.addr }

// SetLockups is role-gated; rejects out-of-range values without touching
// the previous configuration.
func (b *Boardroom) SetLockups(caller token.Address, withdrawEpochs, rewardEpochs uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if caller != b.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	next := Config{WithdrawLockupEpochs: withdrawEpochs, RewardLockupEpochs: rewardEpochs}
	if err := next.Validate(); err != nil {
		return err
	}
	b.cfg = next
	return nil
}

func (b *Boardroom) TotalStaked() math.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *Boardroom) BalanceOf(member token.Address) math.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceLocked(member)
}

func (b *Boardroom) LatestSnapshotIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots) - 1
}

func (b *Boardroom) SnapshotAt(i int) (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.snapshots) {
		return Snapshot{}, false
	}
	return b.snapshots[i], true
}

// Earned reports the member's pending cash and share rewards without
// mutating the seat.
func (b *Boardroom) Earned(member token.Address) (cash, share math.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seat := b.seatLocked(member)
	return b.pendingLocked(member, seat)
}

// Stake pulls amount of the deposit token from the member (who must have
// approved the boardroom) and restarts both lockup clocks.
func (b *Boardroom) Stake(member token.Address, amount math.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkTickLocked(member); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	seat := b.seatLocked(member)
	b.accrueLocked(member, seat)

	if err := b.stake.TransferFrom(b.addr, member, b.addr, amount); err != nil {
		return err
	}
	b.balances[member] = b.balanceLocked(member).Add(amount)
	b.total = b.total.Add(amount)
	seat.EpochTimerStart = b.epochs.Epoch()
	b.stampTickLocked(member)

	b.rec.Emit(EventStaked,
		events.S("member", string(member)),
		events.M("amount", amount))
	return nil
}

// Withdraw claims pending rewards first (the withdraw lockup dominating the
// reward lockup makes that claim always permissible) and then returns the
// staked amount to the member.
func (b *Boardroom) Withdraw(member token.Address, amount math.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkTickLocked(member); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrZeroAmount
	}
	bal := b.balanceLocked(member)
	if bal.IsZero() {
		return sdkerrors.Wrapf(ErrNoStake, "%s", member)
	}
	if bal.LT(amount) {
		return sdkerrors.Wrapf(ErrInsufficientStake, "%s staked %s, withdrawing %s", member, bal, amount)
	}
	seat := b.seatLocked(member)
	epoch := b.epochs.Epoch()
	if epoch < seat.EpochTimerStart+b.cfg.WithdrawLockupEpochs {
		return sdkerrors.Wrapf(ErrWithdrawLocked, "unlocks at epoch %d, current %d",
			seat.EpochTimerStart+b.cfg.WithdrawLockupEpochs, epoch)
	}
	if err := b.claimLocked(member, seat, epoch); err != nil {
		return err
	}

	b.balances[member] = bal.Sub(amount)
	b.total = b.total.Sub(amount)
	if err := b.stake.Transfer(b.addr, member, amount); err != nil {
		return err
	}
	b.stampTickLocked(member)

	b.rec.Emit(EventWithdrawn,
		events.S("member", string(member)),
		events.M("amount", amount))
	return nil
}

// Exit withdraws the member's full stake.
func (b *Boardroom) Exit(member token.Address) error {
	return b.Withdraw(member, b.BalanceOf(member))
}

// ClaimReward pays out accrued rewards.  With nothing accrued it is a
// silent no-op; with rewards still locked it fails.
func (b *Boardroom) ClaimReward(member token.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	seat := b.seatLocked(member)
	return b.claimLocked(member, seat, b.epochs.Epoch())
}

func (b *Boardroom) claimLocked(member token.Address, seat *Seat, epoch uint64) error {
	b.accrueLocked(member, seat)
	if seat.CashRewardEarned.IsZero() && seat.ShareRewardEarned.IsZero() {
		return nil
	}
	if epoch < seat.EpochTimerStart+b.cfg.RewardLockupEpochs {
		return sdkerrors.Wrapf(ErrRewardLocked, "unlocks at epoch %d, current %d",
			seat.EpochTimerStart+b.cfg.RewardLockupEpochs, epoch)
	}
	cashOut, shareOut := seat.CashRewardEarned, seat.ShareRewardEarned
	seat.CashRewardEarned = math.ZeroInt()
	seat.ShareRewardEarned = math.ZeroInt()
	seat.EpochTimerStart = epoch

	if cashOut.IsPositive() {
		if err := b.cash.Transfer(b.addr, member, cashOut); err != nil {
			return err
		}
	}
	if shareOut.IsPositive() {
		if err := b.share.Transfer(b.addr, member, shareOut); err != nil {
			return err
		}
	}
	b.rec.Emit(EventRewardPaid,
		events.S("member", string(member)),
		events.M("cash", cashOut),
		events.M("share", shareOut))
	return nil
}

// AllocateSeigniorage appends a reward snapshot and pulls the funding
// assets from the operator.  Restricted to the operator; rejected when the
// pool is empty since per-share math would be undefined.
func (b *Boardroom) AllocateSeigniorage(caller token.Address, cash, share math.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if caller != b.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	if err := b.checkTickLocked(caller); err != nil {
		return err
	}
	if cash.IsNegative() || share.IsNegative() {
		return ErrZeroAmount
	}
	if cash.IsZero() && share.IsZero() {
		return ErrNothingToAllocate
	}
	if b.total.IsZero() {
		return ErrNoStakers
	}

	prev := b.snapshots[len(b.snapshots)-1]
	next := Snapshot{
		Time:                time.Now(),
		CashRewardReceived:  cash,
		CashRewardPerShare:  prev.CashRewardPerShare.Add(cash.Mul(accrualScale).Quo(b.total)),
		ShareRewardReceived: share,
		ShareRewardPerShare: prev.ShareRewardPerShare.Add(share.Mul(accrualScale).Quo(b.total)),
	}

	if cash.IsPositive() {
		if err := b.cash.TransferFrom(b.addr, caller, b.addr, cash); err != nil {
			return err
		}
	}
	if share.IsPositive() {
		if err := b.share.TransferFrom(b.addr, caller, b.addr, share); err != nil {
			return err
		}
	}
	b.snapshots = append(b.snapshots, next)
	b.stampTickLocked(caller)

	b.rec.Emit(EventRewardAdded,
		events.S("boardroom", string(b.addr)),
		events.M("cash", cash),
		events.M("share", share))
	return nil
}

func (b *Boardroom) balanceLocked(member token.Address) math.Int {
	if bal, ok := b.balances[member]; ok {
		return bal
	}
	return math.ZeroInt()
}

func (b *Boardroom) seatLocked(member token.Address) *Seat {
	seat, ok := b.seats[member]
	if !ok {
		seat = &Seat{
			CashRewardEarned:  math.ZeroInt(),
			ShareRewardEarned: math.ZeroInt(),
		}
		b.seats[member] = seat
	}
	return seat
}

// pendingLocked computes rewards through the latest snapshot without
// advancing the checkpoint.
func (b *Boardroom) pendingLocked(member token.Address, seat *Seat) (cash, share math.Int) {
	latest := b.snapshots[len(b.snapshots)-1]
	at := b.snapshots[seat.LastSnapshotIndex]
	bal := b.balanceLocked(member)
	cash = seat.CashRewardEarned.Add(
		bal.Mul(latest.CashRewardPerShare.Sub(at.CashRewardPerShare)).Quo(accrualScale))
	share = seat.ShareRewardEarned.Add(
		bal.Mul(latest.ShareRewardPerShare.Sub(at.ShareRewardPerShare)).Quo(accrualScale))
	return cash, share
}

// accrueLocked folds everything since the seat's checkpoint into the earned
// amounts and advances the checkpoint.  Idempotent at a given snapshot
// index, so lazy accrual after N snapshots equals eager accrual after each.
func (b *Boardroom) accrueLocked(member token.Address, seat *Seat) {
	cash, share := b.pendingLocked(member, seat)
	seat.CashRewardEarned = cash
	seat.ShareRewardEarned = share
	seat.LastSnapshotIndex = len(b.snapshots) - 1
}

// checkTickLocked enforces one guarded mutating action per actor per
// block-equivalent tick.  The tick is stamped separately, only once the
// whole operation has succeeded, so a rejected call costs no tick.
func (b *Boardroom) checkTickLocked(actor token.Address) error {
	if b.lastTick[actor] == b.tick()+1 {
		misc.Debugf(b.logger, "tick guard tripped for %s", actor)
		return sdkerrors.Wrapf(ErrSameTick, "%s", actor)
	}
	return nil
}

func (b *Boardroom) stampTickLocked(actor token.Address) {
	b.lastTick[actor] = b.tick() + 1
}
