package treasury_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stableunit/policyd/internal/lib/boardroom"
	"github.com/stableunit/policyd/internal/lib/chrono"
	"github.com/stableunit/policyd/internal/lib/events"
	"github.com/stableunit/policyd/internal/lib/oracle"
	"github.com/stableunit/policyd/internal/lib/registry"
	"github.com/stableunit/policyd/internal/lib/token"
	"github.com/stableunit/policyd/internal/lib/treasury"
)

const (
	treasuryAddr  = token.Address("treasury")
	boardroomAddr = token.Address("boardroom")
	operator      = token.Address("operator")
	devFund       = token.Address("devfund")
	alice         = token.Address("alice")
	bob           = token.Address("bob")
)

func amt(n int64) math.Int {
	return math.NewIntWithDecimal(n, 18)
}

// price builds a 1e18 fixed-point price from hundredths, e.g. price(102)
// is $1.02.
func price(hundredths int64) math.Int {
	return math.NewIntWithDecimal(hundredths, 16)
}

// world wires the whole protocol in-memory with a controllable clock and
// tick source.
type world struct {
	now  time.Time
	tick uint64

	clock  *chrono.Clock
	dollar *token.Dollar
	bond   *token.Ledger
	share  *token.Share
	orcl   *oracle.Posted
	reg    *registry.Registry
	board  *boardroom.Boardroom
	tr     *treasury.Treasury
	rec    *events.Recorder
}

func newWorld(t *testing.T, withStaker bool) *world {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := &world{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	w.rec = events.NewRecorder(logger)
	w.clock = chrono.NewWithNow(6*time.Hour, w.now, func() time.Time { return w.now })

	w.dollar = token.NewDollar("SUD")
	w.bond = token.NewLedger("SUB")
	w.share = token.NewShare("SUS")
	w.share.SetMinterLimit(treasuryAddr, amt(10_000_000))
	w.dollar.SetRebaseExempt(treasuryAddr, true)
	w.dollar.SetRebaseExempt(boardroomAddr, true)
	require.NoError(t, w.dollar.Mint(alice, amt(1_000_000)))

	w.orcl = oracle.NewPosted()
	w.orcl.Post(w.dollar.Address(), price(100))

	w.reg = registry.New(operator)
	w.tr = treasury.New(logger, w.rec, treasuryAddr, operator,
		w.clock, w.dollar, w.bond, w.share, w.orcl, w.reg)
	require.NoError(t, w.tr.Initialize(operator, devFund))

	w.board = boardroom.New(logger, w.rec, boardroomAddr, treasuryAddr,
		w.share, w.dollar, w.share, w.tr, func() uint64 { return w.tick })
	require.NoError(t, w.reg.Add(operator, boardroomAddr, w.board, math.NewInt(100), math.NewInt(100)))

	if withStaker {
		w.tick++
		require.NoError(t, w.share.Mint(bob, amt(100)))
		require.NoError(t, w.share.Approve(bob, boardroomAddr, amt(100)))
		require.NoError(t, w.board.Stake(bob, amt(100)))
	}
	return w
}

// allocate bumps the tick (one boardroom funding per block-equivalent) and
// runs the epoch transition.
func (w *world) allocate() error {
	w.tick++
	return w.tr.AllocateSeigniorage()
}

func (w *world) advance() {
	w.now = w.now.Add(w.clock.Period())
}

func TestExpansionEpoch(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(102))

	require.NoError(t, w.allocate())
	assert.EqualValues(t, 1, w.tr.Epoch())

	// 1,000,000 circulating * 2% overshoot = 20,000; expansion index 10%
	// scales that to 2,000; no bond debt, so 2% dev cut and the rest to the
	// boardroom
	assert.Equal(t, amt(40), w.dollar.BalanceOf(devFund))
	assert.Equal(t, amt(1960), w.dollar.BalanceOf(boardroomAddr))
	assert.Equal(t, math.ZeroInt(), w.tr.SeigniorageSaved())

	cash, share := w.board.Earned(bob)
	assert.Equal(t, amt(1960), cash)
	assert.Equal(t, amt(9000), share)

	// share emission came out of the treasury's mint allowance
	assert.Equal(t, amt(9000), w.share.MintedAmountOf(treasuryAddr))
}

func TestContractionEpochRebases(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(79))

	supplyBefore := w.dollar.TotalSupply()
	require.NoError(t, w.allocate())

	// rebase base is the non-exempt supply: alice's 1,000,000 scaled by 0.79
	assert.Equal(t, amt(790_000), w.dollar.BalanceOf(alice))
	assert.Equal(t, supplyBefore.Sub(amt(210_000)), w.dollar.TotalSupply())
	assert.EqualValues(t, 1, w.tr.EpochsUnderPeg())

	// share rewards still flow through a contraction
	_, share := w.board.Earned(bob)
	assert.Equal(t, amt(9000), share)
	// no cash was minted anywhere
	assert.Equal(t, math.ZeroInt(), w.dollar.BalanceOf(devFund))
	assert.Equal(t, math.ZeroInt(), w.dollar.BalanceOf(boardroomAddr))
}

func TestUnderPegStreakTriggersRebase(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(90))

	// $0.90 sits between the rebase trigger and the peg: neutral epochs
	// until the streak passes the floor of 21
	for i := 0; i < 21; i++ {
		require.NoError(t, w.allocate())
		w.advance()
		assert.Equal(t, amt(1_000_000), w.dollar.BalanceOf(alice))
	}
	assert.EqualValues(t, 21, w.tr.EpochsUnderPeg())

	require.NoError(t, w.allocate())
	assert.EqualValues(t, 22, w.tr.EpochsUnderPeg())
	assert.Equal(t, amt(900_000), w.dollar.BalanceOf(alice))
}

func TestNeutralEpoch(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(100))

	require.NoError(t, w.allocate())
	assert.Equal(t, amt(1_000_000), w.dollar.BalanceOf(alice))
	assert.Equal(t, math.ZeroInt(), w.dollar.BalanceOf(boardroomAddr))
	assert.EqualValues(t, 0, w.tr.EpochsUnderPeg())

	// governance emission continues regardless of branch
	_, share := w.board.Earned(bob)
	assert.Equal(t, amt(9000), share)
}

func TestAllocateNotDue(t *testing.T) {
	w := newWorld(t, true)
	require.NoError(t, w.allocate())
	assert.ErrorIs(t, w.allocate(), chrono.ErrNotDue)
	assert.EqualValues(t, 1, w.tr.Epoch())
}

func TestOracleUpdateFailureIsSwallowed(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(102))
	w.orcl.FailUpdates(true)

	require.NoError(t, w.allocate())
	assert.EqualValues(t, 1, w.tr.Epoch())
	assert.Equal(t, amt(1960), w.dollar.BalanceOf(boardroomAddr))
}

func TestOracleConsultFailureAborts(t *testing.T) {
	w := newWorld(t, true)
	// a non-positive posted price makes Consult fail hard
	w.orcl.Post(w.dollar.Address(), math.ZeroInt())

	supplyBefore := w.dollar.TotalSupply()
	err := w.allocate()
	assert.ErrorIs(t, err, treasury.ErrOracleConsult)

	// nothing moved, not even the epoch counter
	assert.EqualValues(t, 0, w.tr.Epoch())
	assert.Equal(t, supplyBefore, w.dollar.TotalSupply())
	assert.Equal(t, math.ZeroInt(), w.tr.EpochSupplyContractionLeft())
}

func TestEmptyBoardroomIsSkipped(t *testing.T) {
	w := newWorld(t, false)
	w.orcl.Post(w.dollar.Address(), price(102))

	require.NoError(t, w.allocate())

	// the withheld cash stays on the treasury account
	assert.Equal(t, math.ZeroInt(), w.dollar.BalanceOf(boardroomAddr))
	assert.Equal(t, amt(1960), w.dollar.BalanceOf(treasuryAddr))
	assert.Equal(t, amt(40), w.dollar.BalanceOf(devFund))
	assert.Empty(t, w.rec.OfType(treasury.EventBoardroomFunded))
}

func TestBuyBondsDebtRatioBoundary(t *testing.T) {
	w := newWorld(t, true)
	require.NoError(t, w.tr.SetMaxSupplyContractionPercent(operator, 1500))
	require.NoError(t, w.tr.SetMaxDebtRatioPercent(operator, 1000))
	w.orcl.Post(w.dollar.Address(), price(95))

	// first epoch arms the per-epoch contraction window
	require.NoError(t, w.allocate())
	assert.Equal(t, amt(150_000), w.tr.EpochSupplyContractionLeft())

	require.NoError(t, w.dollar.Approve(alice, treasuryAddr, amt(200_000)))

	// exactly at the 10% debt cap: accepted
	require.NoError(t, w.tr.BuyBonds(alice, amt(100_000)))
	assert.Equal(t, amt(100_000), w.bond.BalanceOf(alice))
	assert.Equal(t, amt(900_000), w.dollar.BalanceOf(alice))
	assert.Equal(t, amt(50_000), w.tr.EpochSupplyContractionLeft())

	// one more unit busts the cap
	err := w.tr.BuyBonds(alice, math.NewInt(1))
	assert.ErrorIs(t, err, treasury.ErrDebtRatioExceeded)

	// and the epoch window is its own independent limit
	err = w.tr.BuyBonds(alice, amt(50_001))
	assert.ErrorIs(t, err, treasury.ErrContractionCapExceeded)
}

func TestBuyBondsRequiresBelowPeg(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(95))
	require.NoError(t, w.allocate())

	w.orcl.Post(w.dollar.Address(), price(100))
	require.NoError(t, w.dollar.Approve(alice, treasuryAddr, amt(10)))
	err := w.tr.BuyBonds(alice, amt(10))
	assert.ErrorIs(t, err, treasury.ErrPriceNotBelowPeg)
}

func TestBondRepayNeverExceedsDeficit(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(95))
	require.NoError(t, w.allocate())

	// put a tiny bond debt on the books, then crank repayment to 100%
	require.NoError(t, w.dollar.Approve(alice, treasuryAddr, amt(100)))
	require.NoError(t, w.tr.BuyBonds(alice, amt(100)))
	require.NoError(t, w.tr.SetBondRepayPercent(operator, 10000))

	w.orcl.Post(w.dollar.Address(), price(102))
	w.advance()
	require.NoError(t, w.allocate())

	// repay cap is far above the 100-unit deficit; saved stops at the deficit
	assert.Equal(t, amt(100), w.tr.SeigniorageSaved())
	assert.Equal(t, amt(100), w.dollar.BalanceOf(treasuryAddr))
}

func TestRedeemBonds(t *testing.T) {
	w := newWorld(t, true)
	w.orcl.Post(w.dollar.Address(), price(95))
	require.NoError(t, w.allocate())

	require.NoError(t, w.dollar.Approve(alice, treasuryAddr, amt(10_000)))
	require.NoError(t, w.tr.BuyBonds(alice, amt(10_000)))

	// expansion epoch routes 15% of seigniorage into the bond reserve:
	// 990,000 * 2% * 10% * 15% = 297
	w.orcl.Post(w.dollar.Address(), price(102))
	w.advance()
	require.NoError(t, w.allocate())
	assert.Equal(t, amt(297), w.tr.SeigniorageSaved())

	require.NoError(t, w.bond.Approve(alice, treasuryAddr, amt(10_000)))
	dollarsBefore := w.dollar.BalanceOf(alice)
	require.NoError(t, w.tr.RedeemBonds(alice, amt(297)))
	assert.Equal(t, math.ZeroInt(), w.tr.SeigniorageSaved())
	assert.Equal(t, dollarsBefore.Add(amt(297)), w.dollar.BalanceOf(alice))
	assert.Equal(t, amt(10_000).Sub(amt(297)), w.bond.BalanceOf(alice))

	// the reserve is spent; more redemption must wait for future epochs
	err := w.tr.RedeemBonds(alice, amt(1))
	assert.ErrorIs(t, err, treasury.ErrSeigniorageDepleted)

	// and none of it works at or below the ceiling
	w.orcl.Post(w.dollar.Address(), price(100))
	err = w.tr.RedeemBonds(alice, amt(1))
	assert.ErrorIs(t, err, treasury.ErrPriceNotAboveCeiling)
}

func TestFanOutFloorDivision(t *testing.T) {
	w := newWorld(t, true)

	// second boardroom with a third of the total cash weight
	room2 := token.Address("boardroom2")
	w.dollar.SetRebaseExempt(room2, true)
	board2 := boardroom.New(slog.New(slog.NewTextHandler(io.Discard, nil)), w.rec,
		room2, treasuryAddr, w.share, w.dollar, w.share, w.tr,
		func() uint64 { return w.tick })
	require.NoError(t, w.reg.Add(operator, room2, board2, math.NewInt(50), math.NewInt(50)))

	w.tick++
	carol := token.Address("carol")
	require.NoError(t, w.share.Mint(carol, amt(100)))
	require.NoError(t, w.share.Approve(carol, room2, amt(100)))
	require.NoError(t, board2.Stake(carol, amt(100)))

	w.orcl.Post(w.dollar.Address(), price(102))
	require.NoError(t, w.allocate())

	// 1960 split 100:50 with floor division
	want1 := amt(1960).Mul(math.NewInt(100)).Quo(math.NewInt(150))
	want2 := amt(1960).Mul(math.NewInt(50)).Quo(math.NewInt(150))
	assert.Equal(t, want1, w.dollar.BalanceOf(boardroomAddr))
	assert.Equal(t, want2, w.dollar.BalanceOf(room2))

	// the division remainder stays on the treasury account
	dust := amt(1960).Sub(want1).Sub(want2)
	assert.Equal(t, dust, w.dollar.BalanceOf(treasuryAddr))
	assert.True(t, dust.LT(math.NewInt(2)))
}

func TestMigrationFinality(t *testing.T) {
	w := newWorld(t, true)
	require.NoError(t, w.dollar.Mint(treasuryAddr, amt(500)))

	assert.ErrorIs(t, w.tr.Migrate(alice, "vault"), treasury.ErrUnauthorized)
	require.NoError(t, w.tr.Migrate(operator, "vault"))

	assert.Equal(t, amt(500), w.dollar.BalanceOf("vault"))
	assert.Equal(t, math.ZeroInt(), w.dollar.BalanceOf(treasuryAddr))
	assert.Equal(t, math.ZeroInt(), w.bond.BalanceOf(treasuryAddr))
	assert.Equal(t, math.ZeroInt(), w.share.BalanceOf(treasuryAddr))

	assert.ErrorIs(t, w.allocate(), treasury.ErrMigrated)
	assert.ErrorIs(t, w.tr.BuyBonds(alice, amt(1)), treasury.ErrMigrated)
	assert.ErrorIs(t, w.tr.RedeemBonds(alice, amt(1)), treasury.ErrMigrated)
	assert.ErrorIs(t, w.tr.SetBondRepayPercent(operator, 100), treasury.ErrMigrated)
	assert.ErrorIs(t, w.tr.Migrate(operator, "vault2"), treasury.ErrAlreadyMigrated)
}

func TestInitializeOnce(t *testing.T) {
	w := newWorld(t, false)
	assert.ErrorIs(t, w.tr.Initialize(operator, devFund), treasury.ErrAlreadyInitialized)
}

func TestDevPercentageBounds(t *testing.T) {
	w := newWorld(t, false)

	assert.ErrorIs(t, w.tr.SetDevPercentage(operator, 2000, devFund), treasury.ErrParamOutOfRange)
	require.NoError(t, w.tr.SetDevPercentage(operator, 1999, devFund))
	assert.EqualValues(t, 1999, w.tr.Config().DevPercentage)

	assert.ErrorIs(t, w.tr.SetDevPercentage(alice, 100, devFund), treasury.ErrUnauthorized)
	assert.ErrorIs(t, w.tr.SetDevPercentage(operator, 100, token.ZeroAddress), treasury.ErrParamOutOfRange)
}

func TestConfigSetterRanges(t *testing.T) {
	w := newWorld(t, false)

	assert.ErrorIs(t, w.tr.SetTriggerRebaseNumEpochFloor(operator, 0), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetTriggerRebaseNumEpochFloor(operator, 101), treasury.ErrParamOutOfRange)
	require.NoError(t, w.tr.SetTriggerRebaseNumEpochFloor(operator, 30))

	assert.ErrorIs(t, w.tr.SetDollarPriceCeiling(operator, price(99)), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetDollarPriceCeiling(operator, price(111)), treasury.ErrParamOutOfRange)
	require.NoError(t, w.tr.SetDollarPriceCeiling(operator, price(105)))

	assert.ErrorIs(t, w.tr.SetTriggerRebasePriceCeiling(operator, price(100)), treasury.ErrParamOutOfRange)
	require.NoError(t, w.tr.SetTriggerRebasePriceCeiling(operator, price(75)))

	assert.ErrorIs(t, w.tr.SetMaxSupplyContractionPercent(operator, 99), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetMaxDebtRatioPercent(operator, 999), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetBondDepletionFloorPercent(operator, 499), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetExpansionIndex(operator, 10001), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetContractionIndex(operator, 10001), treasury.ErrParamOutOfRange)
	assert.ErrorIs(t, w.tr.SetSharesMintedPerEpoch(operator, amt(1).Neg()), treasury.ErrParamOutOfRange)
}

func TestRecoverUnsupportedToken(t *testing.T) {
	w := newWorld(t, false)
	stray := token.NewLedger("WETH")
	require.NoError(t, stray.Mint(treasuryAddr, amt(5)))

	assert.ErrorIs(t, w.tr.RecoverUnsupportedToken(alice, stray, alice, amt(5)), treasury.ErrUnauthorized)
	assert.ErrorIs(t, w.tr.RecoverUnsupportedToken(operator, w.dollar, alice, amt(5)), treasury.ErrCoreAssetRecovery)

	require.NoError(t, w.tr.RecoverUnsupportedToken(operator, stray, alice, amt(5)))
	assert.Equal(t, amt(5), stray.BalanceOf(alice))
}

func TestCirculatingSupplyExcludesProtocolAccounts(t *testing.T) {
	w := newWorld(t, false)
	require.NoError(t, w.dollar.Mint(treasuryAddr, amt(300)))
	require.NoError(t, w.dollar.Mint(boardroomAddr, amt(200)))

	assert.Equal(t, amt(1_000_000), w.tr.CirculatingSupply())
}

func TestShareEmissionStopsAtMintLimit(t *testing.T) {
	w := newWorld(t, true)
	// leave only 1000 whole shares of headroom
	w.share.SetMinterLimit(treasuryAddr, amt(1000))

	require.NoError(t, w.allocate())
	_, share := w.board.Earned(bob)
	assert.Equal(t, amt(1000), share)

	w.advance()
	w.orcl.Post(w.dollar.Address(), price(100))
	require.NoError(t, w.allocate())
	_, share = w.board.Earned(bob)
	assert.Equal(t, amt(1000), share)
}
