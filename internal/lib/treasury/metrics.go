package treasury

import (
	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "policyd_treasury_epoch",
		Help: "Current treasury epoch.",
	})
	promDollarPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "policyd_dollar_price",
		Help: "Last consulted dollar price, peg units.",
	})
	promSeigniorageSaved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "policyd_seigniorage_saved",
		Help: "Dollars reserved for bond redemption, whole units.",
	})
	promBondSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "policyd_bond_supply",
		Help: "Outstanding bond supply, whole units.",
	})
	promEpochsUnderPeg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "policyd_epochs_under_peg",
		Help: "Consecutive epochs the price closed under peg.",
	})
	promOracleUpdateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyd_oracle_update_failures_total",
		Help: "Best-effort oracle refreshes that failed.",
	})
)

// observeEpochLocked publishes the post-allocation gauges.
func (t *Treasury) observeEpochLocked(epoch uint64, price math.Int) {
	promEpoch.Set(float64(epoch))
	promDollarPrice.Set(pegUnits(price, t.cfg.DollarPriceOne))
	promSeigniorageSaved.Set(wholeUnits(t.seigniorageSaved))
	promBondSupply.Set(wholeUnits(t.bond.TotalSupply()))
	promEpochsUnderPeg.Set(float64(t.epochsUnderPeg))
}

// pegUnits converts a 1e18 fixed-point price to a float with micro-peg
// precision; fine for dashboards, never used in policy math.
func pegUnits(price, one math.Int) float64 {
	if !one.IsPositive() {
		return 0
	}
	return float64(price.MulRaw(1_000_000).Quo(one).Int64()) / 1e6
}

// wholeUnits strips the 1e18 scale for gauge display.
func wholeUnits(amount math.Int) float64 {
	return float64(amount.Quo(math.NewIntWithDecimal(1, 18)).Int64())
}
