// Package oracle carries the posted-price oracle the daemon and tests feed.
// The treasury consumes it through its own PriceOracle interface; any
// implementation with Update/Consult fits.
package oracle

import (
	"sync"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/token"
)

var (
	ErrNoPrice      = sdkerrors.Register("oracle", 2, "no posted price")
	ErrUnknownToken = sdkerrors.Register("oracle", 3, "token not tracked by oracle")
	ErrStalePeer    = sdkerrors.Register("oracle", 4, "price feed peer unavailable")
)

// Posted is a thread-safe posted-price oracle: an operator (or a feed
// goroutine) posts 1e18-scaled prices per token, Consult quotes against the
// latest post.  Update records the refresh instant and can be made to fail
// to exercise the treasury's best-effort swallowing.
type Posted struct {
	mu          sync.Mutex
	prices      map[token.Address]math.Int
	lastUpdated time.Time
	failUpdates bool
}

func NewPosted() *Posted {
	return &Posted{prices: map[token.Address]math.Int{}}
}

// Post sets the 1e18-scaled unit price for a token.
func (o *Posted) Post(asset token.Address, price math.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = price
}

// FailUpdates makes subsequent Update calls fail until reset.  Consult is
// unaffected; a stale but readable feed is exactly the degraded mode the
// policy engine is required to tolerate.
func (o *Posted) FailUpdates(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failUpdates = fail
}

func (o *Posted) LastUpdated() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastUpdated
}

func (o *Posted) Update() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failUpdates {
		return ErrStalePeer
	}
	o.lastUpdated = time.Now()
	return nil
}

// Consult quotes amountIn of asset at the latest posted price, truncating.
func (o *Posted) Consult(asset token.Address, amountIn math.Int) (math.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	price, ok := o.prices[asset]
	if !ok {
		return math.Int{}, sdkerrors.Wrapf(ErrUnknownToken, "%s", asset)
	}
	if price.IsNil() || !price.IsPositive() {
		return math.Int{}, sdkerrors.Wrapf(ErrNoPrice, "%s", asset)
	}
	return amountIn.Mul(price).Quo(One), nil
}

// One is the 1e18 fixed-point unit shared across the protocol.
var One = math.NewIntWithDecimal(1, 18)
