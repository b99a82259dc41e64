package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/mailgun/holster/v4/syncutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssgreg/repeat"

	"github.com/stableunit/policyd/internal/lib/chrono"
	"github.com/stableunit/policyd/internal/lib/misc"
	"github.com/stableunit/policyd/internal/lib/treasury"
)

var promBoardroomStaked = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "policyd_boardroom_total_staked",
	Help: "Shares staked per boardroom, raw 1e18 units.",
}, []string{"boardroom"})

// Daemon drives the protocol clock: it sleeps until the next epoch point,
// runs the treasury allocation with retries, and serves price/status/metrics
// over HTTP in between.
type Daemon struct {
	logger   *slog.Logger
	treasury *treasury.Treasury
	port     uint64

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	lastAllocation time.Time
}

func newDaemon(port uint64) *Daemon {
	return &Daemon{
		logger:   App.logger,
		treasury: App.treasury,
		port:     port,
	}
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup) {
	d.logger.Info("Starting policyd daemon")

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.EpochWatcher(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.serveHTTP(ctx)
	}()
}

// EpochWatcher sleeps until the pending epoch point, triggers the policy
// allocation, and refreshes the per-boardroom gauges once a minute.
func (d *Daemon) EpochWatcher(ctx context.Context) {
	defer d.logger.Info("Exiting EpochWatcher")
	d.logger.Info("Starting EpochWatcher")

	d.refreshBoardroomGauges()

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(durationToNextEpoch(time.Now(), d.treasury.NextEpochPoint())):
			if err := d.allocateSeigniorage(ctx); err != nil {
				misc.Errorf(d.logger, "epoch allocation failed, will retry next wake: %v", err)
			}
		case <-time.After(1 * time.Minute):
			d.refreshBoardroomGauges()
		}
	}
}

// allocateSeigniorage drives one AllocateSeigniorage call through jittered
// retries.  A not-yet-due clock is not an error here; it just means another
// caller (or a clock skew) got there first.
func (d *Daemon) allocateSeigniorage(ctx context.Context) error {
	err := repeat.Repeat(
		repeat.Fn(func() error {
			err := d.treasury.AllocateSeigniorage()
			if err != nil && !errors.Is(err, chrono.ErrNotDue) {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(10),
		repeat.FnOnError(func(err error) error {
			d.logger.Warn("retrying epoch allocation", "error", err.Error())
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 5 * time.Second,
				MaxDelay:  30 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return err
	}
	d.Lock()
	d.lastAllocation = time.Now()
	d.Unlock()
	d.refreshBoardroomGauges()
	return nil
}

// refreshBoardroomGauges republishes staked totals for every registered
// boardroom concurrently.
func (d *Daemon) refreshBoardroomGauges() {
	fanOut := syncutil.NewFanOut(20)
	for i := 0; i < App.registry.Count(); i++ {
		entry, err := App.registry.Boardroom(i)
		if err != nil {
			continue
		}
		fanOut.Run(func(val any) error {
			e := val.(treasury.BoardroomAllocation)
			f, _ := new(big.Float).SetInt(e.Target.TotalStaked().BigInt()).Float64()
			promBoardroomStaked.WithLabelValues(string(e.Addr)).Set(f)
			return nil
		}, entry)
	}
	fanOut.Wait()
}

func (d *Daemon) serveHTTP(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/price", d.handlePrice)
	mux.HandleFunc("/status", d.handleStatus)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", d.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	misc.Infof(d.logger, "serving http on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		misc.Errorf(d.logger, "http server error: %v", err)
	}
}

// handlePrice lets the price feed POST the dollar price (1e18 fixed point)
// and anyone GET the latest quote.
func (d *Daemon) handlePrice(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Price string `json:"price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		price, ok := math.NewIntFromString(body.Price)
		if !ok || !price.IsPositive() {
			http.Error(w, "price must be a positive integer string", http.StatusBadRequest)
			return
		}
		App.oracle.Post(App.dollar.Address(), price)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		price, err := d.treasury.GetDollarPrice()
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"price": price.String()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	d.RLock()
	lastAlloc := d.lastAllocation
	d.RUnlock()
	status := map[string]any{
		"epoch":            d.treasury.Epoch(),
		"nextEpochPoint":   d.treasury.NextEpochPoint().Format(time.RFC3339),
		"seigniorageSaved": d.treasury.SeigniorageSaved().String(),
		"epochsUnderPeg":   d.treasury.EpochsUnderPeg(),
		"migrated":         d.treasury.Migrated(),
		"lastAllocation":   lastAlloc.Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// durationToNextEpoch clamps the wait so a due or past epoch point polls on
// a short delay instead of spinning.
func durationToNextEpoch(curTime, epochPoint time.Time) time.Duration {
	dur := epochPoint.Sub(curTime)
	if dur < time.Second {
		return time.Second
	}
	return dur
}
