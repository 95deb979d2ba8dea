/*
scheduler.go - Expired contract watcher

PURPOSE:
  Periodically lists the contracts that are past their termino (the renewal candidates)
  and reports them: a warning log per contract and the count on a gauge. Renewal itself
  stays a user action (POST /api/contratos/{id}/renovar); the watcher never writes.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on Start
  - Reads through the engine cache, so a scan costs at most one LoadAll per TTL

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour, RENEWAL_CHECK_INTERVAL)
  - Enabled: Whether the watcher is active (false when the interval is 0)

USAGE:
  watcher := NewRenewalWatcher(engine, metrics, log)
  watcher.Start()
  // ... later
  watcher.Stop()

SEE ALSO:
  - handlers.go: RenewalCandidates / RenewContract endpoints
  - metrics: parcelas_expired_contracts gauge
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/parcelas/parcelas"
	"go.uber.org/zap"
)

// ExpiredGauge receives the number of expired contracts after each scan.
type ExpiredGauge interface {
	SetExpiredContracts(n int)
}

// RenewalWatcher reports expired contracts on a schedule.
type RenewalWatcher struct {
	Engine        *parcelas.Engine
	Gauge         ExpiredGauge
	Log           *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Timeout bounds one scan.
	Timeout time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   []parcelas.Renewal
}

// NewRenewalWatcher creates a watcher; gauge and log may be nil.
func NewRenewalWatcher(engine *parcelas.Engine, gauge ExpiredGauge, log *zap.Logger) *RenewalWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RenewalWatcher{
		Engine:        engine,
		Gauge:         gauge,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Timeout:       30 * time.Second,
	}
}

// Start begins the watcher.
func (rw *RenewalWatcher) Start() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.Enabled || rw.CheckInterval <= 0 {
		rw.Log.Info("renewal watcher disabled")
		return
	}
	if rw.ticker != nil {
		return
	}

	// Each run gets its own stop channel so the watcher can be started again after Stop.
	rw.ticker = time.NewTicker(rw.CheckInterval)
	rw.stop = make(chan struct{})
	rw.wg.Add(1)

	go rw.run(rw.ticker, rw.stop)

	rw.Log.Info("renewal watcher started", zap.Duration("interval", rw.CheckInterval))
}

// Stop stops the watcher and waits for a running scan to finish.
func (rw *RenewalWatcher) Stop() {
	rw.mu.Lock()
	ticker, stop := rw.ticker, rw.stop
	rw.ticker, rw.stop = nil, nil
	rw.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		rw.wg.Wait()
		rw.Log.Info("renewal watcher stopped")
	}
}

// Last returns the candidates found by the most recent scan.
func (rw *RenewalWatcher) Last() []parcelas.Renewal {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.last
}

func (rw *RenewalWatcher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rw.wg.Done()

	// Run immediately on start
	rw.Check(context.Background())

	for {
		select {
		case <-ticker.C:
			rw.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check runs one scan and returns the expired contracts.
func (rw *RenewalWatcher) Check(ctx context.Context) ([]parcelas.Renewal, error) {
	if rw.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rw.Timeout)
		defer cancel()
	}

	renewals, err := rw.Engine.RenewalCandidates(ctx)
	if err != nil {
		rw.Log.Warn("renewal check failed", zap.Error(err))
		return nil, err
	}

	for _, rn := range renewals {
		rw.Log.Warn("contract expired",
			zap.Int64("contrato_id", rn.Contract.ID),
			zap.String("contrato", rn.Contract.Name),
			zap.Int("dias_vencido", rn.DaysOverdue))
	}
	if rw.Gauge != nil {
		rw.Gauge.SetExpiredContracts(len(renewals))
	}

	rw.mu.Lock()
	rw.last = renewals
	rw.mu.Unlock()

	rw.Log.Info("renewal check completed", zap.Int("expired", len(renewals)))
	return renewals, nil
}
