// Package supervisor is the agent's top-level process owner (spec.md
// §4.9, C9): it prints the startup summary, loads and reconciles
// persisted trades, starts the feed client and control server, installs
// the periodic timers, and on shutdown logs open positions (without
// auto-closing them) and writes a final snapshot. Grounded on the
// teacher repo's cmd/main.go orchestration (dial client, build strategy,
// run it, drain its report channel) generalized from one goroutine and
// one channel into the full multi-task scheduling model spec.md §5
// describes.
package supervisor

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/chain"
	"github.com/nullpointer-labs/evmtrader/internal/control"
	"github.com/nullpointer-labs/evmtrader/internal/feed"
	"github.com/nullpointer-labs/evmtrader/internal/logx"
	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/internal/trade"
)

const (
	gasRefreshInterval   = 30 * time.Second
	groupCleanupInterval = 15 * time.Minute
	reconcileInterval    = 5 * time.Minute
	statusInterval       = 60 * time.Second

	minNativeBalanceWei = 1_000_000_000_000_000 // 0.001 ETH
)

// Meta carries the informational fields the startup summary reports but
// that no component otherwise needs to hold on to.
type Meta struct {
	RPCURL      string
	ServerURL   string
	ConfigPath  string
	ControlPort int
}

// Supervisor wires every component's lifecycle together and owns the
// process's single shutdown path.
type Supervisor struct {
	meta      Meta
	chain     *chain.Client
	engine    *aggregate.Engine
	lifecycle *trade.Lifecycle
	feedClnt  *feed.Client
	controlS  *control.Server
	store     *control.ConfigStore
	log       *logx.Logger
	pid       int
}

// New assembles a Supervisor from already-constructed components; main
// wires each component (chain client, router, sandbox, lifecycle, feed,
// control server) and hands them here purely for orchestration.
func New(meta Meta, chainClnt *chain.Client, engine *aggregate.Engine, lifecycle *trade.Lifecycle, feedClnt *feed.Client, controlS *control.Server, store *control.ConfigStore) *Supervisor {
	return &Supervisor{
		meta:      meta,
		chain:     chainClnt,
		engine:    engine,
		lifecycle: lifecycle,
		feedClnt:  feedClnt,
		controlS:  controlS,
		store:     store,
		log:       logx.New("supervisor"),
		pid:       os.Getpid(),
	}
}

// PID returns the process ID, so an external launcher can implement the
// single-instance pidfile guard spec.md §4.9 leaves outside this
// component.
func (s *Supervisor) PID() int { return s.pid }

// Run executes the full startup sequence, blocks serving the feed and
// control server until ctx is cancelled, then runs the shutdown sequence.
// Per spec.md §4.9, a component crash before cancellation is logged, not
// treated as a reason to skip the shutdown sequence.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg := s.store.Get()
	s.printStartupSummary(ctx, cfg)

	if err := s.lifecycle.Load(); err != nil {
		s.log.Printf("failed to load persisted trades: %v", err)
	}
	s.lifecycle.Reconcile(ctx)

	if _, err := s.chain.NextNonce(ctx); err != nil {
		s.log.Printf("initial nonce fetch failed: %v", err)
	}

	componentErr := make(chan error, 2)
	go func() {
		componentErr <- s.feedClnt.Run(ctx)
	}()
	go func() {
		if err := s.controlS.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			componentErr <- err
		}
	}()

	s.installTimers(ctx)

	select {
	case <-ctx.Done():
	case err := <-componentErr:
		if err != nil && ctx.Err() == nil {
			s.log.Printf("component stopped: %v", err)
		}
	}

	s.shutdown()
	return nil
}

func (s *Supervisor) printStartupSummary(ctx context.Context, cfg *model.Config) {
	owner := s.chain.Owner()
	s.log.Printf("wallet=%s rpc=%s server=%s config=%s policies=%d", owner.Hex(), s.meta.RPCURL, s.meta.ServerURL, s.meta.ConfigPath, len(cfg.Policies))

	native, err := s.chain.NativeBalance(ctx, owner)
	if err != nil {
		s.log.Printf("native balance check failed: %v", err)
		return
	}
	s.log.Printf("native balance=%s wei", native.String())
	if native.Cmp(big.NewInt(minNativeBalanceWei)) < 0 {
		s.log.Printf("WARNING: native balance below 0.001 ETH, entries will fail to pay gas")
	}
}

// installTimers starts the periodic tasks spec.md §4.9 names: gas refresh,
// group cleanup, reconciliation and status-log/snapshot. Reconciliation
// and snapshot reuse internal/trade's own loops; gas refresh and group
// cleanup are owned here since neither belongs to a single component.
func (s *Supervisor) installTimers(ctx context.Context) {
	s.lifecycle.StartReconcileLoop(ctx, reconcileInterval)
	s.lifecycle.StartSnapshotLoop(ctx, statusInterval)

	go s.runGasRefreshLoop(ctx)
	go s.runGroupCleanupLoop(ctx)
	go s.runStatusLogLoop(ctx)
}

func (s *Supervisor) runGasRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(gasRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fee := s.chain.FeeSuggestion(ctx)
			s.log.Printf("gas: maxFee=%s maxPriorityFee=%s", fee.MaxFeePerGas.String(), fee.MaxPriorityFeePerGas.String())
		}
	}
}

func (s *Supervisor) runGroupCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(groupCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.RunRetention()
		}
	}
}

func (s *Supervisor) runStatusLogLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := s.lifecycle.Summary()
			s.log.Printf("status: open=%d closed=%d unrealized_eth=%.4f realized_eth=%.4f pairs=%d",
				summary.OpenTrades, summary.ClosedTrades, summary.UnrealizedPnlEth, summary.RealizedPnlEth, s.engine.PairCount())
		}
	}
}

// shutdown implements spec.md §4.9's shutdown sequence: log open
// positions without closing them, write a final snapshot, close the
// control server. The feed client is not closed here; it stops when ctx
// is cancelled.
func (s *Supervisor) shutdown() {
	s.log.Printf("shutting down, pid=%d", s.pid)

	active := s.lifecycle.ActiveTrades()
	if len(active) > 0 {
		s.log.Printf("%d open position(s) at shutdown, left open:", len(active))
		for pair, t := range active {
			s.log.Printf("  %s symbol=%s entry_price=%g tokens_in_possession=%g", pair, t.Symbol, t.EntryPrice, t.TokensInPossession)
		}
	}

	s.lifecycle.FlushSnapshot()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.controlS.Close(shutdownCtx); err != nil {
		s.log.Printf("control server shutdown error: %v", err)
	}
}

// ExitCode maps a fatal startup error to the process exit code spec.md
// §6 specifies: 1 for any fatal startup error, 0 otherwise.
func ExitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
