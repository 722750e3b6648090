// =============================================================================
// benchmark.go - Benchmark Orchestration
// =============================================================================
//
// Run drives one rank through the whole benchmark:
//
//	connect ─► SETUP ─► namespace ─► STORE ─► store loop ─►
//	LOAD ─► load loop ─► TEARDOWN ─► shutdown (rank 0) ─► close
//
// Each capitalised step is a barrier over the whole group.
//
// FAILURES:
//   Connection, namespace and store failures are logged at critical and
//   abort the whole group. Load mismatches are logged and counted; the run
//   still succeeds.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/coordinator"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/datastore"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/executor"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/logging"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/memory"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/phase"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/product"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/report"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// =============================================================================
// BenchmarkContext
// =============================================================================

// BenchmarkContext is everything a rank knows about itself. It is built once,
// after validation, and never modified.
type BenchmarkContext struct {
	Identity types.ProcessIdentity
	Config   *Config
	Rand     *rand.Rand
	Logger   interfaces.Logger
}

// NewBenchmarkContext seeds the rank's random source with its rank.
func NewBenchmarkContext(id types.ProcessIdentity, cfg *Config, logger interfaces.Logger) BenchmarkContext {
	logger.Trace("Initializing RNG")
	return BenchmarkContext{
		Identity: id,
		Config:   cfg,
		Rand:     rand.New(rand.NewSource(int64(id.Rank))),
		Logger:   logger,
	}
}

// =============================================================================
// Benchmark
// =============================================================================

// Benchmark runs the phases of one rank.
type Benchmark struct {
	bc    BenchmarkContext
	group interfaces.Group

	// progressOut receives the rank 0 progress bar.
	progressOut io.Writer
}

// NewBenchmark creates a Benchmark for one rank.
func NewBenchmark(bc BenchmarkContext, g interfaces.Group) *Benchmark {
	return &Benchmark{bc: bc, group: g, progressOut: os.Stderr}
}

// Run executes the benchmark and returns the exit code of this rank.
func (b *Benchmark) Run(ctx context.Context) int {
	cfg, logger := b.bc.Config, b.bc.Logger
	cfg.PrintConfig(logger)

	logger.Trace("Connecting to the store using file %s", cfg.ConnectionFile)
	logger.Trace("Creating AsyncEngine with %d threads", cfg.Threads)
	store, err := datastore.Connect(ctx, datastore.ConnectOptions{
		Protocol:         cfg.Protocol,
		ConnectionFile:   cfg.ConnectionFile,
		EngineConfigFile: cfg.EngineConfigFile,
		Threads:          cfg.Threads,
		Logger:           logger.WithScope("STORE"),
	})
	if err != nil {
		return b.fail(ExitConnectError, "Could not connect to the store service", err)
	}
	defer store.Close()

	phases := phase.NewSynchronizer(b.group, logger)
	if err := phases.Cross(ctx, types.PhaseSetup); err != nil {
		return b.fail(ExitGroupError, "Setup barrier failed", err)
	}

	logger.Trace("Creating dataset")
	ns, err := coordinator.Establish(ctx, b.group, store, cfg.Dataset, logger)
	if err != nil {
		return b.fail(ExitRuntimeError, "Could not set up the namespace", err)
	}

	products := product.Generate(cfg.ProductSizes)

	var bar *report.ProgressBar
	if cfg.Progress && b.bc.Identity.IsRoot() && len(products) > 0 {
		bar = report.NewProgressBar(int64(2*len(products)), b.progressOut)
	}
	defer bar.Finish()

	reporter := report.New(logger, bar)
	exec := executor.New(executor.Config{
		SubRun:   ns.SubRun,
		Label:    cfg.Label,
		Products: products,
		Wait:     cfg.WaitRange,
		Rand:     b.bc.Rand,
		Logger:   logger,
		Reporter: reporter,
	})

	// Store phase
	if err := phases.Cross(ctx, types.PhaseStore); err != nil {
		return b.fail(ExitGroupError, "Store barrier failed", err)
	}
	bar.SetCaption("store")
	stored, err := exec.Store(ctx)
	if err != nil {
		return b.fail(ExitRuntimeError, "Store phase failed", err)
	}
	reporter.Summarize(types.PhaseStore, stored.Elapsed)

	// Load phase
	if err := phases.Cross(ctx, types.PhaseLoad); err != nil {
		return b.fail(ExitGroupError, "Load barrier failed", err)
	}
	bar.SetCaption("load")
	loaded, err := exec.Load(ctx)
	if err != nil {
		return b.fail(ExitRuntimeError, "Load phase failed", err)
	}
	reporter.Summarize(types.PhaseLoad, loaded.Elapsed)
	if loaded.Mismatches > 0 {
		logger.Warn("%d of %d products did not load back intact", loaded.Mismatches, len(products))
	}
	memory.Take().Log(logger, "after load phase")

	// Teardown
	if err := phases.Cross(ctx, types.PhaseTeardown); err != nil {
		return b.fail(ExitGroupError, "Teardown barrier failed", err)
	}
	for _, c := range phases.Crossings() {
		logger.Trace("%s barrier crossed at %s", c.Phase, c.At.Format(logging.TimeFormat))
	}
	if !b.bc.Identity.IsRoot() {
		return ExitSuccess
	}

	if err := store.Shutdown(ctx); err != nil {
		logger.Error("Could not shut the store down: %v", err)
		return ExitRuntimeError
	}
	if total, ok := phases.Elapsed(types.PhaseSetup, types.PhaseTeardown); ok {
		reporter.Completed(total)
	}
	return ExitSuccess
}

// fail logs a fatal error and aborts the group. A rank released by another
// rank's abort does not abort again.
func (b *Benchmark) fail(code int, msg string, err error) int {
	if errors.Is(err, types.ErrAborted) {
		b.bc.Logger.Debug("%s: %v", msg, err)
		return code
	}
	b.bc.Logger.Critical("%s: %v", msg, err)
	b.bc.Logger.Sync()
	b.group.Abort(code, msg)
	return code
}
