// =============================================================================
// main.go - Entry Point for store-benchmark
// =============================================================================
//
// store-benchmark measures the store and load latency of a hierarchical
// object store under rank-parallel load. Every rank writes synthetic products
// into its own subrun of a shared run, then reads them back and verifies them.
//
// USAGE:
//
//	mpirun -np 4 store-benchmark \
//	  -p tcp -c redis.toml -d test -l prod -s 128,256,512 \
//	  [-m engine.toml] [-t 4] [-r 0.5,1.5] [-v debug] \
//	  --coordinator node0:7400
//
//	store-benchmark --local-ranks 4 -p local -c memory.toml -d test -l prod -s 128
//
// GROUPS:
//   - One rank: runs alone, no coordinator needed
//   - --local-ranks N: N goroutine ranks in this process
//   - Otherwise: one process per rank joined over TCP through rank 0
//
// EXIT CODES:
//
//	0 - Success
//	1 - Configuration error
//	2 - Runtime error (namespace setup, store or load failure)
//	3 - Could not connect to the store
//	4 - Process group error (lost peer, failed rendezvous)
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/group"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/logging"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// Version is the tool version
	Version = "0.6.0"

	// ToolName is the name of this tool
	ToolName = "store-benchmark"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitRuntimeError = 2
	ExitConnectError = 3
	ExitGroupError   = group.ExitGroupError
)

// =============================================================================
// Main Entry Point
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr))
}

// run executes the tool and returns its exit code.
func run(args []string, lookup group.LookupFunc, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return ExitConfigError
	}
	if cfg.ShowHelp {
		return ExitSuccess
	}
	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "%s version %s\n", ToolName, Version)
		return ExitSuccess
	}

	ctx := context.Background()
	if cfg.LocalRanks > 0 {
		return runLocal(ctx, cfg, stdout)
	}

	id, err := group.ResolveIdentity(cfg.Rank, cfg.GroupSize, lookup)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return ExitConfigError
	}

	logger, err := newLogger(id, cfg, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return ExitConfigError
	}
	defer logger.Close()

	joinCtx, cancel := context.WithTimeout(ctx, cfg.JoinTimeout)
	g, err := group.Join(joinCtx, id, group.ResolveCoordinator(cfg.Coordinator, lookup), group.TCPOptions{
		JoinTimeout: cfg.JoinTimeout,
		Logger:      logger.WithScope("GROUP"),
	})
	cancel()
	if err != nil {
		logger.Critical("Could not join the process group: %v", err)
		logger.Sync()
		return ExitGroupError
	}

	return runRank(ctx, id, g, cfg, logger)
}

// runLocal runs every rank as a goroutine over one Local group.
func runLocal(ctx context.Context, cfg *Config, stdout io.Writer) int {
	size := cfg.LocalRanks
	local := group.NewLocal(size)
	stdout = logging.SyncWriter(stdout)
	codes := make([]int, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			id := types.ProcessIdentity{Rank: rank, Size: size}

			// Each rank validates its own copy like separate processes would.
			rankCfg := *cfg
			logger, err := newLogger(id, &rankCfg, stdout)
			if err != nil {
				local.Member(rank).Abort(ExitConfigError, err.Error())
				codes[rank] = ExitConfigError
				return
			}
			defer logger.Close()
			codes[rank] = runRank(ctx, id, local.Member(rank), &rankCfg, logger)
		}(r)
	}
	wg.Wait()

	if code, _, aborted := local.Aborted(); aborted {
		return code
	}
	for _, code := range codes {
		if code != ExitSuccess {
			return code
		}
	}
	return ExitSuccess
}

// runRank validates the configuration and runs the benchmark on one rank.
func runRank(ctx context.Context, id types.ProcessIdentity, g interfaces.Group, cfg *Config, logger *logging.Logger) int {
	if err := cfg.Validate(); err != nil {
		logger.Critical("%v", err)
		logger.Sync()
		g.Abort(ExitConfigError, err.Error())
		return ExitConfigError
	}
	logger.SetLevel(cfg.Verbosity)

	if id.IsRoot() {
		logStartup(logger, id, cfg)
	}

	bc := NewBenchmarkContext(id, cfg, logger)
	code := NewBenchmark(bc, g).Run(ctx)
	logger.Sync()
	if code == ExitSuccess {
		if err := g.Close(); err != nil {
			logger.Warn("leaving the process group: %v", err)
		}
	}
	return code
}

// newLogger builds the rank logger. Until the configuration is validated the
// level is taken leniently from -v, falling back to info.
func newLogger(id types.ProcessIdentity, cfg *Config, stdout io.Writer) (*logging.Logger, error) {
	level, ok := types.ParseVerbosity(cfg.VerbosityArg)
	if !ok {
		level = types.VerbosityInfo
	}
	opts := logging.Options{
		Identity: id,
		Level:    level,
		Console:  stdout,
		Color:    !cfg.NoColor && !color.NoColor,
	}
	// With goroutine ranks only rank 0 writes the log files.
	if cfg.LocalRanks == 0 || id.IsRoot() {
		opts.LogPath = rankPath(cfg.LogFile, id, cfg.LocalRanks == 0)
		opts.ErrorPath = rankPath(cfg.ErrorFile, id, cfg.LocalRanks == 0)
	}
	return logging.New(opts)
}

// rankPath gives every process its own log file when the group has more
// than one process: "bench.log" becomes "bench.log.3" on rank 3.
func rankPath(path string, id types.ProcessIdentity, perProcess bool) string {
	if path == "" || !perProcess || id.Size == 1 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, id.Rank)
}

// =============================================================================
// Startup Logging
// =============================================================================

// logStartup logs startup information on rank 0.
func logStartup(logger interfaces.Logger, id types.ProcessIdentity, cfg *Config) {
	logger.Separator()
	logger.Info("                    %s v%s", ToolName, Version)
	logger.Separator()
	logger.Info("")
	logger.Info("Process ID:  %d", os.Getpid())
	logger.Info("Working Dir: %s", mustGetwd())
	logger.Info("Ranks:       %d", id.Size)
	logger.Info("Dataset:     %s", cfg.Dataset)
	logger.Info("Products:    %d", len(cfg.ProductSizes))
	logger.Info("")
	logger.Sync()
}

// mustGetwd returns the current working directory or "unknown".
func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return wd
}
