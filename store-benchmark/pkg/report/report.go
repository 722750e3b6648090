// =============================================================================
// pkg/report/report.go - Per-Rank Statistics Reporter
// =============================================================================
//
// One info line is logged for every store and every load call:
//
//	size=128, storage=4.1e-05, serialization=2e-06
//	size=128, loading=3.3e-05, deserialization=1e-06
//
// Times are in seconds, taken from the maximum of the accumulator returned
// by the store. Ranks never aggregate across the group; each rank reports
// only its own calls and a debug-level summary at the end of each phase.
//
// =============================================================================

package report

import (
	"time"

	"github.com/karthikiyer56/hepnos-store-benchmark/helpers"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/stats"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// Reporter logs timing samples and keeps per-phase summaries.
type Reporter struct {
	logger interfaces.Logger
	store  *stats.PhaseStats
	load   *stats.PhaseStats
	bar    *ProgressBar
}

// New creates a Reporter. bar may be nil.
func New(logger interfaces.Logger, bar *ProgressBar) *Reporter {
	return &Reporter{
		logger: logger,
		store:  stats.NewPhaseStats(),
		load:   stats.NewPhaseStats(),
		bar:    bar,
	}
}

// Stored logs one store call.
func (r *Reporter) Stored(_, size int, st types.StoreStatistics) {
	storage, serialization := st.RawStorageTime.Max, st.SerializationTime.Max
	r.logger.Info("size=%d, storage=%v, serialization=%v", size, storage, serialization)
	r.store.Record(size, storage, serialization)
	r.bar.increment()
}

// Loaded logs one load call.
func (r *Reporter) Loaded(_, size int, st types.LoadStatistics) {
	loading, deserialization := st.RawLoadingTime.Max, st.DeserializationTime.Max
	r.logger.Info("size=%d, loading=%v, deserialization=%v", size, loading, deserialization)
	r.load.Record(size, loading, deserialization)
	r.bar.increment()
}

// Summarize logs the summary of a phase at debug level.
func (r *Reporter) Summarize(phase types.Phase, elapsed time.Duration) {
	if !r.logger.Enabled(types.VerbosityDebug) {
		return
	}
	ps, ioName, codecName := r.store, "storage", "serialization"
	if phase == types.PhaseLoad {
		ps, ioName, codecName = r.load, "loading", "deserialization"
	}

	r.logger.Debug("%s phase: %d products, %s in %s (%s)", phase, ps.IO.Count(),
		helpers.FormatBytes(ps.Bytes), helpers.FormatDuration(elapsed),
		helpers.FormatThroughput(ps.Bytes, elapsed))
	r.logger.Debug("  %-16s %s", ioName+":", ps.IO.Summary())
	r.logger.Debug("  %-16s %s", codecName+":", ps.Codec.Summary())
}

// Completed logs the end of the benchmark on rank 0.
func (r *Reporter) Completed(total time.Duration) {
	r.logger.Info("Benchmark completed in %s", helpers.FormatDuration(total))
}
