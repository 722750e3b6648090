// =============================================================================
// pkg/interfaces/interfaces.go - Core Interfaces
// =============================================================================
//
// This package defines the interfaces that decouple the benchmark phases from
// the process-group substrate and from the object store implementation.
//
// DESIGN PRINCIPLES:
//   - Interfaces are small and focused
//   - Implementations can be swapped (TCP group for local goroutine ranks,
//     memory backend for a remote object store)
//   - All blocking collectives take a context
//
// =============================================================================

package interfaces

import (
	"context"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// =============================================================================
// Logger Interface
// =============================================================================

// Logger provides levelled, rank-tagged logging.
//
// Messages below the configured verbosity are discarded. Error and Critical
// messages are additionally written to the error sink when one is configured.
type Logger interface {
	Trace(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Critical(format string, args ...interface{})

	// Separator logs a visual separator line at info level.
	Separator()

	// Enabled reports whether messages at the given level are emitted.
	Enabled(level types.Verbosity) bool

	// WithScope returns a child logger that tags every message with scope.
	WithScope(scope string) Logger

	// Sync flushes buffered output.
	Sync()

	// Close releases the log files. Scoped children must not be closed.
	Close()
}

// =============================================================================
// Group Interface
// =============================================================================

// Group is the collective substrate every rank participates in.
//
// COLLECTIVE CONTRACT:
//
//	Every rank calls Barrier and Broadcast in the same order. A rank that
//	calls a collective the others never reach blocks forever; there are no
//	timeouts. Once any rank aborts, pending and later collectives return
//	types.ErrAborted.
type Group interface {
	// Rank returns this process's rank in [0, Size()).
	Rank() int

	// Size returns the number of ranks.
	Size() int

	// Barrier returns once every rank has entered it.
	Barrier(ctx context.Context) error

	// Broadcast copies buf from root into buf on every other rank.
	// All ranks pass a buffer of identical length.
	Broadcast(ctx context.Context, buf []byte, root int) error

	// Abort terminates the whole group with the given exit code.
	Abort(code int, reason string)

	// Close leaves the group after a successful run.
	Close() error
}

// =============================================================================
// DataStore Interfaces
// =============================================================================

// DataStore is a connected handle on the hierarchical object store.
type DataStore interface {
	// Root returns the top-level dataset of the store.
	Root() DataSet

	// OpenRun resolves a run descriptor into a handle without creating anything.
	// When validate is set the run is checked for existence first.
	OpenRun(ctx context.Context, desc types.RunDescriptor, validate bool) (Run, error)

	// Shutdown asks the store service to stop. Called by one rank only.
	Shutdown(ctx context.Context) error

	// Close releases this process's connection.
	Close() error
}

// DataSet is a named container of datasets and runs.
type DataSet interface {
	FullName() string
	CreateDataSet(ctx context.Context, name string) (DataSet, error)
	CreateRun(ctx context.Context, number uint64) (Run, error)
}

// Run is a numbered container of subruns.
type Run interface {
	Number() uint64
	Descriptor() types.RunDescriptor
	CreateSubRun(ctx context.Context, number uint64) (SubRun, error)
}

// SubRun is a numbered container of events; each rank owns one.
type SubRun interface {
	Number() uint64
	CreateEvent(ctx context.Context, number uint64) (Event, error)
	Event(ctx context.Context, number uint64) (Event, error)
}

// Event holds labelled products.
type Event interface {
	Number() uint64
	Store(ctx context.Context, label string, data []byte) (types.StoreStatistics, error)
	Load(ctx context.Context, label string) ([]byte, types.LoadStatistics, error)
}
