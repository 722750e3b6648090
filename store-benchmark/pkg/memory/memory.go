// =============================================================================
// pkg/memory/memory.go - Process Memory Snapshots
// =============================================================================
//
// Each rank reports its peak resident set size and Go heap once the load
// phase is done. Large product sizes multiply quickly with rank count on a
// shared node, so the numbers help size a run.
//
// =============================================================================

package memory

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/karthikiyer56/hepnos-store-benchmark/helpers"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
)

// Snapshot captures memory usage at a point in time.
type Snapshot struct {
	PeakRSSBytes int64  // Peak resident set size
	HeapAlloc    uint64 // Bytes of allocated heap objects
	HeapSys      uint64 // Bytes of heap memory obtained from the OS
	NumGC        uint32 // Completed GC cycles
}

// Take captures the current memory state.
func Take() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Snapshot{
		PeakRSSBytes: PeakRSSBytes(),
		HeapAlloc:    ms.HeapAlloc,
		HeapSys:      ms.HeapSys,
		NumGC:        ms.NumGC,
	}
}

// Log writes the snapshot at debug level.
func (s Snapshot) Log(logger interfaces.Logger, label string) {
	logger.Debug("%s: peak_rss=%s heap_alloc=%s heap_sys=%s gc=%d",
		label,
		helpers.FormatBytes(s.PeakRSSBytes),
		helpers.FormatBytes(int64(s.HeapAlloc)),
		helpers.FormatBytes(int64(s.HeapSys)),
		s.NumGC)
}

// PeakRSSBytes returns the peak Resident Set Size in bytes.
//
// NOTE:
//
//	On macOS, Getrusage returns RSS in bytes.
//	On Linux, Getrusage returns RSS in kilobytes (we multiply by 1024).
func PeakRSSBytes() int64 {
	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return int64(ms.Sys)
	}

	rss := int64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		rss *= 1024
	}
	return rss
}
