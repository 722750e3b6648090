// =============================================================================
// pkg/types/types.go - Core Data Types
// =============================================================================
//
// This package contains pure data types used throughout store-benchmark.
// These types have no external dependencies beyond the standard library.
//
// =============================================================================

package types

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// KB is kilobytes in bytes
	KB = 1024

	// MB is megabytes in bytes
	MB = 1024 * 1024

	// RootRank is the rank that creates the shared namespace and issues shutdown.
	RootRank = 0

	// RunNumber is the run created under the dataset for every benchmark.
	RunNumber = 0

	// LoggerName is the name inserted into every log line.
	LoggerName = "hepnos"

	// DefaultWaitRange is the wait range used when none is given.
	DefaultWaitRange = "0,0"

	// MaxProductSize is the largest product size accepted on the command line.
	MaxProductSize = 1024 * MB

	// MaxWaitSeconds bounds both ends of a wait range.
	MaxWaitSeconds = 24 * 60 * 60
)

// =============================================================================
// Verbosity
// =============================================================================

// Verbosity is the log level threshold of a rank.
// Levels are ordered from most to least verbose.
type Verbosity int

const (
	VerbosityTrace Verbosity = iota
	VerbosityDebug
	VerbosityInfo
	VerbosityWarning
	VerbosityError
	VerbosityCritical
	VerbosityOff
)

var verbosityNames = []string{"trace", "debug", "info", "warning", "error", "critical", "off"}

// String returns the command-line spelling of the verbosity.
func (v Verbosity) String() string {
	if v < VerbosityTrace || v > VerbosityOff {
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
	return verbosityNames[v]
}

// ParseVerbosity maps a command-line level name to a Verbosity.
func ParseVerbosity(s string) (Verbosity, bool) {
	for i, name := range verbosityNames {
		if s == name {
			return Verbosity(i), true
		}
	}
	return VerbosityInfo, false
}

// VerbosityNames returns the accepted level names joined by "|".
func VerbosityNames() string {
	return strings.Join(verbosityNames, "|")
}

// =============================================================================
// WaitRange
// =============================================================================

// WaitRange is a closed interval of seconds [Low, High] with Low <= High.
type WaitRange struct {
	Low  float64
	High float64
}

// IsZero reports whether the range is [0,0].
func (w WaitRange) IsZero() bool {
	return w.Low == 0 && w.High == 0
}

// String returns the range in the "x,y" command-line form.
func (w WaitRange) String() string {
	return fmt.Sprintf("%g,%g", w.Low, w.High)
}

// =============================================================================
// Phase Enum
// =============================================================================

// Phase names a barrier crossed by every rank.
// Phases progress linearly: SETUP -> STORE -> LOAD -> TEARDOWN
//
//	SETUP:    configuration validated and datastore connected
//	STORE:    shared namespace resolved and products generated
//	LOAD:     every rank finished its store loop
//	TEARDOWN: every rank finished its load loop
type Phase string

const (
	PhaseSetup    Phase = "SETUP"
	PhaseStore    Phase = "STORE"
	PhaseLoad     Phase = "LOAD"
	PhaseTeardown Phase = "TEARDOWN"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// =============================================================================
// ProcessIdentity
// =============================================================================

// ProcessIdentity is the (rank, size) pair of a participant.
// Invariant: 0 <= Rank < Size.
type ProcessIdentity struct {
	Rank int
	Size int
}

// IsRoot reports whether the identity is the namespace creator.
func (p ProcessIdentity) IsRoot() bool {
	return p.Rank == RootRank
}

// Valid reports whether the identity satisfies 0 <= Rank < Size.
func (p ProcessIdentity) Valid() bool {
	return p.Size > 0 && p.Rank >= 0 && p.Rank < p.Size
}

// String returns "rank|size".
func (p ProcessIdentity) String() string {
	return fmt.Sprintf("%d|%d", p.Rank, p.Size)
}

// =============================================================================
// RunDescriptor - Fixed-Size Namespace Locator
// =============================================================================

// RunDescriptorSize is the encoded size of a RunDescriptor in bytes.
const RunDescriptorSize = 32

// RunDescriptorVersion is the layout version written at offset 4.
const RunDescriptorVersion = 1

var runDescriptorMagic = [4]byte{'H', 'R', 'U', 'N'}

// RunDescriptor is an opaque fixed-size locator for a run.
//
// LAYOUT:
//
//	[0:4]   magic "HRUN"
//	[4]     layout version
//	[5:8]   reserved, zero
//	[8:24]  dataset identifier (UUID bytes)
//	[24:32] run number (big-endian uint64)
//
// The size is fixed so every rank can allocate the receive buffer of a
// broadcast before the content is known.
type RunDescriptor [RunDescriptorSize]byte

// NewRunDescriptor encodes a dataset identifier and run number.
func NewRunDescriptor(datasetID [16]byte, run uint64) RunDescriptor {
	var d RunDescriptor
	copy(d[0:4], runDescriptorMagic[:])
	d[4] = RunDescriptorVersion
	copy(d[8:24], datasetID[:])
	binary.BigEndian.PutUint64(d[24:32], run)
	return d
}

// DatasetID returns the dataset identifier.
func (d RunDescriptor) DatasetID() [16]byte {
	var id [16]byte
	copy(id[:], d[8:24])
	return id
}

// RunNumber returns the run number.
func (d RunDescriptor) RunNumber() uint64 {
	return binary.BigEndian.Uint64(d[24:32])
}

// Valid reports whether the magic and version match.
func (d RunDescriptor) Valid() bool {
	return [4]byte{d[0], d[1], d[2], d[3]} == runDescriptorMagic && d[4] == RunDescriptorVersion
}

// =============================================================================
// Statistics - Running Accumulator
// =============================================================================

// Statistics accumulates count, min, max and mean of samples in seconds.
type Statistics struct {
	Num int
	Min float64
	Max float64
	Avg float64
}

// Push adds a sample.
func (s *Statistics) Push(seconds float64) {
	if s.Num == 0 {
		s.Min, s.Max, s.Avg = seconds, seconds, seconds
		s.Num = 1
		return
	}
	if seconds < s.Min {
		s.Min = seconds
	}
	if seconds > s.Max {
		s.Max = seconds
	}
	s.Avg += (seconds - s.Avg) / float64(s.Num+1)
	s.Num++
}

// PushDuration adds a duration sample.
func (s *Statistics) PushDuration(d time.Duration) {
	s.Push(d.Seconds())
}

// StoreStatistics is the timing sample returned by a store call.
type StoreStatistics struct {
	RawStorageTime    Statistics
	SerializationTime Statistics
}

// LoadStatistics is the timing sample returned by a load call.
type LoadStatistics struct {
	RawLoadingTime      Statistics
	DeserializationTime Statistics
}
