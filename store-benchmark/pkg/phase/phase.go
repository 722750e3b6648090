// =============================================================================
// pkg/phase/phase.go - Phase Barriers
// =============================================================================
//
// Every rank crosses four full-group barriers in the same order:
//
//	SETUP → STORE → LOAD → TEARDOWN
//
// No rank starts loading before every rank has finished storing, and rank 0
// only shuts the store down after every rank has finished loading.
//
// =============================================================================

package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// order is the only sequence in which phases may be crossed.
var order = []types.Phase{types.PhaseSetup, types.PhaseStore, types.PhaseLoad, types.PhaseTeardown}

// Crossing is the time a rank left a phase barrier.
type Crossing struct {
	Phase types.Phase
	At    time.Time
}

// Synchronizer issues one barrier per phase on a group.
type Synchronizer struct {
	group     interfaces.Group
	logger    interfaces.Logger
	crossings []Crossing
	now       func() time.Time
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(group interfaces.Group, logger interfaces.Logger) *Synchronizer {
	return &Synchronizer{group: group, logger: logger, now: time.Now}
}

// Cross blocks until every rank has reached p. Phases must be crossed in
// order SETUP, STORE, LOAD, TEARDOWN.
func (s *Synchronizer) Cross(ctx context.Context, p types.Phase) error {
	next := len(s.crossings)
	if next >= len(order) || order[next] != p {
		return fmt.Errorf("phase %s crossed out of order after %d phases", p, next)
	}

	s.logger.Trace("entering %s barrier", p)
	if err := s.group.Barrier(ctx); err != nil {
		return fmt.Errorf("%s barrier failed: %w", p, err)
	}
	s.crossings = append(s.crossings, Crossing{Phase: p, At: s.now()})
	s.logger.Trace("left %s barrier", p)
	return nil
}

// Crossings returns the barriers crossed so far.
func (s *Synchronizer) Crossings() []Crossing {
	return append([]Crossing(nil), s.crossings...)
}

// Elapsed returns the time between two crossed phases.
func (s *Synchronizer) Elapsed(from, to types.Phase) (time.Duration, bool) {
	var start, end time.Time
	var haveStart, haveEnd bool
	for _, c := range s.crossings {
		if c.Phase == from {
			start, haveStart = c.At, true
		}
		if c.Phase == to {
			end, haveEnd = c.At, true
		}
	}
	if !haveStart || !haveEnd {
		return 0, false
	}
	return end.Sub(start), true
}
