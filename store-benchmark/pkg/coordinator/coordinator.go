// =============================================================================
// pkg/coordinator/coordinator.go - Shared Namespace Setup
// =============================================================================
//
// Rank 0 creates the dataset and the run, then broadcasts the run descriptor.
// Every rank (rank 0 included) opens the run from the descriptor and creates
// the subrun numbered after its own rank. All products of a rank live under
// that subrun, so ranks never write to the same key.
//
// FAILURE:
//   When rank 0 cannot create the namespace it returns the error without
//   broadcasting. The caller aborts the group, which releases the other
//   ranks from the pending broadcast with types.ErrAborted.
//
// =============================================================================

package coordinator

import (
	"context"
	"fmt"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/datastore"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// Namespace is the part of the store hierarchy a rank works in.
type Namespace struct {
	Run    interfaces.Run
	SubRun interfaces.SubRun
}

// Establish sets up the shared run and this rank's subrun.
func Establish(ctx context.Context, g interfaces.Group, store interfaces.DataStore, datasetPath string, logger interfaces.Logger) (*Namespace, error) {
	var desc types.RunDescriptor

	if g.Rank() == types.RootRank {
		ds, err := datastore.CreateDataSetPath(ctx, store.Root(), datasetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create dataset %q: %w", datasetPath, err)
		}
		run, err := ds.CreateRun(ctx, types.RunNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to create run %d in %s: %w", types.RunNumber, ds.FullName(), err)
		}
		desc = run.Descriptor()
		logger.Trace("created run %d in dataset %s", run.Number(), ds.FullName())
	}

	if err := g.Broadcast(ctx, desc[:], types.RootRank); err != nil {
		return nil, fmt.Errorf("failed to broadcast run descriptor: %w", err)
	}
	if !desc.Valid() {
		return nil, fmt.Errorf("%w: received an invalid run descriptor", types.ErrStore)
	}

	run, err := store.OpenRun(ctx, desc, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open run from descriptor: %w", err)
	}
	sub, err := run.CreateSubRun(ctx, uint64(g.Rank()))
	if err != nil {
		return nil, fmt.Errorf("failed to create subrun %d: %w", g.Rank(), err)
	}
	logger.Trace("created subrun %d", sub.Number())

	return &Namespace{Run: run, SubRun: sub}, nil
}
