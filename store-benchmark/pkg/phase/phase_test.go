package phase

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/group"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/logging"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

func discard(t *testing.T, rank, size int) *logging.Logger {
	t.Helper()
	log, err := logging.New(logging.Options{
		Identity: types.ProcessIdentity{Rank: rank, Size: size},
		Level:    types.VerbosityInfo,
		Console:  io.Discard,
	})
	require.NoError(t, err)
	return log
}

func TestCrossOrdering(t *testing.T) {
	const size = 4
	local := group.NewLocal(size)
	ctx := context.Background()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	syncs := make([]*Synchronizer, size)
	for r := range syncs {
		syncs[r] = NewSynchronizer(local.Member(r), discard(t, r, size))
	}

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			s := syncs[rank]
			assert.NoError(t, s.Cross(ctx, types.PhaseSetup))
			record("store")
			if rank == 3 {
				// the slowest rank still finishes its store before anyone loads
				time.Sleep(20 * time.Millisecond)
			}
			record("stored")
			assert.NoError(t, s.Cross(ctx, types.PhaseStore))
			assert.NoError(t, s.Cross(ctx, types.PhaseLoad))
			record("load")
			assert.NoError(t, s.Cross(ctx, types.PhaseTeardown))
		}(r)
	}
	wg.Wait()

	lastStored, firstLoad := -1, len(events)
	for i, e := range events {
		if e == "stored" {
			lastStored = i
		}
		if e == "load" && i < firstLoad {
			firstLoad = i
		}
	}
	assert.Less(t, lastStored, firstLoad)
}

func TestCrossRejectsOutOfOrder(t *testing.T) {
	s := NewSynchronizer(group.NewLocal(1).Member(0), discard(t, 0, 1))
	ctx := context.Background()

	assert.Error(t, s.Cross(ctx, types.PhaseStore))
	require.NoError(t, s.Cross(ctx, types.PhaseSetup))
	assert.Error(t, s.Cross(ctx, types.PhaseSetup))
}

func TestElapsed(t *testing.T) {
	s := NewSynchronizer(group.NewLocal(1).Member(0), discard(t, 0, 1))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	for _, p := range []types.Phase{types.PhaseSetup, types.PhaseStore, types.PhaseLoad, types.PhaseTeardown} {
		require.NoError(t, s.Cross(ctx, p))
	}

	d, ok := s.Elapsed(types.PhaseSetup, types.PhaseTeardown)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
	assert.Len(t, s.Crossings(), 4)
}
