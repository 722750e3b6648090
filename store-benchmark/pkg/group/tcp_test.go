package group

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *exitRecorder) exit(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *exitRecorder) all() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

// startTCP brings up a TCP group of size ranks on loopback.
func startTCP(t *testing.T, size int, rec *exitRecorder) []*TCPGroup {
	t.Helper()
	opts := TCPOptions{JoinTimeout: 10 * time.Second, Exit: rec.exit}

	hub, err := ListenTCP("127.0.0.1:0", size, opts)
	require.NoError(t, err)

	groups := make([]*TCPGroup, size)
	groups[0] = hub
	errs := make([]error, size)

	var wg sync.WaitGroup
	for r := 1; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			groups[rank], errs[rank] = DialTCP(context.Background(), hub.Addr(), rank, size, opts)
		}(r)
	}
	require.NoError(t, hub.AwaitPeers(context.Background()))
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	return groups
}

func TestTCPBarrierAndBroadcast(t *testing.T) {
	const size = 4
	rec := &exitRecorder{}
	groups := startTCP(t, size, rec)
	ctx := context.Background()

	descriptors := make([][]byte, size)
	errs := runRanks(size, func(rank int) interfaces.Group { return groups[rank] }, func(g interfaces.Group) error {
		if err := g.Barrier(ctx); err != nil {
			return err
		}
		buf := make([]byte, types.RunDescriptorSize)
		if g.Rank() == 0 {
			d := types.NewRunDescriptor([16]byte{9, 9, 9}, 0)
			copy(buf, d[:])
		}
		if err := g.Broadcast(ctx, buf, 0); err != nil {
			return err
		}

		// non-zero root goes through the hub
		extra := make([]byte, 4)
		if g.Rank() == 2 {
			copy(extra, "rank")
		}
		if err := g.Broadcast(ctx, extra, 2); err != nil {
			return err
		}
		if string(extra) != "rank" {
			t.Errorf("rank %d received %q from root 2", g.Rank(), extra)
		}

		descriptors[g.Rank()] = buf
		if err := g.Barrier(ctx); err != nil {
			return err
		}
		return g.Close()
	})

	for _, err := range errs {
		require.NoError(t, err)
	}
	for r := 1; r < size; r++ {
		assert.Equal(t, descriptors[0], descriptors[r])
	}
	assert.Empty(t, rec.all())
}

func TestTCPAbortPropagates(t *testing.T) {
	const size = 3
	rec := &exitRecorder{}
	groups := startTCP(t, size, rec)
	ctx := context.Background()

	errs := runRanks(size, func(rank int) interfaces.Group { return groups[rank] }, func(g interfaces.Group) error {
		if g.Rank() == 1 {
			g.Abort(3, "connection refused")
			return nil
		}
		return g.Barrier(ctx)
	})

	assert.ErrorIs(t, errs[0], types.ErrAborted)
	assert.ErrorIs(t, errs[2], types.ErrAborted)

	require.Eventually(t, func() bool { return len(rec.all()) == size }, 5*time.Second, 10*time.Millisecond)
	for _, code := range rec.all() {
		assert.Equal(t, 3, code)
	}
}

func TestTCPRejectsSizeMismatch(t *testing.T) {
	rec := &exitRecorder{}
	opts := TCPOptions{JoinTimeout: 500 * time.Millisecond, Exit: rec.exit}
	hub, err := ListenTCP("127.0.0.1:0", 2, opts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := DialTCP(context.Background(), hub.Addr(), 1, 3, opts)
		done <- err
	}()

	assert.Error(t, hub.AwaitPeers(context.Background()))
	assert.Error(t, <-done)
}
