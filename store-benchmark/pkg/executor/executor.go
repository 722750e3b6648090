// =============================================================================
// pkg/executor/executor.go - Store/Load Executor
// =============================================================================
//
// The executor drives one rank's products through its private subrun.
//
// STORE PHASE:
//   For product i, in index order: CreateEvent(i), then Store(label, data).
//   No retries. The first failing call ends the phase with its error.
//
// LOAD PHASE:
//   For product i, in index order: Event(i), then Load(label), then a
//   byte-for-byte comparison with the generated product. A mismatch is logged
//   at error level and counted; the loop continues with the next product.
//   Any other load failure ends the phase.
//
// Calls are issued one at a time and each blocks until the store answers.
//
// =============================================================================

package executor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/product"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// MismatchMessage is logged for every product that does not load back intact.
const MismatchMessage = "Loaded product doesn't match stored product!"

// Reporter consumes the timing sample of every completed call.
type Reporter interface {
	Stored(index, size int, st types.StoreStatistics)
	Loaded(index, size int, st types.LoadStatistics)
}

// Sample is the timing of one store or load call in seconds.
// IO is the raw storage/loading time, Codec the (de)serialization time.
type Sample struct {
	Index int
	Size  int
	IO    float64
	Codec float64
}

// Result summarises one phase of one rank.
type Result struct {
	Samples    []Sample
	Mismatches int
	Elapsed    time.Duration
}

// Config holds the inputs of an Executor.
type Config struct {
	SubRun   interfaces.SubRun
	Label    string
	Products []product.Product

	// Wait is the range, in seconds, of the random pause before each call.
	Wait types.WaitRange

	// Rand draws the pauses. Required when Wait is not zero.
	Rand *rand.Rand

	Logger   interfaces.Logger
	Reporter Reporter
}

// Executor runs the store and load phases of a rank.
type Executor struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Executor.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg, sleep: sleepContext}
}

// Store writes every product into its own event.
func (e *Executor) Store(ctx context.Context) (*Result, error) {
	res := &Result{Samples: make([]Sample, 0, len(e.cfg.Products))}
	start := time.Now()

	for i, p := range e.cfg.Products {
		if err := e.pause(ctx); err != nil {
			return res, err
		}
		ev, err := e.cfg.SubRun.CreateEvent(ctx, uint64(i))
		if err != nil {
			return res, fmt.Errorf("failed to create event %d: %w", i, err)
		}
		st, err := ev.Store(ctx, e.cfg.Label, p.Data)
		if err != nil {
			return res, fmt.Errorf("failed to store product %d (%d bytes): %w", i, p.Size(), err)
		}

		res.Samples = append(res.Samples, Sample{
			Index: i,
			Size:  p.Size(),
			IO:    st.RawStorageTime.Max,
			Codec: st.SerializationTime.Max,
		})
		if e.cfg.Reporter != nil {
			e.cfg.Reporter.Stored(i, p.Size(), st)
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// Load reads every product back and verifies its content.
func (e *Executor) Load(ctx context.Context) (*Result, error) {
	res := &Result{Samples: make([]Sample, 0, len(e.cfg.Products))}
	start := time.Now()

	for i, p := range e.cfg.Products {
		if err := e.pause(ctx); err != nil {
			return res, err
		}
		ev, err := e.cfg.SubRun.Event(ctx, uint64(i))
		if err != nil {
			return res, fmt.Errorf("failed to open event %d: %w", i, err)
		}
		data, st, err := ev.Load(ctx, e.cfg.Label)
		if err != nil {
			return res, fmt.Errorf("failed to load product %d: %w", i, err)
		}

		if !p.Equal(data) {
			res.Mismatches++
			mismatch := &types.LoadMismatchError{
				Event:    uint64(i),
				Label:    e.cfg.Label,
				Expected: p.Size(),
				Actual:   len(data),
			}
			e.cfg.Logger.Error(MismatchMessage)
			e.cfg.Logger.Debug("%v", mismatch)
		}

		res.Samples = append(res.Samples, Sample{
			Index: i,
			Size:  p.Size(),
			IO:    st.RawLoadingTime.Max,
			Codec: st.DeserializationTime.Max,
		})
		if e.cfg.Reporter != nil {
			e.cfg.Reporter.Loaded(i, p.Size(), st)
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// pause sleeps for a uniformly drawn time in the wait range.
func (e *Executor) pause(ctx context.Context) error {
	w := e.cfg.Wait
	if w.IsZero() {
		return nil
	}
	seconds := w.Low
	if w.High > w.Low {
		seconds += e.cfg.Rand.Float64() * (w.High - w.Low)
	}
	if seconds > types.MaxWaitSeconds {
		seconds = types.MaxWaitSeconds
	}
	return e.sleep(ctx, time.Duration(seconds*float64(time.Second)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
