// =============================================================================
// pkg/group/local.go - In-Process Group
// =============================================================================
//
// Local runs every rank as a goroutine of one process. Collectives are built
// on channels; Abort releases every blocked rank with types.ErrAborted and
// records the exit code for the launcher instead of exiting the process.
//
// =============================================================================

package group

import (
	"context"
	"fmt"
	"sync"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// Local is a group of goroutine ranks sharing one address space.
type Local struct {
	size int

	mu         sync.Mutex
	arrived    int
	release    chan struct{}
	broadcasts map[uint64]*broadcastSlot

	abortOnce   sync.Once
	aborted     chan struct{}
	abortCode   int
	abortReason string
	abortRank   int
}

// broadcastSlot carries one broadcast generation from root to the other ranks.
type broadcastSlot struct {
	ready     chan struct{}
	data      []byte
	remaining int
}

// NewLocal creates a group of size ranks.
func NewLocal(size int) *Local {
	if size < 1 {
		size = 1
	}
	return &Local{
		size:       size,
		release:    make(chan struct{}),
		broadcasts: make(map[uint64]*broadcastSlot),
		aborted:    make(chan struct{}),
	}
}

// Size returns the number of ranks.
func (l *Local) Size() int {
	return l.size
}

// Member returns the handle used by the given rank. Each rank must use its
// own handle; handles are not safe for concurrent use by several ranks.
func (l *Local) Member(rank int) interfaces.Group {
	return &localMember{group: l, rank: rank}
}

// Aborted reports whether any rank aborted, with its exit code and reason.
func (l *Local) Aborted() (code int, reason string, ok bool) {
	select {
	case <-l.aborted:
		return l.abortCode, l.abortReason, true
	default:
		return 0, "", false
	}
}

// Done is closed when the group aborts.
func (l *Local) Done() <-chan struct{} {
	return l.aborted
}

func (l *Local) barrier(ctx context.Context) error {
	l.mu.Lock()
	ch := l.release
	l.arrived++
	if l.arrived == l.size {
		close(ch)
		l.release = make(chan struct{})
		l.arrived = 0
	}
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-l.aborted:
		return types.ErrAborted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Local) slot(seq uint64) *broadcastSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.broadcasts[seq]
	if !ok {
		s = &broadcastSlot{ready: make(chan struct{}), remaining: l.size}
		l.broadcasts[seq] = s
	}
	return s
}

func (l *Local) leave(seq uint64, s *broadcastSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.remaining--
	if s.remaining == 0 {
		delete(l.broadcasts, seq)
	}
}

func (l *Local) abort(rank, code int, reason string) {
	l.abortOnce.Do(func() {
		l.abortRank = rank
		l.abortCode = code
		l.abortReason = reason
		close(l.aborted)
	})
}

// localMember is one rank's view of a Local group.
type localMember struct {
	group *Local
	rank  int
	bseq  uint64
}

var _ interfaces.Group = (*localMember)(nil)

func (m *localMember) Rank() int { return m.rank }

func (m *localMember) Size() int { return m.group.size }

func (m *localMember) Barrier(ctx context.Context) error {
	select {
	case <-m.group.aborted:
		return types.ErrAborted
	default:
	}
	return m.group.barrier(ctx)
}

func (m *localMember) Broadcast(ctx context.Context, buf []byte, root int) error {
	if root < 0 || root >= m.group.size {
		return fmt.Errorf("broadcast root %d out of range [0, %d)", root, m.group.size)
	}
	seq := m.bseq
	m.bseq++
	s := m.group.slot(seq)
	defer m.group.leave(seq, s)

	if m.rank == root {
		s.data = append([]byte(nil), buf...)
		close(s.ready)
		return nil
	}

	select {
	case <-s.ready:
	case <-m.group.aborted:
		return types.ErrAborted
	case <-ctx.Done():
		return ctx.Err()
	}
	if len(s.data) != len(buf) {
		return fmt.Errorf("broadcast length mismatch: root sent %d bytes, rank %d expects %d", len(s.data), m.rank, len(buf))
	}
	copy(buf, s.data)
	return nil
}

func (m *localMember) Abort(code int, reason string) {
	m.group.abort(m.rank, code, reason)
}

func (m *localMember) Close() error {
	return nil
}
