// =============================================================================
// pkg/group/tcp.go - TCP Hub Group
// =============================================================================
//
// Rank 0 listens on the coordinator address and every other rank dials it.
// All collectives are relayed through rank 0:
//
//	Barrier:   ranks 1..N-1 send BARRIER_ENTER; rank 0 waits for all of them
//	           then sends BARRIER_RELEASE to everyone.
//	Broadcast: the root sends BROADCAST (to everyone when it is rank 0, to
//	           rank 0 otherwise); rank 0 forwards a non-zero root's payload.
//	Abort:     the aborting rank sends ABORT to rank 0, which fans it out to
//	           every other rank. Each rank then exits with the abort code.
//
// Because every rank issues collectives in the same order and each
// connection is FIFO, the next non-ABORT message from a peer always belongs
// to the collective rank 0 is currently processing.
//
// =============================================================================

package group

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

const (
	// DefaultJoinTimeout bounds the initial rendezvous with rank 0.
	DefaultJoinTimeout = 60 * time.Second

	// ExitGroupError is the exit code used when a connection is lost.
	ExitGroupError = 4

	dialRetryInterval = 100 * time.Millisecond
	inboxDepth        = 16
)

// TCPOptions configures a TCP group.
type TCPOptions struct {
	// JoinTimeout bounds listening for or dialing the other ranks.
	// Collectives themselves never time out.
	JoinTimeout time.Duration

	// Logger receives trace-level protocol events. Optional.
	Logger interfaces.Logger

	// Exit terminates the process after an abort. Defaults to os.Exit.
	Exit func(code int)
}

func (o TCPOptions) withDefaults() TCPOptions {
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.Exit == nil {
		o.Exit = os.Exit
	}
	return o
}

// peer is rank 0's connection to another rank.
type peer struct {
	rank  int
	conn  *frameConn
	inbox chan message
}

// TCPGroup implements interfaces.Group over TCP.
type TCPGroup struct {
	rank int
	size int
	opts TCPOptions

	// rank 0 only
	listener net.Listener
	peers    []*peer

	// ranks 1..N-1 only
	hub   *frameConn
	inbox chan message

	readers   sync.WaitGroup
	closing   atomic.Bool
	abortOnce sync.Once
	aborted   chan struct{}
}

var _ interfaces.Group = (*TCPGroup)(nil)

// ListenTCP starts rank 0 of a group of size ranks on addr. The group is not
// usable until AwaitPeers returns.
func ListenTCP(addr string, size int, opts TCPOptions) (*TCPGroup, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPGroup{
		rank:     0,
		size:     size,
		opts:     opts.withDefaults(),
		listener: l,
		peers:    make([]*peer, size),
		aborted:  make(chan struct{}),
	}, nil
}

// Addr returns the address rank 0 listens on.
func (g *TCPGroup) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// AwaitPeers accepts a HELLO from every other rank, then stops listening.
func (g *TCPGroup) AwaitPeers(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.JoinTimeout)
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			g.listener.Close()
		case <-stop:
		}
	}()
	defer g.listener.Close()

	for joined := 1; joined < g.size; {
		conn, err := g.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("only %d of %d ranks joined: %w", joined, g.size, ctx.Err())
			}
			return fmt.Errorf("failed to accept rank connection: %w", err)
		}

		fc := newFrameConn(conn)
		if dl, ok := ctx.Deadline(); ok {
			conn.SetReadDeadline(dl)
		}
		rank, err := g.admit(fc)
		conn.SetReadDeadline(time.Time{})
		if err != nil {
			g.trace("rejected connection from %s: %v", conn.RemoteAddr(), err)
			fc.close()
			continue
		}
		g.peers[rank] = &peer{rank: rank, conn: fc, inbox: make(chan message, inboxDepth)}
		joined++
		g.trace("rank %d joined from %s (%d/%d)", rank, conn.RemoteAddr(), joined, g.size)
	}

	for _, p := range g.peers[1:] {
		if err := p.conn.send(msgWelcome, nil); err != nil {
			return err
		}
	}
	for _, p := range g.peers[1:] {
		g.readers.Add(1)
		go g.readPeer(p)
	}
	return nil
}

func (g *TCPGroup) admit(fc *frameConn) (int, error) {
	msg, err := fc.receive()
	if err != nil {
		return 0, err
	}
	if msg.id != msgHello {
		return 0, fmt.Errorf("expected %s, got %s", msgHello, msg.id)
	}
	var hello helloBody
	if err := msg.decode(&hello); err != nil {
		return 0, err
	}
	if hello.Size != g.size {
		return 0, fmt.Errorf("rank %d reports group size %d, expected %d", hello.Rank, hello.Size, g.size)
	}
	if hello.Rank <= 0 || hello.Rank >= g.size {
		return 0, fmt.Errorf("rank %d out of range [1, %d)", hello.Rank, g.size)
	}
	if g.peers[hello.Rank] != nil {
		return 0, fmt.Errorf("rank %d joined twice", hello.Rank)
	}
	return hello.Rank, nil
}

// DialTCP joins the group whose rank 0 listens on addr, retrying until the
// join timeout while rank 0 is not yet listening.
func DialTCP(ctx context.Context, addr string, rank, size int, opts TCPOptions) (*TCPGroup, error) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.JoinTimeout)
	defer cancel()

	var dialer net.Dialer
	var conn net.Conn
	for {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to reach rank 0 at %s: %w", addr, err)
		case <-time.After(dialRetryInterval):
		}
	}

	g := &TCPGroup{
		rank:    rank,
		size:    size,
		opts:    opts,
		hub:     newFrameConn(conn),
		inbox:   make(chan message, inboxDepth),
		aborted: make(chan struct{}),
	}
	if err := g.hub.send(msgHello, helloBody{Rank: rank, Size: size}); err != nil {
		g.hub.close()
		return nil, err
	}

	// The welcome arrives only once every rank has joined.
	if dl, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(dl)
	}
	msg, err := g.hub.receive()
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		g.hub.close()
		return nil, fmt.Errorf("failed to join group at %s: %w", addr, err)
	}
	switch msg.id {
	case msgWelcome:
	case msgAbort:
		var body abortBody
		msg.decode(&body)
		g.hub.close()
		return nil, fmt.Errorf("group aborted while joining (rank %d, code %d): %s: %w", body.Rank, body.Code, body.Reason, types.ErrAborted)
	default:
		g.hub.close()
		return nil, fmt.Errorf("expected %s, got %s", msgWelcome, msg.id)
	}

	g.readers.Add(1)
	go g.readHub()
	return g, nil
}

func (g *TCPGroup) Rank() int { return g.rank }

func (g *TCPGroup) Size() int { return g.size }

// =============================================================================
// Readers
// =============================================================================

func (g *TCPGroup) readPeer(p *peer) {
	defer g.readers.Done()
	for {
		msg, err := p.conn.receive()
		if err != nil {
			if !g.closing.Load() {
				g.fail(fmt.Sprintf("lost connection to rank %d: %v", p.rank, err))
			}
			return
		}
		switch msg.id {
		case msgAbort:
			var body abortBody
			if err := msg.decode(&body); err != nil {
				body = abortBody{Rank: p.rank, Code: ExitGroupError, Reason: err.Error()}
			}
			g.fanOutAbort(body, p.rank)
			g.terminate(body)
			return
		case msgBye:
			return
		default:
			select {
			case p.inbox <- msg:
			case <-g.aborted:
				return
			}
		}
	}
}

func (g *TCPGroup) readHub() {
	defer g.readers.Done()
	for {
		msg, err := g.hub.receive()
		if err != nil {
			if !g.closing.Load() {
				g.fail(fmt.Sprintf("lost connection to rank 0: %v", err))
			}
			return
		}
		if msg.id == msgAbort {
			var body abortBody
			if err := msg.decode(&body); err != nil {
				body = abortBody{Rank: 0, Code: ExitGroupError, Reason: err.Error()}
			}
			g.terminate(body)
			return
		}
		select {
		case g.inbox <- msg:
		case <-g.aborted:
			return
		}
	}
}

// =============================================================================
// Collectives
// =============================================================================

func (g *TCPGroup) Barrier(ctx context.Context) error {
	if g.rank != 0 {
		if err := g.hub.send(msgBarrierEnter, nil); err != nil {
			return err
		}
		_, err := g.expect(ctx, g.inbox, msgBarrierRelease, 0)
		return err
	}

	for _, p := range g.peers[1:] {
		if _, err := g.expect(ctx, p.inbox, msgBarrierEnter, p.rank); err != nil {
			return err
		}
	}
	for _, p := range g.peers[1:] {
		if err := p.conn.send(msgBarrierRelease, nil); err != nil {
			return err
		}
	}
	return nil
}

func (g *TCPGroup) Broadcast(ctx context.Context, buf []byte, root int) error {
	if root < 0 || root >= g.size {
		return fmt.Errorf("broadcast root %d out of range [0, %d)", root, g.size)
	}

	if g.rank != 0 {
		if g.rank == root {
			return g.hub.send(msgBroadcast, broadcastBody{Root: root, Data: buf})
		}
		msg, err := g.expect(ctx, g.inbox, msgBroadcast, 0)
		if err != nil {
			return err
		}
		return receiveInto(msg, buf)
	}

	if root != 0 {
		msg, err := g.expect(ctx, g.peers[root].inbox, msgBroadcast, root)
		if err != nil {
			return err
		}
		if err := receiveInto(msg, buf); err != nil {
			return err
		}
	}
	body := broadcastBody{Root: root, Data: buf}
	for _, p := range g.peers[1:] {
		if p.rank == root {
			continue
		}
		if err := p.conn.send(msgBroadcast, body); err != nil {
			return err
		}
	}
	return nil
}

func receiveInto(msg message, buf []byte) error {
	var body broadcastBody
	if err := msg.decode(&body); err != nil {
		return err
	}
	if len(body.Data) != len(buf) {
		return fmt.Errorf("broadcast length mismatch: root %d sent %d bytes, expected %d", body.Root, len(body.Data), len(buf))
	}
	copy(buf, body.Data)
	return nil
}

func (g *TCPGroup) expect(ctx context.Context, inbox <-chan message, id messageID, from int) (message, error) {
	select {
	case msg := <-inbox:
		if msg.id != id {
			return message{}, fmt.Errorf("expected %s from rank %d, got %s", id, from, msg.id)
		}
		return msg, nil
	case <-g.aborted:
		return message{}, types.ErrAborted
	case <-ctx.Done():
		return message{}, ctx.Err()
	}
}

// =============================================================================
// Abort and Close
// =============================================================================

// Abort notifies every rank and exits with code.
func (g *TCPGroup) Abort(code int, reason string) {
	body := abortBody{Rank: g.rank, Code: code, Reason: reason}
	if g.rank == 0 {
		g.fanOutAbort(body, 0)
	} else if g.hub != nil {
		g.hub.send(msgAbort, body)
	}
	g.terminate(body)
}

func (g *TCPGroup) fanOutAbort(body abortBody, except int) {
	for _, p := range g.peers {
		if p == nil || p.rank == except {
			continue
		}
		if err := p.conn.send(msgAbort, body); err != nil {
			g.trace("failed to forward abort to rank %d: %v", p.rank, err)
		}
	}
}

// fail handles a lost connection as an abort raised by this rank.
func (g *TCPGroup) fail(reason string) {
	g.Abort(ExitGroupError, reason)
}

func (g *TCPGroup) terminate(body abortBody) {
	g.abortOnce.Do(func() {
		if g.opts.Logger != nil {
			g.opts.Logger.Critical("process group aborted by rank %d with code %d: %s", body.Rank, body.Code, body.Reason)
			g.opts.Logger.Sync()
		}
		close(g.aborted)
		g.opts.Exit(body.Code)

		// Only reached when Exit returns. Half-close so queued ABORT frames
		// still reach the other side before it sees EOF.
		g.closing.Store(true)
		if g.hub != nil {
			g.hub.closeWrite()
		}
		for _, p := range g.peers {
			if p != nil {
				p.conn.closeWrite()
			}
		}
	})
}

// Close leaves the group. Rank 0 waits until every other rank has said BYE.
func (g *TCPGroup) Close() error {
	if !g.closing.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if g.rank != 0 {
		if g.hub != nil {
			errs = append(errs, g.hub.send(msgBye, nil))
			errs = append(errs, g.hub.close())
		}
		g.readers.Wait()
		return errors.Join(errs...)
	}

	g.readers.Wait()
	for _, p := range g.peers[1:] {
		if p != nil {
			errs = append(errs, p.conn.close())
		}
	}
	return errors.Join(errs...)
}

func (g *TCPGroup) trace(format string, args ...interface{}) {
	if g.opts.Logger != nil {
		g.opts.Logger.Trace(format, args...)
	}
}
