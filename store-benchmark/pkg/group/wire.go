// =============================================================================
// pkg/group/wire.go - Framed Gob Messages
// =============================================================================
//
// Every message on a group connection is one frame:
//
//	[0:4]  body length, little-endian uint32
//	[4]    message ID
//	[5:]   gob-encoded body (absent for bodiless messages)
//
// =============================================================================

package group

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"sync"
)

// maxFrameSize bounds a single frame. Run descriptors are 32 bytes; anything
// near this limit is a corrupted stream.
const maxFrameSize = 64 << 20

type messageID uint8

const (
	msgHello messageID = iota + 1
	msgWelcome
	msgBarrierEnter
	msgBarrierRelease
	msgBroadcast
	msgAbort
	msgBye
)

func (id messageID) String() string {
	switch id {
	case msgHello:
		return "HELLO"
	case msgWelcome:
		return "WELCOME"
	case msgBarrierEnter:
		return "BARRIER_ENTER"
	case msgBarrierRelease:
		return "BARRIER_RELEASE"
	case msgBroadcast:
		return "BROADCAST"
	case msgAbort:
		return "ABORT"
	case msgBye:
		return "BYE"
	default:
		return fmt.Sprintf("MESSAGE(%d)", uint8(id))
	}
}

type helloBody struct {
	Rank int
	Size int
}

type broadcastBody struct {
	Root int
	Data []byte
}

type abortBody struct {
	Rank   int
	Code   int
	Reason string
}

// message is a received frame whose body has not been decoded yet.
type message struct {
	id   messageID
	body []byte
}

func (m message) decode(v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(m.body)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s message: %w", m.id, err)
	}
	return nil
}

// frameConn sends and receives frames over a net.Conn.
// Sends are serialised; a single goroutine receives.
type frameConn struct {
	conn   net.Conn
	reader *bufio.Reader
	wmu    sync.Mutex
}

func newFrameConn(conn net.Conn) *frameConn {
	return &frameConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *frameConn) send(id messageID, body interface{}) error {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteByte(byte(id))
	if body != nil {
		if err := gob.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode %s message: %w", id, err)
		}
	}
	frame := buf.Bytes()
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(frame)-4))

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s message: %w", id, err)
	}
	return nil
}

func (c *frameConn) receive() (message, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.reader, header[:]); err != nil {
		return message{}, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n == 0 || n > maxFrameSize {
		return message{}, fmt.Errorf("invalid frame length %d", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(c.reader, frame); err != nil {
		return message{}, err
	}
	return message{id: messageID(frame[0]), body: frame[1:]}, nil
}

func (c *frameConn) close() error {
	return c.conn.Close()
}

func (c *frameConn) closeWrite() error {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return c.conn.Close()
}
