package transport

import (
	"errors"
	"sync"
)

// ErrFakeClosed is returned from ReadMessage/WriteText once a FakeConn has
// been closed, standing in for the I/O errors a real socket would produce.
var ErrFakeClosed = errors.New("transport: fake connection closed")

// FakeConn is an in-memory Conn used by the test suite: it echoes nothing
// on its own, but lets a test inject inbound frames via Inject and
// inspect outbound frames via Sent.
type FakeConn struct {
	mu     sync.Mutex
	closed bool

	inbound  chan []byte
	outbound chan []byte

	// Drain, when true, makes WriteText silently accept and discard
	// frames without placing them on the outbound channel.
	Drain bool

	// FailWrite, when set, makes the next WriteText call return this
	// error, simulating a write-side I/O failure.
	FailWrite error
}

// NewFakeConn returns a ready-to-use FakeConn.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbound:  make(chan []byte, 256),
		outbound: make(chan []byte, 256),
	}
}

// WriteText implements Conn.
func (c *FakeConn) WriteText(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	failErr := c.FailWrite
	drain := c.Drain
	c.FailWrite = nil
	c.mu.Unlock()

	if closed {
		return ErrFakeClosed
	}
	if failErr != nil {
		return failErr
	}
	if drain {
		return nil
	}

	cp := append([]byte(nil), data...)
	select {
	case c.outbound <- cp:
	default:
	}
	return nil
}

// ReadMessage implements Conn: it blocks until a frame is injected or the
// connection is closed, in which case it returns ErrFakeClosed (the
// Reader Task's stream-end path).
func (c *FakeConn) ReadMessage() ([]byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return nil, ErrFakeClosed
	}
	return data, nil
}

// Close implements Conn.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.inbound)
	return nil
}

// Inject delivers a frame to the Reader Task as if it had arrived over the wire.
func (c *FakeConn) Inject(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.inbound <- data
}

// Sent returns the channel of frames written via WriteText, for test
// assertions about outbound ordering/content.
func (c *FakeConn) Sent() <-chan []byte {
	return c.outbound
}
