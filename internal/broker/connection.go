package broker

import (
	"net"
	"sync"

	"github.com/questgate/authbroker/internal/constants"
	"github.com/questgate/authbroker/internal/protocol"
)

// State is a connection's position in the Open -> Closing -> Closed
// lifecycle.
type State int

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnKind distinguishes a player (TLS) connection from a game server
// (plaintext) connection.
type ConnKind int

const (
	KindClient ConnKind = iota
	KindGameServer
)

func (k ConnKind) String() string {
	if k == KindGameServer {
		return "game-server"
	}
	return "client"
}

// Connection wraps one accepted socket: its identifier, the inbound framing
// buffer, an outbound send queue, and mutex-guarded session state.
type Connection struct {
	ID   int
	Kind ConnKind
	Conn net.Conn

	inbox *protocol.Buffer

	mu             sync.Mutex
	state          State
	sendQueue      [][]byte
	framesThisTick int
	closeAfterFlush bool

	// Session state populated once a client authenticates.
	UID        int64
	Username   string
	ServerName string // for game-server connections: the registered server name

	notify chan struct{}
	done   chan struct{}
	closeOnce sync.Once
}

// NewConnection wraps conn under identifier id.
func NewConnection(id int, kind ConnKind, conn net.Conn) *Connection {
	return &Connection{
		ID:        id,
		Kind:      kind,
		Conn:      conn,
		inbox:     protocol.NewBuffer(constants.InitialBufferCapacity),
		sendQueue: make([][]byte, 0, constants.SendQueueInitialCap),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Notify returns the channel the writer goroutine waits on for newly
// queued outbound frames.
func (c *Connection) Notify() <-chan struct{} { return c.notify }

// Done returns a channel closed once the connection has been torn down.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close marks the connection closed and releases its underlying socket.
// Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.SetState(StateClosed)
		close(c.done)
		c.Conn.Close()
	})
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the connection's lifecycle state. Transitions are
// not validated against the Open->Closing->Closed order here; callers are
// expected to only ever move forward.
func (c *Connection) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Enqueue appends frame to the outbound send queue. If the queue's backing
// capacity has grown beyond SendQueueShrinkAbove, it is reallocated down to
// a fresh slice so one burst of traffic does not pin memory indefinitely.
func (c *Connection) Enqueue(frame []byte) {
	c.mu.Lock()
	c.sendQueue = append(c.sendQueue, frame)
	if cap(c.sendQueue) > constants.SendQueueShrinkAbove {
		shrunk := make([][]byte, len(c.sendQueue), constants.SendQueueInitialCap+len(c.sendQueue))
		copy(shrunk, c.sendQueue)
		c.sendQueue = shrunk
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// DrainUpTo removes and returns up to n queued outbound frames, in FIFO
// order.
func (c *Connection) DrainUpTo(n int) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.sendQueue) {
		n = len(c.sendQueue)
	}
	out := c.sendQueue[:n]
	c.sendQueue = c.sendQueue[n:]
	return out
}

// ResetFrameCounter clears the per-tick processed-frame counter, called at
// the start of each dispatch pass for this connection.
func (c *Connection) ResetFrameCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.framesThisTick = 0
}

// TryConsumeFrameBudget reports whether the connection may process one more
// frame this tick, incrementing its counter if so. Once MaxFramesPerTick
// frames have been processed this tick, it returns false so the remaining
// buffered frames wait for the next dispatch pass.
func (c *Connection) TryConsumeFrameBudget() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.framesThisTick >= constants.MaxFramesPerTick {
		return false
	}
	c.framesThisTick++
	return true
}

// Inbox returns the connection's inbound framing buffer.
func (c *Connection) Inbox() *protocol.Buffer { return c.inbox }

// MarkCloseAfterFlush requests that the connection be torn down once its
// outbound queue has fully drained. Used for alert-with-close replies: the
// alert frame must reach the peer before the socket closes out from under
// it.
func (c *Connection) MarkCloseAfterFlush() {
	c.mu.Lock()
	c.closeAfterFlush = true
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// closePending reports whether MarkCloseAfterFlush has been called.
func (c *Connection) closePending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeAfterFlush
}

// drainedAndClosePending reports whether a close was requested and the
// outbound queue has now fully drained, the signal the writer loop uses to
// tear the connection down.
func (c *Connection) drainedAndClosePending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeAfterFlush && len(c.sendQueue) == 0
}
