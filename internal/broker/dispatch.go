package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/questgate/authbroker/internal/constants"
	"github.com/questgate/authbroker/internal/protocol"
)

// packetHandler is whichever of HandleClientPacket / HandleGameServerPacket
// applies to a connection's kind.
type packetHandler func(ctx context.Context, c *Connection, body []byte) error

// RunConnection drives one accepted connection until it closes: a reader
// goroutine that accumulates bytes into the connection's inbox and hands
// complete frames to handle, and a writer goroutine that drains the
// outbound send queue. This is the Go-idiomatic stand-in for the
// single-threaded poll-driven dispatch loop described in the wire spec:
// Go's runtime netpoller is the readiness dispatcher, so the fairness caps
// (MaxFramesPerTick, MaxWritesPerPass) are enforced as explicit counters
// per read/write pass rather than a poll-interest bitmask.
func RunConnection(ctx context.Context, c *Connection, handle packetHandler) {
	c.SetState(StateOpen)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeLoop(c)
	}()

	readLoop(ctx, c, handle)

	c.SetState(StateClosing)
	c.Close()
	<-writerDone
}

func readLoop(ctx context.Context, c *Connection, handle packetHandler) {
	chunk := make([]byte, constants.ReadChunkSize)
	for {
		n, err := c.Conn.Read(chunk)
		if n > 0 {
			c.Inbox().MoveCursorToEnd()
			c.Inbox().WriteSlice(chunk[:n])
			c.Inbox().MoveCursorToStart()

			if procErr := processFrames(ctx, c, handle); procErr != nil {
				slog.Warn("closing connection after frame processing error", "id", c.ID, "error", procErr)
				return
			}
			c.Inbox().Compact()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error", "id", c.ID, "error", err)
			}
			return
		}
	}
}

// processFrames extracts and dispatches up to MaxFramesPerTick frames from
// the connection's inbox. Remaining buffered frames, if any, wait for the
// next read pass, which is what keeps one chatty connection from starving
// its peers.
//
// A handler error does not by itself tear the connection down: a recoverable
// protocol violation (bad credentials, a malformed Register field, a
// relogin-code mismatch, ...) is reported by the handler queuing an alert
// frame and calling Connection.MarkCloseAfterFlush, then returning its error
// for logging. Once that mark is set, frame processing stops here and the
// writer goroutine closes the socket after the alert has actually gone out
// over the wire. An error returned without that mark set is a genuine
// protocol fault (an unparseable frame) with no alert to deliver, so the
// connection is torn down immediately.
func processFrames(ctx context.Context, c *Connection, handle packetHandler) error {
	c.ResetFrameCounter()
	for {
		if c.closePending() {
			return nil
		}
		if !c.TryConsumeFrameBudget() {
			return nil
		}
		body, ok, err := protocol.TryExtractFrame(c.Inbox())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := handle(ctx, c, body); err != nil {
			if c.closePending() {
				slog.Warn("closing connection after alert drain", "id", c.ID, "error", err)
				return nil
			}
			return err
		}
	}
}

func writeLoop(c *Connection) {
	for {
		select {
		case <-c.Done():
			return
		case <-c.Notify():
			flushOnce(c)
			if c.drainedAndClosePending() {
				c.Close()
				return
			}
		}
	}
}

// flushOnce drains and writes up to MaxWritesPerPass already-framed packets
// (each produced by Packet.Finish, which includes its own length header).
func flushOnce(c *Connection) {
	frames := c.DrainUpTo(constants.MaxWritesPerPass)
	for _, f := range frames {
		if _, err := c.Conn.Write(f); err != nil {
			slog.Debug("connection write error", "id", c.ID, "error", err)
			return
		}
	}
	if len(frames) == constants.MaxWritesPerPass {
		// More frames may still be queued: wake the writer for another pass.
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}
