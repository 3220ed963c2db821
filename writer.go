package relay

import (
	"github.com/nostrcore/relayactor/transport"
)

// runWriter is the Writer Task: it drains the Command Queue one item at a
// time and writes frames to conn, terminating (and dropping status to
// Disconnected) on I/O error.
func (r *Relay) runWriter(conn transport.Conn) {
	r.log.Debug("writer task started")
	defer r.log.Debug("writer task exited")

	for cmd := range r.commandCh {
		switch cmd.event.Kind {
		case EventSendMsg:
			json := cmd.event.Msg.String()
			size := len(json)
			if err := conn.WriteText([]byte(json)); err != nil {
				r.log.Error("impossible to send msg", "error", err)
				ack(cmd.ack, false)
				_ = conn.Close()
				r.setStatus(Disconnected)
				return
			}
			r.stats.addBytesSent(size)
			ack(cmd.ack, true)

		case EventBatch:
			size := 0
			ok := true
			for _, msg := range cmd.event.Batch {
				json := msg.String()
				if err := conn.WriteText([]byte(json)); err != nil {
					r.log.Error("impossible to send batch", "error", err)
					ok = false
					break
				}
				size += len(json)
			}
			if ok {
				r.stats.addBytesSent(size)
				ack(cmd.ack, true)
			} else {
				ack(cmd.ack, false)
				_ = conn.Close()
				r.setStatus(Disconnected)
				return
			}

		case EventClose:
			_ = conn.Close()
			r.setStatus(Disconnected)
			r.log.Info("disconnected")
			r.abandonQueued()
			return

		case EventStop:
			if r.isScheduledForStop() {
				_ = conn.Close()
				r.setStatus(Stopped)
				r.scheduleForStop(false)
				r.log.Info("stopped")
				r.abandonQueued()
				return
			}
			// Stray Stop with no pending intent: ignored, keep draining.

		case EventTerminate:
			if r.isScheduledForTermination() {
				_ = conn.Close()
				r.setStatus(Terminated)
				r.scheduleForTermination(false)
				r.log.Info("terminated")
				r.abandonQueued()
				return
			}
		}
	}
}

// ack sends v on ch if ch is non-nil, never blocking the Writer Task on a
// caller that gave up waiting.
func ack(ch chan bool, v bool) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

// abandonQueued drains any commands already buffered behind the one that
// just ended this Writer Task's run (a deliberate Close/Stop/Terminate, not
// a reconnect-eligible I/O error) and closes their ack channels. A closed,
// never-written-to ack channel reads as a zero value with ok=false, which
// SendMsg/BatchMsg surface as ErrOneShotRecvError instead of leaving the
// caller to ride out its full wait timeout for a command this connection
// will never service.
func (r *Relay) abandonQueued() {
	for {
		select {
		case cmd := <-r.commandCh:
			closeAck(cmd.ack)
		default:
			return
		}
	}
}

// closeAck closes ch if non-nil, signalling abandonment to a waiting
// SendMsg/BatchMsg caller without ever sending a value.
func closeAck(ch chan bool) {
	if ch == nil {
		return
	}
	close(ch)
}
