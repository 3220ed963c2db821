package relay

import (
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// RelayEventKind tags the variant carried by a RelayEvent.
type RelayEventKind int

const (
	// EventSendMsg carries a single envelope to write.
	EventSendMsg RelayEventKind = iota
	// EventBatch carries multiple envelopes to write as one streamed send.
	EventBatch
	// EventClose closes the socket and drops status to Disconnected.
	EventClose
	// EventStop closes the socket and sets status to Stopped, if the stop
	// intent is set.
	EventStop
	// EventTerminate closes the socket and sets status to Terminated, if
	// the terminate intent is set.
	EventTerminate
)

// RelayEvent is the payload of the Command Queue: a tagged variant
// consumed exactly once by the Writer Task.
type RelayEvent struct {
	Kind  RelayEventKind
	Msg   nostr.Envelope
	Batch []nostr.Envelope
}

// commandMessage pairs a RelayEvent with an optional one-shot ack channel.
// The ack channel, when present, receives true on successful write and
// false on I/O failure.
type commandMessage struct {
	event RelayEvent
	ack   chan bool
}

// ConnectionStats holds monotonic counters describing a Relay's connection
// history. All fields are safe for concurrent use.
type ConnectionStats struct {
	attempts       atomic.Int64
	success        atomic.Int64
	bytesSent      atomic.Int64
	bytesReceived  atomic.Int64
	connectedAtSec atomic.Int64
}

// NewConnectionStats returns a zeroed ConnectionStats.
func NewConnectionStats() *ConnectionStats {
	return &ConnectionStats{}
}

// Attempts returns the number of times a connection has been attempted.
func (s *ConnectionStats) Attempts() int64 { return s.attempts.Load() }

// Success returns the number of times a connection has been successfully established.
func (s *ConnectionStats) Success() int64 { return s.success.Load() }

// BytesSent returns the total bytes written to the socket.
func (s *ConnectionStats) BytesSent() int64 { return s.bytesSent.Load() }

// BytesReceived returns the total bytes read from the socket.
func (s *ConnectionStats) BytesReceived() int64 { return s.bytesReceived.Load() }

// ConnectedAt returns the unix timestamp (seconds) of the last successful connect.
func (s *ConnectionStats) ConnectedAt() int64 { return s.connectedAtSec.Load() }

func (s *ConnectionStats) newAttempt() { s.attempts.Add(1) }

func (s *ConnectionStats) newSuccess() {
	s.success.Add(1)
	s.connectedAtSec.Store(time.Now().Unix())
}

func (s *ConnectionStats) addBytesSent(n int) { s.bytesSent.Add(int64(n)) }

func (s *ConnectionStats) addBytesReceived(n int) { s.bytesReceived.Add(int64(n)) }
