// Package relay implements a single-relay client actor for a Nostr-style
// pub/sub event protocol spoken over a persistent bidirectional text-frame
// connection. See SPEC_FULL.md for the full component breakdown.
package relay

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nostrcore/relayactor/transport"
)

// RelayStatus is the single-valued connection lifecycle state of a Relay.
type RelayStatus int

const (
	// Initialized is the state before the first Connect call.
	Initialized RelayStatus = iota
	// Connecting is set while a connection attempt is in flight.
	Connecting
	// Connected is set once the transport duplex is open.
	Connected
	// Disconnected is set after a graceful close or I/O failure; the
	// Reconnect Supervisor will retry from this state.
	Disconnected
	// Stopped is a terminal-until-reconnect state reached via Stop.
	Stopped
	// Terminated is a terminal-until-reconnect state reached via Terminate.
	Terminated
)

func (s RelayStatus) String() string {
	switch s {
	case Initialized:
		return "Initialized"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Stopped:
		return "Stopped"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// dialFunc matches transport.Dial's signature; overridable in tests.
type dialFunc func(ctx context.Context, rawURL string, proxy *url.URL) (transport.Conn, error)

// Relay is a clone-shareable handle: every field is either immutable after
// construction or lives behind a mutex/atomic/channel, so a *Relay can be
// handed to the pool, the Reconnect Supervisor, and the Writer/Reader Tasks
// without lifetime gymnastics.
type Relay struct {
	url  string
	opts RelayOptions

	statusMu sync.Mutex
	status   RelayStatus

	documentMu sync.Mutex
	document   InformationDocument

	stats *ConnectionStats

	scheduledForStop        atomic.Bool
	scheduledForTermination atomic.Bool

	commandCh     chan commandMessage
	receiverTaken atomic.Bool

	poolSender chan<- RelayPoolMessage
	bus        *NotificationBus

	subscriptions *subscriptionBook
	pending       *xsync.MapOf[string, chan nostr.Envelope]

	dial dialFunc

	// reconnectTick is the Reconnect Supervisor's poll quantum. Defaults to
	// 20s; overridable (package-internal only) so tests don't block on a
	// real 20s tick.
	reconnectTick time.Duration

	log *slog.Logger
}

const commandQueueCapacity = 1024

// NewRelay constructs a Relay bound to rawURL. poolSender may be nil if no
// external pool consumes this relay's ReceivedMsg notifications; bus must
// not be nil.
func NewRelay(rawURL string, poolSender chan<- RelayPoolMessage, bus *NotificationBus, opts RelayOptions) *Relay {
	normalized := nostr.NormalizeURL(rawURL)
	r := &Relay{
		url:           normalized,
		opts:          opts,
		status:        Initialized,
		stats:         NewConnectionStats(),
		commandCh:     make(chan commandMessage, commandQueueCapacity),
		poolSender:    poolSender,
		bus:           bus,
		subscriptions: newSubscriptionBook(),
		pending:       xsync.NewMapOf[string, chan nostr.Envelope](),
		dial:          transport.Dial,
		reconnectTick: 20 * time.Second,
		log:           slog.Default().With("relay", normalized),
	}
	return r
}

// URL returns the normalized relay endpoint.
func (r *Relay) URL() string { return r.url }

// Proxy returns the configured proxy, if any.
func (r *Relay) Proxy() *url.URL { return r.opts.Proxy() }

// Options returns the relay's read/write/proxy policy.
func (r *Relay) Options() RelayOptions { return r.opts }

// Stats returns the relay's connection counters.
func (r *Relay) Stats() *ConnectionStats { return r.stats }

// Equal reports whether two relay handles refer to the same endpoint (by
// URL), useful for pool-side deduplication even though the pool itself is
// out of scope here.
func (r *Relay) Equal(other *Relay) bool {
	if other == nil {
		return false
	}
	return r.url == other.url
}

// Status returns the current RelayStatus.
func (r *Relay) Status() RelayStatus {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

func (r *Relay) setStatus(status RelayStatus) {
	r.statusMu.Lock()
	r.status = status
	r.statusMu.Unlock()
}

// IsConnected reports whether the relay is currently Connected.
func (r *Relay) IsConnected() bool {
	return r.Status() == Connected
}

// Document returns the last successfully fetched NIP-11 relay information
// document, or the zero value if none has been fetched yet.
func (r *Relay) Document() InformationDocument {
	r.documentMu.Lock()
	defer r.documentMu.Unlock()
	return r.document
}

func (r *Relay) setDocument(doc InformationDocument) {
	r.documentMu.Lock()
	r.document = doc
	r.documentMu.Unlock()
}

// Subscriptions returns a snapshot of the Subscription Book.
func (r *Relay) Subscriptions() map[string]ActiveSubscription {
	return r.subscriptions.snapshot()
}

// Queue reports how many commands are currently sitting in the Command
// Queue, the Go-native equivalent of the Rust `max_capacity() - capacity()`
// idiom (see SPEC_FULL.md §4.2).
func (r *Relay) Queue() int {
	return len(r.commandCh)
}

func (r *Relay) isScheduledForStop() bool        { return r.scheduledForStop.Load() }
func (r *Relay) scheduleForStop(v bool)          { r.scheduledForStop.Store(v) }
func (r *Relay) isScheduledForTermination() bool { return r.scheduledForTermination.Load() }
func (r *Relay) scheduleForTermination(v bool)   { r.scheduledForTermination.Store(v) }

// Connect establishes a connection to the relay and keeps it alive via the
// Reconnect Supervisor. If waitForConnection is true, one synchronous
// connection attempt is performed before the supervisor is spawned;
// otherwise status is set to Disconnected and the supervisor drives the
// first attempt. Calling Connect while Connected/Connecting/Disconnected
// is a no-op: the supervisor from the first call continues running.
func (r *Relay) Connect(ctx context.Context, waitForConnection bool) {
	switch r.Status() {
	case Initialized, Stopped, Terminated:
		r.scheduleForStop(false)
		r.scheduleForTermination(false)
	default:
		return
	}

	if waitForConnection {
		r.tryConnect(ctx)
	} else {
		r.setStatus(Disconnected)
	}

	go r.superviseReconnect(ctx)
}

// superviseReconnect is the Reconnect Supervisor: while neither stop nor
// terminate is requested, it polls status and drives a new connection
// attempt whenever status is Disconnected.
func (r *Relay) superviseReconnect(ctx context.Context) {
	tick := r.reconnectTick
	for {
		if queued := r.Queue(); queued > 0 {
			r.log.Info("messages queued", "count", queued)
		}

		if r.isScheduledForStop() {
			r.setStatus(Stopped)
			r.scheduleForStop(false)
			r.log.Debug("auto connect loop terminated [stop - schedule]")
			return
		}
		if r.isScheduledForTermination() {
			r.setStatus(Terminated)
			r.scheduleForTermination(false)
			r.log.Debug("auto connect loop terminated [terminate - schedule]")
			return
		}

		switch r.Status() {
		case Disconnected:
			r.tryConnect(ctx)
		case Stopped, Terminated:
			r.log.Debug("auto connect loop terminated")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(tick):
		}
	}
}

// tryConnect performs a single connection attempt.
func (r *Relay) tryConnect(ctx context.Context) {
	r.stats.newAttempt()
	r.setStatus(Connecting)
	r.log.Debug("connecting")

	go func() {
		doc, err := fetchInformationDocument(ctx, r.url, r.opts.Proxy())
		if err != nil {
			r.log.Debug("impossible to get information document", "error", err)
			return
		}
		r.setDocument(doc)
	}()

	conn, err := r.dial(ctx, r.url, r.opts.Proxy())
	if err != nil {
		r.setStatus(Disconnected)
		r.log.Error("impossible to connect", "error", err)
		return
	}

	r.setStatus(Connected)
	r.stats.newSuccess()
	r.log.Info("connected")

	if !r.receiverTaken.CompareAndSwap(false, true) {
		// A previous Writer Task somehow has not released the
		// receiver yet; refuse to start a second one concurrently.
		r.log.Error("writer task already owns the command queue receiver")
		_ = conn.Close()
		r.setStatus(Disconnected)
		return
	}

	go func() {
		defer r.receiverTaken.Store(false)
		r.runWriter(conn)
	}()
	go r.runReader(ctx, conn)

	if r.opts.Read() {
		if err := r.resubscribeAll(nil); err != nil {
			r.log.Error("impossible to subscribe", "error", err)
		}
	}
}

// sendRelayEvent enqueues event onto the Command Queue without blocking,
// attaching ack as its optional one-shot acknowledgement channel.
func (r *Relay) sendRelayEvent(event RelayEvent, ack chan bool) error {
	select {
	case r.commandCh <- commandMessage{event: event, ack: ack}:
		return nil
	default:
		return ErrMessageNotSent
	}
}

// disconnect requests a graceful Close, unless the relay is already in a
// terminal-until-reconnect state.
func (r *Relay) disconnect() error {
	switch r.Status() {
	case Disconnected, Stopped, Terminated:
		return nil
	default:
		return r.sendRelayEvent(RelayEvent{Kind: EventClose}, nil)
	}
}

// Stop requests a graceful disconnect and transition to Stopped, honored
// by whichever of the Writer Task or Reconnect Supervisor observes the
// intent first.
func (r *Relay) Stop() error {
	r.scheduleForStop(true)
	switch r.Status() {
	case Disconnected, Stopped, Terminated:
		return nil
	default:
		return r.sendRelayEvent(RelayEvent{Kind: EventStop}, nil)
	}
}

// Terminate requests a graceful disconnect and transition to Terminated.
func (r *Relay) Terminate() error {
	r.scheduleForTermination(true)
	switch r.Status() {
	case Disconnected, Stopped, Terminated:
		return nil
	default:
		return r.sendRelayEvent(RelayEvent{Kind: EventTerminate}, nil)
	}
}
