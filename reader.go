package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"github.com/valyala/fastjson"

	"github.com/nostrcore/relayactor/transport"
)

var tagParserPool fastjson.ParserPool

// runReader is the Reader Task: for each inbound frame it increments
// bytes_received, decodes into a typed envelope, and forwards it to the
// pool channel and the Notification Bus; on stream end it requests a
// graceful Close.
func (r *Relay) runReader(ctx context.Context, conn transport.Conn) {
	r.log.Debug("reader task started")
	defer r.log.Debug("reader task exited")

readLoop:
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		r.stats.addBytesReceived(len(data))

		if len(data) == 0 {
			// Empty frames are a silent protocol quirk; nothing to
			// sniff or decode.
			continue
		}
		if !looksLikeEnvelope(data) {
			r.log.Debug("could not parse relay message", "data", string(data))
			continue
		}

		env := nostr.ParseMessage(data)
		if env == nil {
			r.log.Debug("could not parse relay message", "data", string(data))
			continue
		}

		r.deliver(env)

		if r.poolSender != nil {
			select {
			case r.poolSender <- RelayPoolMessage{RelayURL: r.url, Msg: env}:
			case <-ctx.Done():
				r.log.Debug("pool channel context done")
				break readLoop
			default:
				r.log.Error("impossible to send ReceivedMsg to pool")
				break readLoop
			}
		}
	}

	if err := r.disconnect(); err != nil {
		r.log.Error("impossible to disconnect", "error", err)
	}
}

// looksLikeEnvelope does a fast leading-tag sniff with fastjson before
// paying for a full envelope decode.
func looksLikeEnvelope(data []byte) bool {
	if data[0] != '[' {
		return false
	}
	p := tagParserPool.Get()
	defer tagParserPool.Put(p)
	v, err := p.ParseBytes(data)
	if err != nil {
		return false
	}
	arr, err := v.Array()
	if err != nil || len(arr) < 2 {
		return false
	}
	return arr[0].Type() == fastjson.TypeString
}

// deliver fans env out to both the per-request correlation table (fast
// path for this relay's own Request Layer) and the broadcast Notification
// Bus (for external/pool consumers).
func (r *Relay) deliver(env nostr.Envelope) {
	if key, ok := correlationKey(env); ok {
		if ch, ok := r.pending.Load(key); ok {
			select {
			case ch <- env:
			default:
			}
		}
	}

	r.bus.Publish(RelayPoolNotification{RelayURL: r.url, Msg: env})
}

// correlationKey extracts the key the Request Layer registers pending
// replies under: an event id for OK, a subscription id for EVENT/EOSE/CLOSED.
func correlationKey(env nostr.Envelope) (string, bool) {
	switch e := env.(type) {
	case *nostr.OKEnvelope:
		return e.EventID, true
	case *nostr.EventEnvelope:
		if e.SubscriptionID != nil {
			return *e.SubscriptionID, true
		}
		return "", false
	case *nostr.EOSEEnvelope:
		return string(*e), true
	case *nostr.ClosedEnvelope:
		return e.SubscriptionID, true
	default:
		return "", false
	}
}
