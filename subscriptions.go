package relay

import (
	"sync"

	syncmap "github.com/SaveTheRbtz/generic-sync-map-go"
	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
	"golang.org/x/exp/maps"
)

// InternalSubscriptionIDKind tags the variant of an InternalSubscriptionID.
type InternalSubscriptionIDKind int

const (
	// Default is the internal id used by Subscribe/Unsubscribe.
	Default InternalSubscriptionIDKind = iota
	// Pool is the internal id reserved for pool-level subscriptions.
	Pool
	// Custom wraps an arbitrary caller-chosen string.
	Custom
)

// InternalSubscriptionID is the client-side logical handle for a
// subscription, independent of the wire id the relay sees. It round-trips
// through its string form: "default" and "pool" are reserved and map to
// Default/Pool, any other string becomes Custom.
type InternalSubscriptionID struct {
	Kind   InternalSubscriptionIDKind
	custom string
}

// NewDefaultSubscriptionID returns the Default internal id.
func NewDefaultSubscriptionID() InternalSubscriptionID {
	return InternalSubscriptionID{Kind: Default}
}

// NewPoolSubscriptionID returns the Pool internal id.
func NewPoolSubscriptionID() InternalSubscriptionID {
	return InternalSubscriptionID{Kind: Pool}
}

// ParseInternalSubscriptionID builds an InternalSubscriptionID from a
// string, honoring the reserved "default"/"pool" spellings.
func ParseInternalSubscriptionID(s string) InternalSubscriptionID {
	switch s {
	case "default":
		return InternalSubscriptionID{Kind: Default}
	case "pool":
		return InternalSubscriptionID{Kind: Pool}
	default:
		return InternalSubscriptionID{Kind: Custom, custom: s}
	}
}

// String renders the canonical form used as the Subscription Book's key.
func (id InternalSubscriptionID) String() string {
	switch id.Kind {
	case Default:
		return "default"
	case Pool:
		return "pool"
	default:
		return id.custom
	}
}

// ActiveSubscription is the relay's actual subscription: a stable wire
// subscription id plus the filters currently sent for it.
type ActiveSubscription struct {
	ID      string
	Filters nostr.Filters
}

// generateSubscriptionID produces a fresh wire subscription id. The
// teacher keeps a package-level incrementing counter; a random id is used
// here instead (google/uuid, truncated to stay well under relays'
// typical 64-char subscription id limit) so ids remain unique across
// process restarts, which the spec's "freshly generated" wording does not
// forbid.
func generateSubscriptionID() string {
	return uuid.New().String()[:32]
}

// subscriptionEntry guards an ActiveSubscription's mutable Filters field
// with its own mutex, the same per-entry locking the teacher's own
// *Subscription carries (bumi-go-nostr/relay.go's `subscription.mutex`)
// for exactly this case: concurrent Subscribe calls for the same internal
// id, or a Subscriptions() snapshot racing an in-flight filter update.
type subscriptionEntry struct {
	mutex sync.Mutex
	sub   ActiveSubscription
}

func (e *subscriptionEntry) snapshot() ActiveSubscription {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.sub
}

func (e *subscriptionEntry) setFilters(filters nostr.Filters) ActiveSubscription {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.sub.Filters = filters
	return e.sub
}

// subscriptionBook is the authoritative mapping of internal subscription id
// to wire id and filters, replayed on every reconnect.
type subscriptionBook struct {
	m syncmap.MapOf[string, *subscriptionEntry]
}

func newSubscriptionBook() *subscriptionBook {
	return &subscriptionBook{}
}

// snapshot returns a consistent copy of the book, keyed by internal id string.
func (b *subscriptionBook) snapshot() map[string]ActiveSubscription {
	raw := make(map[string]ActiveSubscription)
	b.m.Range(func(key string, entry *subscriptionEntry) bool {
		raw[key] = entry.snapshot()
		return true
	})
	return maps.Clone(raw)
}

// updateFilters inserts or modifies the entry for internalID: the wire id
// is generated once on insert and never changes afterwards.
func (b *subscriptionBook) updateFilters(internalID InternalSubscriptionID, filters nostr.Filters) ActiveSubscription {
	key := internalID.String()
	if existing, ok := b.m.Load(key); ok {
		return existing.setFilters(filters)
	}

	entry := &subscriptionEntry{sub: ActiveSubscription{ID: generateSubscriptionID(), Filters: filters}}
	actual, loaded := b.m.LoadOrStore(key, entry)
	if loaded {
		// Another goroutine inserted concurrently; fold our update into
		// its entry rather than racing two distinct wire ids.
		return actual.setFilters(filters)
	}
	return actual.snapshot()
}

// get returns the entry for internalID, if any.
func (b *subscriptionBook) get(internalID InternalSubscriptionID) (ActiveSubscription, bool) {
	entry, ok := b.m.Load(internalID.String())
	if !ok {
		return ActiveSubscription{}, false
	}
	return entry.snapshot(), true
}

// remove deletes the entry for internalID and returns it, if present.
func (b *subscriptionBook) remove(internalID InternalSubscriptionID) (ActiveSubscription, bool) {
	key := internalID.String()
	entry, ok := b.m.Load(key)
	if !ok {
		return ActiveSubscription{}, false
	}
	b.m.Delete(key)
	return entry.snapshot(), true
}

// all returns every (key, ActiveSubscription) pair currently in the book.
func (b *subscriptionBook) all() map[string]ActiveSubscription {
	out := make(map[string]ActiveSubscription)
	b.m.Range(func(key string, entry *subscriptionEntry) bool {
		out[key] = entry.snapshot()
		return true
	})
	return out
}

// nonEmpty filters a subscription snapshot down to entries with at least
// one filter, the set resubscribeAll replays on reconnect.
func nonEmpty(subs map[string]ActiveSubscription) map[string]ActiveSubscription {
	return lo.PickBy(subs, func(_ string, sub ActiveSubscription) bool {
		return len(sub.Filters) > 0
	})
}
