package relay

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func TestInternalSubscriptionIDRoundTrip(t *testing.T) {
	require.Equal(t, "default", NewDefaultSubscriptionID().String())
	require.Equal(t, "pool", NewPoolSubscriptionID().String())

	custom := ParseInternalSubscriptionID("my-sub")
	require.Equal(t, Custom, custom.Kind)
	require.Equal(t, "my-sub", custom.String())

	require.Equal(t, Default, ParseInternalSubscriptionID("default").Kind)
	require.Equal(t, Pool, ParseInternalSubscriptionID("pool").Kind)
}

func TestSubscriptionBookUpdatePreservesWireID(t *testing.T) {
	book := newSubscriptionBook()
	id := NewDefaultSubscriptionID()

	sub1 := book.updateFilters(id, nostr.Filters{{Kinds: []int{1}}})
	sub2 := book.updateFilters(id, nostr.Filters{{Kinds: []int{2}}})

	require.Equal(t, sub1.ID, sub2.ID)
	require.Equal(t, nostr.Filters{{Kinds: []int{2}}}, sub2.Filters)
}

func TestSubscriptionBookRemove(t *testing.T) {
	book := newSubscriptionBook()
	id := NewPoolSubscriptionID()

	book.updateFilters(id, nostr.Filters{{Kinds: []int{1}}})
	sub, ok := book.remove(id)
	require.True(t, ok)
	require.NotEmpty(t, sub.ID)

	_, ok = book.get(id)
	require.False(t, ok)
}

func TestNonEmptyFiltersOutEmptyFilterSets(t *testing.T) {
	subs := map[string]ActiveSubscription{
		"a": {ID: "wire-a", Filters: nostr.Filters{{Kinds: []int{1}}}},
		"b": {ID: "wire-b", Filters: nostr.Filters{}},
	}

	out := nonEmpty(subs)
	require.Len(t, out, 1)
	require.Contains(t, out, "a")
}
