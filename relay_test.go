package relay

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostrcore/relayactor/transport"
)

func TestConnectDisconnectCycle(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newTestRelay(conn)

	r.Connect(context.Background(), true)
	require.True(t, r.IsConnected())
	require.EqualValues(t, 1, r.Stats().Attempts())
	require.EqualValues(t, 1, r.Stats().Success())

	require.NoError(t, r.Stop())
	require.Eventually(t, func() bool {
		return r.Status() == Stopped
	}, time.Second, 5*time.Millisecond)
}

func TestCommandQueueOverflow(t *testing.T) {
	r := newTestRelay(transport.NewFakeConn())
	ctx := context.Background()

	for i := 0; i < commandQueueCapacity; i++ {
		ev := &nostr.Event{ID: fmt.Sprintf("id-%d", i)}
		err := r.SendMsg(ctx, &nostr.EventEnvelope{Event: *ev}, nil)
		require.NoErrorf(t, err, "send #%d should fit in the command queue", i)
	}

	overflow := &nostr.Event{ID: "overflow"}
	err := r.SendMsg(ctx, &nostr.EventEnvelope{Event: *overflow}, nil)
	require.ErrorIs(t, err, ErrMessageNotSent)
}

// TestSubscriptionReplayAfterReconnect forces the transport to close out
// from under a live subscription and checks that the Reconnect Supervisor
// re-establishes the connection and replays the REQ from the Subscription
// Book.
func TestSubscriptionReplayAfterReconnect(t *testing.T) {
	conn1 := transport.NewFakeConn()
	conn2 := transport.NewFakeConn()

	var mu sync.Mutex
	current := transport.Conn(conn1)

	r := NewRelay("wss://relay.example.com", nil, NewNotificationBus(), NewRelayOptions())
	r.reconnectTick = 20 * time.Millisecond
	r.dial = func(_ context.Context, _ string, _ *url.URL) (transport.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		return current, nil
	}

	r.Connect(context.Background(), true)
	require.True(t, r.IsConnected())

	require.NoError(t, r.Subscribe(context.Background(), nostr.Filters{{Kinds: []int{1}}}, nil))

	select {
	case <-conn1.Sent():
	case <-time.After(time.Second):
		t.Fatal("expected a REQ frame on the first connection")
	}

	mu.Lock()
	current = conn2
	mu.Unlock()
	require.NoError(t, conn1.Close())

	select {
	case frame := <-conn2.Sent():
		require.Contains(t, string(frame), `"REQ"`)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the subscription to be replayed on the new connection")
	}
}
