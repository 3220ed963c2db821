package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostrcore/relayactor/transport"
)

// newTestRelay returns a Relay whose dial always hands back conn, without
// performing a synchronous connection attempt.
func newTestRelay(conn transport.Conn) *Relay {
	r := NewRelay("wss://relay.example.com", nil, NewNotificationBus(), NewRelayOptions())
	r.dial = func(_ context.Context, _ string, _ *url.URL) (transport.Conn, error) {
		return conn, nil
	}
	return r
}

// newConnectedTestRelay returns a Relay already synchronously connected to conn.
func newConnectedTestRelay(t *testing.T, conn transport.Conn) *Relay {
	t.Helper()
	r := newTestRelay(conn)
	r.Connect(context.Background(), true)
	if !r.IsConnected() {
		t.Fatal("relay did not reach Connected status")
	}
	return r
}

func eventJSON(id string) string {
	return fmt.Sprintf(`{"id":"%s","pubkey":"pub","created_at":1,"kind":1,"tags":[],"content":"hello","sig":"sig"}`, id)
}

func okFrame(eventID string, ok bool, reason string) []byte {
	return []byte(fmt.Sprintf(`["OK","%s",%t,"%s"]`, eventID, ok, reason))
}

func eventFrame(subID, eventID string) []byte {
	return []byte(fmt.Sprintf(`["EVENT","%s",%s]`, subID, eventJSON(eventID)))
}

func eoseFrame(subID string) []byte {
	return []byte(fmt.Sprintf(`["EOSE","%s"]`, subID))
}

// extractSubID reads the wire subscription id out of a REQ/CLOSE frame.
func extractSubID(t *testing.T, frame []byte) string {
	t.Helper()
	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(frame, &arr))
	require.GreaterOrEqual(t, len(arr), 2)
	var id string
	require.NoError(t, json.Unmarshal(arr[1], &id))
	return id
}
