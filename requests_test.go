package relay

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostrcore/relayactor/transport"
)

func TestSendEventSuccess(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	ev := &nostr.Event{ID: "abc123"}
	type result struct {
		id  string
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		id, err := r.SendEvent(context.Background(), ev, WithTimeout(time.Second))
		resultCh <- result{id, err}
	}()

	<-conn.Sent() // outbound EVENT frame
	conn.Inject(okFrame("abc123", true, ""))

	got := <-resultCh
	require.NoError(t, got.err)
	require.Equal(t, "abc123", got.id)
}

func TestSendEventFailure(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	ev := &nostr.Event{ID: "abc123"}
	type result struct {
		id  string
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		id, err := r.SendEvent(context.Background(), ev, WithTimeout(time.Second))
		resultCh <- result{id, err}
	}()

	<-conn.Sent()
	conn.Inject(okFrame("abc123", false, "blocked: spam"))

	got := <-resultCh
	require.Error(t, got.err)
	var notPublished *EventNotPublishedError
	require.ErrorAs(t, got.err, &notPublished)
	require.Equal(t, "blocked: spam", notPublished.Message)
}

func TestSendEventTimeout(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	ev := &nostr.Event{ID: "no-reply"}
	_, err := r.SendEvent(context.Background(), ev, WithTimeout(20*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestBatchEventPartialPublish(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	events := []*nostr.Event{{ID: "e1"}, {ID: "e2"}}
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- r.BatchEvent(context.Background(), events, WithTimeout(time.Second))
	}()

	<-conn.Sent()
	conn.Inject(okFrame("e1", true, ""))
	conn.Inject(okFrame("e2", false, "rate-limited"))

	err := <-resultCh
	var partial *PartialPublishError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, []string{"e1"}, partial.Published)
	require.Equal(t, map[string]string{"e2": "rate-limited"}, partial.NotPublished)
}

func TestBatchEventAllFail(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	events := []*nostr.Event{{ID: "e1"}, {ID: "e2"}}
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- r.BatchEvent(context.Background(), events, WithTimeout(time.Second))
	}()

	<-conn.Sent()
	conn.Inject(okFrame("e1", false, "dup"))
	conn.Inject(okFrame("e2", false, "dup"))

	err := <-resultCh
	var notPublished *EventsNotPublishedError
	require.ErrorAs(t, err, &notPublished)
	require.Len(t, notPublished.NotPublished, 2)
}

func TestBatchEventEmpty(t *testing.T) {
	r := newConnectedTestRelay(t, transport.NewFakeConn())
	err := r.BatchEvent(context.Background(), nil, WithTimeout(time.Second))
	require.ErrorIs(t, err, ErrBatchEventEmpty)
}

func TestGetEventsOfExitOnEOSE(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	type result struct {
		events []*nostr.Event
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		events, err := r.GetEventsOf(context.Background(), nostr.Filters{{Kinds: []int{1}}}, nil, NewExitOnEOSE())
		resultCh <- result{events, err}
	}()

	reqFrame := <-conn.Sent()
	subID := extractSubID(t, reqFrame)

	conn.Inject(eventFrame(subID, "ev1"))
	conn.Inject(eoseFrame(subID))

	got := <-resultCh
	require.NoError(t, got.err)
	require.Len(t, got.events, 1)
	require.Equal(t, "ev1", got.events[0].ID)

	closeFrame := <-conn.Sent()
	require.Contains(t, string(closeFrame), `"CLOSE"`)
}

func TestGetEventsOfWaitForEventsAfterEOSE(t *testing.T) {
	conn := transport.NewFakeConn()
	r := newConnectedTestRelay(t, conn)

	type result struct {
		events []*nostr.Event
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		events, err := r.GetEventsOf(context.Background(), nostr.Filters{{Kinds: []int{1}}}, nil, NewWaitForEventsAfterEOSE(2))
		resultCh <- result{events, err}
	}()

	reqFrame := <-conn.Sent()
	subID := extractSubID(t, reqFrame)

	conn.Inject(eoseFrame(subID))
	conn.Inject(eventFrame(subID, "a"))
	conn.Inject(eventFrame(subID, "b"))

	got := <-resultCh
	require.NoError(t, got.err)
	require.Len(t, got.events, 2)
}
