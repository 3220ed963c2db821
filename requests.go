package relay

import (
	"context"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/samber/lo"
)

// timeoutChannel returns a channel that fires after d, or a nil channel
// (which blocks forever in a select) when d is nil, the documented "no
// timeout" convention.
func timeoutChannel(d *time.Duration) (<-chan time.Time, func()) {
	if d == nil {
		return nil, func() {}
	}
	t := time.NewTimer(*d)
	return t.C, func() { t.Stop() }
}

// SendMsg gates msg against the relay's read/write policy, then either
// enqueues it fire-and-forget (wait == nil) or enqueues it with a one-shot
// ack and waits up to *wait for the Writer Task's acknowledgement.
func (r *Relay) SendMsg(ctx context.Context, msg nostr.Envelope, wait *time.Duration) error {
	if !r.opts.Write() {
		if _, ok := msg.(*nostr.EventEnvelope); ok {
			return ErrWriteDisabled
		}
	}
	if !r.opts.Read() {
		switch msg.(type) {
		case *nostr.ReqEnvelope, *nostr.CloseEnvelope:
			return ErrReadDisabled
		}
	}

	if wait == nil {
		return r.sendRelayEvent(RelayEvent{Kind: EventSendMsg, Msg: msg}, nil)
	}

	ackCh := make(chan bool, 1)
	if err := r.sendRelayEvent(RelayEvent{Kind: EventSendMsg, Msg: msg}, ackCh); err != nil {
		return err
	}
	select {
	case ok, open := <-ackCh:
		if !open {
			return ErrOneShotRecvError
		}
		if ok {
			return nil
		}
		return ErrMessageNotSent
	case <-time.After(*wait):
		return ErrRecvTimeout
	case <-ctx.Done():
		return ErrRecvTimeout
	}
}

// BatchMsg is SendMsg for multiple envelopes sent as a single streamed
// write, gated the same way against any element of the batch.
func (r *Relay) BatchMsg(ctx context.Context, msgs []nostr.Envelope, wait *time.Duration) error {
	if !r.opts.Write() {
		for _, msg := range msgs {
			if _, ok := msg.(*nostr.EventEnvelope); ok {
				return ErrWriteDisabled
			}
		}
	}
	if !r.opts.Read() {
		for _, msg := range msgs {
			switch msg.(type) {
			case *nostr.ReqEnvelope, *nostr.CloseEnvelope:
				return ErrReadDisabled
			}
		}
	}

	if wait == nil {
		return r.sendRelayEvent(RelayEvent{Kind: EventBatch, Batch: msgs}, nil)
	}

	ackCh := make(chan bool, 1)
	if err := r.sendRelayEvent(RelayEvent{Kind: EventBatch, Batch: msgs}, ackCh); err != nil {
		return err
	}
	select {
	case ok, open := <-ackCh:
		if !open {
			return ErrOneShotRecvError
		}
		if ok {
			return nil
		}
		return ErrMessageNotSent
	case <-time.After(*wait):
		return ErrRecvTimeout
	case <-ctx.Done():
		return ErrRecvTimeout
	}
}

// SendEvent publishes event and waits for a matching OK reply, bounded by
// opts.Timeout. See BatchEvent for the multi-event variant.
func (r *Relay) SendEvent(ctx context.Context, event *nostr.Event, opts RelaySendOptions) (string, error) {
	id := event.ID

	replyCh := make(chan nostr.Envelope, 8)
	r.pending.Store(id, replyCh)
	defer r.pending.Delete(id)

	if err := r.SendMsg(ctx, &nostr.EventEnvelope{Event: *event}, nil); err != nil {
		return "", err
	}

	deadlineCh, stop := timeoutChannel(opts.Timeout)
	defer stop()

	for {
		select {
		case env := <-replyCh:
			okEnv, isOK := env.(*nostr.OKEnvelope)
			if !isOK || okEnv.EventID != id {
				continue
			}
			if okEnv.OK {
				return id, nil
			}
			return "", &EventNotPublishedError{Message: okEnv.Reason}
		case <-deadlineCh:
			return "", ErrTimeout
		case <-ctx.Done():
			return "", ErrTimeout
		}
	}
}

// BatchEvent publishes events as a batch and waits for every id to
// receive an OK reply, bounded by opts.Timeout: all ids published returns
// nil, a mix returns *PartialPublishError, and none published returns
// *EventsNotPublishedError.
func (r *Relay) BatchEvent(ctx context.Context, events []*nostr.Event, opts RelaySendOptions) error {
	if len(events) == 0 {
		return ErrBatchEventEmpty
	}

	ids := lo.Map(events, func(e *nostr.Event, _ int) string { return e.ID })

	sharedCh := make(chan nostr.Envelope, 64)
	for _, id := range ids {
		r.pending.Store(id, sharedCh)
	}
	defer func() {
		for _, id := range ids {
			r.pending.Delete(id)
		}
	}()

	msgs := lo.Map(events, func(e *nostr.Event, _ int) nostr.Envelope {
		return &nostr.EventEnvelope{Event: *e}
	})
	if err := r.BatchMsg(ctx, msgs, nil); err != nil {
		return err
	}

	missing := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		missing[id] = struct{}{}
	}
	var published []string
	notPublished := make(map[string]string)

	deadlineCh, stop := timeoutChannel(opts.Timeout)
	defer stop()

	for len(missing) > 0 {
		select {
		case env := <-sharedCh:
			okEnv, isOK := env.(*nostr.OKEnvelope)
			if !isOK {
				continue
			}
			if _, ok := missing[okEnv.EventID]; !ok {
				continue
			}
			delete(missing, okEnv.EventID)
			if okEnv.OK {
				published = append(published, okEnv.EventID)
			} else {
				notPublished[okEnv.EventID] = okEnv.Reason
			}
		case <-deadlineCh:
			return ErrTimeout
		case <-ctx.Done():
			return ErrTimeout
		}
	}

	switch {
	case len(published) > 0 && len(notPublished) == 0:
		return nil
	case len(published) > 0 && len(notPublished) > 0:
		return &PartialPublishError{Published: published, NotPublished: notPublished}
	default:
		return &EventsNotPublishedError{NotPublished: notPublished}
	}
}

// handleEventsOf drains notifications for subscription id until EOSE
// semantics (per opts.Kind: exit immediately, wait for N more events, or
// wait a fixed duration) are satisfied, invoking callback for every
// matching event. ch must already be registered in r.pending under id by
// the caller, before the REQ is sent, so no reply can arrive unobserved.
func (r *Relay) handleEventsOf(ctx context.Context, ch chan nostr.Envelope, id string, timeout *time.Duration, opts FilterOptions, callback func(*nostr.Event)) error {
	counter := 0
	receivedEOSE := false

	deadlineCh, stop := timeoutChannel(timeout)
	defer stop()

drain:
	for {
		select {
		case env := <-ch:
			switch e := env.(type) {
			case *nostr.EventEnvelope:
				if e.SubscriptionID == nil || *e.SubscriptionID != id {
					continue
				}
				callback(&e.Event)
				if opts.Kind == WaitForEventsAfterEOSEKind && receivedEOSE {
					counter++
					if counter >= int(opts.NumEvents) {
						break drain
					}
				}
			case *nostr.EOSEEnvelope:
				if string(*e) != id {
					continue
				}
				receivedEOSE = true
				if opts.Kind == ExitOnEOSE || opts.Kind == WaitDurationAfterEOSEKind {
					break drain
				}
			}
		case <-deadlineCh:
			return ErrTimeout
		case <-ctx.Done():
			return ErrTimeout
		}
	}

	if opts.Kind != WaitDurationAfterEOSEKind {
		return nil
	}

	secondary := time.NewTimer(opts.Duration)
	defer secondary.Stop()
	for {
		select {
		case env := <-ch:
			if e, ok := env.(*nostr.EventEnvelope); ok && e.SubscriptionID != nil && *e.SubscriptionID == id {
				callback(&e.Event)
			}
		case <-secondary.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// GetEventsOfWithCallback opens an ephemeral (not book-kept) subscription,
// drains it through callback per opts, then closes it.
func (r *Relay) GetEventsOfWithCallback(ctx context.Context, filters nostr.Filters, timeout *time.Duration, opts FilterOptions, callback func(*nostr.Event)) error {
	if !r.opts.Read() {
		return ErrReadDisabled
	}

	id := generateSubscriptionID()

	ch := make(chan nostr.Envelope, 256)
	r.pending.Store(id, ch)
	defer r.pending.Delete(id)

	if err := r.SendMsg(ctx, reqEnvelope(id, filters), nil); err != nil {
		return err
	}

	drainErr := r.handleEventsOf(ctx, ch, id, timeout, opts, callback)

	if err := r.SendMsg(ctx, closeEnvelope(id), nil); err != nil && drainErr == nil {
		return err
	}
	return drainErr
}

// GetEventsOf accumulates every event matched during the drain into a slice.
func (r *Relay) GetEventsOf(ctx context.Context, filters nostr.Filters, timeout *time.Duration, opts FilterOptions) ([]*nostr.Event, error) {
	var mu sync.Mutex
	var events []*nostr.Event
	err := r.GetEventsOfWithCallback(ctx, filters, timeout, opts, func(e *nostr.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ReqEventsOf runs GetEventsOfWithCallback in a detached goroutine,
// publishing every matched event only to the Notification Bus.
func (r *Relay) ReqEventsOf(ctx context.Context, filters nostr.Filters, timeout *time.Duration, opts FilterOptions) {
	if !r.opts.Read() {
		r.log.Error(ErrReadDisabled.Error())
		return
	}

	go func() {
		id := generateSubscriptionID()

		ch := make(chan nostr.Envelope, 256)
		r.pending.Store(id, ch)
		defer r.pending.Delete(id)

		if err := r.SendMsg(ctx, reqEnvelope(id, filters), nil); err != nil {
			r.log.Error("impossible to send REQ", "error", err)
			return
		}

		if err := r.handleEventsOf(ctx, ch, id, timeout, opts, func(*nostr.Event) {}); err != nil {
			r.log.Error(err.Error())
		}

		if err := r.SendMsg(ctx, closeEnvelope(id), nil); err != nil {
			r.log.Error("impossible to close subscription", "error", err)
		}
	}()
}
