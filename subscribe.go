package relay

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

func reqEnvelope(id string, filters nostr.Filters) nostr.Envelope {
	return &nostr.ReqEnvelope{SubscriptionID: id, Filters: filters}
}

func closeEnvelope(id string) nostr.Envelope {
	e := nostr.CloseEnvelope(id)
	return &e
}

// resubscribeAll replays every book-kept subscription with non-empty
// filters, the step tryConnect performs immediately after becoming
// Connected.
func (r *Relay) resubscribeAll(wait *time.Duration) error {
	if !r.opts.Read() {
		return ErrReadDisabled
	}

	for key, sub := range nonEmpty(r.subscriptions.all()) {
		if len(sub.Filters) == 0 {
			r.log.Warn("subscription has empty filters", "internal_id", key)
			continue
		}
		if err := r.SendMsg(context.Background(), reqEnvelope(sub.ID, sub.Filters), wait); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) resubscribe(ctx context.Context, internalID InternalSubscriptionID, wait *time.Duration) error {
	if !r.opts.Read() {
		return ErrReadDisabled
	}

	sub, ok := r.subscriptions.get(internalID)
	if !ok {
		return ErrInternalIDNotFound
	}
	return r.SendMsg(ctx, reqEnvelope(sub.ID, sub.Filters), wait)
}

// Subscribe subscribes with internal id Default.
func (r *Relay) Subscribe(ctx context.Context, filters nostr.Filters, wait *time.Duration) error {
	return r.SubscribeWithInternalID(ctx, NewDefaultSubscriptionID(), filters, wait)
}

// SubscribeWithInternalID inserts/updates filters in the Subscription Book
// under internalID, then replays the REQ for it.
func (r *Relay) SubscribeWithInternalID(ctx context.Context, internalID InternalSubscriptionID, filters nostr.Filters, wait *time.Duration) error {
	if !r.opts.Read() {
		return ErrReadDisabled
	}
	if len(filters) == 0 {
		return ErrFiltersEmpty
	}

	r.subscriptions.updateFilters(internalID, filters)
	return r.resubscribe(ctx, internalID, wait)
}

// Unsubscribe cancels the subscription under internal id Default.
func (r *Relay) Unsubscribe(ctx context.Context, wait *time.Duration) error {
	return r.UnsubscribeWithInternalID(ctx, NewDefaultSubscriptionID(), wait)
}

// UnsubscribeWithInternalID removes internalID from the Subscription Book
// and sends CLOSE for its wire id.
func (r *Relay) UnsubscribeWithInternalID(ctx context.Context, internalID InternalSubscriptionID, wait *time.Duration) error {
	if !r.opts.Read() {
		return ErrReadDisabled
	}

	sub, ok := r.subscriptions.remove(internalID)
	if !ok {
		return ErrInternalIDNotFound
	}
	return r.SendMsg(ctx, closeEnvelope(sub.ID), wait)
}

// UnsubscribeAll cancels every subscription currently in the book.
func (r *Relay) UnsubscribeAll(ctx context.Context, wait *time.Duration) error {
	if !r.opts.Read() {
		return ErrReadDisabled
	}

	for key, sub := range r.subscriptions.all() {
		if _, ok := r.subscriptions.remove(ParseInternalSubscriptionID(key)); !ok {
			continue
		}
		if err := r.SendMsg(ctx, closeEnvelope(sub.ID), wait); err != nil {
			return err
		}
	}
	return nil
}
