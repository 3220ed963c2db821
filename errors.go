package relay

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Relay methods. Callers should compare with
// errors.Is, since some are wrapped with additional context.
var (
	ErrRecvTimeout     = errors.New("recv message response timeout")
	ErrTimeout         = errors.New("timeout")
	ErrMessageNotSent  = errors.New("message not sent")
	ErrBatchEventEmpty = errors.New("batch event cannot be empty")
	// ErrOneShotRecvError is returned by SendMsg/BatchMsg when the Writer
	// Task abandons the command queue (graceful Close/Stop/Terminate) while
	// this call's ack is still queued behind it; the ack channel is closed
	// rather than written to, so the waiting caller is told definitively
	// that no acknowledgement is coming instead of riding out the full wait.
	ErrOneShotRecvError   = errors.New("impossible to recv msg")
	ErrReadDisabled       = errors.New("read actions are disabled for this relay")
	ErrWriteDisabled      = errors.New("write actions are disabled for this relay")
	ErrInternalIDNotFound = errors.New("internal ID not found")
	ErrFiltersEmpty       = errors.New("filters empty")
)

// EventNotPublishedError reports that the relay answered an EVENT with OK=false.
type EventNotPublishedError struct {
	Message string
}

func (e *EventNotPublishedError) Error() string {
	return fmt.Sprintf("event not published: %s", e.Message)
}

// EventsNotPublishedError reports that every event of a batch_event call failed.
type EventsNotPublishedError struct {
	NotPublished map[string]string
}

func (e *EventsNotPublishedError) Error() string {
	return fmt.Sprintf("events not published: %v", e.NotPublished)
}

// PartialPublishError reports that a batch_event call had a mix of
// successes and failures.
type PartialPublishError struct {
	Published    []string
	NotPublished map[string]string
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("partial publish: published=%d, others=%d", len(e.Published), len(e.NotPublished))
}
