package relay

import (
	"net/url"
	"time"
)

// RelayOptions configures read/write policy and optional proxying for a
// Relay. Immutable after construction.
type RelayOptions struct {
	read  bool
	write bool
	proxy *url.URL
}

// NewRelayOptions returns options with both read and write enabled and no proxy.
func NewRelayOptions() RelayOptions {
	return RelayOptions{read: true, write: true}
}

// Read reports whether subscriptions (REQ/CLOSE) are permitted.
func (o RelayOptions) Read() bool { return o.read }

// Write reports whether publishing (EVENT) is permitted.
func (o RelayOptions) Write() bool { return o.write }

// Proxy returns the configured proxy URL, or nil.
func (o RelayOptions) Proxy() *url.URL { return o.proxy }

// WithRead toggles read permission.
func (o RelayOptions) WithRead(v bool) RelayOptions {
	o.read = v
	return o
}

// WithWrite toggles write permission.
func (o RelayOptions) WithWrite(v bool) RelayOptions {
	o.write = v
	return o
}

// WithProxy attaches a proxy URL. The websocket dial goes through
// golang.org/x/net/proxy, which accepts SOCKS5 (socks5/socks5h) URLs.
func (o RelayOptions) WithProxy(p *url.URL) RelayOptions {
	o.proxy = p
	return o
}

// RelaySendOptions bounds how long SendEvent/BatchEvent wait for the
// relay's OK replies (SendMsg/BatchMsg take their own wait argument). A nil
// Timeout means "no deadline" for the underlying wait helper.
type RelaySendOptions struct {
	Timeout *time.Duration
}

// WithTimeout returns RelaySendOptions bounded by d.
func WithTimeout(d time.Duration) RelaySendOptions {
	return RelaySendOptions{Timeout: &d}
}

// FilterOptionsKind selects how get_events_of/req_events_of treat EOSE.
type FilterOptionsKind int

const (
	// ExitOnEOSE stops the drain loop as soon as EOSE is observed.
	ExitOnEOSE FilterOptionsKind = iota
	// WaitForEventsAfterEOSEKind keeps delivering events after EOSE until N
	// additional events have been seen.
	WaitForEventsAfterEOSEKind
	// WaitDurationAfterEOSEKind exits the primary loop on EOSE, then runs a
	// secondary drain loop bounded by a duration.
	WaitDurationAfterEOSEKind
)

// FilterOptions controls EOSE handling for get_events_of_with_callback.
type FilterOptions struct {
	Kind      FilterOptionsKind
	NumEvents uint16
	Duration  time.Duration
}

// NewExitOnEOSE returns FilterOptions that stop as soon as EOSE arrives.
func NewExitOnEOSE() FilterOptions {
	return FilterOptions{Kind: ExitOnEOSE}
}

// NewWaitForEventsAfterEOSE returns FilterOptions that keep draining for n
// additional events after EOSE.
func NewWaitForEventsAfterEOSE(n uint16) FilterOptions {
	return FilterOptions{Kind: WaitForEventsAfterEOSEKind, NumEvents: n}
}

// NewWaitDurationAfterEOSE returns FilterOptions that run a secondary drain
// loop of length d after EOSE.
func NewWaitDurationAfterEOSE(d time.Duration) FilterOptions {
	return FilterOptions{Kind: WaitDurationAfterEOSEKind, Duration: d}
}
