package main

import "time"

// DaemonState is the daemon-owned view of the DND setting.
//
// It records what the bridge last observed or applied. It is never persisted
// and never shared: other goroutines only ever see a StateSnapshot copy.
type DaemonState struct {
	// Filter is the last interruption filter the bridge applied successfully.
	Filter      InterruptionFilter
	FilterKnown bool
	FilterAt    time.Time

	// Last call bookkeeping.
	LastMethod  string
	LastOutcome Outcome
	LastAt      time.Time

	Calls      uint64
	Redirects  uint64
	Rejections uint64
}

// StateSnapshot is an immutable copy of DaemonState for clients.
type StateSnapshot struct {
	Filter      string    `json:"filter,omitempty"`
	FilterKnown bool      `json:"filter_known"`
	FilterAt    time.Time `json:"filter_at"`
	DNDEnabled  bool      `json:"dnd_enabled"`

	LastMethod  string    `json:"last_method,omitempty"`
	LastOutcome Outcome   `json:"last_outcome,omitempty"`
	LastAt      time.Time `json:"last_at"`

	Calls      uint64 `json:"calls"`
	Redirects  uint64 `json:"redirects"`
	Rejections uint64 `json:"rejections"`
}

// Snapshot returns a copy of the state suitable for publishing.
func (s *DaemonState) Snapshot() StateSnapshot {
	if s == nil {
		return StateSnapshot{}
	}
	return StateSnapshot{
		Filter:      string(s.Filter),
		FilterKnown: s.FilterKnown,
		FilterAt:    s.FilterAt,
		DNDEnabled:  s.FilterKnown && s.Filter.Blocked(),
		LastMethod:  s.LastMethod,
		LastOutcome: s.LastOutcome,
		LastAt:      s.LastAt,
		Calls:       s.Calls,
		Redirects:   s.Redirects,
		Rejections:  s.Rejections,
	}
}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is an externally visible state change emitted by Reduce.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastDNDChanged is emitted when the applied filter differs from the
// previously known one.
type BroadcastDNDChanged struct {
	Filter InterruptionFilter
	At     time.Time
}

func (BroadcastDNDChanged) broadcastMarker() {}

// BroadcastAuthorizationRequired is emitted when a call was redirected to the
// policy-access settings surface.
type BroadcastAuthorizationRequired struct {
	Method string
	At     time.Time
}

func (BroadcastAuthorizationRequired) broadcastMarker() {}

// BroadcastCallRejected is emitted when the platform rejected a call.
type BroadcastCallRejected struct {
	Method string
	Reason string
	At     time.Time
}

func (BroadcastCallRejected) broadcastMarker() {}

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	State      *DaemonState
	Broadcasts []StateBroadcast
}

// Reduce folds a bridge Result into the state. It performs no I/O and never
// mutates its input.
func Reduce(state *DaemonState, res Result, at time.Time) ReduceResult {
	next := DaemonState{}
	if state != nil {
		next = *state
	}

	next.Calls++
	next.LastMethod = res.Command.String()
	next.LastOutcome = res.Outcome
	next.LastAt = at

	var out []StateBroadcast

	switch res.Outcome {
	case OutcomeApplied:
		changed := !next.FilterKnown || next.Filter != res.Filter
		next.Filter = res.Filter
		next.FilterKnown = true
		next.FilterAt = at
		if changed {
			out = append(out, BroadcastDNDChanged{Filter: res.Filter, At: at})
		}

	case OutcomeRedirectedForAuthorization:
		next.Redirects++
		out = append(out, BroadcastAuthorizationRequired{Method: res.Command.String(), At: at})

	case OutcomeRejected:
		next.Rejections++
		reason := "rejected"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		out = append(out, BroadcastCallRejected{Method: res.Command.String(), Reason: reason, At: at})
	}

	return ReduceResult{State: &next, Broadcasts: out}
}
