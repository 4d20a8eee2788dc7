package main

import (
	"errors"
	"fmt"
)

// ============================================================================
// Commands - closed set of method-channel operations
// ============================================================================
// Method names are decoded exactly once, at the channel boundary. Anything that
// is not one of the supported names never reaches the bridge.
// ============================================================================

// ErrNotImplemented is returned for method names the bridge does not support.
// It is a contract-negotiation signal, not an application failure.
var ErrNotImplemented = errors.New("not implemented")

// Command is a supported DND operation.
type Command int

const (
	CommandEnableDND Command = iota + 1
	CommandDisableDND
)

const (
	methodEnableDND  = "enableDND"
	methodDisableDND = "disableDND"
)

// ParseCommand maps a method name to a Command.
func ParseCommand(method string) (Command, error) {
	switch method {
	case methodEnableDND:
		return CommandEnableDND, nil
	case methodDisableDND:
		return CommandDisableDND, nil
	default:
		return 0, fmt.Errorf("method %q: %w", method, ErrNotImplemented)
	}
}

// String returns the wire method name.
func (c Command) String() string {
	switch c {
	case CommandEnableDND:
		return methodEnableDND
	case CommandDisableDND:
		return methodDisableDND
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Filter returns the interruption filter the command requests.
func (c Command) Filter() InterruptionFilter {
	if c == CommandEnableDND {
		return FilterBlocked
	}
	return FilterUnrestricted
}

// InterruptionFilter is the OS-owned notification interruption setting.
// Only the two values below are reachable.
type InterruptionFilter string

const (
	FilterBlocked      InterruptionFilter = "none" // all interruptions suppressed
	FilterUnrestricted InterruptionFilter = "all"  // no suppression
)

// Blocked reports whether the filter suppresses interruptions.
func (f InterruptionFilter) Blocked() bool { return f == FilterBlocked }
