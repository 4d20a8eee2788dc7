package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
// Method Channel - wire envelope and boundary decoding
// ============================================================================
// Protocol: one JSON object per call.
//   - Client sends:  {"channel": "focus_mode/dnd", "method": "enableDND", "id": "1"}
//   - Server replies: {"id": "1", "status": "ok", "outcome": "applied", "filter": "none"}
//
// status is one of:
//   - "ok"               the call completed (see outcome for what happened)
//   - "not_implemented"  unknown channel or method; nothing was touched
//   - "error"            the platform rejected the call
// ============================================================================

// ErrUnknownChannel is returned for calls addressed to a channel this daemon
// does not serve.
var ErrUnknownChannel = errors.New("unknown channel")

// errPolicyAccessNotGranted is reported in strict mode when the call was
// redirected to the settings surface instead of being applied.
var errPolicyAccessNotGranted = errors.New("policy access not granted")

const (
	StatusOK             = "ok"
	StatusNotImplemented = "not_implemented"
	StatusError          = "error"
)

// MethodCall is a single request on the method channel.
type MethodCall struct {
	Channel string `json:"channel,omitempty"` // empty means the default channel
	Method  string `json:"method"`
	ID      string `json:"id,omitempty"` // echoed back in the response
}

// MethodResponse is the reply to a MethodCall.
type MethodResponse struct {
	ID      string  `json:"id,omitempty"`
	Status  string  `json:"status"`
	Outcome Outcome `json:"outcome,omitempty"`
	Filter  string  `json:"filter,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// DecodeMethodCall parses a JSON method call.
func DecodeMethodCall(data []byte) (MethodCall, error) {
	var call MethodCall
	if err := json.Unmarshal(data, &call); err != nil {
		return MethodCall{}, fmt.Errorf("unmarshal method call: %w", err)
	}
	return call, nil
}

// MethodChannel binds a channel name to a bridge.
type MethodChannel struct {
	name   string
	strict bool
	bridge *Bridge
}

// NewMethodChannel returns a channel served by bridge. With strict set, calls
// redirected for authorization are reported as errors instead of successes.
func NewMethodChannel(name string, strict bool, bridge *Bridge) *MethodChannel {
	return &MethodChannel{name: name, strict: strict, bridge: bridge}
}

// Name returns the channel name.
func (c *MethodChannel) Name() string { return c.name }

// Dispatch decodes the call and runs it through the bridge. The returned
// Result is nil when the call was rejected before reaching the bridge.
func (c *MethodChannel) Dispatch(ctx context.Context, call MethodCall) (MethodResponse, *Result) {
	if call.Channel != "" && call.Channel != c.name {
		return notImplementedResponse(call.ID, fmt.Errorf("channel %q: %w", call.Channel, ErrUnknownChannel)), nil
	}

	cmd, err := ParseCommand(call.Method)
	if err != nil {
		return notImplementedResponse(call.ID, err), nil
	}

	res := c.bridge.Handle(ctx, cmd)
	return c.respond(call.ID, res), &res
}

func (c *MethodChannel) respond(id string, res Result) MethodResponse {
	resp := MethodResponse{
		ID:      id,
		Outcome: res.Outcome,
	}

	switch res.Outcome {
	case OutcomeApplied:
		resp.Status = StatusOK
		resp.Filter = string(res.Filter)

	case OutcomeRedirectedForAuthorization:
		if c.strict {
			resp.Status = StatusError
			resp.Error = errPolicyAccessNotGranted.Error()
		} else {
			resp.Status = StatusOK
		}

	default:
		resp.Status = StatusError
		if res.Err != nil {
			resp.Error = res.Err.Error()
		} else {
			resp.Error = "rejected"
		}
	}

	return resp
}

func notImplementedResponse(id string, err error) MethodResponse {
	return MethodResponse{ID: id, Status: StatusNotImplemented, Error: err.Error()}
}

func errorResponse(id string, err error) MethodResponse {
	return MethodResponse{ID: id, Status: StatusError, Error: err.Error()}
}
