package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Every method call, whatever transport it arrived on, is executed here, one
// at a time and in arrival order. The loop is the only owner of DaemonState.
//
//   transport -> MethodCallEvent -> MethodChannel.Dispatch -> Reduce -> broadcasts
//
// Broadcast sinks (websocket, MQTT) are fed without blocking; a slow sink
// loses messages rather than stalling calls.
//
// ============================================================================

// Event is the input to the daemon loop.
type Event interface {
	eventMarker()
}

// MethodCallEvent asks the loop to execute a call and reply on Reply.
type MethodCallEvent struct {
	Call  MethodCall
	Reply chan<- MethodResponse
}

func (MethodCallEvent) eventMarker() {}

// RequestStateSnapshot asks the loop for a copy of the current state.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// runDaemon processes events until ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	channel *MethodChannel,
	state *DaemonState,
	sinks []chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		state = &DaemonState{}
	}

	publish := func(bs []StateBroadcast) {
		for _, b := range bs {
			for _, sink := range sinks {
				select {
				case sink <- b:
				default:
					logger.Warn("broadcast sink full, dropping state change")
				}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}

			switch e := ev.(type) {
			case MethodCallEvent:
				resp, res := channel.Dispatch(ctx, e.Call)
				if res != nil {
					rr := Reduce(state, *res, time.Now())
					state = rr.State
					publish(rr.Broadcasts)
				}
				logger.Debug("method call handled",
					"channel", channel.Name(),
					"method", e.Call.Method,
					"status", resp.Status,
					"outcome", resp.Outcome)
				deliver(e.Reply, resp, logger)

			case RequestStateSnapshot:
				if e.Reply == nil {
					logger.Warn("state snapshot requested with nil reply channel")
					continue
				}
				select {
				case e.Reply <- state.Snapshot():
				default:
					logger.Warn("state snapshot reply channel not ready; dropping snapshot")
				}

			default:
				logger.Warn("unknown daemon event", "type", fmt.Sprintf("%T", ev))
			}
		}
	}
}

func deliver(reply chan<- MethodResponse, resp MethodResponse, logger *slog.Logger) {
	if reply == nil {
		return
	}
	select {
	case reply <- resp:
	default:
		logger.Warn("method call reply channel not ready; dropping response", "id", resp.ID)
	}
}

// submitCall hands call to the daemon loop and waits for its response.
func submitCall(ctx context.Context, events chan<- Event, call MethodCall) (MethodResponse, error) {
	reply := make(chan MethodResponse, 1)

	select {
	case <-ctx.Done():
		return MethodResponse{}, ctx.Err()
	case events <- MethodCallEvent{Call: call, Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return MethodResponse{}, ctx.Err()
	case resp := <-reply:
		return resp, nil
	}
}

// requestSnapshot fetches a state snapshot through the daemon loop.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}
