package main

import (
	"context"
	"fmt"
	"log/slog"
)

// ============================================================================
// DND Bridge
// ============================================================================
// The bridge turns a decoded Command into a notification-policy mutation.
//
//   1. Ask the policy service whether access has been granted.
//   2. Not granted: open the policy-access settings surface (fire-and-forget)
//      and return RedirectedForAuthorization. No mutation happens.
//   3. Granted: set the interruption filter and return Applied.
//
// The bridge performs no retries and keeps no state. It is executed serially
// by the daemon loop.
// ============================================================================

// PolicyService is the platform notification-policy service.
type PolicyService interface {
	PolicyAccessGranted(ctx context.Context) (bool, error)
	SetInterruptionFilter(ctx context.Context, filter InterruptionFilter) error
}

// SettingsNavigator sends the user to the place where policy access is granted.
// Implementations must not wait for the user's decision.
type SettingsNavigator interface {
	OpenPolicyAccessSettings(ctx context.Context) error
}

// Outcome describes what a bridge call actually did.
type Outcome string

const (
	OutcomeApplied                    Outcome = "applied"
	OutcomeRedirectedForAuthorization Outcome = "redirected_for_authorization"
	OutcomeRejected                   Outcome = "rejected"
)

// Result is the bridge's answer to a single Command.
type Result struct {
	Command Command
	Outcome Outcome
	Filter  InterruptionFilter // requested filter; applied only when Outcome == OutcomeApplied
	Err     error              // set when Outcome == OutcomeRejected
}

// PlatformError wraps a failure reported by the policy service.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PlatformError) Unwrap() error { return e.Err }

// Bridge applies DND commands against a policy service.
type Bridge struct {
	policy    PolicyService
	navigator SettingsNavigator
	logger    *slog.Logger
}

// NewBridge returns a Bridge. A nil navigator disables the settings redirect
// (the call is still reported as redirected).
func NewBridge(policy PolicyService, navigator SettingsNavigator, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{policy: policy, navigator: navigator, logger: logger}
}

// Handle executes cmd.
func (b *Bridge) Handle(ctx context.Context, cmd Command) Result {
	res := Result{Command: cmd, Filter: cmd.Filter()}

	if b.policy == nil {
		res.Outcome = OutcomeRejected
		res.Err = errNoPolicyService{}
		return res
	}

	granted, err := b.policy.PolicyAccessGranted(ctx)
	if err != nil {
		b.logger.Error("policy access query failed", "method", cmd.String(), "error", err)
		res.Outcome = OutcomeRejected
		res.Err = &PlatformError{Op: "query policy access", Err: err}
		return res
	}

	if !granted {
		b.logger.Info("policy access not granted; opening settings", "method", cmd.String())
		if b.navigator != nil {
			if err := b.navigator.OpenPolicyAccessSettings(ctx); err != nil {
				b.logger.Warn("open policy access settings failed", "error", err)
			}
		}
		res.Outcome = OutcomeRedirectedForAuthorization
		return res
	}

	if err := b.policy.SetInterruptionFilter(ctx, res.Filter); err != nil {
		b.logger.Error("set interruption filter failed", "method", cmd.String(), "filter", res.Filter, "error", err)
		res.Outcome = OutcomeRejected
		res.Err = &PlatformError{Op: fmt.Sprintf("set interruption filter %q", res.Filter), Err: err}
		return res
	}

	b.logger.Debug("interruption filter applied", "method", cmd.String(), "filter", res.Filter)
	res.Outcome = OutcomeApplied
	return res
}

// errNoPolicyService indicates the bridge was built without a backend.
type errNoPolicyService struct{}

func (errNoPolicyService) Error() string { return "no notification policy service" }
