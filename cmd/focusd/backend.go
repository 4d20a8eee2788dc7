package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// openPolicyService builds the configured backend. The returned closer is
// never nil.
func openPolicyService(cfg BackendConfig, runner commandRunner, logger *slog.Logger) (PolicyService, io.Closer, error) {
	kind := cfg.Type
	if kind == backendAuto {
		kind = detectBackend(os.Getenv("XDG_CURRENT_DESKTOP"))
		logger.Info("policy backend detected", "backend", kind)
	}

	switch kind {
	case backendGnome:
		return newGnomePolicy(cfg.Gnome, runner), nopCloser{}, nil

	case backendDunst:
		d, err := newDunstPolicy()
		if err != nil {
			return nil, nopCloser{}, err
		}
		return d, d, nil

	default:
		return nil, nopCloser{}, fmt.Errorf("unknown backend %q", kind)
	}
}

// detectBackend picks a backend from XDG_CURRENT_DESKTOP, which is a
// colon-separated list such as "ubuntu:GNOME".
func detectBackend(desktop string) string {
	for _, d := range strings.Split(desktop, ":") {
		if strings.EqualFold(strings.TrimSpace(d), "gnome") {
			return backendGnome
		}
	}
	if desktop == "" {
		return backendGnome
	}
	return backendDunst
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
