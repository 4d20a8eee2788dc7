package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ============================================================================
// HTTP transport
// ============================================================================
// The same method channel as the unix socket, for callers that speak HTTP
// (automation, browser-based UIs):
//
//   POST /channel/{method}[?channel=...&id=...]  -> MethodResponse
//   GET  /state                                   -> StateSnapshot
//   GET  /ws                                      -> state websocket
// ============================================================================

// newHTTPMux wires the HTTP routes. ws may be nil.
func newHTTPMux(events chan<- Event, ws http.Handler, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /channel/{method}", func(w http.ResponseWriter, r *http.Request) {
		call := MethodCall{
			Channel: r.URL.Query().Get("channel"),
			Method:  r.PathValue("method"),
			ID:      r.URL.Query().Get("id"),
		}

		resp, err := submitCall(r.Context(), events, call)
		if err != nil {
			logger.Debug("HTTP call abandoned", "method", call.Method, "error", err)
			http.Error(w, "daemon unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, httpStatus(resp), resp, logger)
	})

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		snap, err := requestSnapshot(ctx, events)
		if err != nil {
			http.Error(w, "daemon unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap, logger)
	})

	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	return mux
}

// httpStatus maps a channel status onto an HTTP status code.
func httpStatus(resp MethodResponse) int {
	switch resp.Status {
	case StatusOK:
		return http.StatusOK
	case StatusNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("HTTP response write failed", "error", err)
	}
}

// runHTTPServer serves handler on addr and shuts down gracefully when ctx is
// canceled.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger.Info("HTTP listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
