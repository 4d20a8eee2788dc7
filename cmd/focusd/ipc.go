package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Method Channel
// ============================================================================
// Local UI clients (and focusctl) talk to the daemon over a Unix domain
// socket.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"channel": "focus_mode/dnd", "method": "enableDND"}
//   - Server responds: {"status": "ok", "outcome": "applied", "filter": "none"}
// Several calls may be sent on one connection; each gets one response line.
// ============================================================================

// runIPCServer serves the method channel on socketPath until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	// Remove a stale socket left behind by a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Only the session owner may toggle DND.
	if err := os.Chmod(socketPath, 0600); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection serves one client connection.
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	if cred, ok := peerCredentials(conn); ok {
		logger.Debug("IPC connection", "pid", cred.PID, "uid", cred.UID)
	} else {
		logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())
	}

	// Unblock the scanner on shutdown.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxIPCLineBytes)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		var resp MethodResponse
		call, err := DecodeMethodCall([]byte(line))
		if err != nil {
			resp = errorResponse("", fmt.Errorf("parse method call: %w", err))
		} else {
			resp, err = submitCall(connCtx, events, call)
			if err != nil {
				// Shutting down; nothing useful to send.
				logger.Debug("IPC call abandoned", "method", call.Method, "error", err)
				return
			}
		}

		if encErr := encoder.Encode(resp); encErr != nil {
			logger.Error("IPC failed to send response", "error", encErr)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			logger.Warn("IPC line too long; closing connection", "limit", maxIPCLineBytes)
			_ = encoder.Encode(errorResponse("", fmt.Errorf("method call exceeds %d bytes", maxIPCLineBytes)))
			return
		}
		if connCtx.Err() == nil {
			logger.Warn("IPC read error", "error", err)
		}
		return
	}

	logger.Debug("IPC connection closed")
}

// ============================================================================
// IPC Client
// ============================================================================

// SendMethodCall sends one call to the daemon and returns its response.
func SendMethodCall(ctx context.Context, socketPath string, call MethodCall) (MethodResponse, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return MethodResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	data, err := json.Marshal(call)
	if err != nil {
		return MethodResponse{}, fmt.Errorf("marshal method call: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return MethodResponse{}, fmt.Errorf("send method call: %w", err)
	}

	var resp MethodResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return MethodResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
