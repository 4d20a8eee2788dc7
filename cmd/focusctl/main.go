package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ============================================================================
// focusctl - Command-line client for the focusd method channel
// ============================================================================
// Usage:
//   focusctl enable
//   focusctl disable
//   focusctl call <method>
//
// Options:
//   -socket PATH    Unix domain socket path (default: $XDG_RUNTIME_DIR/focusd.sock)
//   -channel NAME   Method channel name (default: focus_mode/dnd)
// ============================================================================

// MethodCall / MethodResponse mirror the daemon's wire types (standalone binary).
type MethodCall struct {
	Channel string `json:"channel,omitempty"`
	Method  string `json:"method"`
	ID      string `json:"id,omitempty"`
}

type MethodResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
	Filter  string `json:"filter,omitempty"`
	Error   string `json:"error,omitempty"`
}

var errNotImplemented = errors.New("not implemented by daemon")

func defaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "focusd.sock")
}

func main() {
	socketPath := defaultSocketPath()
	channel := "focus_mode/dnd"

	args := os.Args[1:]
	for len(args) > 0 {
		switch args[0] {
		case "-socket", "--socket":
			if len(args) < 2 {
				fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
				os.Exit(1)
			}
			socketPath = args[1]
			args = args[2:]
			continue
		case "-channel", "--channel":
			if len(args) < 2 {
				fmt.Fprintf(os.Stderr, "error: -channel requires an argument\n")
				os.Exit(1)
			}
			channel = args[1]
			args = args[2:]
			continue
		}
		break
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var method string
	switch args[0] {
	case "enable", "on":
		method = "enableDND"

	case "disable", "off":
		method = "disableDND"

	case "call":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: call requires a method name\n")
			os.Exit(1)
		}
		method = args[1]

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := call(ctx, socketPath, MethodCall{Channel: channel, Method: method})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}

	switch resp.Outcome {
	case "redirected_for_authorization":
		fmt.Println("ok (permission required: grant access in the settings that just opened, then retry)")
	default:
		fmt.Println("ok")
	}
}

func call(ctx context.Context, socketPath string, c MethodCall) (MethodResponse, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return MethodResponse{}, fmt.Errorf("connect to %s: %w (is focusd running?)", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return MethodResponse{}, fmt.Errorf("marshal call: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return MethodResponse{}, fmt.Errorf("send call: %w", err)
	}

	var resp MethodResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return MethodResponse{}, fmt.Errorf("decode response: %w", err)
	}

	switch resp.Status {
	case "ok":
		return resp, nil
	case "not_implemented":
		return resp, fmt.Errorf("%s: %w", c.Method, errNotImplemented)
	default:
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
}

// exitCode maps a call error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errNotImplemented):
		return 2
	default:
		return 1
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `focusctl - Control Do Not Disturb through the focusd daemon

Usage:
  focusctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: $XDG_RUNTIME_DIR/focusd.sock)
  -channel NAME   Method channel name (default: focus_mode/dnd)

Commands:
  enable, on          Enable Do Not Disturb
  disable, off        Disable Do Not Disturb
  call <method>       Send a raw method call
  help, -h, --help    Show this help message

Exit status:
  0 ok, 1 error, 2 method not implemented by the daemon

Examples:
  focusctl enable
  focusctl -socket /run/user/1000/focusd.sock off
`)
}
