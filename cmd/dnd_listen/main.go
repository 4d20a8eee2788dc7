package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's state websocket frames.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3001/ws", "focusd state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read error: %v", err)
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}
			printFrame(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("closing...")
		writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}

func printFrame(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("%s\n", message)
		return
	}

	ts := time.Now()
	if env.Ts != nil {
		ts = env.Ts.Local()
	}
	stamp := ts.Format("15:04:05.000")

	switch env.Type {
	case "state_init":
		var snap struct {
			Filter      string `json:"filter"`
			FilterKnown bool   `json:"filter_known"`
			DNDEnabled  bool   `json:"dnd_enabled"`
		}
		_ = json.Unmarshal(env.Data, &snap)
		if !snap.FilterKnown {
			fmt.Printf("[%s] state: unknown (no call applied yet)\n", stamp)
			return
		}
		fmt.Printf("[%s] state: dnd=%s (filter %s)\n", stamp, onOff(snap.DNDEnabled), snap.Filter)

	case "dnd_changed":
		var d struct {
			Filter     string `json:"filter"`
			DNDEnabled bool   `json:"dnd_enabled"`
		}
		_ = json.Unmarshal(env.Data, &d)
		fmt.Printf("[%s] dnd %s (filter %s)\n", stamp, onOff(d.DNDEnabled), d.Filter)

	case "authorization_required":
		var d struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(env.Data, &d)
		fmt.Printf("[%s] %s needs policy access; settings opened\n", stamp, d.Method)

	case "call_rejected":
		var d struct {
			Method string `json:"method"`
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(env.Data, &d)
		fmt.Printf("[%s] %s rejected: %s\n", stamp, d.Method, d.Reason)

	default:
		fmt.Printf("[%s] %s %s\n", stamp, env.Type, env.Data)
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
