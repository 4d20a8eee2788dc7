package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("focusd v%s\n", version)
	fmt.Println("Do Not Disturb bridge daemon for focus-mode clients")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  focusd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Serves the \"focus_mode/dnd\" method channel (enableDND / disableDND) over a")
	fmt.Println("  Unix socket and HTTP, and toggles the desktop's Do Not Disturb setting.")
	fmt.Println("  When the daemon is not allowed to change the setting, the user is sent to")
	fmt.Println("  the notification settings instead.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (default $XDG_CONFIG_HOME/focusd/config.yaml if present)")
	fmt.Println()
	fmt.Println("  -backend string")
	fmt.Println("        Policy backend: auto|gnome|dunst (default \"auto\")")
	fmt.Println()
	fmt.Println("  -channel string")
	fmt.Printf("        Method channel name (default %q)\n", defaultChannelName)
	fmt.Println()
	fmt.Println("  -strict-authorization")
	fmt.Println("        Report calls redirected to the settings as errors instead of successes")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath())
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        HTTP listen address, empty disables (default %q)\n", defaultHTTPListen)
	fmt.Println()
	fmt.Println("  -mqtt-broker string")
	fmt.Println("        MQTT broker URL (e.g. tcp://broker.home.arpa:1883); enables MQTT when set")
	fmt.Println()
	fmt.Println("  -mqtt-topic string")
	fmt.Printf("        MQTT state topic (default %q)\n", defaultMQTTTopic)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-format string")
	fmt.Println("        Log format: text, json (default \"text\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with auto-detected backend")
	fmt.Println("  focusd")
	fmt.Println()
	fmt.Println("  # dunst, no HTTP, publish state to MQTT")
	fmt.Println("  focusd -backend dunst -http-listen \"\" -mqtt-broker tcp://127.0.0.1:1883")
	fmt.Println()
	fmt.Println("  # Toggle from a shell")
	fmt.Println("  focusctl enable")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath  = flag.String("config", "", "YAML config file")
		backend     = flag.String("backend", backendAuto, "Policy backend: auto|gnome|dunst")
		channelName = flag.String("channel", defaultChannelName, "Method channel name")
		strict      = flag.Bool("strict-authorization", false, "Report calls redirected to the settings as errors")
		ipcSocket   = flag.String("ipc-socket", defaultSocketPath(), "Unix domain socket path for IPC")
		httpListen  = flag.String("http-listen", defaultHTTPListen, "HTTP listen address (empty disables)")
		mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL; enables MQTT when set")
		mqttTopic   = flag.String("mqtt-topic", defaultMQTTTopic, "MQTT state topic")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFormat   = flag.String("log-format", "text", "Log format: text, json")
		_           = flag.Bool("version", false, "Print version and exit")
		_           = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			o.BackendType = backend
		case "channel":
			o.ChannelName = channelName
		case "strict-authorization":
			o.StrictAuthorization = strict
		case "ipc-socket":
			o.IPCSocketPath = ipcSocket
		case "http-listen":
			o.HTTPListen = httpListen
		case "mqtt-broker":
			enabled := *mqttBroker != ""
			o.MQTTEnabled = &enabled
			o.MQTTBroker = mqttBroker
		case "mqtt-topic":
			o.MQTTTopic = mqttTopic
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-format":
			o.LogFormat = logFormat
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("focusd stopped", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the default config file when path is empty and
// that file exists. Without a file, defaults are used.
func loadConfig(path string) (Config, error) {
	if path != "" {
		return LoadConfigFile(path)
	}
	def := defaultConfigPath()
	if def == "" {
		return DefaultConfig(), nil
	}
	cfg, err := LoadConfigFile(def)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// run wires the components and blocks until SIGINT/SIGTERM or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := execRunner{}

	policy, closer, err := openPolicyService(cfg.Backend, runner, logger)
	if err != nil {
		return fmt.Errorf("open policy backend: %w", err)
	}
	defer closer.Close()

	navigator := newSettingsNavigator(cfg.Settings, runner, beeepNotify, logger)
	bridge := NewBridge(policy, navigator, logger)
	channel := NewMethodChannel(cfg.Channel.Name, cfg.Channel.StrictAuthorization, bridge)

	// Everything that can fail to open is opened before any goroutine starts.
	var pub *mqttPublisher
	if cfg.MQTT.Enabled {
		pub, err = newMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			return err
		}
	}

	events := make(chan Event, eventQueueSize)
	var sinks []chan<- StateBroadcast

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Listen != "" {
		wsSrc := make(chan StateBroadcast, broadcastQueueSize)
		sinks = append(sinks, wsSrc)

		stateWS := NewStateServer(logger, events, HubConfig{})
		g.Go(func() error { stateWS.Hub().Run(ctx); return nil })
		g.Go(func() error { RunBroadcaster(ctx, stateWS.Hub(), wsSrc, logger); return nil })

		mux := newHTTPMux(events, stateWS, logger)
		g.Go(func() error { return runHTTPServer(ctx, cfg.HTTP.Listen, mux, logger) })
	}

	if pub != nil {
		mqttSrc := make(chan StateBroadcast, broadcastQueueSize)
		sinks = append(sinks, mqttSrc)
		g.Go(func() error { pub.Run(ctx, mqttSrc); return nil })
	}

	g.Go(func() error {
		runDaemon(ctx, events, channel, &DaemonState{}, sinks, logger)
		return nil
	})
	g.Go(func() error { return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger) })

	logger.Info("focusd started",
		"version", version,
		"channel", cfg.Channel.Name,
		"backend", cfg.Backend.Type,
		"strict_authorization", cfg.Channel.StrictAuthorization,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Listen,
		"mqtt", cfg.MQTT.Enabled)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
