package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/BelaPlatform/watcher-go/internal/watcher/frame"
)

var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into
// manager.Config, mirroring the rtmp-server command's cliConfig/parseFlags
// split (flags.go separate from main.go's wiring).
type cliConfig struct {
	listenAddr    string
	logLevel      string
	sampleRate    float64
	logDir        string
	frameCapacity uint
	tickPeriodMS  uint
	showVersion   bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("watcherd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.listenAddr, "listen", ":8081", "HTTP/WebSocket listen address for the control channel")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.Float64Var(&cfg.sampleRate, "sample-rate", 44100, "Sample rate published in the list response")
	fs.StringVar(&cfg.logDir, "log-dir", "logs", "Directory new watcher log files are created in")
	fs.UintVar(&cfg.frameCapacity, "frame-capacity", uint(frame.Capacity), "Informational only: the wire frame size B is fixed by the frame format")
	fs.UintVar(&cfg.tickPeriodMS, "tick-period-ms", 1, "Period, in milliseconds, of the simulated audio callback")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	if cfg.tickPeriodMS == 0 {
		return nil, errors.New("tick-period-ms must be at least 1")
	}
	if cfg.frameCapacity != uint(frame.Capacity) {
		return nil, fmt.Errorf("frame-capacity is fixed at %d bytes by the wire format, got %d", frame.Capacity, cfg.frameCapacity)
	}

	return cfg, nil
}
