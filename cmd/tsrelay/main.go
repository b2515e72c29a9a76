// File: cmd/tsrelay/main.go
// Package main
// Single-source TCP fan-out relay: accepts one producer on the source port
// and replays its packet stream to every client on the client port.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momentics/tsrelay/affinity"
	"github.com/momentics/tsrelay/api"
	"github.com/momentics/tsrelay/control"
	"github.com/momentics/tsrelay/internal/logging"
	"github.com/momentics/tsrelay/internal/transport"
	"github.com/momentics/tsrelay/reactor"
	"github.com/momentics/tsrelay/relay"
)

func main() {
	os.Exit(run(os.Args[0], os.Args[1:], os.Stdout))
}

// cliArgs is the parsed command line.
type cliArgs struct {
	configPath string
	ports      []int // empty, or source, client and optionally latency_ms
}

func parseArgs(args []string, out io.Writer) (cliArgs, error) {
	var ca cliArgs
	fs := flag.NewFlagSet("tsrelay", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&ca.configPath, "config", "", "path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return ca, err
	}
	rest := fs.Args()
	switch len(rest) {
	case 0, 2, 3:
	default:
		return ca, fmt.Errorf("expected <source_port> <client_port> [latency_ms], got %d arguments", len(rest))
	}
	for _, s := range rest {
		n, err := strconv.Atoi(s)
		if err != nil {
			return ca, fmt.Errorf("%q is not a number", s)
		}
		ca.ports = append(ca.ports, n)
	}
	return ca, nil
}

// apply lets positional arguments override the loaded configuration.
func (ca cliArgs) apply(cfg *control.Config) {
	if len(ca.ports) >= 2 {
		cfg.SourcePort, cfg.ClientPort = ca.ports[0], ca.ports[1]
	}
	if len(ca.ports) == 3 {
		cfg.LatencyMS = ca.ports[2]
	}
}

func usage(prog string, out io.Writer) {
	fmt.Fprintf(out, "Usage: %s [-config file] <source_port> <client_port> [latency_ms]\n", prog)
}

func loadConfig(prog string, args []string, out io.Writer) (*control.Config, bool) {
	ca, err := parseArgs(args, out)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(out, err)
		}
		usage(prog, out)
		return nil, false
	}
	cfg, err := control.LoadConfig(ca.configPath)
	if err != nil {
		fmt.Fprintln(out, err)
		return nil, false
	}
	ca.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(out, "invalid configuration:", err)
		usage(prog, out)
		return nil, false
	}
	return cfg, true
}

// run returns the process exit code: 0 after an orderly shutdown, 1 when
// setup fails or the readiness wait breaks down.
func run(prog string, args []string, out io.Writer) int {
	cfg, ok := loadConfig(prog, args, out)
	if !ok {
		return 1
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintln(out, "logging setup failed:", err)
		return 1
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	if err := control.RegisterPlatformProbes(probes); err != nil {
		logger.Warn("platform probes unavailable", "error", err)
	}

	if cfg.Stats.Listen != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := control.NewStatsServer(metrics, probes, logger)
		if err := srv.Start(cfg.Stats.Listen); err != nil {
			logger.Error("stats server failed", "addr", cfg.Stats.Listen, "error", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	rcfg := cfg.Relay()
	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go control.NewReporter(metrics, probes, logger, rcfg.StatsInterval).Run(reporterCtx)

	return serve(ctx, cfg, rcfg, logger, metrics)
}

// serve performs socket setup, waits for the source and runs the hub.
func serve(ctx context.Context, cfg *control.Config, rcfg relay.Config, logger *slog.Logger, metrics *control.MetricsRegistry) int {
	poller, err := reactor.NewPoller(rcfg.MaxClients + 2)
	if err != nil {
		logger.Error("readiness poller setup failed", "error", err)
		return 1
	}

	srcLn, err := transport.Listen(cfg.SourcePort, 1)
	if err != nil {
		poller.Close()
		logger.Error("source listener setup failed", "port", cfg.SourcePort, "error", err)
		return 1
	}
	logger.Info("waiting for source", "port", srcLn.Port())

	src, err := relay.AwaitSource(ctx, srcLn, poller, rcfg.PollTimeout)
	if err != nil {
		srcLn.Close()
		poller.Close()
		if ctx.Err() != nil {
			logger.Info("hub terminated", "reason", "shutdown before source connected")
			return 0
		}
		logger.Error("source accept failed", "error", err)
		return 1
	}
	logger.Info("source connected", "remote", src.RemoteAddr())

	clientLn, err := transport.Listen(cfg.ClientPort, 0)
	if err != nil {
		src.Close()
		srcLn.Close()
		poller.Close()
		logger.Error("client listener setup failed", "port", cfg.ClientPort, "error", err)
		return 1
	}

	hub, err := relay.New(rcfg, poller, relay.Endpoints{
		SourceListener: srcLn,
		Source:         src,
		ClientListener: clientLn,
	}, relay.WithLogger(logger), relay.WithMetrics(metrics))
	if err != nil {
		clientLn.Close()
		src.Close()
		srcLn.Close()
		poller.Close()
		logger.Error("hub setup failed", "error", err)
		return 1
	}
	logger.Info("listening for clients", "port", clientLn.Port(), "latency_ms", cfg.LatencyMS)

	// Pin only the relay loop; everything else is already running.
	if unpin, err := affinity.Pin(cfg.CPU); err != nil {
		logger.Warn("cpu pinning failed", "cpu", cfg.CPU, "error", err)
	} else {
		defer unpin()
	}

	err = hub.Run(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, api.ErrSourceLost):
		logger.Warn("source disconnected", "error", err)
		return 0
	default:
		logger.Error("hub stopped", "error", err)
		return 1
	}
}
