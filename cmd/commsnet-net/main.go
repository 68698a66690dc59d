// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// commsnet-net joins a voice net from the terminal and streams session
// state to stdout: one status line per engine transition plus the
// ordered roster. Intended for rehearsal, debugging, and headless
// monitoring; the interactive console lives in commsnet-console.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/vanguard-fleet/commsnet/audit"
	"github.com/vanguard-fleet/commsnet/lib/config"
	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/lib/version"
	"github.com/vanguard-fleet/commsnet/netdir"
	"github.com/vanguard-fleet/commsnet/policy"
	"github.com/vanguard-fleet/commsnet/transport"
	"github.com/vanguard-fleet/commsnet/voice"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var netFlag string
	var userFlag string
	var callsignFlag string
	var rankFlag string
	var adminFlag bool
	var listenOnly bool

	flagSet := pflag.NewFlagSet("commsnet-net", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to commsnet.yaml (default: $COMMSNET_CONFIG)")
	flagSet.StringVar(&netFlag, "net", "", "net code to join (e.g. CMD-1)")
	flagSet.StringVar(&userFlag, "user", "", "local member's user ID")
	flagSet.StringVar(&callsignFlag, "callsign", "", "local member's callsign")
	flagSet.StringVar(&rankFlag, "rank", "Scout", "local member's rank")
	flagSet.BoolVar(&adminFlag, "admin", false, "join with admin override")
	flagSet.BoolVar(&listenOnly, "listen-only", false, "join with the microphone disabled")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other commsnet
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("commsnet-net")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if netFlag == "" || userFlag == "" || callsignFlag == "" {
		return fmt.Errorf("--net, --user, and --callsign are required")
	}

	code, err := ref.ParseNetCode(netFlag)
	if err != nil {
		return err
	}
	user, err := ref.ParseUserID(userFlag)
	if err != nil {
		return err
	}
	rank, ok := policy.ParseRank(rankFlag)
	if !ok {
		return fmt.Errorf("unknown rank %q", rankFlag)
	}
	member := policy.Member{
		User:     user,
		Callsign: callsignFlag,
		Rank:     rank,
		Admin:    adminFlag,
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Environment == config.Development {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	directory, err := netdir.LoadFile(cfg.Directory.NetsFile, logger)
	if err != nil {
		return fmt.Errorf("loading net directory: %w", err)
	}

	sink, closeSink, err := buildAuditSink(cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	manager := voice.NewManager(voice.ManagerOptions{
		Directory:      directory,
		Member:         member,
		Factory:        transportFactory(cfg.Transport, logger),
		Backend:        string(cfg.Transport.Backend),
		ConnectTimeout: cfg.Session.ConnectTimeout,
		Audit:          sink,
		Logger:         logger,
	})
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := manager.Join(ctx, code)
	if err != nil {
		return fmt.Errorf("joining %s: %w", code, err)
	}
	if listenOnly {
		session.SetMicEnabled(false)
	}

	printStatus(session)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("leaving net")
			return session.Leave(context.Background())
		case <-session.Changed():
			printStatus(session)
			switch session.State() {
			case voice.StateIdle:
				return nil
			case voice.StateError:
				if sessionError := session.LastError(); sessionError != nil {
					return sessionError
				}
				return fmt.Errorf("session failed")
			}
		}
	}
}

// loadConfig prefers the --config flag and falls back to the
// COMMSNET_CONFIG environment variable.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// transportFactory builds the per-attempt transport constructor for
// the configured backend. Each call makes a fresh transport: they are
// single-use.
func transportFactory(cfg config.TransportConfig, logger *slog.Logger) voice.TransportFactory {
	if cfg.Backend == config.Live {
		tokens := &transport.HTTPTokenService{Endpoint: cfg.TokenURL}
		return func() transport.Transport {
			return transport.NewLive(transport.LiveOptions{
				SFUURL:     cfg.SFUURL,
				Tokens:     tokens,
				HTTPClient: &http.Client{Timeout: 30 * time.Second},
				Logger:     logger,
			})
		}
	}
	return func() transport.Transport {
		return transport.NewSimulated(transport.SimulatedOptions{
			ConnectLatency:   cfg.ConnectLatency,
			SpeakingInterval: cfg.SpeakingInterval,
			Logger:           logger,
		})
	}
}

// buildAuditSink returns the configured sink and a close function. A
// configured path gets the hash-chained file sink; otherwise audit
// events ride the structured log.
func buildAuditSink(cfg config.AuditConfig, logger *slog.Logger) (audit.Sink, func(), error) {
	if cfg.Path == "" {
		return &audit.SlogSink{Logger: logger}, func() {}, nil
	}
	fileSink, err := audit.NewFileSink(cfg.Path, cfg.Buffer, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit stream: %w", err)
	}
	return fileSink, func() {
		if err := fileSink.Close(); err != nil {
			logger.Warn("closing audit stream", "error", err)
		}
	}, nil
}

// printStatus writes the status chip line and the ordered roster.
func printStatus(session *voice.Session) {
	fmt.Println(session.Chip().String())
	for _, participant := range session.Participants() {
		marker := " "
		if participant.Speaking {
			marker = "*"
		}
		local := ""
		if participant.Local {
			local = " (you)"
		}
		muted := ""
		if participant.Muted {
			muted = " [muted]"
		}
		fmt.Printf("  %s %s%s%s\n", marker, participant.Callsign, local, muted)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	var usage strings.Builder
	usage.WriteString(`commsnet-net — join a voice net from the terminal.

Joins the given net as the given member and streams session state to
stdout until interrupted. Configuration comes from --config or the
COMMSNET_CONFIG environment variable.

Usage:
  commsnet-net --net CMD-1 --user u-17 --callsign Nightjar --rank Voyager

Flags:
`)
	usage.WriteString(flagSet.FlagUsages())
	fmt.Fprint(os.Stderr, usage.String())
}
