// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// commsnet-console is the interactive terminal console for a voice
// net: a live status chip, the ordered roster, and push-to-talk
// controls. It drives the same session engine as commsnet-net; the
// difference is purely the surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

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

	flagSet := pflag.NewFlagSet("commsnet-console", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to commsnet.yaml (default: $COMMSNET_CONFIG)")
	flagSet.StringVar(&netFlag, "net", "", "net code to join (e.g. CMD-1)")
	flagSet.StringVar(&userFlag, "user", "", "local member's user ID")
	flagSet.StringVar(&callsignFlag, "callsign", "", "local member's callsign")
	flagSet.StringVar(&rankFlag, "rank", "Scout", "local member's rank")
	flagSet.BoolVar(&adminFlag, "admin", false, "join with admin override")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other commsnet
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("commsnet-console")
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
	if netFlag == "" || userFlag == "" || callsignFlag == "" {
		return fmt.Errorf("--net, --user, and --callsign are required")
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; use commsnet-net for headless monitoring")
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

	// The TUI owns the screen; keep the log quiet on stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

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

	session, err := manager.Join(context.Background(), code)
	if err != nil {
		return fmt.Errorf("joining %s: %w", code, err)
	}

	model := newModel(session)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}
	return session.Leave(context.Background())
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
// the configured backend.
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

// buildAuditSink returns the configured sink and a close function.
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

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `commsnet-console — interactive terminal console for a voice net.

Joins the given net and renders the session chip and roster, with
push-to-talk and mute controls on the keyboard. Configuration comes
from --config or the COMMSNET_CONFIG environment variable.

Usage:
  commsnet-console --net CMD-1 --user u-17 --callsign Nightjar --rank Voyager

Keys:
  t   toggle transmit (push-to-talk)
  m   toggle microphone mute
  r   retry after a session error
  q   leave the net and quit

Flags:
%s`, flagSet.FlagUsages())
}
