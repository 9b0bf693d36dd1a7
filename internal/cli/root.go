// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/config"
	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/ollama"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// startServerWait bounds how long --start-server waits for `ollama serve`.
const startServerWait = 15 * time.Second

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	url         string
	model       string
	dataDir     string
	logLevel    string
	noVim       bool
	startServer bool
}

// env is the state built once flags are parsed.
type env struct {
	opts     globalOptions
	cfg      *config.Config
	client   *ollama.Client
	log      *zap.Logger
	flushLog func()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	rt := &env{}

	root := &cobra.Command{
		Use:   "ollama-tui",
		Short: "Terminal client for a local Ollama server",
		Long: `ollama-tui is a terminal client for a locally running Ollama server.

Without a subcommand it opens the full-screen UI: chat with streaming replies,
switch and download models, watch CPU, memory and GPU usage, and save or
reload conversations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), rt)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.opts.configPath, "config", "", "config file (default ~/.ollama_tui/config.toml)")
	flags.StringVar(&rt.opts.url, "url", "", "Ollama base URL")
	flags.StringVarP(&rt.opts.model, "model", "m", "", "model to start with")
	flags.StringVar(&rt.opts.dataDir, "data-dir", "", "directory for chats, parameters, history and logs")
	flags.StringVar(&rt.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&rt.opts.noVim, "no-vim", false, "disable vim-style keys in the chat view")
	flags.BoolVar(&rt.opts.startServer, "start-server", false, "run `ollama serve` when the server is not reachable")

	root.AddCommand(
		newChatCommand(rt),
		newModelsCommand(rt),
		newPullCommand(rt),
		newRemoveCommand(rt),
		newSessionsCommand(rt),
		newConfigCommand(rt),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// =============================================================================
// SETUP
// =============================================================================

// loadConfig reads the config file and applies flag overrides.
func (rt *env) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rt.opts.configPath)
	if err != nil {
		return nil, err
	}

	if rt.opts.url != "" {
		cfg.OllamaURL = strings.TrimRight(rt.opts.url, "/")
	}
	if rt.opts.model != "" {
		cfg.DefaultModel = rt.opts.model
	}
	if rt.opts.dataDir != "" {
		cfg.DataDir = rt.opts.dataDir
	}
	if rt.opts.logLevel != "" {
		cfg.Log.Level = strings.ToLower(rt.opts.logLevel)
	}
	if rt.opts.noVim {
		cfg.UI.VimMode = false
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func (rt *env) setup() error {
	cfg, err := rt.loadConfig()
	if err != nil {
		return err
	}
	rt.cfg = cfg

	flush, err := logging.Init(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.LogFile(),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	rt.flushLog = flush
	rt.log = logging.Named("cli")

	rt.client = ollama.NewClient(ollama.ClientConfig{
		BaseURL:       cfg.OllamaURL,
		MaxAttempts:   cfg.Retry.MaxAttempts,
		RetryDelay:    cfg.Retry.InitialBackoff.Duration,
		MaxRetryDelay: cfg.Retry.MaxBackoff.Duration,
	})

	rt.log.Info("starting",
		zap.String("version", Version),
		zap.String("ollama_url", cfg.OllamaURL),
		zap.String("data_dir", cfg.DataDir))
	return nil
}

func (rt *env) teardown() {
	if rt.flushLog != nil {
		rt.flushLog()
		rt.flushLog = nil
	}
}

// ensureBackend checks the server, starting it when --start-server is set.
func (rt *env) ensureBackend(ctx context.Context) error {
	err := rt.client.CheckRunning(ctx)
	if err == nil {
		return nil
	}
	if !rt.opts.startServer {
		return fmt.Errorf("%w at %s (start it with `ollama serve` or pass --start-server)", err, rt.client.BaseURL())
	}

	rt.log.Info("ollama not reachable, starting server", zap.Error(err))
	if err := rt.client.StartServer(ctx, startServerWait); err != nil {
		return err
	}
	return nil
}
