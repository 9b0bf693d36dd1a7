// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/jeranaias/ollama-tui/internal/generation"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/monitor"
	"github.com/jeranaias/ollama-tui/internal/storage"
	"github.com/jeranaias/ollama-tui/internal/ui/app"
	"github.com/jeranaias/ollama-tui/internal/ui/styles"
)

const (
	historyLimit    = 1000
	watcherDebounce = 200 * time.Millisecond
)

// ErrNotTerminal is returned when the UI is started without a terminal.
var ErrNotTerminal = errors.New("the terminal UI needs an interactive terminal; use `ollama-tui chat` for line mode")

// =============================================================================
// TUI
// =============================================================================

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// runTUI starts the full-screen UI together with the resource sampler and
// the chat directory watcher. All three stop when the program exits.
func runTUI(ctx context.Context, rt *env) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return ErrNotTerminal
	}
	if err := rt.ensureBackend(ctx); err != nil {
		return err
	}
	cfg := rt.cfg

	sessions, err := storage.NewSessionStore(cfg.ChatsDir())
	if err != nil {
		return err
	}
	configs := storage.NewConfigStore(cfg.ModelConfigPath())

	var notices []string
	modelCfg, corrections, err := configs.Load()
	if err != nil {
		rt.log.Warn("using default model parameters", zap.Error(err))
		notices = append(notices, "Failed to load model configuration, using defaults")
	}
	for _, c := range corrections {
		notices = append(notices, c.String())
	}

	deps := app.Deps{
		Backend:   generation.ClientBackend{Client: rt.client},
		Models:    rt.client,
		Sessions:  sessions,
		Configs:   configs,
		Clipboard: clipboard.WriteAll,
	}
	history, err := storage.OpenPromptHistory(cfg.HistoryDBPath(), historyLimit)
	if err != nil {
		rt.log.Warn("prompt history disabled", zap.Error(err))
	} else {
		defer history.Close()
		deps.History = history
	}

	a := app.New(deps, app.Options{
		Model:       cfg.DefaultModel,
		ModelConfig: modelCfg,
		Notices:     notices,
		VimMode:     cfg.UI.VimMode,
		Markdown:    cfg.UI.Markdown,
		MaxFPS:      cfg.UI.MaxFPS,
		QuitTimeout: cfg.UI.QuitTimeout.Duration,
		StatusTTL:   cfg.UI.StatusTTL.Duration,
		Theme:       styles.NewTheme(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	sampler := monitor.NewSampler(
		monitor.NewHostCollector(monitor.HostOptions{
			MaxProcesses: cfg.Monitor.MaxProcesses,
			GPURefresh:   cfg.Monitor.GPURefresh.Duration,
		}),
		cfg.Monitor.Interval.Duration,
		monitor.WithTimeout(cfg.Monitor.Timeout.Duration),
	)
	g.Go(func() error {
		return sampler.Run(gctx, func(snap model.SystemSnapshot) {
			a.Bus().Publish(app.SnapshotMsg{Snapshot: snap})
		})
	})

	if w, err := storage.NewWatcher(sessions.Dir(), watcherDebounce); err != nil {
		rt.log.Warn("chat directory watcher disabled", zap.Error(err))
	} else {
		g.Go(func() error {
			w.Run(gctx, func() { a.Bus().Publish(app.HistoryChangedMsg{}) })
			return nil
		})
	}

	g.Go(func() error {
		p := tea.NewProgram(a,
			tea.WithAltScreen(),
			tea.WithContext(gctx),
			tea.WithFPS(cfg.UI.MaxFPS),
		)
		_, runErr := p.Run()

		// The program loop has stopped, so nothing else touches the App.
		cancel()
		if err := a.Close(cfg.UI.QuitTimeout.Duration); err != nil {
			rt.log.Warn("shutdown incomplete", zap.Error(err))
		}

		if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		if runErr != nil {
			return fmt.Errorf("terminal UI failed: %w", runErr)
		}
		return nil
	})

	err = g.Wait()
	emitted, dropped := sampler.Stats()
	rt.log.Info("terminal UI stopped", zap.Int64("snapshots", emitted), zap.Int64("dropped", dropped))
	return err
}
