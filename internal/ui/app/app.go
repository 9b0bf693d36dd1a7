// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ollama-tui/internal/generation"
	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/ollama"
	"github.com/jeranaias/ollama-tui/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// ModelService is the part of the backend used outside generation.
type ModelService interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	PullModel(ctx context.Context, name string, onProgress func(ollama.PullProgress)) error
	DeleteModel(ctx context.Context, name string) error
}

// SessionStore persists chat sessions.
type SessionStore interface {
	Save(sess *model.ChatSession) error
	Load(id string) (*model.ChatSession, error)
	List() ([]model.SessionSummary, error)
	Delete(id string) error
}

// ConfigStore persists the model parameters.
type ConfigStore interface {
	Save(cfg model.ModelConfig) error
}

// PromptHistory stores submitted prompts for recall.
type PromptHistory interface {
	Add(ctx context.Context, text, modelName string) error
	Recent(ctx context.Context, n int) ([]string, error)
}

// Deps are the collaborators of the App. History and Clipboard are optional.
type Deps struct {
	Backend   generation.Backend
	Models    ModelService
	Sessions  SessionStore
	Configs   ConfigStore
	History   PromptHistory
	Clipboard func(text string) error
}

// Options configure the App.
type Options struct {
	Model       string
	ModelConfig model.ModelConfig
	// Notices are shown once in the status line at startup.
	Notices     []string
	VimMode     bool
	Markdown    bool
	MaxFPS      int
	QuitTimeout time.Duration
	StatusTTL   time.Duration
	Theme       *styles.Theme
}

const (
	busSize       = 256
	recallLimit   = 200
	defaultMaxFPS = 30
)

// =============================================================================
// APP
// =============================================================================

// App is the Bubble Tea model of the application.
type App struct {
	deps  Deps
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	log   *zap.Logger

	bus *Bus
	gen *generation.Controller

	// Background work started by the App. ctx ends it on Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mode     Mode
	session  *model.ChatSession
	modelCfg model.ModelConfig
	reply    *model.Message
	models   []ollama.ModelInfo
	snapshot model.SystemSnapshot
	pull     *pullState
	status   statusLine
	selected int
	vim      vimState
	recall   promptRecall

	lastStats  *model.Statistics
	snapshots  int
	generating time.Time

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	progress progress.Model
	markdown *markdownCache

	width  int
	height int

	limiter        *rate.Limiter
	frameInterval  time.Duration
	frameScheduled bool
	renderPending  bool
	dirty          bool
	view           string
	renders        int

	quitting bool
	exiting  bool
}

// pullState is a running model download.
type pullState struct {
	name    string
	percent float64
	status  string
	cancel  context.CancelFunc
}

// New creates the App. The returned App has not started any work; the
// Bubble Tea program starts it through Init.
func New(deps Deps, opts Options) *App {
	if opts.MaxFPS <= 0 {
		opts.MaxFPS = defaultMaxFPS
	}
	if opts.QuitTimeout <= 0 {
		opts.QuitTimeout = 2 * time.Second
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = 5 * time.Second
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.WriteAll
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		deps:          deps,
		opts:          opts,
		theme:         opts.Theme,
		keys:          DefaultKeyMap(),
		log:           logging.Named("ui"),
		bus:           NewBus(busSize),
		ctx:           ctx,
		cancel:        cancel,
		mode:          ChatMode{},
		session:       model.NewSession(opts.Model),
		modelCfg:      opts.ModelConfig,
		selected:      -1,
		vim:           newVimState(opts.VimMode),
		limiter:       rate.NewLimiter(rate.Limit(opts.MaxFPS), 1),
		frameInterval: time.Second / time.Duration(opts.MaxFPS),
		dirty:         true,
	}
	a.gen = generation.NewController(deps.Backend, func(ev generation.Event) {
		a.bus.Publish(ev)
	})

	a.input = textinput.New()
	a.input.Placeholder = "Type a message and press Enter"
	a.input.Prompt = "> "
	a.input.PromptStyle = a.theme.InputPrompt
	a.input.Focus()

	a.viewport = viewport.New(80, 20)
	a.spinner = spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(a.theme.Streaming))
	a.help = help.New()
	a.help.ShowAll = true
	a.progress = progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	a.markdown = newMarkdownCache(opts.Markdown, func(width int) (*glamour.TermRenderer, error) {
		return glamour.NewTermRenderer(
			glamour.WithStandardStyle(a.theme.GlamourStyle()),
			glamour.WithWordWrap(width),
		)
	})

	if len(opts.Notices) > 0 {
		a.status = statusLine{kind: statusWarning, text: opts.Notices[0]}
	}
	return a
}

// Bus returns the event bus. External producers (sampler, watcher) publish
// SnapshotMsg and HistoryChangedMsg on it.
func (a *App) Bus() *Bus { return a.bus }

// Init starts the bus listener and the startup loads.
func (a *App) Init() tea.Cmd {
	a.refreshModels(true)
	a.loadRecall()
	return tea.Batch(a.bus.Listen(), textinput.Blink)
}

// Close stops background work and waits up to timeout for it to finish.
// It is called after the program has exited.
func (a *App) Close(timeout time.Duration) error {
	a.gen.CancelActive()
	a.cancel()
	a.bus.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		a.gen.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("background work did not stop in time")
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update applies one message. Bus messages re-arm the listener.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if bm, ok := msg.(busMsg); ok {
		cmd := a.handle(bm.msg)
		return a, tea.Batch(cmd, a.bus.Listen())
	}
	return a, a.handle(msg)
}

func (a *App) handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case generation.Event:
		return a.handleGeneration(msg)

	case SnapshotMsg:
		a.snapshot = msg.Snapshot
		a.snapshots++
		if a.mode.Kind() == KindSystemMonitor {
			a.markDirty()
		}
		return nil

	case HistoryChangedMsg:
		if a.mode.Kind() == KindChatHistory {
			a.reloadHistory()
		}
		return nil

	case modelsLoadedMsg:
		return a.handleModelsLoaded(msg)

	case modelDeletedMsg:
		return a.handleModelDeleted(msg)

	case pullProgressMsg:
		return a.handlePullProgress(msg)

	case pullDoneMsg:
		return a.handlePullDone(msg)

	case promptHistoryMsg:
		if msg.err != nil {
			a.log.Warn("prompt history unavailable", zap.Error(msg.err))
			return nil
		}
		a.recall.load(msg.entries)
		return nil

	case spinner.TickMsg:
		if a.reply == nil || !a.reply.IsEmpty() {
			return nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.requestRender()
		return tea.Batch(cmd, a.scheduleFrame())

	case frameMsg:
		a.frameScheduled = false
		if a.renderPending {
			a.renderPending = false
			a.limiter.Allow()
			a.markDirty()
		}
		return nil

	case statusExpiredMsg:
		if msg.seq == a.status.seq && a.status.text != "" {
			a.status = statusLine{seq: a.status.seq}
			a.markDirty()
		}
		return nil

	case quitTimeoutMsg:
		if a.quitting && !a.exiting {
			a.log.Warn("generation did not stop before quit timeout")
			return a.exit()
		}
		return nil
	}

	// Cursor blink and other component messages.
	var cmd tea.Cmd
	switch m := a.mode.(type) {
	case ModelDownloadMode:
		m.Input, cmd = m.Input.Update(msg)
		a.mode = m
	case ModelConfigMode:
		m.Input, cmd = m.Input.Update(msg)
		a.mode = m
	default:
		a.input, cmd = a.input.Update(msg)
	}
	if cmd != nil {
		a.markDirty()
	}
	return cmd
}

// =============================================================================
// RENDER LIMITING
// =============================================================================

func (a *App) markDirty() {
	a.dirty = true
}

// requestRender marks the frame dirty if the frame budget allows, or defers
// it to the next frame tick.
func (a *App) requestRender() {
	if a.limiter.Allow() {
		a.renderPending = false
		a.markDirty()
		return
	}
	a.renderPending = true
}

// scheduleFrame returns a frame tick unless one is already pending.
func (a *App) scheduleFrame() tea.Cmd {
	if !a.renderPending || a.frameScheduled {
		return nil
	}
	a.frameScheduled = true
	return tea.Tick(a.frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

// =============================================================================
// BACKGROUND WORK
// =============================================================================

// spawn runs fn on its own goroutine and publishes its result on the bus.
func (a *App) spawn(fn func(ctx context.Context) tea.Msg) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if msg := fn(a.ctx); msg != nil {
			a.bus.Publish(msg)
		}
	}()
}

// =============================================================================
// QUIT
// =============================================================================

// quit leaves the program. A live generation is cancelled first and the
// quit completes when its Cancelled event arrives, or after QuitTimeout.
func (a *App) quit() tea.Cmd {
	if a.pull != nil {
		a.pull.cancel()
	}
	if a.quitting {
		return a.exit()
	}
	a.quitting = true
	if !a.gen.Busy() {
		return a.exit()
	}

	a.gen.CancelActive()
	a.setStatus(statusInfo, "Stopping generation...")
	return tea.Tick(a.opts.QuitTimeout, func(time.Time) tea.Msg { return quitTimeoutMsg{} })
}

func (a *App) exit() tea.Cmd {
	a.exiting = true
	a.log.Info("quitting")
	return tea.Quit
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Mode returns the active mode.
func (a *App) Mode() Mode { return a.mode }

// Session returns the live chat session. Callers must not mutate it while
// the program runs.
func (a *App) Session() *model.ChatSession { return a.session }

// ModelConfig returns the current generation parameters.
func (a *App) ModelConfig() model.ModelConfig { return a.modelCfg }

// Models returns the last fetched model list.
func (a *App) Models() []ollama.ModelInfo { return a.models }

// Generating reports whether a generation is live.
func (a *App) Generating() bool { return a.gen.Busy() }

// Status returns the status line text.
func (a *App) Status() string { return a.status.text }

// Exiting reports whether the App asked the program to quit.
func (a *App) Exiting() bool { return a.exiting }
