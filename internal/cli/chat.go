// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - line-mode chat for terminals where the full UI is unwanted.
//
// Interactive commands:
//   /help            Show available commands
//   /clear           Start a new conversation
//   /model [name]    Show or switch the model
//   /save            Save the conversation to the chat history
//   /history [text]  List recent prompts, or those containing text
//   /quit            Exit (Ctrl+D works too)
//
// Ctrl+C while a reply is streaming cancels the reply and keeps the
// partial text. Ctrl+C at the prompt exits.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ollama-tui/internal/generation"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/storage"
	"github.com/jeranaias/ollama-tui/internal/util"
)

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long: `Chat with a model in plain line mode. Replies stream as they are
generated. Prompts are shared with the terminal UI's prompt history.`,
		Example: `  ollama-tui chat
  ollama-tui chat -m codellama:7b`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), rt, cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, rt *env, out io.Writer) error {
	if err := rt.ensureBackend(ctx); err != nil {
		return err
	}
	cfg := rt.cfg

	sessions, err := storage.NewSessionStore(cfg.ChatsDir())
	if err != nil {
		return err
	}
	params, corrections, err := storage.NewConfigStore(cfg.ModelConfigPath()).Load()
	if err != nil {
		fmt.Fprintln(out, warningStyle.Render("Failed to load model configuration, using defaults"))
	}
	for _, c := range corrections {
		fmt.Fprintln(out, warningStyle.Render(c.String()))
	}

	repl := newChatREPL(generation.ClientBackend{Client: rt.client}, cfg.DefaultModel, params, out)
	repl.sessions = sessions
	repl.log = rt.log
	if history, err := storage.OpenPromptHistory(cfg.HistoryDBPath(), historyLimit); err != nil {
		rt.log.Warn("prompt history disabled", zap.Error(err))
	} else {
		defer history.Close()
		repl.history = history
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	if repl.history != nil {
		if recent, err := repl.history.Recent(ctx, historyLimit); err == nil {
			for _, p := range recent {
				line.AppendHistory(p)
			}
		}
	}

	fmt.Fprintln(out, titleStyle.Render("ollama-tui chat")+mutedStyle.Render(fmt.Sprintf("  model %s, /help for commands", cfg.DefaultModel)))
	return repl.run(ctx, func(prompt string) (string, error) {
		text, err := line.Prompt(prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			line.AppendHistory(text)
		}
		return text, err
	})
}

// =============================================================================
// REPL
// =============================================================================

// recentPrompts is the part of storage.PromptHistory the REPL uses.
type recentPrompts interface {
	Add(ctx context.Context, text, modelName string) error
	Recent(ctx context.Context, n int) ([]string, error)
	Search(ctx context.Context, substr string, n int) ([]string, error)
}

// historyShown bounds the /history listing.
const historyShown = 20

// chatREPL drives one line-mode conversation through a generation
// Controller. Every method runs on the REPL goroutine.
type chatREPL struct {
	ctrl     *generation.Controller
	events   chan generation.Event
	session  *model.ChatSession
	params   model.ModelConfig
	sessions *storage.SessionStore
	history  recentPrompts
	out      io.Writer
	log      *zap.Logger

	// interrupts delivers Ctrl+C while a reply streams. Tests replace it.
	interrupts func(ctx context.Context) (context.Context, context.CancelFunc)
}

func newChatREPL(backend generation.Backend, modelName string, params model.ModelConfig, out io.Writer) *chatREPL {
	r := &chatREPL{
		events:  make(chan generation.Event, 64),
		session: model.NewSession(modelName),
		params:  params,
		out:     out,
		log:     zap.NewNop(),
		interrupts: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	r.ctrl = generation.NewController(backend, func(ev generation.Event) { r.events <- ev })
	return r
}

// run reads prompts until EOF, Ctrl+C at the prompt, /quit or ctx ends.
func (r *chatREPL) run(ctx context.Context, readLine func(prompt string) (string, error)) error {
	defer r.ctrl.Wait()

	for ctx.Err() == nil {
		input, err := readLine(promptStyle.Render(r.session.ModelName + "> "))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case strings.HasPrefix(input, "/"):
			if !r.command(ctx, input) {
				return nil
			}
		default:
			if err := r.send(ctx, input); err != nil {
				fmt.Fprintln(r.out, errorStyle.Render("[Error]")+" "+err.Error())
			}
		}
	}
	return nil
}

// command runs a slash command. It returns false when the REPL should exit.
func (r *chatREPL) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit":
		return false
	case "/help", "/h":
		fmt.Fprintln(r.out, "/clear  /model [name]  /save  /history [text]  /quit")
	case "/clear", "/c":
		r.session = model.NewSession(r.session.ModelName)
		fmt.Fprintln(r.out, mutedStyle.Render("Chat cleared"))
	case "/model", "/m":
		if len(fields) > 1 {
			r.session.ModelName = fields[1]
			fmt.Fprintln(r.out, successStyle.Render("Model changed to: "+fields[1]))
		} else {
			fmt.Fprintln(r.out, r.session.ModelName)
		}
	case "/save", "/s":
		switch {
		case r.session.Len() == 0:
			fmt.Fprintln(r.out, mutedStyle.Render("Nothing to save"))
		case r.sessions == nil:
			fmt.Fprintln(r.out, warningStyle.Render("Chat history is not available"))
		default:
			if err := r.sessions.Save(r.session); err != nil {
				fmt.Fprintln(r.out, errorStyle.Render("Failed to save chat: "+err.Error()))
			} else {
				fmt.Fprintln(r.out, successStyle.Render("Chat saved successfully"))
			}
		}
	case "/history":
		r.listHistory(ctx, strings.TrimSpace(strings.TrimPrefix(input, fields[0])))
	default:
		fmt.Fprintln(r.out, warningStyle.Render("Unknown command "+fields[0]+", try /help"))
	}
	return true
}

func (r *chatREPL) listHistory(ctx context.Context, filter string) {
	if r.history == nil {
		fmt.Fprintln(r.out, warningStyle.Render("Prompt history is not available"))
		return
	}
	var prompts []string
	var err error
	if filter == "" {
		prompts, err = r.history.Recent(ctx, historyShown)
	} else {
		prompts, err = r.history.Search(ctx, filter, historyShown)
	}
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render("Failed to read prompt history: "+err.Error()))
		return
	}
	if len(prompts) == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render("No matching prompts"))
		return
	}
	for i, p := range prompts {
		fmt.Fprintf(r.out, "%3d  %s\n", i+1, util.Truncate(util.FirstLine(p), 70))
	}
}

// send streams one reply to out. Ctrl+C cancels the reply; the partial
// text stays in the conversation.
func (r *chatREPL) send(ctx context.Context, prompt string) error {
	prompt = norm.NFC.String(prompt)

	history := r.session.Clone()
	r.session.AddUser(prompt)
	reply := r.session.BeginAssistant()

	h, err := r.ctrl.Start(prompt, history, r.params)
	if err != nil {
		r.session.DropEmptyAssistant()
		return err
	}
	if r.history != nil {
		if err := r.history.Add(ctx, prompt, r.session.ModelName); err != nil {
			r.log.Warn("failed to record prompt", zap.Error(err))
		}
	}

	turnCtx, stop := r.interrupts(ctx)
	defer stop()
	interrupted := turnCtx.Done()

	for {
		select {
		case <-interrupted:
			interrupted = nil
			r.ctrl.Cancel(h)

		case ev := <-r.events:
			ev, ok := r.ctrl.Accept(ev)
			if !ok {
				continue
			}
			switch ev := ev.(type) {
			case generation.TokenReceived:
				reply.AppendToken(ev.Text)
				fmt.Fprint(r.out, ev.Text)

			case generation.GenerationComplete:
				stats := ev.Stats
				reply.Finalize(&stats)
				fmt.Fprintln(r.out)
				fmt.Fprintln(r.out, mutedStyle.Render(reply.FormatStats()))
				return nil

			case generation.GenerationFailed:
				if reply.IsEmpty() {
					r.session.DropEmptyAssistant()
				} else {
					reply.Finalize(nil)
					fmt.Fprintln(r.out)
				}
				if ev.Reason == generation.Cancelled {
					fmt.Fprintln(r.out, warningStyle.Render("[Cancelled]"))
					return nil
				}
				return ev
			}
		}
	}
}
