// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/ollama"
	"github.com/jeranaias/ollama-tui/internal/ui/styles"
	"github.com/jeranaias/ollama-tui/internal/util"
)

// =============================================================================
// MODELS
// =============================================================================

func newModelsCommand(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls", "list"},
		Short:   "List installed models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := rt.client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			printModels(cmd.OutOrStdout(), models, rt.cfg.DefaultModel)
			return nil
		},
	}
}

func printModels(w io.Writer, models []ollama.ModelInfo, current string) {
	if len(models) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No models installed. Download one with: ollama-tui pull NAME"))
		return
	}

	const nameWidth = 32
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("  %s %10s  %s", util.PadRight("NAME", nameWidth), "SIZE", "MODIFIED")))
	for _, m := range models {
		marker := "  "
		if m.Name == current {
			marker = "* "
		}
		modified := "-"
		if !m.ModifiedAt.IsZero() {
			modified = m.ModifiedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s%s %10s  %s\n", marker, util.PadRight(m.Name, nameWidth), m.FormatSize(), modified)
	}
}

// =============================================================================
// PULL
// =============================================================================

func newPullCommand(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:   "pull NAME",
		Short: "Download a model",
		Example: `  ollama-tui pull mistral:latest
  ollama-tui pull llama2:13b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return pullModel(ctx, rt, cmd.OutOrStdout(), args[0])
		},
	}
}

// pullModel downloads name, printing a single progress line that only
// ever moves forward.
func pullModel(ctx context.Context, rt *env, w io.Writer, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("model name is empty")
	}

	fmt.Fprintf(w, "Downloading model: %s\n", name)
	var percent float64
	var lastLine string
	err := rt.client.PullModel(ctx, name, func(p ollama.PullProgress) {
		if pct := p.Percent(); pct > percent {
			percent = pct
		}
		line := fmt.Sprintf("\r%s %5.1f%%  %s", styles.RenderGauge(30, percent), percent, util.Truncate(p.Status, 40))
		if line != lastLine {
			fmt.Fprint(w, util.PadRight(line, len(lastLine)))
			lastLine = line
		}
	})
	if lastLine != "" {
		fmt.Fprintln(w)
	}

	switch {
	case err == nil:
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Model %s downloaded successfully", name)))
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, warningStyle.Render("Download cancelled"))
		return nil
	default:
		rt.log.Warn("pull failed", zap.String("model", name), zap.Error(err))
		return fmt.Errorf("failed to download model %s: %w", name, err)
	}
}

// =============================================================================
// REMOVE
// =============================================================================

func newRemoveCommand(rt *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"delete"},
		Short:   "Delete an installed model",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete model %s?", name)) {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Aborted"))
				return nil
			}
			if err := rt.client.DeleteModel(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to delete model %s: %w", name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Model %s deleted", name)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question. Anything but y/yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	if f, ok := in.(*os.File); ok && !isTerminal(f) {
		return false
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
