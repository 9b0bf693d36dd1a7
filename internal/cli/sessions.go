// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/storage"
	"github.com/jeranaias/ollama-tui/internal/util"
)

// =============================================================================
// SESSIONS
// =============================================================================

func newSessionsCommand(rt *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"history"},
		Short:   "List saved chats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewSessionStore(rt.cfg.ChatsDir())
			if err != nil {
				return err
			}
			sums, err := store.List()
			if err != nil {
				return err
			}
			printSessions(cmd.OutOrStdout(), sums)
			return nil
		},
	}
	cmd.AddCommand(newSessionsExportCommand(rt))
	return cmd
}

func printSessions(w io.Writer, sums []model.SessionSummary) {
	if len(sums) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No saved chats"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s  %s  %s  %5s  %s",
		util.PadRight("ID", 30), util.PadRight("CREATED", 19), util.PadRight("MODEL", 20), "MSGS", "PREVIEW")))
	for _, s := range sums {
		fmt.Fprintf(w, "%s  %s  %s  %5d  %s\n",
			util.PadRight(s.ID, 30),
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			util.PadRight(util.Truncate(s.ModelName, 20), 20),
			s.MessageCount,
			util.Truncate(util.FirstLine(s.Preview), 40))
	}
}

func newSessionsExportCommand(rt *env) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Print a saved chat as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewSessionStore(rt.cfg.ChatsDir())
			if err != nil {
				return err
			}
			sess, err := store.Load(args[0])
			if err != nil {
				return err
			}
			doc := storage.ExportMarkdown(sess)
			if output == "" || output == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), doc)
				return err
			}
			if err := util.WriteFileAtomic(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("Exported to "+output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
