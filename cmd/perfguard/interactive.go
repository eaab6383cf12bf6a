package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/perfguard/internal/profile"
	"github.com/dshills/perfguard/internal/repl"
)

func newInteractiveCmd(a *app) *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"shell"},
		Short:   "Start an interactive analysis shell",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if history == "" {
				if home, err := os.UserHomeDir(); err == nil {
					history = filepath.Join(home, ".perfguard_history")
				}
			}
			r := repl.New(repl.Config{
				Handlers:    a.handlers(),
				Out:         a.stdout,
				Color:       !a.flags.noColor && !color.NoColor,
				HistoryFile: history,
			})
			if err := r.Run(cmd.Context()); err != nil {
				if cmd.Context().Err() != nil {
					return exitError(exitInterrupted, "interrupted")
				}
				return exitError(exitInput, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "History file (default: ~/.perfguard_history)")
	return cmd
}

func (a *app) handlers() repl.Handlers {
	return repl.Handlers{
		Analyze: func(ctx context.Context, path string) error { return a.runFile(ctx, profile.Full, path) },
		Quick:   func(ctx context.Context, path string) error { return a.runFile(ctx, profile.Quick, path) },
		Simple:  func(ctx context.Context, path string) error { return a.runFile(ctx, profile.Simple, path) },
		Fix:     a.runFix,
		Bulk:    func(ctx context.Context, dir string) error { return a.runBulk(ctx, "", dir) },
		Health:  func(ctx context.Context, dir string) error { return a.runHealth(ctx, "", dir) },
	}
}
