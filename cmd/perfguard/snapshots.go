package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dshills/perfguard/internal/gitinfo"
	"github.com/dshills/perfguard/internal/render"
	"github.com/dshills/perfguard/internal/snapshot"
)

func newSnapshotsCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List and prune stored run snapshots",
	}
	cmd.PersistentFlags().StringVar(&dir, "snapshots-dir", "", "Snapshot directory (default from config)")
	store := func() *snapshot.Store {
		if dir == "" {
			dir = a.cfg.CI.SnapshotsDir
		}
		return snapshot.NewStore(dir)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List run snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := store().List()
			if err != nil {
				return exitError(exitStorage, "%v", err)
			}
			if a.flags.output != "" {
				return a.emitEntries(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(a.stdout, "No snapshots in %s\n", dir)
				return nil
			}
			t := tablewriter.NewWriter(a.stdout)
			t.Header("ID", "Time", "Branch", "Commit", "Profile", "Score", "Issues")
			for _, e := range entries {
				if err := t.Append([]string{
					e.ID,
					e.Timestamp.Local().Format("2006-01-02 15:04"),
					e.Branch,
					gitinfo.ShortCommit(e.Commit),
					e.Profile,
					fmt.Sprint(e.Summary.Score),
					fmt.Sprint(e.Summary.TotalIssues),
				}); err != nil {
					return err
				}
			}
			return t.Render()
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove all but the most recent run snapshots",
		Long:  "Remove all but the most recent run snapshots. Baselines are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return exitError(exitConfig, "--keep must be >= 0, got %d", keep)
			}
			removed, err := store().Prune(keep)
			if err != nil {
				return exitError(exitStorage, "%v", err)
			}
			for _, id := range removed {
				a.verbose("Removed snapshot %s", id)
			}
			fmt.Fprintf(a.stdout, "Removed %s from %s\n", plural(len(removed), "snapshot"), dir)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 10, "Number of snapshots to retain")

	cmd.AddCommand(list, prune)
	return cmd
}

func (a *app) emitEntries(entries []snapshot.Entry) error {
	if err := a.writeFile(a.flags.output, func(w io.Writer) error {
		return render.WriteJSON(w, entries)
	}); err != nil {
		return exitError(exitStorage, "failed to write output: %v", err)
	}
	return nil
}
