package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridcalc/gridcalc/pkg/stores"
)

func newSnapshotCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore workbook snapshots",
		Long: `Save workbook content to a SQLite database and restore it later.

A snapshot holds literals, formulas, defined names and tables. Computed
values are not stored; a loaded snapshot is recalculated.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "gridcalc.db", "snapshot database path")

	cmd.AddCommand(newSnapshotSaveCommand(&dbPath))
	cmd.AddCommand(newSnapshotLoadCommand(&dbPath))
	cmd.AddCommand(newSnapshotListCommand(&dbPath))
	cmd.AddCommand(newSnapshotDeleteCommand(&dbPath))

	return cmd
}

func newSnapshotSaveCommand(dbPath *string) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a workbook document as a snapshot",
		Example: `  gridcalc snapshot save --label "before import" book.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cmd, "")
			if err != nil {
				return err
			}
			defer e.close(ctx)

			res, err := e.load(ctx, args[0])
			if err != nil {
				return err
			}

			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			snap := stores.Capture(res.Workbook, label)
			if err := store.SaveSnapshot(ctx, snap); err != nil {
				return err
			}
			e.log.WithFields(map[string]interface{}{
				"snapshot": snap.ID,
				"cells":    len(snap.Cells),
			}).Info("Snapshot saved")

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"id": snap.ID})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), snap.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "snapshot label")

	return cmd
}

func newSnapshotLoadCommand(dbPath *string) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Restore a snapshot, recalculate it and print its formula cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter, err := compileFilter(only)
			if err != nil {
				return err
			}

			e, err := newEnv(cmd, "")
			if err != nil {
				return err
			}
			defer e.close(ctx)

			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.GetSnapshot(ctx, args[0])
			if err != nil {
				return err
			}
			opts, err := e.options()
			if err != nil {
				return err
			}
			wb, err := snap.Restore(opts)
			if err != nil {
				return err
			}
			if _, err := e.recalc(ctx, wb); err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), formulaResults(wb, filter))
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "glob over Sheet!A1 cell names to print, case-insensitive")

	return cmd
}

func newSnapshotListCommand(dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.ListSnapshots(ctx, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tCELLS\tLOCALE\tLABEL")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					info.ID, info.CreatedAt.Format(time.RFC3339), info.Cells, info.Locale, info.Label)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of snapshots to list")

	return cmd
}

func newSnapshotDeleteCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteSnapshot(ctx, args[0])
		},
	}
}
