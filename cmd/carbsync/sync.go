package main

import (
	"fmt"
	"io"

	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/syncer"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [collection]",
		Short: "Merge peer snapshots into the local journal",
		Long: `Reads the snapshot files of every peer and merges them record by
record. Without a collection every merged collection is reconciled and
the result is exported again. "ongoing" imports the observed peer's
ongoing meal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()

			if len(args) == 0 {
				reports, err := a.engine.ReconcileAll(ctx)
				printReports(cmd.OutOrStdout(), reports)
				return err
			}

			c, err := models.ParseCollection(args[0])
			if err != nil {
				return err
			}

			reports, err := a.engine.Importer.Refresh(ctx, c, true)
			printReports(cmd.OutOrStdout(), reports)
			return err
		}),
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [collection]",
		Short: "Write this device's snapshot files to the shared directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()

			if len(args) == 0 {
				results, err := a.engine.Exporter.ExportAll(ctx)
				printExports(cmd.OutOrStdout(), results)
				return err
			}

			c, err := models.ParseCollection(args[0])
			if err != nil {
				return err
			}

			res, err := a.engine.Exporter.Export(ctx, c)
			if err != nil {
				return err
			}

			printExports(cmd.OutOrStdout(), []syncer.ExportResult{res})
			return nil
		}),
	}
}

func printReports(w io.Writer, reports []syncer.Report) {
	for _, r := range reports {
		fmt.Fprintln(w, r)

		for _, rowErr := range r.Errors {
			fmt.Fprintf(w, "  %v\n", rowErr)
		}
	}

	applied, skipped, errs := syncer.Totals(reports)
	fmt.Fprintf(w, "total: %d applied, %d skipped, %d errors\n", applied, skipped, errs)
}

func printExports(w io.Writer, results []syncer.ExportResult) {
	for _, r := range results {
		fmt.Fprintf(w, "%s: %d records -> %s\n", r.Collection, r.Records, r.Path)
	}
}
