package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/carbsync/carbsync/internal/bus"
	"github.com/carbsync/carbsync/internal/journal"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) journal() *journal.Journal {
	return journal.New(a.store, a.engine.Exporter, a.logger)
}

func newFoodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foods",
		Short: "List foods, most used first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			foods, err := a.journal().ActiveFoods()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCARBS\tUNIT\tUSED")
			for _, f := range foods {
				carbs, unit := f.CarbsPer100, "100g"
				if f.PerPiece {
					carbs, unit = f.CarbsPerPiece, "piece"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%d\n", f.ID, f.Name, carbs, unit, f.UsageCount)
			}

			return tw.Flush()
		}),
	}

	cmd.AddCommand(newFoodAddCmd(), newFoodRemoveCmd())

	return cmd
}

func newFoodRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a food; peers learn of it through the exported tombstone",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID("food", args[0])
			if err != nil {
				return err
			}

			return a.journal().DeleteFood(cmd.Context(), id)
		}),
	}
}

func newFoodAddCmd() *cobra.Command {
	var (
		carbs, fat, protein float64
		perPiece            bool
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a food to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			f := models.FoodItem{Name: args[0], PerPiece: perPiece}
			if perPiece {
				f.CarbsPerPiece, f.FatPerPiece, f.ProteinPerPiece = carbs, fat, protein
			} else {
				f.CarbsPer100, f.FatPer100, f.ProteinPer100 = carbs, fat, protein
			}

			saved, err := a.journal().SaveFood(cmd.Context(), f)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		}),
	}

	cmd.Flags().Float64Var(&carbs, "carbs", 0, "carbohydrates per 100 g, or per piece")
	cmd.Flags().Float64Var(&fat, "fat", 0, "fat per 100 g, or per piece")
	cmd.Flags().Float64Var(&protein, "protein", 0, "protein per 100 g, or per piece")
	cmd.Flags().BoolVar(&perPiece, "per-piece", false, "portions are counted in pieces")

	return cmd
}

func newOngoingCmd() *cobra.Command {
	var observed, follow bool

	cmd := &cobra.Command{
		Use:   "ongoing",
		Short: "Show the meal being assembled",
		Long: `Shows the meal being assembled on this device. --observed shows the
last imported ongoing meal of a peer instead, and --follow keeps polling
the peer and prints each new snapshot until interrupted.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if follow {
				return followOngoing(cmd.Context(), a, cmd.OutOrStdout())
			}

			j := a.journal()

			entries, err := j.Ongoing()
			if observed {
				entries, err = j.ObservedOngoing()
			}
			if err != nil {
				return err
			}

			printOngoing(cmd.OutOrStdout(), entries)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&observed, "observed", false, "show the ongoing meal imported from a peer")
	cmd.Flags().BoolVar(&follow, "follow", false, "poll the observed peer and print every new snapshot")
	cmd.AddCommand(newOngoingAddCmd(), newOngoingAddFavoriteCmd(), newOngoingRemoveCmd())

	return cmd
}

// followOngoing prints the observed ongoing meal and every snapshot that
// arrives while ctx is live. Polling runs only for as long as this view.
func followOngoing(ctx context.Context, a *app, w io.Writer) error {
	entries, err := a.journal().ObservedOngoing()
	if err != nil {
		return err
	}

	printOngoing(w, entries)

	sub := bus.On(a.engine.Bus, func(e bus.OngoingSnapshotArrived) {
		fmt.Fprintf(w, "\nfrom %s at %s:\n", e.Peer, time.Now().Format(time.TimeOnly))
		printOngoing(w, e.Entries)
	})
	defer a.engine.Bus.Unsubscribe(sub)

	a.engine.Poller.Start(ctx)
	defer a.engine.Poller.Stop()

	<-ctx.Done()

	return nil
}

func newOngoingAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add FOOD_ID SERVED [NOT_EATEN]",
		Short: "Add a portion to the ongoing meal",
		Args:  cobra.RangeArgs(2, 3),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID("food", args[0])
			if err != nil {
				return err
			}

			served, err := parseAmount("served portion", args[1])
			if err != nil {
				return err
			}

			var notEaten float64
			if len(args) == 3 {
				if notEaten, err = parseAmount("leftover portion", args[2]); err != nil {
					return err
				}
			}

			entries, err := a.journal().AddToOngoing(cmd.Context(), id, served, notEaten)
			if err != nil {
				return err
			}

			printOngoing(cmd.OutOrStdout(), entries)
			return nil
		}),
	}
}

func newOngoingAddFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-favorite FAVORITE_ID",
		Short: "Add every item of a favorite meal to the ongoing meal",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID("favorite", args[0])
			if err != nil {
				return err
			}

			entries, err := a.journal().AddFavoriteToOngoing(cmd.Context(), id)
			if err != nil {
				return err
			}

			printOngoing(cmd.OutOrStdout(), entries)
			return nil
		}),
	}
}

func newOngoingRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm INDEX",
		Short: "Remove an entry from the ongoing meal",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}

			entries, err := a.journal().RemoveOngoing(cmd.Context(), index)
			if err != nil {
				return err
			}

			printOngoing(cmd.OutOrStdout(), entries)
			return nil
		}),
	}
}

func newFinalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize",
		Short: "Turn the ongoing meal into a journal entry",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			meal, err := a.journal().FinalizeMeal(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "meal %s: %.1f g carbs, %.1f g fat, %.1f g protein, bolus %.1f U\n",
				meal.ID, meal.TotalNetCarbs, meal.TotalNetFat, meal.TotalNetProtein, meal.TotalNetBolus)
			return nil
		}),
	}
}

func printOngoing(w io.Writer, entries []models.OngoingEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no ongoing meal")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFOOD\tSERVED\tLEFT\tTOTAL")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%.1f\n", i, e.FoodRef, e.PortionServed, e.PortionNotEaten, e.RunningTotal)
	}
	tw.Flush()
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}

	return id, nil
}

func parseAmount(what, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}

	return v, nil
}
