package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/carbsync/carbsync/internal/models"
	"github.com/spf13/cobra"
)

func newMealsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meals",
		Short: "List finalized meals, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			meals, err := a.journal().ActiveMeals()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tCARBS\tFAT\tPROTEIN\tBOLUS\tENTRIES")
			for _, m := range meals {
				fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%d\n",
					m.ID, m.Timestamp.Local().Format(time.DateTime),
					m.TotalNetCarbs, m.TotalNetFat, m.TotalNetProtein, m.TotalNetBolus, len(m.Entries))
			}

			return tw.Flush()
		}),
	}

	cmd.AddCommand(newMealRemoveCmd(), newMealLeftoverCmd())

	return cmd
}

func newMealRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a meal",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID("meal", args[0])
			if err != nil {
				return err
			}

			return a.journal().DeleteMeal(cmd.Context(), id)
		}),
	}
}

func newMealLeftoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leftover ID INDEX NOT_EATEN",
		Short: "Record what was left of one entry of a meal",
		Long: `Sets the uneaten portion of entry INDEX of a finalized meal. Totals
and the bolus estimate are recomputed and the meal is exported again.`,
		Args: cobra.ExactArgs(3),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID("meal", args[0])
			if err != nil {
				return err
			}

			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[1], err)
			}

			notEaten, err := parseAmount("leftover portion", args[2])
			if err != nil {
				return err
			}

			j := a.journal()

			meals, err := j.ActiveMeals()
			if err != nil {
				return err
			}

			for _, m := range meals {
				if m.ID != id {
					continue
				}

				if index < 0 || index >= len(m.Entries) {
					return fmt.Errorf("meal %s has no entry %d", id, index)
				}

				m.Entries[index].PortionNotEaten = notEaten

				saved, err := j.SaveMeal(cmd.Context(), m)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "meal %s: %.1f g carbs, bolus %.1f U\n",
					saved.ID, saved.TotalNetCarbs, saved.TotalNetBolus)
				return nil
			}

			return fmt.Errorf("meal %s not found", id)
		}),
	}
}

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List favorite meals",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			favs, err := a.journal().ActiveFavorites()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tITEMS")
			for _, f := range favs {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", f.ID, f.Name, len(f.Items))
			}

			return tw.Flush()
		}),
	}

	cmd.AddCommand(newFavoriteAddCmd(), newFavoriteRemoveCmd())

	return cmd
}

func newFavoriteAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME FOOD_ID=PORTION...",
		Short: "Save a favorite meal",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			fav := models.FavoriteMeal{Name: args[0]}

			for _, arg := range args[1:] {
				ref, portion, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid item %q, want FOOD_ID=PORTION", arg)
				}

				id, err := parseID("food", ref)
				if err != nil {
					return err
				}

				amount, err := parseAmount("portion", portion)
				if err != nil {
					return err
				}

				fav.Items = append(fav.Items, models.FavoriteItem{FoodRef: id, Portion: amount})
			}

			saved, err := a.journal().SaveFavorite(cmd.Context(), fav)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		}),
	}
}

func newFavoriteRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a favorite meal",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID("favorite", args[0])
			if err != nil {
				return err
			}

			return a.journal().DeleteFavorite(cmd.Context(), id)
		}),
	}
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule KIND",
		Short: "Show a dosing schedule (carb_ratios or start_doses)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			c, err := models.ParseCollection(args[0])
			if err != nil {
				return err
			}

			slots, err := a.journal().Slots(c)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HOUR\tVALUE")
			for _, s := range slots {
				fmt.Fprintf(tw, "%02d\t%g\n", s.Hour, s.Value)
			}

			return tw.Flush()
		}),
	}

	cmd.AddCommand(newScheduleSetCmd())

	return cmd
}

func newScheduleSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KIND HOUR VALUE",
		Short: "Set one hour slot of a dosing schedule",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			c, err := models.ParseCollection(args[0])
			if err != nil {
				return err
			}

			hour, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid hour %q: %w", args[1], err)
			}

			value, err := parseAmount("value", args[2])
			if err != nil {
				return err
			}

			_, err = a.journal().SetSlot(cmd.Context(), c, hour, value)
			return err
		}),
	}
}
