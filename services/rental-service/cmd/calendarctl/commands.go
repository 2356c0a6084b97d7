package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/biweek"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/model"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"github.com/spf13/cobra"
)

type weekRow struct {
	ID     string `json:"id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Active bool   `json:"active"`
}

func rowsOf(weeks []model.BiWeek) []weekRow {
	rows := make([]weekRow, 0, len(weeks))
	for _, w := range weeks {
		rows = append(rows, weekRow{
			ID:     w.ID,
			Start:  w.Start.Format(time.DateOnly),
			End:    w.End.Format(time.DateOnly),
			Active: w.Active,
		})
	}
	return rows
}

func (c *cli) printWeeks(weeks []model.BiWeek) error {
	rows := rowsOf(weeks)
	if c.json {
		return c.writeJSON(rows)
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tACTIVE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", r.ID, r.Start, r.End, r.Active)
	}
	return tw.Flush()
}

func parseDate(flag, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the rental store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "schema applied")
			return nil
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	var (
		year   int
		anchor string
		mode   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store the 26 bi-weeks of a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			saveMode, err := storage.ParseSaveMode(mode)
			if err != nil {
				return err
			}
			var anchorAt *time.Time
			if anchor != "" {
				a, err := parseDate("anchor", anchor)
				if err != nil {
					return err
				}
				anchorAt = &a
			}
			weeks, res, err := c.app.calendar.GenerateYear(cmd.Context(), c.tenant, year, anchorAt, saveMode)
			if err != nil {
				return err
			}
			if c.json {
				return c.writeJSON(map[string]any{
					"year": year, "created": res.Created, "updated": res.Updated, "skipped": res.Skipped,
					"biweeks": rowsOf(weeks),
				})
			}
			fmt.Fprintf(c.out, "year %d: %d created, %d updated, %d skipped\n", year, res.Created, res.Updated, res.Skipped)
			return c.printWeeks(weeks)
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().UTC().Year(), "Calendar year")
	cmd.Flags().StringVar(&anchor, "anchor", "", "First bi-week start (YYYY-MM-DD); defaults to the global grid")
	cmd.Flags().StringVar(&mode, "mode", "skip", "skip or overwrite existing bi-weeks")
	return cmd
}

func (c *cli) findCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Show the active bi-week containing a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseDate("date", date)
			if err != nil {
				return err
			}
			w, err := c.app.calendar.FindContaining(cmd.Context(), c.tenant, at)
			if err != nil {
				return err
			}
			return c.printWeeks([]model.BiWeek{w})
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().UTC().Format(time.DateOnly), "Date (YYYY-MM-DD)")
	return cmd
}

func (c *cli) alignCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Check whether a date range lines up with bi-week boundaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate("start", start)
			if err != nil {
				return err
			}
			to, err := parseDate("end", end)
			if err != nil {
				return err
			}
			al, err := c.app.calendar.ValidateAlignment(cmd.Context(), c.tenant, from, to)
			if err != nil {
				return err
			}
			if c.json {
				out := map[string]any{"aligned": al.Aligned, "covering": rowsOf(al.Covering)}
				if !al.Aligned && len(al.Covering) > 0 {
					out["suggested_start"] = al.SuggestedStart.Format(time.DateOnly)
					out["suggested_end"] = al.SuggestedEnd.Format(time.DateOnly)
				}
				return c.writeJSON(out)
			}
			switch {
			case al.Aligned:
				fmt.Fprintln(c.out, "aligned")
			case len(al.Covering) == 0:
				fmt.Fprintln(c.out, "not aligned: no active bi-weeks cover the range")
			default:
				fmt.Fprintf(c.out, "not aligned: suggest %s to %s\n",
					al.SuggestedStart.Format(time.DateOnly), al.SuggestedEnd.Format(time.DateOnly))
			}
			return c.printWeeks(al.Covering)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Range end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func (c *cli) sequenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sequence ID...",
		Short: "Check that bi-week ids form one gap-free run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := c.app.calendar.ValidateSequence(cmd.Context(), c.tenant, args)
			if err != nil {
				return err
			}
			if c.json {
				ordered := make([]string, 0, len(rep.Ordered))
				for _, w := range rep.Ordered {
					ordered = append(ordered, w.ID)
				}
				return c.writeJSON(map[string]any{
					"valid": rep.Valid, "ordered": ordered, "gaps": len(rep.Gaps),
					"missing": rep.Missing, "duplicates": rep.Duplicates,
				})
			}
			if rep.Valid {
				fmt.Fprintln(c.out, "valid")
			} else {
				fmt.Fprintln(c.out, "invalid")
			}
			for _, id := range rep.Missing {
				fmt.Fprintf(c.out, "missing %s\n", id)
			}
			for _, id := range rep.Duplicates {
				fmt.Fprintf(c.out, "duplicate %s\n", id)
			}
			for _, g := range rep.Gaps {
				if g.Kind == biweek.GapMissingDays {
					fmt.Fprintf(c.out, "gap between %s and %s: %s to %s\n",
						g.After, g.Before, g.From.Format(time.DateOnly), g.To.Format(time.DateOnly))
					continue
				}
				fmt.Fprintf(c.out, "overlap between %s and %s\n", g.After, g.Before)
			}
			return nil
		},
	}
}

func (c *cli) activateCmd() *cobra.Command {
	var inactive bool
	cmd := &cobra.Command{
		Use:   "activate ID",
		Short: "Mark a bi-week active, or inactive with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := c.app.calendar.SetActive(cmd.Context(), c.tenant, args[0], !inactive)
			if err != nil {
				return err
			}
			return c.printWeeks([]model.BiWeek{w})
		},
	}
	cmd.Flags().BoolVar(&inactive, "off", false, "Deactivate instead")
	return cmd
}
