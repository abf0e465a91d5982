package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/tools/common"
)

// defaultQueryDays is the range length when --end is omitted.
const defaultQueryDays = 7

const (
	dayLayout  = "Mon, Jan 2 15:04"
	hourLayout = "15:04 MST"
)

// queryFlags are shared by slots, busy and available.
type queryFlags struct {
	user    string
	start   string
	end     string
	icsPath string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", os.Getenv("FREETIME_USER"), "User whose calendar is queried. Can also use FREETIME_USER env var.")
	cmd.Flags().StringVar(&f.start, "start", "", "Range start, RFC3339 or YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.end, "end", "", fmt.Sprintf("Range end, exclusive, RFC3339 or YYYY-MM-DD (default: start + %d days)", defaultQueryDays))
	cmd.Flags().StringVar(&f.icsPath, "ics", "", "Read events from an iCalendar export instead of Google Calendar")
}

// queryRange resolves --start and --end. Dates resolve to midnight in loc.
func queryRange(start, end string, loc *time.Location, now time.Time) (availability.TimeRange, error) {
	args := map[string]interface{}{}
	if start != "" {
		args["start"] = start
	}
	if end != "" {
		args["end"] = end
	}

	var rng availability.TimeRange
	if start == "" {
		local := now.In(loc)
		rng.Start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	} else {
		t, err := common.GetTimeArg(args, "start", loc)
		if err != nil {
			return availability.TimeRange{}, fmt.Errorf("invalid --start: %w", err)
		}
		rng.Start = t
	}

	if end == "" {
		rng.End = rng.Start.AddDate(0, 0, defaultQueryDays)
	} else {
		t, err := common.GetTimeArg(args, "end", loc)
		if err != nil {
			return availability.TimeRange{}, fmt.Errorf("invalid --end: %w", err)
		}
		rng.End = t
	}
	return rng, nil
}

// runQuery loads the configuration, builds the service and hands it the
// resolved range.
func runQuery(ctx context.Context, flags queryFlags, fn func(*availability.Service, availability.TimeRange) error) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, closeFn, err := newService(ctx, cfg, serviceOptions{
		ICSPath: flags.icsPath,
		User:    flags.user,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer closeFn()

	rng, err := queryRange(flags.start, flags.end, svc.WorkingHours().Location, time.Now())
	if err != nil {
		return err
	}
	return fn(svc, rng)
}

func newSlotsCmd() *cobra.Command {
	var (
		flags    queryFlags
		minHours float64
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free slots within working hours",
		Long: `List the free slots within working hours that are at least --min-hours long.

Examples:
  freetime slots --user me@example.com
  freetime slots --user me@example.com --start 2025-01-06 --end 2025-01-11 --min-hours 2
  freetime slots --user me --ics ~/Downloads/calendar.ics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), flags, func(svc *availability.Service, rng availability.TimeRange) error {
				slots, err := svc.AvailableSlots(cmd.Context(), flags.user, rng, minHours)
				if err != nil {
					return err
				}
				printSlots(cmd.OutOrStdout(), slots)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&minHours, "min-hours", 1, "Minimum slot length in hours")
	return cmd
}

func newBusyCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "busy",
		Short: "List busy periods in a time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), flags, func(svc *availability.Service, rng availability.TimeRange) error {
				busy, err := svc.BusyTimes(cmd.Context(), flags.user, rng)
				if err != nil {
					return err
				}
				printBusy(cmd.OutOrStdout(), busy)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newAvailableCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "available",
		Short: "Check whether no event overlaps a time range",
		Long: `Check whether no event overlaps the time range. Working hours are not
applied, so a range outside working hours is available when it is empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), flags, func(svc *availability.Service, rng availability.TimeRange) error {
				ok, err := svc.IsAvailable(cmd.Context(), flags.user, rng)
				if err != nil {
					return err
				}
				printAvailable(cmd.OutOrStdout(), rng, ok)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func printSlots(w io.Writer, slots []availability.FreeSlot) {
	if len(slots) == 0 {
		fmt.Fprintln(w, "No free slots")
		return
	}
	for _, s := range slots {
		fmt.Fprintf(w, "%s - %s\t%.2f h\n", s.Start.Format(dayLayout), s.End.Format(hourLayout), s.DurationHours)
	}
}

func printBusy(w io.Writer, busy []availability.BusyInterval) {
	if len(busy) == 0 {
		fmt.Fprintln(w, "No busy periods")
		return
	}
	for _, b := range busy {
		fmt.Fprintf(w, "%s - %s\t%s\n", b.Start.Format(dayLayout), b.End.Format(dayLayout), b.Label)
	}
}

func printAvailable(w io.Writer, rng availability.TimeRange, ok bool) {
	state := "available"
	if !ok {
		state = "busy"
	}
	fmt.Fprintf(w, "%s - %s: %s\n", rng.Start.Format(dayLayout), rng.End.Format(dayLayout), state)
}
