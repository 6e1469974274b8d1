package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/schedule"
)

func newScheduleCommand() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Posting schedule utilities",
	}
	scheduleCmd.AddCommand(newSchedulePreviewCommand())
	return scheduleCmd
}

func newSchedulePreviewCommand() *cobra.Command {
	var platform string
	var contentType string
	var timezone string
	var hours []int
	var peakDays []string
	var bestTimes []string
	var limit int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview optimal posting slots for an audience",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := parseWeekdays(peakDays)
			if err != nil {
				return err
			}
			best, err := parseBestTimes(bestTimes)
			if err != nil {
				return err
			}

			slots := schedule.Optimize(schedule.Request{
				Platform:    platform,
				ContentType: contentType,
				Audience: schedule.Audience{
					Timezone:      timezone,
					ActivityHours: hours,
					PeakDays:      days,
				},
				BestTimes: best,
			}, time.Now())

			if len(slots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No posting slots (check --peak-day and --hour values)")
				return nil
			}
			if limit > 0 && len(slots) > limit {
				slots = slots[:limit]
			}

			rows := make([][]string, 0, len(slots))
			for _, slot := range slots {
				rows = append(rows, []string{
					slot.Timestamp.Format("Mon 2006-01-02 15:04 MST"),
					slot.Platform,
					slot.ContentType,
					fmt.Sprintf("%.2f", slot.ExpectedEngagement),
				})
			}
			table := renderTable(
				[]string{"Slot", "Platform", "Type", "Engagement"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Target platform")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type label")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Audience timezone (IANA name)")
	cmd.Flags().IntSliceVar(&hours, "hour", nil, "Audience activity hour 0-23 (repeatable)")
	cmd.Flags().StringSliceVar(&peakDays, "peak-day", nil, "Audience peak weekday, e.g. monday (repeatable)")
	cmd.Flags().StringSliceVar(&bestTimes, "best", nil, "Historical best time as hour=rate, e.g. 18=0.9 (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of slots to show")
	return cmd
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(values []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(values))
	for _, value := range values {
		name := strings.ToLower(strings.TrimSpace(value))
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", value)
		}
		days = append(days, day)
	}
	return days, nil
}

func parseBestTimes(values []string) ([]schedule.BestTime, error) {
	best := make([]schedule.BestTime, 0, len(values))
	for _, value := range values {
		hourPart, ratePart, found := strings.Cut(value, "=")
		if !found {
			return nil, fmt.Errorf("invalid --best value %q (expected hour=rate)", value)
		}
		hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
		if err != nil {
			return nil, fmt.Errorf("invalid hour in --best value %q", value)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(ratePart), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate in --best value %q", value)
		}
		best = append(best, schedule.BestTime{Hour: hour, Rate: rate})
	}
	return best, nil
}
