// Package schedule computes ranked candidate posting times from audience
// activity patterns and historical engagement data.
package schedule

import (
	"sort"
	"time"
)

// Audience describes when a platform audience is reachable. Hours are
// hour-of-day values (0-23), days are weekdays the audience peaks on.
type Audience struct {
	Timezone      string
	ActivityHours []int
	PeakDays      []time.Weekday
}

// BestTime is one historically observed hour and its engagement rate.
type BestTime struct {
	Hour int
	Rate float64
}

// Request carries everything the optimizer needs for one computation.
// BestTimes is optional; when empty every activity hour is scored with a
// flat default estimate.
type Request struct {
	Platform    string
	ContentType string
	Audience    Audience
	BestTimes   []BestTime
}

// Slot is one candidate posting time. Slots are derived fresh per call and
// never persisted.
type Slot struct {
	Timestamp          time.Time
	Platform           string
	ContentType        string
	ExpectedEngagement float64
}

// defaultEngagement scores activity hours when no history is available.
const defaultEngagement = 0.5

// Optimize returns candidate slots for every (peak day, candidate hour)
// pair, sorted descending by expected engagement. Ties keep generation
// order. Empty peak days or an empty candidate hour set yield an empty
// result.
//
// Timestamps are computed in the audience timezone when it loads; an
// unknown or empty timezone falls back to UTC rather than failing the
// whole computation.
func Optimize(req Request, now time.Time) []Slot {
	candidates := candidateHours(req)
	if len(candidates) == 0 || len(req.Audience.PeakDays) == 0 {
		return nil
	}

	loc := location(req.Audience.Timezone)
	now = now.In(loc)

	var slots []Slot
	for _, day := range req.Audience.PeakDays {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		for _, candidate := range candidates {
			slots = append(slots, Slot{
				Timestamp:          nextOccurrence(now, day, candidate.Hour),
				Platform:           req.Platform,
				ContentType:        req.ContentType,
				ExpectedEngagement: candidate.Rate,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].ExpectedEngagement > slots[j].ExpectedEngagement
	})
	return slots
}

// candidateHours prefers historical best times and falls back to a flat
// estimate over the audience activity hours. Out-of-range hours are
// dropped rather than clamped.
func candidateHours(req Request) []BestTime {
	source := req.BestTimes
	if len(source) == 0 {
		source = make([]BestTime, 0, len(req.Audience.ActivityHours))
		for _, hour := range req.Audience.ActivityHours {
			source = append(source, BestTime{Hour: hour, Rate: defaultEngagement})
		}
	}

	valid := source[:0:0]
	for _, candidate := range source {
		if candidate.Hour >= 0 && candidate.Hour <= 23 {
			valid = append(valid, candidate)
		}
	}
	return valid
}

// nextOccurrence finds the next calendar date falling on the given weekday
// with the time of day set to hour. A slot earlier today that has already
// passed rolls forward a full week.
func nextOccurrence(now time.Time, day time.Weekday, hour int) time.Time {
	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day()+daysAhead, hour, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
