package schedule

import (
	"testing"
	"time"
)

// Wednesday 2026-01-07 12:00 UTC keeps weekday arithmetic easy to follow.
var testNow = time.Date(2026, time.January, 7, 12, 0, 0, 0, time.UTC)

func TestOptimizeRanksByEngagement(t *testing.T) {
	slots := Optimize(Request{
		Platform:    "tiktok",
		ContentType: "video",
		Audience: Audience{
			PeakDays: []time.Weekday{time.Monday, time.Wednesday},
		},
		BestTimes: []BestTime{
			{Hour: 9, Rate: 0.8},
			{Hour: 18, Rate: 0.9},
		},
	}, testNow)

	if len(slots) != 4 {
		t.Fatalf("slots = %d, want 4", len(slots))
	}
	for i, slot := range slots {
		if slot.Platform != "tiktok" || slot.ContentType != "video" {
			t.Fatalf("slot %d carries wrong identity: %+v", i, slot)
		}
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].ExpectedEngagement > slots[i-1].ExpectedEngagement {
			t.Fatalf("slots not sorted descending at %d: %v then %v",
				i, slots[i-1].ExpectedEngagement, slots[i].ExpectedEngagement)
		}
	}
	if slots[0].ExpectedEngagement != 0.9 || slots[3].ExpectedEngagement != 0.8 {
		t.Fatalf("rates misordered: first %v last %v",
			slots[0].ExpectedEngagement, slots[3].ExpectedEngagement)
	}
}

func TestOptimizeEmptyInputs(t *testing.T) {
	base := Request{Platform: "tiktok", ContentType: "video"}

	noDays := base
	noDays.BestTimes = []BestTime{{Hour: 9, Rate: 0.5}}
	if got := Optimize(noDays, testNow); len(got) != 0 {
		t.Fatalf("empty peak days produced %d slots", len(got))
	}

	noHours := base
	noHours.Audience.PeakDays = []time.Weekday{time.Monday}
	if got := Optimize(noHours, testNow); len(got) != 0 {
		t.Fatalf("empty candidate hours produced %d slots", len(got))
	}
}

func TestOptimizeFlatFallbackOverActivityHours(t *testing.T) {
	slots := Optimize(Request{
		Platform:    "instagram",
		ContentType: "image",
		Audience: Audience{
			ActivityHours: []int{8, 20},
			PeakDays:      []time.Weekday{time.Friday},
		},
	}, testNow)

	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(slots))
	}
	for _, slot := range slots {
		if slot.ExpectedEngagement != defaultEngagement {
			t.Fatalf("fallback engagement = %v, want %v", slot.ExpectedEngagement, defaultEngagement)
		}
		if slot.Timestamp.Weekday() != time.Friday {
			t.Fatalf("slot weekday = %v, want Friday", slot.Timestamp.Weekday())
		}
	}
	if slots[0].Timestamp.Hour() != 8 || slots[1].Timestamp.Hour() != 20 {
		t.Fatalf("tie should keep generation order: %v, %v", slots[0].Timestamp, slots[1].Timestamp)
	}
}

func TestNextOccurrenceRollsPastHours(t *testing.T) {
	// testNow is Wednesday 12:00; a 9:00 Wednesday slot already passed.
	got := nextOccurrence(testNow, time.Wednesday, 9)
	want := time.Date(2026, time.January, 14, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextOccurrence = %v, want %v", got, want)
	}

	// An 18:00 Wednesday slot is still ahead today.
	got = nextOccurrence(testNow, time.Wednesday, 18)
	want = time.Date(2026, time.January, 7, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextOccurrence = %v, want %v", got, want)
	}

	got = nextOccurrence(testNow, time.Monday, 9)
	want = time.Date(2026, time.January, 12, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextOccurrence = %v, want %v", got, want)
	}
}

func TestOptimizeDropsInvalidValues(t *testing.T) {
	slots := Optimize(Request{
		Platform:    "youtube",
		ContentType: "video",
		Audience: Audience{
			PeakDays: []time.Weekday{time.Monday, time.Weekday(9)},
		},
		BestTimes: []BestTime{
			{Hour: 25, Rate: 0.9},
			{Hour: 10, Rate: 0.6},
		},
	}, testNow)

	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1 after dropping invalid day and hour", len(slots))
	}
	if slots[0].Timestamp.Hour() != 10 {
		t.Fatalf("kept hour = %d, want 10", slots[0].Timestamp.Hour())
	}
}

func TestOptimizeAppliesTimezone(t *testing.T) {
	slots := Optimize(Request{
		Platform:    "tiktok",
		ContentType: "video",
		Audience: Audience{
			Timezone: "America/New_York",
			PeakDays: []time.Weekday{time.Thursday},
		},
		BestTimes: []BestTime{{Hour: 9, Rate: 0.7}},
	}, testNow)

	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}
	if got := slots[0].Timestamp.Location().String(); got != "America/New_York" {
		t.Fatalf("slot location = %s, want America/New_York", got)
	}
	if slots[0].Timestamp.Hour() != 9 {
		t.Fatalf("slot local hour = %d, want 9", slots[0].Timestamp.Hour())
	}
}
