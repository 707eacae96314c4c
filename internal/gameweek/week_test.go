package gameweek

import (
	"testing"
	"time"

	"raidrecord/internal/domain"
)

// 2025-07-22 is a Tuesday; the week epoch is 17:00 that day in UTC+9.
var testRelease = time.Date(2025, 7, 22, 0, 0, 0, 0, ResetLocation)

func savageTier() domain.Tier {
	return domain.Tier{Type: domain.TierSavage, ReleaseDate: testRelease}
}

func ultimateTier() domain.Tier {
	return domain.Tier{Type: domain.TierUltimate, ReleaseDate: testRelease}
}

func kst(day, hour, min int) time.Time {
	return time.Date(2025, 7, day, hour, min, 0, 0, ResetLocation)
}

func TestReleaseResetInstant(t *testing.T) {
	got := ReleaseResetInstant(testRelease)
	want := kst(22, 17, 0)
	if !got.Equal(want) {
		t.Errorf("ReleaseResetInstant = %v, want %v", got, want)
	}

	// release dates are stored at midnight; any time of day on the release
	// date must map to the same reset instant
	noon := time.Date(2025, 7, 22, 12, 0, 0, 0, ResetLocation)
	if !ReleaseResetInstant(noon).Equal(want) {
		t.Error("time-of-day on the release date changed the reset instant")
	}
}

func TestWeekNumberBoundaries(t *testing.T) {
	reset := ReleaseResetInstant(testRelease)
	cases := []struct {
		name string
		ts   time.Time
		want int
	}{
		{"before release", reset.Add(-time.Second), 0},
		{"at reset", reset, 1},
		{"just after reset", reset.Add(time.Millisecond), 1},
		{"end of week one", reset.Add(7*24*time.Hour - time.Millisecond), 1},
		{"start of week two", reset.Add(7 * 24 * time.Hour), 2},
		{"into week two", reset.Add(7*24*time.Hour + time.Hour), 2},
		{"week four", reset.Add(3 * 7 * 24 * time.Hour), 4},
	}
	for _, tc := range cases {
		if got := WeekNumber(testRelease, tc.ts); got != tc.want {
			t.Errorf("%s: WeekNumber = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestInAmbiguousWindow(t *testing.T) {
	cases := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"zero time", time.Time{}, false},
		{"tuesday before reset", kst(29, 16, 59), false},
		{"tuesday at reset", kst(29, 17, 0), true},
		{"tuesday mid window", kst(29, 18, 30), true},
		{"tuesday window end", kst(29, 19, 0), false},
		{"wednesday in hours", kst(30, 17, 30), false},
	}
	for _, tc := range cases {
		if got := InAmbiguousWindow(tc.ts); got != tc.want {
			t.Errorf("%s: InAmbiguousWindow = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestInAmbiguousWindowEvaluatedInResetZone(t *testing.T) {
	// Tuesday 08:30 UTC is 17:30 in UTC+9
	ts := time.Date(2025, 7, 29, 8, 30, 0, 0, time.UTC)
	if !InAmbiguousWindow(ts) {
		t.Error("UTC timestamp inside the window after zone conversion not detected")
	}
}

func TestResolveSavagePrefersFightStart(t *testing.T) {
	// pull starts late in week one, kill lands after the week-two reset
	fightStart := kst(29, 16, 50)
	clear := kst(29, 17, 5)

	res := Resolve(savageTier(), fightStart, clear)
	if res.Week != 1 {
		t.Errorf("Week = %d, want 1 (fight start governs)", res.Week)
	}
	if res.Ambiguous {
		t.Error("fight start outside the window must not be flagged ambiguous")
	}
}

func TestResolveSavageAmbiguousWindow(t *testing.T) {
	// both timestamps inside the reset-Tuesday window a week after release:
	// assume the lockout was entered before reset and pull the week back
	fightStart := kst(29, 17, 10)
	clear := kst(29, 17, 40)

	res := Resolve(savageTier(), fightStart, clear)
	if res.Week != 1 {
		t.Errorf("Week = %d, want 1 (week two adjusted down)", res.Week)
	}
	if !res.Ambiguous {
		t.Error("expected ambiguity flag")
	}
}

func TestResolveSavageAmbiguousFloorsAtWeekOne(t *testing.T) {
	// release-day clears inside the window cannot go below week one
	fightStart := kst(22, 17, 30)
	clear := kst(22, 18, 0)

	res := Resolve(savageTier(), fightStart, clear)
	if res.Week != 1 {
		t.Errorf("Week = %d, want 1", res.Week)
	}
	if !res.Ambiguous {
		t.Error("expected ambiguity flag even at the floor")
	}
}

func TestResolveSavageFallsBackToClearTime(t *testing.T) {
	clear := kst(31, 21, 0)
	res := Resolve(savageTier(), time.Time{}, clear)
	if res.Week != 2 {
		t.Errorf("Week = %d, want 2 (clear time fallback)", res.Week)
	}
}

func TestResolveUltimateUsesClearTimeOnly(t *testing.T) {
	// same window timestamps that adjust Savage leave Ultimate untouched
	fightStart := kst(29, 17, 10)
	clear := kst(29, 17, 40)

	res := Resolve(ultimateTier(), fightStart, clear)
	if res.Week != 2 {
		t.Errorf("Week = %d, want 2 (no adjustment for ultimate)", res.Week)
	}
	if res.Ambiguous {
		t.Error("ultimate results are never flagged ambiguous")
	}
}
