// Package gameweek maps raid-clear timestamps to ordinal weeks since a
// tier's release under the fixed weekly-reset schedule.
package gameweek

import (
	"time"

	"raidrecord/internal/domain"
)

// The weekly reset happens Tuesday 17:00 in a fixed UTC+9 zone, regardless
// of where this process or the viewer runs.
var ResetLocation = time.FixedZone("KST", 9*60*60)

const (
	resetWeekday = time.Tuesday
	resetHour    = 17
	// Clears timestamped within this span after the reset cannot be cleanly
	// attributed to the new week: a pull that started before 17:00 can have
	// its kill land after it.
	ambiguousWindow = 2 * time.Hour
)

// Result carries the resolved week ordinal for one clear. Ambiguous marks
// records whose week is a best guess, not a certainty.
type Result struct {
	Week      int
	Ambiguous bool
}

// ReleaseResetInstant is the release date at the weekly reset hour, the
// epoch week numbers count from.
func ReleaseResetInstant(releaseDate time.Time) time.Time {
	d := releaseDate.In(ResetLocation)
	return time.Date(d.Year(), d.Month(), d.Day(), resetHour, 0, 0, 0, ResetLocation)
}

// WeekNumber returns the 1-based week ordinal of ts relative to the tier's
// release reset instant. Timestamps before release return 0; valid data
// should never produce that.
func WeekNumber(releaseDate, ts time.Time) int {
	release := ReleaseResetInstant(releaseDate)
	diff := ts.Sub(release)
	if diff < 0 {
		return 0
	}
	const week = 7 * 24 * time.Hour
	return int(diff/week) + 1
}

// InAmbiguousWindow reports whether ts falls on the reset weekday between
// the reset hour and two hours after it, evaluated in the reset timezone.
func InAmbiguousWindow(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	local := ts.In(ResetLocation)
	if local.Weekday() != resetWeekday {
		return false
	}
	reset := time.Date(local.Year(), local.Month(), local.Day(), resetHour, 0, 0, 0, ResetLocation)
	return !local.Before(reset) && local.Before(reset.Add(ambiguousWindow))
}

// Resolve computes the clear week for a tier.
//
// Ultimate content has no weekly lockout, so only the kill timestamp is
// used and no ambiguity adjustment applies. Savage prefers the fight-start
// timestamp (entering the instance before reset counts for the old week);
// when both the fight start and the kill fall inside the ambiguous window
// the computed week is reduced by one (never below 1) and the result is
// flagged, assuming the common entered-just-before-reset case. The
// asymmetry between the two content types is a deliberate heuristic, kept
// as observed rather than generalized.
func Resolve(tier domain.Tier, fightStart, clear time.Time) Result {
	if tier.Type == domain.TierUltimate {
		return Result{Week: WeekNumber(tier.ReleaseDate, clear)}
	}

	basis := fightStart
	if basis.IsZero() {
		basis = clear
	}
	week := WeekNumber(tier.ReleaseDate, basis)

	if InAmbiguousWindow(fightStart) && InAmbiguousWindow(clear) {
		if week > 1 {
			week--
		}
		return Result{Week: week, Ambiguous: true}
	}
	return Result{Week: week}
}
