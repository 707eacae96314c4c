package refdata

import (
	"strings"

	"raidrecord/internal/domain"
)

// UnknownJob is the fallback for spec identifiers the table does not know.
const UnknownJob = "Unknown"

// JobTable resolves remote spec identifiers (legacy numeric ids from report
// actors, string spec names from ranking payloads) to canonical job names.
type JobTable struct {
	byLegacyID map[int]string
	order      map[string]int
}

// Canonical job names, in role order (tanks, healers, melee, physical
// ranged, casters). The slice order doubles as the display sort order.
var jobNames = []string{
	"Paladin", "Warrior", "DarkKnight", "Gunbreaker",
	"WhiteMage", "Scholar", "Astrologian", "Sage",
	"Monk", "Dragoon", "Ninja", "Samurai", "Reaper", "Viper",
	"Bard", "Machinist", "Dancer",
	"BlackMage", "Summoner", "RedMage", "Pictomancer",
	"BlueMage",
}

var legacyJobIDs = map[int]string{
	19: "Paladin",
	21: "Warrior",
	32: "DarkKnight",
	37: "Gunbreaker",

	24: "WhiteMage",
	28: "Scholar",
	33: "Astrologian",
	40: "Sage",

	20: "Monk",
	22: "Dragoon",
	30: "Ninja",
	34: "Samurai",
	39: "Reaper",
	41: "Viper",

	23: "Bard",
	31: "Machinist",
	38: "Dancer",

	25: "BlackMage",
	27: "Summoner",
	35: "RedMage",
	42: "Pictomancer",

	36: "BlueMage",
}

func NewJobTable() *JobTable {
	t := &JobTable{
		byLegacyID: legacyJobIDs,
		order:      make(map[string]int, len(jobNames)),
	}
	for i, name := range jobNames {
		t.order[name] = i
	}
	return t
}

// Resolve maps a spec identifier to a canonical job name. String spec names
// pass through with spaces stripped ("Dark Knight" -> "DarkKnight"); legacy
// numeric ids go through the lookup table. Unrecognized input resolves to
// UnknownJob rather than failing.
func (t *JobTable) Resolve(spec domain.SpecID) string {
	if spec.IsZero() {
		return UnknownJob
	}
	if spec.Numeric {
		if name, ok := t.byLegacyID[spec.LegacyID]; ok {
			return name
		}
		return UnknownJob
	}
	return strings.ReplaceAll(spec.Name, " ", "")
}

// Order returns the role-based sort position for a job name. Unknown jobs
// sort last.
func (t *JobTable) Order(job string) int {
	if pos, ok := t.order[job]; ok {
		return pos
	}
	return len(jobNames)
}
