package refdata

import (
	"sort"
	"time"

	"raidrecord/internal/domain"
	"raidrecord/internal/gameweek"
)

// TierTable is the static raid tier reference data, grouped by expansion.
// Built once at startup and shared read-only.
type TierTable struct {
	tiers []domain.Tier
	byID  map[string]domain.Tier
}

type tierDef struct {
	tierType         domain.TierType
	expansion        string
	fullName         string
	shortName        string
	releaseDate      string // YYYY-MM-DD
	zoneID           int
	partition        int
	encounterCount   int
	finalEncounterID int
}

var tierDefs = []tierDef{
	// Dawntrail
	{domain.TierSavage, "Dawntrail", "AAC Cruiserweight", "Cruiserweight", "2025-07-22", 68, 5, 4, 100},
	{domain.TierUltimate, "Dawntrail", "Futures Rewritten (Ultimate)", "FRU", "2025-04-15", 65, 5, 1, 1079},
	{domain.TierSavage, "Dawntrail", "AAC Light-heavyweight", "Light-heavyweight", "2025-01-14", 62, 11, 4, 96},
	// Endwalker
	{domain.TierSavage, "Endwalker", "Anabaseios", "Anabaseios", "2023-11-07", 54, 5, 5, 92},
	{domain.TierUltimate, "Endwalker", "The Omega Protocol (Ultimate)", "TOP", "2023-07-18", 53, 5, 1, 1068},
	{domain.TierSavage, "Endwalker", "Abyssos", "Abyssos", "2023-02-21", 49, 11, 5, 87},
	{domain.TierUltimate, "Endwalker", "Dragonsong's Reprise (Ultimate)", "DSR", "2022-10-25", 45, 5, 1, 1065},
	{domain.TierSavage, "Endwalker", "Asphodelos", "Asphodelos", "2022-06-21", 44, 5, 5, 82},
	// Shadowbringers
	{domain.TierSavage, "Shadowbringers", "Eden's Promise", "Promise", "2021-05-18", 38, 5, 5, 77},
	{domain.TierSavage, "Shadowbringers", "Eden's Verse", "Verse", "2020-09-01", 33, 5, 4, 72},
	{domain.TierUltimate, "Shadowbringers", "The Epic of Alexander (Ultimate)", "TEA", "2020-04-14", 32, 5, 1, 1050},
	{domain.TierSavage, "Shadowbringers", "Eden's Gate", "Gate", "2020-01-21", 29, 7, 4, 68},
}

// NewTierTable builds the tier table with release dates anchored to the
// weekly-reset timezone, so week arithmetic never depends on the host zone.
func NewTierTable() *TierTable {
	t := &TierTable{byID: make(map[string]domain.Tier, len(tierDefs))}
	for _, def := range tierDefs {
		release, err := time.ParseInLocation("2006-01-02", def.releaseDate, gameweek.ResetLocation)
		if err != nil {
			// The table is compiled in; a bad date is a programming error.
			panic(err)
		}
		tier := domain.Tier{
			Type:             def.tierType,
			Expansion:        def.expansion,
			FullName:         def.fullName,
			ShortName:        def.shortName,
			ReleaseDate:      release,
			ZoneID:           def.zoneID,
			Partition:        def.partition,
			EncounterCount:   def.encounterCount,
			FinalEncounterID: def.finalEncounterID,
		}
		t.tiers = append(t.tiers, tier)
		t.byID[tier.ID()] = tier
	}
	return t
}

// All returns every tier, newest release first.
func (t *TierTable) All() []domain.Tier {
	out := make([]domain.Tier, len(t.tiers))
	copy(out, t.tiers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReleaseDate.After(out[j].ReleaseDate)
	})
	return out
}

func (t *TierTable) Get(id string) (domain.Tier, bool) {
	tier, ok := t.byID[id]
	return tier, ok
}

// Select resolves a saved selection of tier IDs. A nil or empty selection
// means every tier, matching the behaviour when no preference was ever saved.
func (t *TierTable) Select(ids []string) []domain.Tier {
	all := t.All()
	if len(ids) == 0 {
		return all
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []domain.Tier
	for _, tier := range all {
		if _, ok := wanted[tier.ID()]; ok {
			out = append(out, tier)
		}
	}
	return out
}
