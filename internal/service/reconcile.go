package service

import (
	"encoding/json"
	"sort"

	"raidrecord/internal/api"
	"raidrecord/internal/domain"
	"raidrecord/internal/refdata"

	"github.com/rs/zerolog"
)

// TierOutcome is the normalized extraction for one tier of the tier batch.
// A nil outcome means the tier's sub-tree was absent, unparseable, or held
// no clear.
type TierOutcome struct {
	Tier              domain.Tier
	EarliestClear     *api.ParseRank
	SummaryOnly       bool // earliest came from the ranking summary, no timestamp available
	AllStar           *domain.AllStarEntry
	EncounterAllStars []domain.EncounterAllStar
	JobUsage          []domain.JobUsage
}

// ReconcileTierBatch maps the tier batch response back onto the input tier
// list. The result always has exactly len(tiers) entries in input order;
// any single tier's sub-tree being missing or malformed yields a nil entry
// there and never affects its neighbours.
func ReconcileTierBatch(data map[string]json.RawMessage, tiers []domain.Tier, jobs *refdata.JobTable, logger zerolog.Logger) []*TierOutcome {
	outcomes := make([]*TierOutcome, len(tiers))
	for i, tier := range tiers {
		raw, ok := data[api.Alias(i)]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}

		var rankings api.TierRankings
		if err := json.Unmarshal(raw, &rankings); err != nil {
			logger.Warn().Err(err).Str("tier", tier.ID()).Msg("failed to decode tier sub-tree, skipping")
			continue
		}

		outcomes[i] = reconcileTier(tier, &rankings, jobs)
	}
	return outcomes
}

func reconcileTier(tier domain.Tier, rankings *api.TierRankings, jobs *refdata.JobTable) *TierOutcome {
	outcome := &TierOutcome{Tier: tier}

	var ranks []api.ParseRank
	if rankings.EncounterRankings != nil {
		ranks = rankings.EncounterRankings.Ranks
	}

	if len(ranks) > 0 {
		// Source order of the parse list is not guaranteed; sort a copy
		// ascending by pull start to find the chronologically first kill.
		sorted := make([]api.ParseRank, len(ranks))
		copy(sorted, ranks)
		sort.SliceStable(sorted, func(a, b int) bool {
			return sorted[a].StartTime < sorted[b].StartTime
		})
		earliest := sorted[0]
		outcome.EarliestClear = &earliest
		outcome.JobUsage = jobFrequency(ranks, jobs)
	} else if summary := summaryClear(tier, rankings.ZoneRankings, jobs); summary != nil {
		outcome.EarliestClear = summary
		outcome.SummaryOnly = true
	} else {
		return nil
	}

	if rankings.ZoneRankings != nil {
		outcome.AllStar = bestAllStar(rankings.ZoneRankings.AllStars, jobs)
		outcome.EncounterAllStars = encounterAllStars(rankings.ZoneRankings.Rankings, jobs)
	}

	return outcome
}

// summaryClear falls back to the coarse per-tier ranking summary when no
// individual parses came back. The summary carries a spec but no usable
// timestamp or report reference.
func summaryClear(tier domain.Tier, zone *api.ZoneRankings, jobs *refdata.JobTable) *api.ParseRank {
	if zone == nil {
		return nil
	}
	for _, ranking := range zone.Rankings {
		if ranking.Encounter == nil || ranking.Encounter.ID != tier.FinalEncounterID {
			continue
		}
		if ranking.TotalKills == 0 {
			continue
		}
		spec := ranking.Spec
		if spec.IsZero() {
			spec = ranking.BestSpec
		}
		return &api.ParseRank{Spec: spec}
	}
	return nil
}

// jobFrequency groups every observed clear by resolved job. Output is
// ordered by count descending, then by the smallest source index ascending,
// so more frequently and more recently used jobs come first,
// deterministically.
func jobFrequency(ranks []api.ParseRank, jobs *refdata.JobTable) []domain.JobUsage {
	byJob := make(map[string]*domain.JobUsage)
	var order []string
	for i, rank := range ranks {
		job := jobs.Resolve(rank.Spec)
		if usage, ok := byJob[job]; ok {
			usage.Count++
			if i < usage.FirstSeen {
				usage.FirstSeen = i
			}
			continue
		}
		byJob[job] = &domain.JobUsage{Job: job, Count: 1, FirstSeen: i}
		order = append(order, job)
	}

	out := make([]domain.JobUsage, 0, len(order))
	for _, job := range order {
		out = append(out, *byJob[job])
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].FirstSeen < out[b].FirstSeen
	})
	return out
}

// bestAllStar picks the maximum-points entry among the possibly-multiple
// per-job all-star entries, ties broken by first encountered.
func bestAllStar(entries []api.AllStarScore, jobs *refdata.JobTable) *domain.AllStarEntry {
	var best *api.AllStarScore
	for i := range entries {
		if best == nil || entries[i].Points > best.Points {
			best = &entries[i]
		}
	}
	if best == nil {
		return nil
	}
	return &domain.AllStarEntry{
		Job:    jobs.Resolve(best.Spec),
		Points: best.Points,
		Rank:   best.Rank,
		Total:  best.Total,
	}
}

// encounterAllStars extracts the per-boss all-star breakdowns present in
// the ranking summary.
func encounterAllStars(rankings []api.EncounterRanking, jobs *refdata.JobTable) []domain.EncounterAllStar {
	var out []domain.EncounterAllStar
	for _, ranking := range rankings {
		if ranking.AllStars == nil || ranking.Encounter == nil {
			continue
		}
		job := jobs.Resolve(ranking.AllStars.Spec)
		if ranking.AllStars.Spec.IsZero() {
			job = jobs.Resolve(ranking.Spec)
		}
		out = append(out, domain.EncounterAllStar{
			EncounterID:   ranking.Encounter.ID,
			EncounterName: ranking.Encounter.Name,
			Job:           job,
			Points:        ranking.AllStars.Points,
			Rank:          ranking.AllStars.Rank,
			Total:         ranking.AllStars.Total,
		})
	}
	return out
}
