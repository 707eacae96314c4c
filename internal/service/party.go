package service

import (
	"encoding/json"
	"sort"
	"time"

	"raidrecord/internal/api"
	"raidrecord/internal/domain"
	"raidrecord/internal/refdata"

	"github.com/rs/zerolog"
)

// Actor names the remote system uses for synthetic report entries that are
// not real party members.
var syntheticActorNames = map[string]struct{}{
	"Multiple Players": {},
	"Limit Break":      {},
}

// PartyOutcome is the extraction for one report/fight pair of the report
// batch: the fight's party roster plus its absolute start and end
// timestamps, which feed the week resolution.
type PartyOutcome struct {
	Members    []domain.PartyMember
	FightStart time.Time
	ClearTime  time.Time
}

// ReconcilePartyBatch maps the report batch response back onto the input
// pair list. The result always has exactly len(pairs) entries in input
// order; a missing report or fight yields a nil entry without affecting the
// rest of the batch.
func ReconcilePartyBatch(data map[string]json.RawMessage, pairs []domain.ReportFight, jobs *refdata.JobTable, logger zerolog.Logger) []*PartyOutcome {
	outcomes := make([]*PartyOutcome, len(pairs))
	for i, pair := range pairs {
		raw, ok := data[api.Alias(i)]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}

		var report api.Report
		if err := json.Unmarshal(raw, &report); err != nil {
			logger.Warn().Err(err).Str("report", pair.ReportCode).Msg("failed to decode report sub-tree, skipping")
			continue
		}

		outcomes[i] = reconcileReport(&report, pair, jobs)
	}
	return outcomes
}

func reconcileReport(report *api.Report, pair domain.ReportFight, jobs *refdata.JobTable) *PartyOutcome {
	var fight *api.Fight
	for f := range report.Fights {
		if report.Fights[f].ID == pair.FightID {
			fight = &report.Fights[f]
			break
		}
	}
	if fight == nil {
		return nil
	}

	// Fight times are offsets from the report start.
	outcome := &PartyOutcome{
		FightStart: time.UnixMilli(report.StartTime + fight.StartTime),
		ClearTime:  time.UnixMilli(report.StartTime + fight.EndTime),
	}

	if report.MasterData == nil || len(fight.FriendlyPlayers) == 0 {
		return outcome
	}

	inFight := make(map[int]struct{}, len(fight.FriendlyPlayers))
	for _, id := range fight.FriendlyPlayers {
		inFight[id] = struct{}{}
	}

	for _, actor := range report.MasterData.Actors {
		if _, ok := inFight[actor.ID]; !ok {
			continue
		}
		if actor.Server == nil {
			continue
		}
		if _, synthetic := syntheticActorNames[actor.Name]; synthetic {
			continue
		}
		outcome.Members = append(outcome.Members, domain.PartyMember{
			Name:   actor.Name,
			Server: *actor.Server,
			Job:    jobs.Resolve(actor.SubType),
		})
	}

	sort.SliceStable(outcome.Members, func(a, b int) bool {
		oa, ob := jobs.Order(outcome.Members[a].Job), jobs.Order(outcome.Members[b].Job)
		if oa != ob {
			return oa < ob
		}
		return outcome.Members[a].Name < outcome.Members[b].Name
	})

	return outcome
}
