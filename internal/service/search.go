package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"raidrecord/internal/api"
	"raidrecord/internal/constants"
	"raidrecord/internal/domain"
	"raidrecord/internal/gameweek"
	"raidrecord/internal/refdata"

	"github.com/rs/zerolog"
)

// Transport is the single operation the search consumes from the API
// client.
type Transport interface {
	ExecuteQuery(ctx context.Context, query string, variables map[string]any, wantRateLimit bool) (*api.DataEnvelope, error)
}

// ErrCancelled is surfaced when the cooperative cancellation flag is
// observed at a checkpoint. Callers match it with errors.Is to show a
// cancellation message instead of the generic failure UI.
var ErrCancelled = errors.New("search cancelled")

// BudgetExceededError is raised before any network call when the planned
// work cannot be afforded against the last known hourly allowance. It
// carries enough data for the caller to build a user-facing message.
type BudgetExceededError struct {
	Required  float64
	Remaining float64
	ResetIn   time.Duration
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("insufficient API points: need %.0f, %.0f remaining, reset in %s",
		e.Required, e.Remaining, e.ResetIn.Round(time.Second))
}

// SearchService reconstructs a character's clearing record across the
// selected tiers in two batched round trips: one for every tier's rankings,
// one for every clear's report. One logical search runs at a time per
// instance; starting a second search while one is in flight is a caller
// error.
type SearchService struct {
	transport Transport
	budget    *api.BudgetTracker
	jobs      *refdata.JobTable
	logger    zerolog.Logger

	mu         sync.Mutex
	progressFn func(domain.SearchProgress)
	usageFn    func(domain.RateLimitSnapshot)
	cancelCtx  context.Context
	cancelFn   context.CancelFunc
}

func NewSearchService(transport Transport, budget *api.BudgetTracker, jobs *refdata.JobTable, logger zerolog.Logger) *SearchService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SearchService{
		transport: transport,
		budget:    budget,
		jobs:      jobs,
		logger:    logger,
		cancelCtx: ctx,
		cancelFn:  cancel,
	}
}

// SetProgressCallback installs the fire-and-forget progress hook, invoked
// synchronously before each of the two batch calls.
func (s *SearchService) SetProgressCallback(fn func(domain.SearchProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressFn = fn
}

// SetAPIUsageCallback installs the usage hook, invoked synchronously after
// every batch call that refreshed the rate-limit snapshot.
func (s *SearchService) SetAPIUsageCallback(fn func(domain.RateLimitSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usageFn = fn
}

// Cancel requests cooperative cancellation. Any in-flight network call is
// allowed to complete (so a late rate-limit snapshot is still recorded) but
// its result is discarded at the next checkpoint.
func (s *SearchService) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFn()
}

// ResetCancel rearms the service for a new search. Must be called before
// reuse after a cancellation.
func (s *SearchService) ResetCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCtx, s.cancelFn = context.WithCancel(context.Background())
}

func (s *SearchService) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelCtx.Err() != nil
}

func (s *SearchService) emitProgress(p domain.SearchProgress) {
	s.mu.Lock()
	fn := s.progressFn
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (s *SearchService) emitUsage() {
	s.mu.Lock()
	fn := s.usageFn
	s.mu.Unlock()
	if fn == nil {
		return
	}
	if snap, ok := s.budget.Snapshot(); ok {
		fn(snap)
	}
}

// GetRaidHistory runs one full search. Results come back in tier input
// order with failed or clear-less tiers omitted; sorting by release date is
// the caller's separate, idempotent step (SortByRelease).
func (s *SearchService) GetRaidHistory(ctx context.Context, characterID int, tiers []domain.Tier) ([]domain.TierClearRecord, error) {
	if s.cancelled() {
		return nil, ErrCancelled
	}
	if len(tiers) == 0 {
		return []domain.TierClearRecord{}, nil
	}

	required := float64(len(tiers)) * constants.PointsPerTier
	if err := s.checkBudget(required); err != nil {
		return nil, err
	}

	s.logger.Info().Int("character_id", characterID).Int("tier_count", len(tiers)).Msg("starting raid history search")

	s.emitProgress(domain.SearchProgress{Step: 1, Total: 2, Stage: "fetching raid data"})

	tierQuery, err := api.BuildTierBatch(characterID, tiers)
	if err != nil {
		return nil, fmt.Errorf("failed to build tier batch: %w", err)
	}
	tierData, err := s.transport.ExecuteQuery(ctx, tierQuery.Query, tierQuery.Variables, true)
	if err != nil {
		return nil, err
	}
	s.emitUsage()

	if s.cancelled() {
		return nil, ErrCancelled
	}

	outcomes := ReconcileTierBatch(tierData.CharacterData, tiers, s.jobs, s.logger)

	// Second round trip: party and fight-time lookups for every tier whose
	// earliest clear carries a report reference. Tier indices are kept so
	// the positional party results map back.
	var pairs []domain.ReportFight
	var pairTier []int
	for i, outcome := range outcomes {
		if outcome == nil || outcome.EarliestClear == nil || outcome.EarliestClear.Report == nil {
			continue
		}
		ref := outcome.EarliestClear.Report
		if ref.Code == "" || ref.FightID == 0 {
			continue
		}
		pairs = append(pairs, domain.ReportFight{ReportCode: ref.Code, FightID: ref.FightID})
		pairTier = append(pairTier, i)
	}

	parties := make([]*PartyOutcome, len(outcomes))
	if len(pairs) > 0 {
		if err := s.checkBudget(float64(len(pairs)) * constants.PointsPerReport); err != nil {
			return nil, err
		}

		s.emitProgress(domain.SearchProgress{Step: 2, Total: 2, Stage: "fetching party data"})

		reportQuery, err := api.BuildReportBatch(pairs)
		if err != nil {
			return nil, fmt.Errorf("failed to build report batch: %w", err)
		}
		reportData, err := s.transport.ExecuteQuery(ctx, reportQuery.Query, reportQuery.Variables, true)
		if err != nil {
			return nil, err
		}
		s.emitUsage()

		if s.cancelled() {
			return nil, ErrCancelled
		}

		for pi, outcome := range ReconcilePartyBatch(reportData.ReportData, pairs, s.jobs, s.logger) {
			parties[pairTier[pi]] = outcome
		}
	}

	records := make([]domain.TierClearRecord, 0, len(tiers))
	for i, outcome := range outcomes {
		if outcome == nil || outcome.EarliestClear == nil {
			continue
		}
		records = append(records, s.assembleRecord(outcome, parties[i]))
	}

	s.logger.Info().Int("character_id", characterID).Int("result_count", len(records)).Msg("raid history search completed")
	return records, nil
}

func (s *SearchService) checkBudget(required float64) error {
	if s.budget.HasEnough(required) {
		return nil
	}
	remaining, _ := s.budget.Remaining()
	return &BudgetExceededError{
		Required:  required,
		Remaining: remaining,
		ResetIn:   s.budget.ResetETA(),
	}
}

func (s *SearchService) assembleRecord(outcome *TierOutcome, party *PartyOutcome) domain.TierClearRecord {
	tier := outcome.Tier
	clear := outcome.EarliestClear

	record := domain.TierClearRecord{
		Tier:              tier,
		TierID:            tier.ID(),
		TierName:          tier.FullName,
		Expansion:         tier.Expansion,
		Job:               s.jobs.Resolve(clear.Spec),
		AllStar:           outcome.AllStar,
		EncounterAllStars: outcome.EncounterAllStars,
		JobUsage:          outcome.JobUsage,
	}
	if clear.Report != nil && clear.Report.Code != "" {
		record.Report = &domain.ReportFight{ReportCode: clear.Report.Code, FightID: clear.Report.FightID}
	}

	// The parse list only carries pull starts. The report lookup refines
	// that into true start/kill instants; without it the pull start stands
	// in for both.
	var fightStart, clearTime time.Time
	if !outcome.SummaryOnly && clear.StartTime > 0 {
		fightStart = time.UnixMilli(clear.StartTime)
		clearTime = fightStart
	}
	if party != nil {
		if !party.FightStart.IsZero() {
			fightStart = party.FightStart
		}
		if !party.ClearTime.IsZero() {
			clearTime = party.ClearTime
		}
		record.PartyMembers = party.Members
	}
	record.FightStart = fightStart
	record.ClearTime = clearTime

	if !clearTime.IsZero() {
		resolved := gameweek.Resolve(tier, fightStart, clearTime)
		record.Week = resolved.Week
		record.WeekAmbiguous = resolved.Ambiguous
	}

	return record
}

// SortByRelease orders records newest release first. Idempotent; applied by
// the caller after the search returns.
func SortByRelease(records []domain.TierClearRecord) {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Tier.ReleaseDate.After(records[b].Tier.ReleaseDate)
	})
}
