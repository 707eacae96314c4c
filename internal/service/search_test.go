package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"raidrecord/internal/api"
	"raidrecord/internal/domain"
	"raidrecord/internal/refdata"

	"github.com/rs/zerolog"
)

// fakeTransport replays canned envelopes in call order. onCall runs before
// each response is returned, standing in for things that happen while a
// request is in flight.
type fakeTransport struct {
	envelopes []*api.DataEnvelope
	errs      []error
	queries   []string
	onCall    func(call int)
}

func (f *fakeTransport) ExecuteQuery(_ context.Context, query string, _ map[string]any, _ bool) (*api.DataEnvelope, error) {
	call := len(f.queries)
	f.queries = append(f.queries, query)
	if f.onCall != nil {
		f.onCall(call)
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call >= len(f.envelopes) {
		return nil, fmt.Errorf("unexpected call %d", call)
	}
	return f.envelopes[call], nil
}

func newSearchService(transport Transport) (*SearchService, *api.BudgetTracker) {
	budget := api.NewBudgetTracker()
	return NewSearchService(transport, budget, refdata.NewJobTable(), zerolog.Nop()), budget
}

func searchTiers(n int) []domain.Tier {
	tiers := make([]domain.Tier, n)
	for i := range tiers {
		tiers[i] = domain.Tier{
			Type:             domain.TierSavage,
			FullName:         fmt.Sprintf("Tier %d", i),
			Expansion:        "Dawntrail",
			ReleaseDate:      time.Date(2025, 7, 22, 0, 0, 0, 0, time.UTC).AddDate(0, -6*i, 0),
			ZoneID:           60 + i,
			Partition:        5,
			FinalEncounterID: 90 + i,
		}
	}
	return tiers
}

func tierEnvelope(items map[string]string) *api.DataEnvelope {
	data := make(map[string]json.RawMessage, len(items))
	for alias, body := range items {
		data[alias] = json.RawMessage(body)
	}
	return &api.DataEnvelope{CharacterData: data}
}

func reportEnvelope(items map[string]string) *api.DataEnvelope {
	data := make(map[string]json.RawMessage, len(items))
	for alias, body := range items {
		data[alias] = json.RawMessage(body)
	}
	return &api.DataEnvelope{ReportData: data}
}

func clearSubtree(startMilli int64, spec, code string, fightID int) string {
	return fmt.Sprintf(`{"encounterRankings":{"totalKills":1,"ranks":[%s]}}`,
		rankJSON(startMilli, spec, code, fightID))
}

func simpleReport(reportStart, fightStart, fightEnd int64) string {
	return fmt.Sprintf(`{
		"startTime": %d,
		"fights": [{"id": 1, "startTime": %d, "endTime": %d, "friendlyPlayers": [1]}],
		"masterData": {"actors": [{"id": 1, "name": "Solo Player", "server": "Carbuncle", "subType": "Scholar"}]}
	}`, reportStart, fightStart, fightEnd)
}

func TestGetRaidHistoryEmptyTierList(t *testing.T) {
	transport := &fakeTransport{}
	svc, _ := newSearchService(transport)

	records, err := svc.GetRaidHistory(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("GetRaidHistory failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %+v, want empty", records)
	}
	if len(transport.queries) != 0 {
		t.Error("empty tier list must not reach the network")
	}
}

func TestGetRaidHistoryTwoRoundTrips(t *testing.T) {
	tiers := searchTiers(2)
	reportStart := time.Date(2025, 7, 24, 20, 0, 0, 0, time.UTC).UnixMilli()
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			tierEnvelope(map[string]string{
				"item0": clearSubtree(reportStart+60000, "Scholar", "aaa", 1),
				"item1": clearSubtree(reportStart+60000, "Sage", "bbb", 1),
			}),
			reportEnvelope(map[string]string{
				"item0": simpleReport(reportStart, 60000, 600000),
				"item1": simpleReport(reportStart, 60000, 600000),
			}),
		},
	}
	svc, _ := newSearchService(transport)

	var progress []domain.SearchProgress
	svc.SetProgressCallback(func(p domain.SearchProgress) { progress = append(progress, p) })

	records, err := svc.GetRaidHistory(context.Background(), 1, tiers)
	if err != nil {
		t.Fatalf("GetRaidHistory failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if len(transport.queries) != 2 {
		t.Fatalf("got %d network calls, want 2", len(transport.queries))
	}
	if !strings.Contains(transport.queries[0], "characterData") || !strings.Contains(transport.queries[1], "reportData") {
		t.Error("round trips out of order")
	}

	rec := records[0]
	if rec.Job != "Scholar" || rec.TierName != "Tier 0" {
		t.Errorf("record = %+v", rec)
	}
	if want := time.UnixMilli(reportStart + 600000); !rec.ClearTime.Equal(want) {
		t.Errorf("ClearTime = %v, want report-refined %v", rec.ClearTime, want)
	}
	if len(rec.PartyMembers) != 1 || rec.PartyMembers[0].Name != "Solo Player" {
		t.Errorf("PartyMembers = %+v", rec.PartyMembers)
	}
	if rec.Week != 1 {
		t.Errorf("Week = %d, want 1", rec.Week)
	}

	wantProgress := []domain.SearchProgress{
		{Step: 1, Total: 2, Stage: "fetching raid data"},
		{Step: 2, Total: 2, Stage: "fetching party data"},
	}
	if len(progress) != len(wantProgress) {
		t.Fatalf("progress = %+v", progress)
	}
	for i := range wantProgress {
		if progress[i] != wantProgress[i] {
			t.Errorf("progress[%d] = %+v, want %+v", i, progress[i], wantProgress[i])
		}
	}
}

func TestGetRaidHistoryOmitsClearlessTiers(t *testing.T) {
	tiers := searchTiers(3)
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			tierEnvelope(map[string]string{
				"item0": clearSubtree(1000, "Scholar", "aaa", 1),
				"item1": `{"encounterRankings":{"totalKills":0,"ranks":[]}}`,
				"item2": clearSubtree(2000, "Sage", "bbb", 1),
			}),
			reportEnvelope(map[string]string{
				"item0": simpleReport(0, 1000, 2000),
				"item1": simpleReport(0, 2000, 3000),
			}),
		},
	}
	svc, _ := newSearchService(transport)

	records, err := svc.GetRaidHistory(context.Background(), 1, tiers)
	if err != nil {
		t.Fatalf("GetRaidHistory failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (clear-less tier omitted)", len(records))
	}
	if records[0].TierName != "Tier 0" || records[1].TierName != "Tier 2" {
		t.Errorf("records mapped to wrong tiers: %s, %s", records[0].TierName, records[1].TierName)
	}
}

func TestGetRaidHistoryBudgetExceeded(t *testing.T) {
	transport := &fakeTransport{}
	svc, budget := newSearchService(transport)
	budget.UpdateSnapshot(domain.RateLimitSnapshot{
		LimitPerHour:        3600,
		PointsSpentThisHour: 3590,
		PointsResetIn:       600,
	})

	_, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(2))
	var budgetErr *BudgetExceededError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("err = %v, want BudgetExceededError", err)
	}
	if budgetErr.Required != 40 || budgetErr.Remaining != 10 {
		t.Errorf("budget error = %+v", budgetErr)
	}
	if budgetErr.ResetIn != 600*time.Second {
		t.Errorf("ResetIn = %v", budgetErr.ResetIn)
	}
	if len(transport.queries) != 0 {
		t.Error("over-budget search must not reach the network")
	}
}

func TestGetRaidHistoryCancelledBeforeStart(t *testing.T) {
	transport := &fakeTransport{}
	svc, _ := newSearchService(transport)
	svc.Cancel()

	_, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(1))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if len(transport.queries) != 0 {
		t.Error("pre-cancelled search must not reach the network")
	}
}

func TestGetRaidHistoryCancelledMidSearch(t *testing.T) {
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			tierEnvelope(map[string]string{"item0": clearSubtree(1000, "Scholar", "aaa", 1)}),
		},
	}
	svc, _ := newSearchService(transport)
	// cancellation lands while the first call is in flight; the call itself
	// completes, the checkpoint after it discards the result
	transport.onCall = func(int) { svc.Cancel() }

	records, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(1))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if records != nil {
		t.Error("cancelled search must not return partial records")
	}
	if len(transport.queries) != 1 {
		t.Errorf("got %d calls, want 1 (no second round trip after cancel)", len(transport.queries))
	}
}

func TestGetRaidHistoryResetCancelRearms(t *testing.T) {
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			tierEnvelope(map[string]string{"item0": `{"encounterRankings":{"totalKills":0,"ranks":[]}}`}),
		},
	}
	svc, _ := newSearchService(transport)
	svc.Cancel()
	svc.ResetCancel()

	if _, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(1)); err != nil {
		t.Fatalf("rearmed search failed: %v", err)
	}
}

func TestGetRaidHistoryTransportErrorPassesThrough(t *testing.T) {
	wantErr := &api.TransportError{StatusCode: 502}
	transport := &fakeTransport{errs: []error{wantErr}}
	svc, _ := newSearchService(transport)

	_, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(1))
	var transportErr *api.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestGetRaidHistoryUsageCallback(t *testing.T) {
	tiers := searchTiers(1)
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			tierEnvelope(map[string]string{"item0": clearSubtree(1000, "Scholar", "aaa", 1)}),
			reportEnvelope(map[string]string{"item0": simpleReport(0, 1000, 2000)}),
		},
	}
	svc, budget := newSearchService(transport)

	// the transport normally feeds the tracker from returned snapshots;
	// simulate that on each call
	spends := []float64{20, 25}
	transport.onCall = func(call int) {
		budget.UpdateSnapshot(domain.RateLimitSnapshot{
			LimitPerHour:        3600,
			PointsSpentThisHour: spends[call],
			PointsResetIn:       1800,
		})
	}

	var seen []float64
	svc.SetAPIUsageCallback(func(snap domain.RateLimitSnapshot) {
		seen = append(seen, snap.PointsSpentThisHour)
	})

	if _, err := svc.GetRaidHistory(context.Background(), 1, tiers); err != nil {
		t.Fatalf("GetRaidHistory failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != 20 || seen[1] != 25 {
		t.Errorf("usage callbacks saw %v, want [20 25]", seen)
	}
}

func TestGetRaidHistorySummaryOnlyClearHasNoTimestamps(t *testing.T) {
	tiers := searchTiers(1)
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			tierEnvelope(map[string]string{
				"item0": fmt.Sprintf(`{
					"zoneRankings": {"rankings":[{"encounter":{"id":%d,"name":"Final"},"totalKills":1,"spec":"Scholar"}]},
					"encounterRankings": {"totalKills":0,"ranks":[]}
				}`, tiers[0].FinalEncounterID),
			}),
		},
	}
	svc, _ := newSearchService(transport)

	records, err := svc.GetRaidHistory(context.Background(), 1, tiers)
	if err != nil {
		t.Fatalf("GetRaidHistory failed: %v", err)
	}
	if len(transport.queries) != 1 {
		t.Error("summary-only clears have no reports to look up")
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Job != "Scholar" {
		t.Errorf("Job = %s", rec.Job)
	}
	if !rec.ClearTime.IsZero() || rec.Week != 0 {
		t.Errorf("summary-only record must have unknown time and week, got %v week %d", rec.ClearTime, rec.Week)
	}
}

func TestGetRaidHistoryClearedCallbacksStaySilent(t *testing.T) {
	envelope := func() *api.DataEnvelope {
		return tierEnvelope(map[string]string{"item0": `{"encounterRankings":{"totalKills":0,"ranks":[]}}`})
	}
	transport := &fakeTransport{envelopes: []*api.DataEnvelope{envelope(), envelope()}}
	svc, budget := newSearchService(transport)
	budget.UpdateSnapshot(domain.RateLimitSnapshot{LimitPerHour: 3600, PointsResetIn: 1800})

	var progressCalls, usageCalls int
	svc.SetProgressCallback(func(domain.SearchProgress) { progressCalls++ })
	svc.SetAPIUsageCallback(func(domain.RateLimitSnapshot) { usageCalls++ })

	if _, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(1)); err != nil {
		t.Fatalf("GetRaidHistory failed: %v", err)
	}
	if progressCalls != 1 || usageCalls != 1 {
		t.Fatalf("first search: progress %d, usage %d", progressCalls, usageCalls)
	}

	// the caller hands callbacks back after its search; a later search
	// started without new ones must not fire the old closures
	svc.SetProgressCallback(nil)
	svc.SetAPIUsageCallback(nil)

	if _, err := svc.GetRaidHistory(context.Background(), 1, searchTiers(1)); err != nil {
		t.Fatalf("second search failed: %v", err)
	}
	if progressCalls != 1 || usageCalls != 1 {
		t.Errorf("cleared callbacks fired again: progress %d, usage %d", progressCalls, usageCalls)
	}
}

func TestSortByRelease(t *testing.T) {
	tiers := searchTiers(3) // index 0 newest
	records := []domain.TierClearRecord{
		{Tier: tiers[2], TierName: tiers[2].FullName},
		{Tier: tiers[0], TierName: tiers[0].FullName},
		{Tier: tiers[1], TierName: tiers[1].FullName},
	}

	SortByRelease(records)
	if records[0].TierName != "Tier 0" || records[1].TierName != "Tier 1" || records[2].TierName != "Tier 2" {
		t.Errorf("order = %s, %s, %s", records[0].TierName, records[1].TierName, records[2].TierName)
	}

	// idempotent
	SortByRelease(records)
	if records[0].TierName != "Tier 0" {
		t.Error("second sort changed the order")
	}
}
