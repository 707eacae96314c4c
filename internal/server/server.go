package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"raidrecord/internal/api"
	"raidrecord/internal/config"
	"raidrecord/internal/constants"
	"raidrecord/internal/domain"
	"raidrecord/internal/refdata"
	"raidrecord/internal/repository"
	"raidrecord/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type RaidRecordServer struct {
	characters *service.CharacterService
	search     *service.SearchService
	client     *api.Client
	settings   *repository.SettingsRepository
	history    *repository.HistoryRepository
	tiers      *refdata.TierTable
	servers    *refdata.ServerTable
	hub        *EventHub
	cfg        *config.Config
	logger     zerolog.Logger

	searching atomic.Bool
}

func NewRaidRecordServer(
	characters *service.CharacterService,
	search *service.SearchService,
	client *api.Client,
	settings *repository.SettingsRepository,
	history *repository.HistoryRepository,
	tiers *refdata.TierTable,
	servers *refdata.ServerTable,
	hub *EventHub,
	cfg *config.Config,
	logger zerolog.Logger,
) *RaidRecordServer {
	return &RaidRecordServer{
		characters: characters,
		search:     search,
		client:     client,
		settings:   settings,
		history:    history,
		tiers:      tiers,
		servers:    servers,
		hub:        hub,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *RaidRecordServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/search/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /api/tiers", s.handleGetTiers)
	mux.HandleFunc("PUT /api/tiers", s.handlePutTiers)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/settings", s.handleSettings)
	mux.Handle("GET /ws/events", s.hub)
	return mux
}

type searchRequest struct {
	Input  string `json:"input"`
	Server string `json:"server"`
}

type searchResponse struct {
	Character           *domain.Character        `json:"character,omitempty"`
	Records             []domain.TierClearRecord `json:"records,omitempty"`
	Usage               *UsageReport             `json:"usage,omitempty"`
	NeedServerSelection bool                     `json:"needServerSelection,omitempty"`
	Servers             []string                 `json:"servers,omitempty"`
}

func (s *RaidRecordServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name, parsedServer := ParseCharacterInput(req.Input, s.servers)
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid character name")
		return
	}
	server := req.Server
	if server == "" {
		server = parsedServer
	}

	if !s.client.HasCredentials() {
		writeError(w, http.StatusPreconditionFailed, "API credentials not configured")
		return
	}

	if s.searching.Swap(true) {
		writeError(w, http.StatusConflict, "a search is already in progress")
		return
	}
	defer s.searching.Store(false)

	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	if server == "" {
		existing, err := s.checkServers(ctx, name)
		if err != nil {
			s.writeSearchError(w, err)
			return
		}
		switch len(existing) {
		case 0:
			writeError(w, http.StatusNotFound, "character not found on any server")
			return
		case 1:
			server = existing[0]
		default:
			writeJSON(w, http.StatusOK, searchResponse{NeedServerSelection: true, Servers: existing})
			return
		}
	}

	started := time.Now()
	s.search.ResetCancel()

	character, err := s.characters.Search(ctx, name, server, s.cfg.Region)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}

	if err := s.settings.SaveLastSearch(ctx, req.Input); err != nil {
		s.logger.Warn().Err(err).Msg("failed to save last search")
	}

	ids, err := s.settings.SelectedTierIDs(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load tier selection, using all tiers")
	}
	selected := s.tiers.Select(ids)

	s.search.SetProgressCallback(func(p domain.SearchProgress) {
		s.hub.Broadcast("progress", p)
	})
	s.search.SetAPIUsageCallback(func(snap domain.RateLimitSnapshot) {
		report := BuildUsageReport(snap)
		s.hub.Broadcast("usage", report)
	})
	// Callbacks belong to this search only; an idle service holds none.
	defer s.search.SetProgressCallback(nil)
	defer s.search.SetAPIUsageCallback(nil)

	records, err := s.search.GetRaidHistory(ctx, character.ID, selected)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	service.SortByRelease(records)

	g := new(errgroup.Group)
	g.Go(func() error {
		recordCtx, recordCancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer recordCancel()
		return s.history.Record(recordCtx, repository.SearchHistoryEntry{
			SearchInput:   req.Input,
			CharacterName: character.Name,
			Server:        character.Server,
			ResultCount:   len(records),
			DurationMS:    time.Since(started).Milliseconds(),
		})
	})
	go func() {
		if err := g.Wait(); err != nil {
			s.logger.Error().Err(err).Msg("failed to record search history")
		}
	}()

	resp := searchResponse{Character: character, Records: records}
	if snap, ok := s.client.Budget().Snapshot(); ok {
		report := BuildUsageReport(snap)
		resp.Usage = &report
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkServers probes every server and returns the ones where the name
// exists.
func (s *RaidRecordServer) checkServers(ctx context.Context, name string) ([]string, error) {
	existence, err := s.characters.CheckServers(ctx, name, s.cfg.Region)
	if err != nil {
		return nil, err
	}
	var existing []string
	for _, server := range s.servers.Names() {
		if existence[server] != 0 {
			existing = append(existing, server)
		}
	}
	return existing, nil
}

func (s *RaidRecordServer) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.search.Cancel()
	s.logger.Info().Msg("search cancellation requested")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *RaidRecordServer) handleUsage(w http.ResponseWriter, r *http.Request) {
	ids, err := s.settings.SelectedTierIDs(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load tier selection")
	}
	selectedCount := len(s.tiers.Select(ids))

	resp := map[string]any{
		"hasCredentials":    s.client.HasCredentials(),
		"selectedTierCount": selectedCount,
		"requiredPoints":    float64(selectedCount) * constants.PointsPerTier,
	}
	if snap, ok := s.client.Budget().Snapshot(); ok {
		resp["usage"] = BuildUsageReport(snap)
	}
	writeJSON(w, http.StatusOK, resp)
}

type tierView struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	ShortName string `json:"shortName"`
	Type      string `json:"type"`
	Selected  bool   `json:"selected"`
}

type expansionView struct {
	Expansion string     `json:"expansion"`
	Tiers     []tierView `json:"tiers"`
}

func (s *RaidRecordServer) handleGetTiers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.settings.SelectedTierIDs(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load tier selection")
	}
	selected := make(map[string]struct{})
	for _, tier := range s.tiers.Select(ids) {
		selected[tier.ID()] = struct{}{}
	}

	var expansions []expansionView
	for _, tier := range s.tiers.All() {
		_, isSelected := selected[tier.ID()]
		view := tierView{
			ID:        tier.ID(),
			FullName:  tier.FullName,
			ShortName: tier.ShortName,
			Type:      string(tier.Type),
			Selected:  isSelected,
		}
		if n := len(expansions); n > 0 && expansions[n-1].Expansion == tier.Expansion {
			expansions[n-1].Tiers = append(expansions[n-1].Tiers, view)
			continue
		}
		expansions = append(expansions, expansionView{Expansion: tier.Expansion, Tiers: []tierView{view}})
	}
	writeJSON(w, http.StatusOK, expansions)
}

func (s *RaidRecordServer) handlePutTiers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settings.SaveSelectedTierIDs(r.Context(), req.IDs); err != nil {
		s.logger.Error().Err(err).Msg("failed to save tier selection")
		writeError(w, http.StatusInternalServerError, "failed to save tier selection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *RaidRecordServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.Recent(r.Context(), constants.SearchHistoryLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load search history")
		writeError(w, http.StatusInternalServerError, "failed to load search history")
		return
	}
	lastSearch, err := s.settings.LastSearch(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load last search")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lastSearch": lastSearch,
		"entries":    entries,
	})
}

func (s *RaidRecordServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		writeError(w, http.StatusBadRequest, "both clientId and clientSecret are required")
		return
	}

	if err := s.settings.SaveCredentials(r.Context(), req.ClientID, req.ClientSecret); err != nil {
		s.logger.Error().Err(err).Msg("failed to save credentials")
		writeError(w, http.StatusInternalServerError, "failed to save credentials")
		return
	}
	s.client.SetCredentials(req.ClientID, req.ClientSecret)
	s.logger.Info().Msg("API credentials updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *RaidRecordServer) writeSearchError(w http.ResponseWriter, err error) {
	var budgetErr *service.BudgetExceededError
	var transportErr *api.TransportError

	switch {
	case errors.Is(err, service.ErrCancelled):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cancelled"})
	case errors.As(err, &budgetErr):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":        "budget exceeded",
			"required":     budgetErr.Required,
			"remaining":    budgetErr.Remaining,
			"resetSeconds": int(budgetErr.ResetIn.Seconds()),
		})
	case errors.Is(err, service.ErrCharacterNotFound):
		writeError(w, http.StatusNotFound, "character not found")
	case errors.As(err, &transportErr):
		s.logger.Error().Err(err).Msg("upstream API failure")
		writeError(w, http.StatusBadGateway, "upstream API failure")
	default:
		s.logger.Error().Err(err).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
