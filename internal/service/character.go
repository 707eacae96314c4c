package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"raidrecord/internal/api"
	"raidrecord/internal/domain"
	"raidrecord/internal/refdata"

	"github.com/rs/zerolog"
)

var ErrCharacterNotFound = errors.New("character not found")

// CharacterService resolves character names to the remote system's opaque
// character ids.
type CharacterService struct {
	transport Transport
	servers   *refdata.ServerTable
	logger    zerolog.Logger
}

func NewCharacterService(transport Transport, servers *refdata.ServerTable, logger zerolog.Logger) *CharacterService {
	return &CharacterService{transport: transport, servers: servers, logger: logger}
}

// Search looks a character up by name on one server. Returns
// ErrCharacterNotFound when the remote system knows no such character.
func (s *CharacterService) Search(ctx context.Context, name, server, region string) (*domain.Character, error) {
	q := api.CharacterSearchQuery(name, server, region)
	data, err := s.transport.ExecuteQuery(ctx, q.Query, q.Variables, true)
	if err != nil {
		return nil, err
	}

	raw, ok := data.CharacterData["character"]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, ErrCharacterNotFound
	}
	var payload api.CharacterPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode character: %w", err)
	}
	if payload.ID == 0 {
		return nil, ErrCharacterNotFound
	}

	character := &domain.Character{
		ID:     payload.ID,
		Name:   payload.Name,
		Server: server,
		Region: region,
	}
	if payload.Server != nil {
		character.Server = payload.Server.Name
		if payload.Server.Region != nil {
			character.Region = payload.Server.Region.Slug
		}
	}

	s.logger.Info().Int("character_id", character.ID).Str("name", character.Name).Str("server", character.Server).Msg("character found")
	return character, nil
}

// CheckServers probes every server of the region for the character name in
// a single aliased round trip. The result maps server name to character id,
// zero when the name does not exist there. A single server's sub-tree being
// absent means not-found for that server only.
func (s *CharacterService) CheckServers(ctx context.Context, name, region string) (map[string]int, error) {
	servers := s.servers.Names()
	q, err := api.BuildServerBatch(name, region, servers)
	if err != nil {
		return nil, fmt.Errorf("failed to build server batch: %w", err)
	}

	data, err := s.transport.ExecuteQuery(ctx, q.Query, q.Variables, true)
	if err != nil {
		return nil, err
	}

	result := make(map[string]int, len(servers))
	for i, server := range servers {
		result[server] = 0
		raw, ok := data.CharacterData[api.Alias(i)]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var payload api.CharacterPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.logger.Warn().Err(err).Str("server", server).Msg("failed to decode existence probe, treating as absent")
			continue
		}
		result[server] = payload.ID
	}
	return result, nil
}
