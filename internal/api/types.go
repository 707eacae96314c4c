package api

import (
	"encoding/json"

	"raidrecord/internal/domain"
)

// Remote response shapes. Every field of remote data is treated as possibly
// absent: pointers and zero values instead of trusting the payload.

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// DataEnvelope is the top level of a successful query. Aliased batch
// sub-trees stay raw here; reconciliation decodes them per item so one bad
// sub-tree cannot poison its siblings.
type DataEnvelope struct {
	CharacterData map[string]json.RawMessage `json:"characterData"`
	ReportData    map[string]json.RawMessage `json:"reportData"`
	RateLimitData *domain.RateLimitSnapshot  `json:"rateLimitData"`
}

// TierRankings is one tier's aliased sub-tree of the tier batch.
type TierRankings struct {
	ZoneRankings      *ZoneRankings      `json:"zoneRankings"`
	EncounterRankings *EncounterRankings `json:"encounterRankings"`
}

// ZoneRankings is the per-tier ranking summary JSON scalar.
type ZoneRankings struct {
	Rankings []EncounterRanking `json:"rankings"`
	AllStars []AllStarScore     `json:"allStars"`
}

// EncounterRanking is the coarse per-encounter summary inside ZoneRankings.
type EncounterRanking struct {
	Encounter  *EncounterRef `json:"encounter"`
	TotalKills int           `json:"totalKills"`
	Spec       domain.SpecID `json:"spec"`
	BestSpec   domain.SpecID `json:"bestSpec"`
	AllStars   *AllStarScore `json:"allStars"`
}

type EncounterRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type AllStarScore struct {
	Partition int           `json:"partition"`
	Spec      domain.SpecID `json:"spec"`
	Points    float64       `json:"points"`
	Rank      int           `json:"rank"`
	Total     int           `json:"total"`
}

// EncounterRankings holds every individual parse for one encounter. Source
// order of Ranks is not guaranteed.
type EncounterRankings struct {
	TotalKills int         `json:"totalKills"`
	Ranks      []ParseRank `json:"ranks"`
}

// ParseRank is one recorded kill. StartTime is the pull start in epoch
// milliseconds.
type ParseRank struct {
	StartTime int64         `json:"startTime"`
	Spec      domain.SpecID `json:"spec"`
	Report    *ReportRef    `json:"report"`
}

type ReportRef struct {
	Code    string `json:"code"`
	FightID int    `json:"fightID"`
}

// Report is one aliased sub-tree of the report batch. Fight times are
// millisecond offsets from the report's StartTime.
type Report struct {
	StartTime  int64       `json:"startTime"`
	Fights     []Fight     `json:"fights"`
	MasterData *MasterData `json:"masterData"`
}

type Fight struct {
	ID              int   `json:"id"`
	StartTime       int64 `json:"startTime"`
	EndTime         int64 `json:"endTime"`
	FriendlyPlayers []int `json:"friendlyPlayers"`
}

type MasterData struct {
	Actors []Actor `json:"actors"`
}

// Actor is one entry of a report's actor roster. Server is nil for
// synthetic actors like Limit Break.
type Actor struct {
	ID      int           `json:"id"`
	Name    string        `json:"name"`
	Server  *string       `json:"server"`
	SubType domain.SpecID `json:"subType"`
}

// CharacterPayload is the single-character lookup result.
type CharacterPayload struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Server *struct {
		Name   string `json:"name"`
		Region *struct {
			Slug string `json:"slug"`
		} `json:"region"`
	} `json:"server"`
}
