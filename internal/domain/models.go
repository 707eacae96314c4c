package domain

import (
	"fmt"
	"time"
)

type TierType string

const (
	TierSavage   TierType = "SAVAGE"
	TierUltimate TierType = "ULTIMATE"
)

// Tier is one raid content release. Loaded from the static reference table,
// never mutated after startup.
type Tier struct {
	Type             TierType
	Expansion        string
	FullName         string
	ShortName        string
	ReleaseDate      time.Time // calendar date at midnight in the reset timezone
	ZoneID           int
	Partition        int
	EncounterCount   int
	FinalEncounterID int
}

// ID identifies a tier uniquely across partitions of the same zone.
func (t Tier) ID() string {
	return fmt.Sprintf("%d-%d", t.ZoneID, t.Partition)
}

// Difficulty maps the tier type to the remote system's difficulty constant.
func (t Tier) Difficulty() int {
	if t.Type == TierSavage {
		return DifficultySavage
	}
	return DifficultyUltimate
}

const (
	DifficultyUltimate = 100
	DifficultySavage   = 101
)

type Character struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Server string `json:"server"`
	Region string `json:"region"`
}

// RateLimitSnapshot mirrors the remote system's hourly point allowance.
// Always replaced wholesale by the most recent server response, never merged.
type RateLimitSnapshot struct {
	LimitPerHour        int     `json:"limitPerHour"`
	PointsSpentThisHour float64 `json:"pointsSpentThisHour"`
	PointsResetIn       int     `json:"pointsResetIn"` // seconds
}

func (s RateLimitSnapshot) Remaining() float64 {
	return float64(s.LimitPerHour) - s.PointsSpentThisHour
}

type PartyMember struct {
	Name   string `json:"name"`
	Server string `json:"server"`
	Job    string `json:"job"`
}

// AllStarEntry is the remote system's composite performance score for one
// character on one tier or encounter.
type AllStarEntry struct {
	Job    string  `json:"job"`
	Points float64 `json:"points"`
	Rank   int     `json:"rank"`
	Total  int     `json:"total"`
}

// EncounterAllStar is the per-boss all-star breakdown within a tier.
type EncounterAllStar struct {
	EncounterID   int     `json:"encounterId"`
	EncounterName string  `json:"encounterName"`
	Job           string  `json:"job"`
	Points        float64 `json:"points"`
	Rank          int     `json:"rank"`
	Total         int     `json:"total"`
}

// JobUsage is one entry of the per-tier job frequency distribution.
// FirstSeen is the smallest source index at which the job appeared, used as
// the recency tie-breaker when counts are equal.
type JobUsage struct {
	Job       string `json:"job"`
	Count     int    `json:"count"`
	FirstSeen int    `json:"firstSeen"`
}

// ReportFight links a clear back to its source log.
type ReportFight struct {
	ReportCode string `json:"reportCode"`
	FightID    int    `json:"fightId"`
}

// TierClearRecord is the normalized per-tier search result. Derived per
// search, never persisted.
type TierClearRecord struct {
	Tier              Tier               `json:"-"`
	TierID            string             `json:"tierId"`
	TierName          string             `json:"tierName"`
	Expansion         string             `json:"expansion"`
	Job               string             `json:"job"`
	ClearTime         time.Time          `json:"clearTime"` // zero when unknown
	FightStart        time.Time          `json:"fightStart"`
	Week              int                `json:"week"` // 0 when unknown
	WeekAmbiguous     bool               `json:"weekAmbiguous"`
	AllStar           *AllStarEntry      `json:"allStar,omitempty"`
	EncounterAllStars []EncounterAllStar `json:"encounterAllStars,omitempty"`
	JobUsage          []JobUsage         `json:"jobUsage,omitempty"`
	PartyMembers      []PartyMember      `json:"partyMembers,omitempty"`
	Report            *ReportFight       `json:"report,omitempty"`
}

// SearchProgress is emitted before each of the search's two batch calls.
type SearchProgress struct {
	Step  int    `json:"step"`
	Total int    `json:"total"`
	Stage string `json:"stage"`
}
