package api

import (
	"fmt"
	"strconv"
	"strings"

	"raidrecord/internal/domain"
)

// BatchQuery is one generated GraphQL document plus its variable map. It is
// scoped to a single network call and discarded after reconciliation.
type BatchQuery struct {
	Query     string
	Variables map[string]any
}

// BatchConfig drives BuildBatch. BuildField and BuildVariables must be pure;
// identical inputs always yield a byte-identical document. Variable names
// must be suffixed with the item index to keep the flattened map
// collision-free.
type BatchConfig[T any] struct {
	Items           []T
	BuildField      func(item T, index int, alias string) string
	BuildVariables  func(item T, index int) (definitions []string, values map[string]any)
	WrapperPath     string
	BaseDefinitions []string
	BaseVariables   map[string]any
}

// Alias is the positional alias for item index i. Field construction and
// response reconciliation both go through this so the mapping stays stable.
func Alias(index int) string {
	return "item" + strconv.Itoa(index)
}

// BuildBatch assembles one aliased batch query covering every item, so a
// single round trip returns all items' sub-trees, each independently
// nullable. Zero aliases is invalid GraphQL, so an empty item list is a
// construction error; callers are expected to short-circuit before getting
// here. Malformed builder output (empty fragments, colliding variable
// names) also fails construction rather than producing a broken document.
func BuildBatch[T any](cfg BatchConfig[T]) (*BatchQuery, error) {
	if len(cfg.Items) == 0 {
		return nil, fmt.Errorf("batch query: empty item list")
	}
	if cfg.WrapperPath == "" {
		return nil, fmt.Errorf("batch query: missing wrapper path")
	}

	var fields strings.Builder
	definitions := append([]string(nil), cfg.BaseDefinitions...)
	variables := make(map[string]any, len(cfg.BaseVariables)+len(cfg.Items)*4)
	for k, v := range cfg.BaseVariables {
		variables[k] = v
	}

	for i, item := range cfg.Items {
		field := cfg.BuildField(item, i, Alias(i))
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("batch query: empty field fragment for item %d", i)
		}
		fields.WriteString(field)

		defs, values := cfg.BuildVariables(item, i)
		definitions = append(definitions, defs...)
		for k, v := range values {
			if _, exists := variables[k]; exists {
				return nil, fmt.Errorf("batch query: duplicate variable %q for item %d", k, i)
			}
			variables[k] = v
		}
	}

	query := fmt.Sprintf("query(%s) {\n%s {\n%s}\n}\n",
		strings.Join(definitions, ", "), cfg.WrapperPath, fields.String())

	return &BatchQuery{Query: query, Variables: variables}, nil
}

// rateLimitSelection is the sub-query the transport injects when the caller
// wants the points snapshot refreshed alongside the payload.
const rateLimitSelection = "rateLimitData {\nlimitPerHour\npointsSpentThisHour\npointsResetIn\n}\n"

// TierField builds the aliased ranking sub-query for one tier: the zone
// ranking summary (all-star data, per-encounter summaries) plus every parse
// for the tier's final encounter.
func TierField(_ domain.Tier, index int, alias string) string {
	return fmt.Sprintf(`%s: character(id: $characterId) {
zoneRankings(zoneID: $zoneId%d, difficulty: $difficulty%d, partition: $partition%d)
encounterRankings(encounterID: $encounterId%d, difficulty: $difficulty%d, partition: $partition%d)
}
`, alias, index, index, index, index, index, index)
}

func TierVariables(tier domain.Tier, index int) ([]string, map[string]any) {
	defs := []string{
		fmt.Sprintf("$zoneId%d: Int!", index),
		fmt.Sprintf("$encounterId%d: Int!", index),
		fmt.Sprintf("$difficulty%d: Int", index),
		fmt.Sprintf("$partition%d: Int", index),
	}
	values := map[string]any{
		fmt.Sprintf("zoneId%d", index):      tier.ZoneID,
		fmt.Sprintf("encounterId%d", index): tier.FinalEncounterID,
		fmt.Sprintf("difficulty%d", index):  tier.Difficulty(),
		fmt.Sprintf("partition%d", index):   tier.Partition,
	}
	return defs, values
}

// BuildTierBatch is the first of the search's two round trips: every
// selected tier's rankings under one characterData selection.
func BuildTierBatch(characterID int, tiers []domain.Tier) (*BatchQuery, error) {
	return BuildBatch(BatchConfig[domain.Tier]{
		Items:           tiers,
		BuildField:      TierField,
		BuildVariables:  TierVariables,
		WrapperPath:     "characterData",
		BaseDefinitions: []string{"$characterId: Int!"},
		BaseVariables:   map[string]any{"characterId": characterID},
	})
}

// ReportField builds the aliased report sub-query for one clear: the
// report's fight list (for fight timestamps and participants) and its actor
// roster (for party composition).
func ReportField(_ domain.ReportFight, index int, alias string) string {
	return fmt.Sprintf(`%s: report(code: $reportCode%d) {
startTime
fights {
id
startTime
endTime
friendlyPlayers
}
masterData {
actors(type: "Player") {
id
name
server
subType
}
}
}
`, alias, index)
}

func ReportVariables(pair domain.ReportFight, index int) ([]string, map[string]any) {
	return []string{fmt.Sprintf("$reportCode%d: String!", index)},
		map[string]any{fmt.Sprintf("reportCode%d", index): pair.ReportCode}
}

// BuildReportBatch is the search's second round trip: party and fight-time
// lookups for every tier that produced a clear.
func BuildReportBatch(pairs []domain.ReportFight) (*BatchQuery, error) {
	return BuildBatch(BatchConfig[domain.ReportFight]{
		Items:          pairs,
		BuildField:     ReportField,
		BuildVariables: ReportVariables,
		WrapperPath:    "reportData",
	})
}

// ServerField builds the aliased existence probe for one server: just the
// character id, enough to tell whether the name exists there.
func ServerField(_ string, index int, alias string) string {
	return fmt.Sprintf(`%s: character(name: $name, serverSlug: $server%d, serverRegion: $region) {
id
}
`, alias, index)
}

func ServerVariables(server string, index int) ([]string, map[string]any) {
	return []string{fmt.Sprintf("$server%d: String!", index)},
		map[string]any{fmt.Sprintf("server%d", index): strings.ToLower(server)}
}

// BuildServerBatch probes every server of the region for a character name
// in one round trip.
func BuildServerBatch(name, region string, servers []string) (*BatchQuery, error) {
	return BuildBatch(BatchConfig[string]{
		Items:           servers,
		BuildField:      ServerField,
		BuildVariables:  ServerVariables,
		WrapperPath:     "characterData",
		BaseDefinitions: []string{"$name: String!", "$region: String!"},
		BaseVariables:   map[string]any{"name": name, "region": region},
	})
}

// CharacterSearchQuery looks up a single character by name and server.
func CharacterSearchQuery(name, server, region string) *BatchQuery {
	query := `query($name: String!, $server: String!, $region: String!) {
characterData {
character(name: $name, serverSlug: $server, serverRegion: $region) {
id
name
server {
name
region {
slug
}
}
}
}
}
`
	return &BatchQuery{
		Query: query,
		Variables: map[string]any{
			"name":   name,
			"server": strings.ToLower(server),
			"region": region,
		},
	}
}
