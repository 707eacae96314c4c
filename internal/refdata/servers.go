package refdata

import "strings"

// Server is one game world of the fixed region.
type Server struct {
	Name      string // slug used by the remote API
	LocalName string
}

// ServerTable is the static world list for the region this deployment
// serves (Korean data center).
type ServerTable struct {
	servers []Server
}

func NewServerTable() *ServerTable {
	return &ServerTable{servers: []Server{
		{Name: "Carbuncle", LocalName: "카벙클"},
		{Name: "Moogle", LocalName: "모그리"},
		{Name: "Chocobo", LocalName: "초코보"},
		{Name: "Tonberry", LocalName: "톤베리"},
		{Name: "Fenrir", LocalName: "펜리르"},
	}}
}

func (t *ServerTable) All() []Server {
	out := make([]Server, len(t.servers))
	copy(out, t.servers)
	return out
}

// Names returns the API server slugs.
func (t *ServerTable) Names() []string {
	out := make([]string, len(t.servers))
	for i, s := range t.servers {
		out[i] = s.Name
	}
	return out
}

// Match resolves user input (API slug or local name, any casing) to the API
// server slug. Returns "" when the input names no known server.
func (t *ServerTable) Match(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, s := range t.servers {
		if strings.ToLower(s.Name) == lower || s.LocalName == strings.TrimSpace(input) {
			return s.Name
		}
	}
	return ""
}
