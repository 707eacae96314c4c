package domain

import (
	"encoding/json"
	"strconv"
)

// SpecID is a job/spec identifier as the remote system returns it: modern
// payloads carry a string spec name, legacy report actors carry a numeric id.
// Both forms decode into the same type so job resolution has a single input.
type SpecID struct {
	Name     string
	LegacyID int
	Numeric  bool
}

func SpecName(name string) SpecID {
	return SpecID{Name: name}
}

func SpecLegacy(id int) SpecID {
	return SpecID{LegacyID: id, Numeric: true}
}

func (s SpecID) IsZero() bool {
	return !s.Numeric && s.Name == ""
}

func (s *SpecID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = SpecID{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = SpecID{Name: name}
		return nil
	}
	id, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*s = SpecID{LegacyID: id, Numeric: true}
	return nil
}

func (s SpecID) MarshalJSON() ([]byte, error) {
	if s.Numeric {
		return json.Marshal(s.LegacyID)
	}
	return json.Marshal(s.Name)
}
