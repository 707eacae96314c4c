package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"raidrecord/internal/api"
	"raidrecord/internal/refdata"

	"github.com/rs/zerolog"
)

func newCharacterService(transport Transport) *CharacterService {
	return NewCharacterService(transport, refdata.NewServerTable(), zerolog.Nop())
}

func characterEnvelope(items map[string]string) *api.DataEnvelope {
	data := make(map[string]json.RawMessage, len(items))
	for k, v := range items {
		data[k] = json.RawMessage(v)
	}
	return &api.DataEnvelope{CharacterData: data}
}

func TestCharacterSearchFound(t *testing.T) {
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			characterEnvelope(map[string]string{
				"character": `{"id": 4567, "name": "Foo Bar", "server": {"name": "Carbuncle", "region": {"slug": "KR"}}}`,
			}),
		},
	}
	svc := newCharacterService(transport)

	character, err := svc.Search(context.Background(), "Foo Bar", "Carbuncle", "KR")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if character.ID != 4567 || character.Name != "Foo Bar" || character.Server != "Carbuncle" || character.Region != "KR" {
		t.Errorf("character = %+v", character)
	}
}

func TestCharacterSearchNotFound(t *testing.T) {
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			characterEnvelope(map[string]string{"character": "null"}),
		},
	}
	svc := newCharacterService(transport)

	_, err := svc.Search(context.Background(), "No Body", "Carbuncle", "KR")
	if !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("err = %v, want ErrCharacterNotFound", err)
	}
}

func TestCheckServers(t *testing.T) {
	transport := &fakeTransport{
		envelopes: []*api.DataEnvelope{
			characterEnvelope(map[string]string{
				"item0": `{"id": 100}`,
				"item1": "null",
				"item3": `{"id": 300}`,
				// item2 and item4 absent entirely
			}),
		},
	}
	svc := newCharacterService(transport)

	result, err := svc.CheckServers(context.Background(), "Foo Bar", "KR")
	if err != nil {
		t.Fatalf("CheckServers failed: %v", err)
	}
	want := map[string]int{
		"Carbuncle": 100,
		"Moogle":    0,
		"Chocobo":   0,
		"Tonberry":  300,
		"Fenrir":    0,
	}
	if len(result) != len(want) {
		t.Fatalf("result = %v", result)
	}
	for server, id := range want {
		if result[server] != id {
			t.Errorf("result[%s] = %d, want %d", server, result[server], id)
		}
	}
}
