package server

import (
	"testing"

	"raidrecord/internal/refdata"
)

func TestParseCharacterInput(t *testing.T) {
	servers := refdata.NewServerTable()
	cases := []struct {
		name       string
		input      string
		wantName   string
		wantServer string
	}{
		{"name only", "Foo Bar", "Foo Bar", ""},
		{"name only korean", "홍길동", "홍길동", ""},
		{"at separator", "Foo Bar@Carbuncle", "Foo Bar", "Carbuncle"},
		{"fullwidth at", "홍길동＠초코보", "홍길동", "Chocobo"},
		{"at with casing", "foo bar@TONBERRY", "Foo Bar", "Tonberry"},
		{"trailing server token", "Foo Bar Moogle", "Foo Bar", "Moogle"},
		{"trailing korean server", "홍길동 카벙클", "홍길동", "Carbuncle"},
		{"apostrophe name", "R'foo Bar@Fenrir", "R'foo Bar", "Fenrir"},
		{"unknown server after at", "Foo@Gilgamesh", "", ""},
		{"invalid characters", "Foo<script>", "", ""},
		{"empty", "   ", "", ""},
		{"digits rejected", "Foo123", "", ""},
	}
	for _, tc := range cases {
		name, server := ParseCharacterInput(tc.input, servers)
		if name != tc.wantName || server != tc.wantServer {
			t.Errorf("%s: ParseCharacterInput(%q) = (%q, %q), want (%q, %q)",
				tc.name, tc.input, name, server, tc.wantName, tc.wantServer)
		}
	}
}

func TestParseCharacterInputKoreanNamesNotTitleCased(t *testing.T) {
	servers := refdata.NewServerTable()
	name, _ := ParseCharacterInput("빛의 전사", servers)
	if name != "빛의 전사" {
		t.Errorf("korean name mangled: %q", name)
	}
}
