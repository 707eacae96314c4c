package server

import (
	"regexp"
	"strings"

	"raidrecord/internal/refdata"
)

// Character names: Korean syllables, latin letters, apostrophes, and the
// space between given and family name.
var validNamePattern = regexp.MustCompile(`^[가-힣a-zA-Z' ]+$`)

// ParseCharacterInput splits user input into a character name and an
// optional server. Accepted forms: "Name@Server", "Name Server" (server in
// English or Korean), or just "Name". Returns an empty name when the input
// is not a valid character name.
func ParseCharacterInput(input string, servers *refdata.ServerTable) (name, server string) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ""
	}

	if at := strings.IndexAny(trimmed, "@＠"); at >= 0 {
		candidate := strings.TrimSpace(trimmed[:at])
		rest := trimmed[at:]
		_, size := decodeFirstRune(rest)
		serverPart := strings.TrimSpace(rest[size:])
		if !validNamePattern.MatchString(candidate) {
			return "", ""
		}
		if matched := servers.Match(serverPart); matched != "" {
			return formatCharacterName(candidate), matched
		}
		return "", ""
	}

	// Try a trailing server token.
	if space := strings.LastIndex(trimmed, " "); space > 0 {
		if matched := servers.Match(trimmed[space+1:]); matched != "" {
			candidate := strings.TrimSpace(trimmed[:space])
			if validNamePattern.MatchString(candidate) {
				return formatCharacterName(candidate), matched
			}
		}
	}

	if !validNamePattern.MatchString(trimmed) {
		return "", ""
	}
	return formatCharacterName(trimmed), ""
}

func decodeFirstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

// formatCharacterName title-cases each word of a latin name; Korean names
// pass through unchanged.
func formatCharacterName(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		first, _ := decodeFirstRune(word)
		if first < 'A' || (first > 'Z' && first < 'a') || first > 'z' {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
