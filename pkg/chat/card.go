package chat

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	// CardPrefix opens a card message; the full content is
	// CardPrefix + <json object> + CardSuffix.
	CardPrefix = "[DEMAND_CARD:"
	CardSuffix = "]"

	cardIDField     = "demandId"
	cardStatusField = "status"
)

var cardPattern = regexp.MustCompile(`(?s)^\[DEMAND_CARD:(.+)\]$`)

// cardNeedle is the exact serialized id fragment searched for in stored content.
func cardNeedle(cardID string) string {
	id, _ := json.Marshal(cardID)
	return `"` + cardIDField + `":` + string(id)
}

// FormatCard serializes fields as card message content.
func FormatCard(fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return CardPrefix + string(data) + CardSuffix, nil
}

// IsCard reports whether content uses the card wrapper.
func IsCard(content string) bool {
	return cardPattern.MatchString(content)
}

// patchCard rewrites the status of the card in content. ok is false when
// content is not a well formed card for cardID.
func patchCard(content, cardID, status string) (patched string, ok bool) {
	m := cardPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fields); err != nil {
		return "", false
	}

	var id string
	if raw, found := fields[cardIDField]; !found || json.Unmarshal(raw, &id) != nil || id != cardID {
		return "", false
	}

	encoded, err := json.Marshal(status)
	if err != nil {
		return "", false
	}
	fields[cardStatusField] = encoded

	data, err := json.Marshal(fields)
	if err != nil {
		return "", false
	}
	return CardPrefix + string(data) + CardSuffix, true
}
