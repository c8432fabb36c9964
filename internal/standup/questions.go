package standup

import "strings"

// Question is one fixed stand-up prompt.
type Question struct {
	ID     string
	Prompt string
}

// Questions is the fixed, ordered question set every stand-up walks through.
// Shared process-wide and immutable.
var Questions = []Question{
	{ID: "past-work", Prompt: "What have you done since the last standup?"},
	{ID: "current-work", Prompt: "What are you working on now?"},
	{ID: "blockers", Prompt: "Anything in your way?"},
}

var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "ok": {}, "okay": {}, "sure": {}, "ready": {}, "yep": {},
}

var negatives = map[string]struct{}{
	"no": {}, "n": {}, "nope": {},
}

// IsAffirmative reports whether text is an exact affirmative keyword,
// ignoring case and surrounding whitespace. No fuzzy matching.
func IsAffirmative(text string) bool {
	_, ok := affirmatives[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// IsNegative reports whether text is an exact negative keyword.
func IsNegative(text string) bool {
	_, ok := negatives[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
