package session

import "strings"

var affirmatives = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay",
	"please", "continue", "go on", "go ahead", "keep going",
}

// IsAffirmative classifies a confirmation answer. Anything that does
// not clearly contain an affirmative token, silence and garbage
// included, counts as no.
func IsAffirmative(text string) bool {
	norm := normalizeWords(text)
	if norm == "" {
		return false
	}
	padded := " " + norm + " "
	for _, tok := range affirmatives {
		if strings.Contains(padded, " "+tok+" ") {
			return true
		}
	}
	return false
}

// normalizeWords lower-cases the text and strips punctuation so token
// matching sees plain space-separated words.
func normalizeWords(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SplitSentences cuts a reply into sentence-like units on terminal
// punctuation. Text without any terminator comes back as one unit.
func SplitSentences(text string) []string {
	var out []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()

	return out
}
