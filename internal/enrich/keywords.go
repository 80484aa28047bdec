package enrich

import "strings"

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {},
	"this": {}, "will": {}, "shall": {}, "must": {}, "into": {}, "such": {},
	"their": {}, "have": {}, "been": {}, "within": {}, "under": {}, "other": {},
	"including": {}, "services": {}, "service": {}, "tender": {}, "contract": {},
	"procurement": {}, "notice": {},
}

// Keywords extracts up to cap distinct keywords from free text. Tokens are
// lowercased, stripped of punctuation, stopword-filtered, and kept in
// first-seen order so the result is deterministic.
func Keywords(text string, cap int) []string {
	if cap <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string

	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:()[]{}\"'-/")
		if len(word) <= 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
		if len(out) == cap {
			break
		}
	}

	return out
}
