package poster

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var hashtagFolder = cases.Lower(language.Und)

// NormalizeHashtags lowercases tags, strips leading '#', and drops empties
// and duplicates while preserving first-seen order.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		tag = hashtagFolder.String(tag)
		if strings.ContainsAny(tag, " \t\n") {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
