package firehose

import (
	"strings"

	"golang.org/x/text/language"
)

// BaseLangs reduces BCP-47 tags to their base language ("pt-BR" becomes
// "pt"), which is also how request languages are matched. Tags that do not
// parse are kept lowercased. Duplicates are dropped and order is kept.
func BaseLangs(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		code := strings.ToLower(raw)
		if t, err := language.Parse(raw); err == nil {
			if b, conf := t.Base(); conf != language.No {
				code = b.String()
			}
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
