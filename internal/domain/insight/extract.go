package insight

import (
	"regexp"
	"strings"
)

// Outcome is the result of a best-effort structured extraction: exactly one
// of Insight or Narrative is set.
type Outcome struct {
	Insight   *Insight
	Narrative string
}

func (o Outcome) Structured() bool { return o.Insight != nil }

var (
	fenceOpen     = regexp.MustCompile("(?i)```(?:json)?[ \t]*\n?")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// Extract looks for an insight-shaped JSON object in free text. It tries the
// whole text, then the outermost brace span, each with and without a
// trailing-comma repair. Anything else is returned as narrative.
func Extract(text string) Outcome {
	cleaned := strings.TrimSpace(fenceOpen.ReplaceAllString(text, ""))
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))

	candidates := []string{cleaned}
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		if span := cleaned[start : end+1]; span != cleaned {
			candidates = append(candidates, span)
		}
	}

	for _, c := range candidates {
		if in, err := Parse([]byte(c)); err == nil {
			return Outcome{Insight: in}
		}
		if repaired := trailingComma.ReplaceAllString(c, "$1"); repaired != c {
			if in, err := Parse([]byte(repaired)); err == nil {
				return Outcome{Insight: in}
			}
		}
	}
	return Outcome{Narrative: strings.TrimSpace(text)}
}
