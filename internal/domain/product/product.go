// Package product holds the records the resolution pipeline works with and
// the single result it hands to chat.
package product

import (
	"regexp"
	"strings"

	"github.com/yungbote/foodlens/internal/domain/insight"
)

// Record is a product as known to a lookup source.
type Record struct {
	Barcode     string   `json:"barcode,omitempty" yaml:"barcode"`
	Name        string   `json:"name" yaml:"name"`
	Brand       string   `json:"brand,omitempty" yaml:"brand"`
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
}

// Lookup is the outcome of a remote product query. Found is false for every
// failure mode; callers never see transport errors.
type Lookup struct {
	Found  bool
	Record Record
}

type Kind string

const (
	KindRemoteMatch     Kind = "remoteMatch"
	KindLocalMatch      Kind = "localMatch"
	KindGenericFallback Kind = "genericFallback"
	KindAINarrative     Kind = "aiNarrative"
	KindAIStructured    Kind = "aiStructured"
	KindFailure         Kind = "failure"
)

// Result is produced exactly once per resolution run. Prompt is set for the
// three lookup kinds, Narrative for aiNarrative, Insight for aiStructured and
// Failure for failure.
type Result struct {
	Kind      Kind
	Barcode   string
	Prompt    string
	Narrative string
	Insight   *insight.Insight
	Failure   string
}

// IsPrompt reports whether the result must be sent to chat as user input.
func (r Result) IsPrompt() bool {
	switch r.Kind {
	case KindRemoteMatch, KindLocalMatch, KindGenericFallback:
		return true
	default:
		return false
	}
}

// Text is the human-readable payload, whatever the kind.
func (r Result) Text() string {
	switch r.Kind {
	case KindRemoteMatch, KindLocalMatch, KindGenericFallback:
		return r.Prompt
	case KindAINarrative:
		return r.Narrative
	case KindFailure:
		return r.Failure
	default:
		return ""
	}
}

// ComposePrompt builds the chat-ready request for a looked-up product.
func ComposePrompt(rec Record) string {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = "this product"
	}
	var b strings.Builder
	b.WriteString("Analyze this product: ")
	b.WriteString(name)
	if brand := strings.TrimSpace(rec.Brand); brand != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(brand)) {
		b.WriteString(" (")
		b.WriteString(brand)
		b.WriteString(")")
	}
	if len(rec.Ingredients) > 0 {
		b.WriteString("\nIngredients: ")
		b.WriteString(strings.Join(rec.Ingredients, ", "))
	}
	return b.String()
}

var (
	ingredientSection = regexp.MustCompile(`(?is)(?:ingredients?|contains?)\s*:?\s*(.*?)(?:nutrition|allergen|$)`)
	spaceRun          = regexp.MustCompile(`\s+`)
)

// SplitIngredients turns a label's ingredient text into a list. When the text
// has an "Ingredients:" or "Contains:" section only that part is used, up to
// any nutrition or allergen block.
func SplitIngredients(text string) []string {
	text = strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}
	section := text
	if m := ingredientSection.FindStringSubmatch(text); m != nil {
		section = m[1]
	}
	section = strings.TrimRight(strings.TrimSpace(section), ".")

	out := make([]string, 0, 8)
	for _, part := range strings.Split(section, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 1 {
			out = append(out, part)
		}
	}
	return out
}
