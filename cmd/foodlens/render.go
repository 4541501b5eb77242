package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/foodlens/internal/domain/chat"
	"github.com/yungbote/foodlens/internal/domain/insight"
	"github.com/yungbote/foodlens/internal/domain/product"
)

// renderer prints assistant text as it streams in and the structured
// insight once the reply is complete.
type renderer struct {
	w        io.Writer
	printed  map[string]int
	insights map[string]bool
	last     string
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, printed: map[string]int{}, insights: map[string]bool{}}
}

func (r *renderer) update(s chat.Snapshot) {
	if s.Role != chat.RoleAssistant {
		return
	}
	if n := r.printed[s.ID]; len(s.Narrative) > n {
		fmt.Fprint(r.w, s.Narrative[n:])
		r.printed[s.ID] = len(s.Narrative)
		r.last = s.ID
	}
	if s.State == chat.StateComplete && s.Insight != nil && !r.insights[s.ID] {
		r.insights[s.ID] = true
		if r.printed[s.ID] > 0 {
			fmt.Fprint(r.w, "\n\n")
		}
		fmt.Fprint(r.w, formatInsight(s.Insight))
		r.last = s.ID
	}
}

func (r *renderer) finish() {
	if r.last != "" {
		fmt.Fprintln(r.w)
	}
}

func formatInsight(in *insight.Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", in.Title)
	fmt.Fprintf(&b, "Verdict: %s\n", in.Verdict)
	for _, r := range in.Rationale {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	if in.Tradeoffs != nil {
		for _, p := range in.Tradeoffs.Positives {
			fmt.Fprintf(&b, "  + %s\n", p)
		}
		for _, n := range in.Tradeoffs.Negatives {
			fmt.Fprintf(&b, "  ! %s\n", n)
		}
	}
	if in.Uncertainty != nil && strings.TrimSpace(*in.Uncertainty) != "" {
		fmt.Fprintf(&b, "Uncertain: %s\n", strings.TrimSpace(*in.Uncertainty))
	}
	fmt.Fprintf(&b, "Advice: %s", in.Advice)
	return b.String()
}

func printResolution(w io.Writer, res product.Result) {
	fmt.Fprintf(w, "kind: %s\n", res.Kind)
	if res.Barcode != "" {
		fmt.Fprintf(w, "barcode: %s\n", res.Barcode)
	}
	if res.Insight != nil {
		fmt.Fprintln(w, formatInsight(res.Insight))
		return
	}
	fmt.Fprintln(w, res.Text())
}
