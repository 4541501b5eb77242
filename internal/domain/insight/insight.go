// Package insight defines the fixed-shape assessment the assistant can return
// alongside, or instead of, narrative text.
package insight

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type Tradeoffs struct {
	Positives []string `json:"positives"`
	Negatives []string `json:"negatives"`
}

// Insight uses the backend's wire keys. The short names (title, verdict,
// rationale, tradeoffs, advice) are accepted as aliases on decode.
type Insight struct {
	Title       string     `json:"ai_insight_title"`
	Verdict     string     `json:"quick_verdict"`
	Rationale   []string   `json:"why_this_matters"`
	Tradeoffs   *Tradeoffs `json:"trade_offs"`
	Uncertainty *string    `json:"uncertainty,omitempty"`
	Advice      string     `json:"ai_advice"`
}

type wireInsight struct {
	Title       string          `json:"ai_insight_title"`
	Verdict     string          `json:"quick_verdict"`
	Rationale   []string        `json:"why_this_matters"`
	Tradeoffs   *Tradeoffs      `json:"trade_offs"`
	Uncertainty json.RawMessage `json:"uncertainty"`
	Advice      string          `json:"ai_advice"`

	ShortTitle     string     `json:"title"`
	ShortVerdict   string     `json:"verdict"`
	ShortRationale []string   `json:"rationale"`
	ShortTradeoffs *Tradeoffs `json:"tradeoffs"`
	ShortAdvice    string     `json:"advice"`
}

func (in *Insight) UnmarshalJSON(raw []byte) error {
	var w wireInsight
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	uncertainty, err := decodeUncertainty(w.Uncertainty)
	if err != nil {
		return err
	}
	*in = Insight{
		Title:       firstNonBlank(w.Title, w.ShortTitle),
		Verdict:     firstNonBlank(w.Verdict, w.ShortVerdict),
		Rationale:   w.Rationale,
		Tradeoffs:   w.Tradeoffs,
		Uncertainty: uncertainty,
		Advice:      firstNonBlank(w.Advice, w.ShortAdvice),
	}
	if len(in.Rationale) == 0 {
		in.Rationale = w.ShortRationale
	}
	if in.Tradeoffs == nil {
		in.Tradeoffs = w.ShortTradeoffs
	}
	return nil
}

// decodeUncertainty accepts a string or a list of notes; a list is joined
// into one sentence run.
func decodeUncertainty(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var text string
	if raw[0] == '[' {
		var notes []string
		if err := json.Unmarshal(raw, &notes); err != nil {
			return nil, err
		}
		kept := notes[:0]
		for _, n := range notes {
			if n = strings.TrimSpace(n); n != "" {
				kept = append(kept, n)
			}
		}
		text = strings.Join(kept, " ")
	} else if err := json.Unmarshal(raw, &text); err != nil {
		return nil, err
	}
	if text = strings.TrimSpace(text); text == "" {
		return nil, nil
	}
	return &text, nil
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var ErrInvalid = errors.New("insight: payload is not a valid structured insight")

// Valid reports whether every required field is present. Trade-off lists may
// be empty, but the container itself must exist.
func (in *Insight) Valid() bool {
	if in == nil {
		return false
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Verdict) == "" || strings.TrimSpace(in.Advice) == "" {
		return false
	}
	if len(in.Rationale) == 0 || in.Tradeoffs == nil {
		return false
	}
	return true
}

// Clone returns a deep copy so a stored insight cannot be mutated through a
// reference the producer still holds.
func (in *Insight) Clone() *Insight {
	if in == nil {
		return nil
	}
	out := *in
	out.Rationale = append([]string(nil), in.Rationale...)
	if in.Tradeoffs != nil {
		out.Tradeoffs = &Tradeoffs{
			Positives: append([]string(nil), in.Tradeoffs.Positives...),
			Negatives: append([]string(nil), in.Tradeoffs.Negatives...),
		}
	}
	if in.Uncertainty != nil {
		u := *in.Uncertainty
		out.Uncertainty = &u
	}
	return &out
}

// Parse decodes raw as a whole insight. It never returns a partially filled
// record: either the payload is valid or the result is nil.
func Parse(raw []byte) (*Insight, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrInvalid
	}
	var in Insight
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	if in.Tradeoffs != nil {
		if in.Tradeoffs.Positives == nil {
			in.Tradeoffs.Positives = []string{}
		}
		if in.Tradeoffs.Negatives == nil {
			in.Tradeoffs.Negatives = []string{}
		}
	}
	if !in.Valid() {
		return nil, ErrInvalid
	}
	return &in, nil
}
