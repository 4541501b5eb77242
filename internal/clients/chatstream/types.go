package chatstream

import (
	"encoding/json"

	"github.com/yungbote/foodlens/internal/domain/insight"
)

type RecordKind int

const (
	RecordStructured RecordKind = iota + 1
	RecordDelta
	RecordDone
)

func (k RecordKind) String() string {
	switch k {
	case RecordStructured:
		return "structured"
	case RecordDelta:
		return "delta"
	case RecordDone:
		return "done"
	default:
		return "unknown"
	}
}

// Record is one decoded stream event. Insight is set for RecordStructured and
// Text for RecordDelta.
type Record struct {
	Kind    RecordKind
	Insight *insight.Insight
	Text    string
}

type Request struct {
	Message   string
	SessionID string
	Language  string
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Language  string `json:"language,omitempty"`
}

// eventPayload covers both payload shapes the backend emits:
// {"type":"structured","data":{...}} and {"choices":[{"delta":{"content":"..."}}]}.
type eventPayload struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}
