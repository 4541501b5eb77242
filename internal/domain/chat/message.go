package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/foodlens/internal/domain/insight"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type StreamingState int

const (
	StatePending StreamingState = iota
	StateStreaming
	StateComplete
)

func (s StreamingState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

var (
	ErrStateReversal = errors.New("chat: streaming state cannot move backwards")
	ErrComplete      = errors.New("chat: message is complete")
)

// Message is one conversation turn. Assistant messages are mutated only by
// the response assembler; user messages are fixed at creation.
type Message struct {
	ID            string
	Role          Role
	CreatedAt     time.Time
	AttachedImage []byte

	narrative strings.Builder
	insight   *insight.Insight
	state     StreamingState
}

func NewUserMessage(text string, image []byte) *Message {
	m := &Message{
		ID:            uuid.NewString(),
		Role:          RoleUser,
		CreatedAt:     time.Now(),
		AttachedImage: image,
		state:         StateComplete,
	}
	m.narrative.WriteString(text)
	return m
}

func NewAssistantMessage() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		state:     StatePending,
	}
}

func (m *Message) Narrative() string         { return m.narrative.String() }
func (m *Message) Insight() *insight.Insight { return m.insight }
func (m *Message) State() StreamingState     { return m.state }

// AppendNarrative adds a fragment to the end of the text.
func (m *Message) AppendNarrative(fragment string) error {
	if m.state == StateComplete {
		return ErrComplete
	}
	m.narrative.WriteString(fragment)
	return nil
}

// SetInsight replaces the structured insight as a whole.
func (m *Message) SetInsight(in *insight.Insight) error {
	if m.state == StateComplete {
		return ErrComplete
	}
	m.insight = in.Clone()
	return nil
}

// Advance moves the message forward; staying in place is a no-op.
func (m *Message) Advance(next StreamingState) error {
	if next < m.state {
		return ErrStateReversal
	}
	m.state = next
	return nil
}

// IsEmpty reports an assistant turn that never received content.
func (m *Message) IsEmpty() bool {
	return m.narrative.Len() == 0 && m.insight == nil
}

// Snapshot is an immutable copy of a message for rendering.
type Snapshot struct {
	ID        string
	Role      Role
	Narrative string
	Insight   *insight.Insight
	State     StreamingState
	HasImage  bool
	CreatedAt time.Time
}

func (m *Message) Snapshot() Snapshot {
	return Snapshot{
		ID:        m.ID,
		Role:      m.Role,
		Narrative: m.narrative.String(),
		Insight:   m.insight.Clone(),
		State:     m.state,
		HasImage:  len(m.AttachedImage) > 0,
		CreatedAt: m.CreatedAt,
	}
}
