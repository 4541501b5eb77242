package assembler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/foodlens/internal/clients/chatstream"
	"github.com/yungbote/foodlens/internal/domain/chat"
	"github.com/yungbote/foodlens/internal/domain/insight"
	"github.com/yungbote/foodlens/internal/platform/apology"
)

type scripted struct {
	recs []chatstream.Record
	err  error
}

func (s *scripted) Next() (chatstream.Record, error) {
	if len(s.recs) == 0 {
		if s.err != nil {
			return chatstream.Record{}, s.err
		}
		return chatstream.Record{}, io.EOF
	}
	r := s.recs[0]
	s.recs = s.recs[1:]
	return r, nil
}

func delta(text string) chatstream.Record {
	return chatstream.Record{Kind: chatstream.RecordDelta, Text: text}
}

func structured(title string) chatstream.Record {
	return chatstream.Record{Kind: chatstream.RecordStructured, Insight: &insight.Insight{
		Title:     title,
		Verdict:   "ok",
		Rationale: []string{"r"},
		Tradeoffs: &insight.Tradeoffs{Positives: []string{}, Negatives: []string{}},
		Advice:    "a",
	}}
}

var done = chatstream.Record{Kind: chatstream.RecordDone}

func TestRun_AppendsDeltasInOrder(t *testing.T) {
	conv := chat.NewConversation()
	a := New(nil)
	var states []chat.StreamingState
	a.OnUpdate(func(s chat.Snapshot) { states = append(states, s.State) })

	msg, err := a.Run(context.Background(), &scripted{recs: []chatstream.Record{delta("He"), delta("llo"), done}}, conv)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "Hello", msg.Narrative())
	assert.Equal(t, chat.StateComplete, msg.State())
	assert.Equal(t, []chat.StreamingState{chat.StateStreaming, chat.StateStreaming, chat.StateComplete}, states)
	assert.Equal(t, 1, conv.Len())
}

func TestRun_StructuredRecordReplacesWhole(t *testing.T) {
	conv := chat.NewConversation()
	first := structured("First")
	first.Insight.Tradeoffs.Positives = []string{"kept only in first"}

	msg, err := New(nil).Run(context.Background(), &scripted{recs: []chatstream.Record{first, structured("Second"), done}}, conv)
	require.NoError(t, err)

	got := msg.Insight()
	require.NotNil(t, got)
	assert.Equal(t, "Second", got.Title)
	assert.Empty(t, got.Tradeoffs.Positives)
}

func TestRun_CleanEOFCompletes(t *testing.T) {
	conv := chat.NewConversation()

	msg, err := New(nil).Run(context.Background(), &scripted{recs: []chatstream.Record{delta("No marker")}}, conv)
	require.NoError(t, err)
	assert.Equal(t, chat.StateComplete, msg.State())
}

func TestRun_ErrorBeforeContentRemovesMessage(t *testing.T) {
	conv := chat.NewConversation()
	conv.Append(chat.NewUserMessage("hi", nil))

	msg, err := New(nil).Run(context.Background(), &scripted{err: errors.New("connection reset")}, conv)
	require.Error(t, err)
	assert.Nil(t, msg)
	require.Equal(t, 1, conv.Len())
	last, _ := conv.Last()
	assert.Equal(t, chat.RoleUser, last.Role)
}

func TestRun_EmptyReplyRemovesMessage(t *testing.T) {
	conv := chat.NewConversation()

	msg, err := New(nil).Run(context.Background(), &scripted{recs: []chatstream.Record{done}}, conv)
	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.Nil(t, msg)
	assert.Zero(t, conv.Len())
}

func TestRun_ErrorAfterContentKeepsPartialWithApology(t *testing.T) {
	conv := chat.NewConversation()
	src := &scripted{
		recs: []chatstream.Record{delta("Partial")},
		err:  &chatstream.HTTPError{StatusCode: http.StatusServiceUnavailable},
	}

	msg, err := New(nil).Run(context.Background(), src, conv)
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "Partial\n\n"+apology.Busy, msg.Narrative())
	assert.Equal(t, chat.StateComplete, msg.State())
	assert.Equal(t, 1, conv.Len())
}

func TestRun_IdleTimeoutAfterContentGetsTimeoutApology(t *testing.T) {
	conv := chat.NewConversation()
	src := &scripted{recs: []chatstream.Record{delta("Slow")}, err: chatstream.ErrIdleTimeout}

	msg, err := New(nil).Run(context.Background(), src, conv)
	require.ErrorIs(t, err, chatstream.ErrIdleTimeout)
	require.NotNil(t, msg)
	assert.Equal(t, "Slow\n\n"+apology.Timeout, msg.Narrative())
}

func TestRun_CancelledContext(t *testing.T) {
	conv := chat.NewConversation()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := New(nil).Run(ctx, &scripted{recs: []chatstream.Record{delta("x")}}, conv)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, msg)
	assert.Zero(t, conv.Len())
}

func TestRun_NotifiesConversationSubscribers(t *testing.T) {
	conv := chat.NewConversation()
	var seen []string
	conv.Subscribe(func(s chat.Snapshot) { seen = append(seen, s.Narrative) })

	_, err := New(nil).Run(context.Background(), &scripted{recs: []chatstream.Record{delta("a"), delta("b"), done}}, conv)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "a", "ab", "ab"}, seen)
}
