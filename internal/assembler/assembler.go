// Package assembler routes decoded stream records into the single in-progress
// assistant message of a chat request.
package assembler

import (
	"context"
	"errors"
	"io"

	"github.com/yungbote/foodlens/internal/clients/chatstream"
	"github.com/yungbote/foodlens/internal/domain/chat"
	"github.com/yungbote/foodlens/internal/platform/apology"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

// Source yields records in arrival order. *chatstream.Stream satisfies it.
type Source interface {
	Next() (chatstream.Record, error)
}

var ErrEmptyReply = errors.New("assembler: reply finished without content")

type Assembler struct {
	log      *logger.Logger
	onUpdate func(chat.Snapshot)
}

func New(log *logger.Logger) *Assembler {
	return &Assembler{log: logger.OrNop(log).With("service", "assembler")}
}

// OnUpdate registers a callback that sees the message after every change.
func (a *Assembler) OnUpdate(fn func(chat.Snapshot)) {
	a.onUpdate = fn
}

// Run drains src into a new assistant message appended to conv.
//
// A reply that fails or ends before any content arrives leaves nothing behind:
// the message is removed and Run returns a nil message. A reply that fails
// after content keeps what arrived, gets a short apology appended and is
// marked complete; both the message and the error are returned.
func (a *Assembler) Run(ctx context.Context, src Source, conv *chat.Conversation) (*chat.Message, error) {
	msg := chat.NewAssistantMessage()
	conv.Append(msg)

	for {
		if err := ctx.Err(); err != nil {
			return a.fail(conv, msg, err)
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			if msg.IsEmpty() {
				return a.fail(conv, msg, ErrEmptyReply)
			}
			a.complete(conv, msg)
			return msg, nil
		}
		if err != nil {
			return a.fail(conv, msg, err)
		}

		if err := msg.Advance(chat.StateStreaming); err != nil {
			return a.fail(conv, msg, err)
		}
		switch rec.Kind {
		case chatstream.RecordStructured:
			err = msg.SetInsight(rec.Insight)
		case chatstream.RecordDelta:
			err = msg.AppendNarrative(rec.Text)
		case chatstream.RecordDone:
			if msg.IsEmpty() {
				return a.fail(conv, msg, ErrEmptyReply)
			}
			a.complete(conv, msg)
			return msg, nil
		default:
			continue
		}
		if err != nil {
			return a.fail(conv, msg, err)
		}
		a.publish(conv, msg)
	}
}

func (a *Assembler) complete(conv *chat.Conversation, msg *chat.Message) {
	_ = msg.Advance(chat.StateComplete)
	a.publish(conv, msg)
}

func (a *Assembler) fail(conv *chat.Conversation, msg *chat.Message, err error) (*chat.Message, error) {
	if msg.IsEmpty() {
		if rerr := conv.Remove(msg.ID); rerr != nil {
			a.log.Warn("could not remove empty reply", "message_id", msg.ID, "error", rerr)
		}
		a.log.Warn("reply failed before content", "error", err)
		return nil, err
	}

	a.log.Warn("reply failed after content", "message_id", msg.ID, "error", err)
	sep := ""
	if msg.Narrative() != "" {
		sep = "\n\n"
	}
	_ = msg.AppendNarrative(sep + apology.ForChat(err))
	a.complete(conv, msg)
	return msg, err
}

func (a *Assembler) publish(conv *chat.Conversation, msg *chat.Message) {
	conv.Notify(msg)
	if a.onUpdate != nil {
		a.onUpdate(msg.Snapshot())
	}
}
