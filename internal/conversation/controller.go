// Package conversation owns a chat session: it appends user turns, drives the
// chat stream into assistant turns and applies edits.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/foodlens/internal/assembler"
	"github.com/yungbote/foodlens/internal/clients/chatstream"
	"github.com/yungbote/foodlens/internal/domain/chat"
	"github.com/yungbote/foodlens/internal/domain/product"
	"github.com/yungbote/foodlens/internal/platform/apology"
	"github.com/yungbote/foodlens/internal/platform/httpx"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

// ChatClient opens one streamed reply. *chatstream.Client satisfies it.
type ChatClient interface {
	Send(ctx context.Context, r chatstream.Request) (*chatstream.Stream, error)
}

var (
	ErrEmptyInput  = errors.New("conversation: nothing to send")
	ErrNotEditable = errors.New("conversation: only user messages can be edited")
)

type Options struct {
	Language string
	// SessionID resumes a backend session. Empty starts a new one.
	SessionID string
}

type Controller struct {
	log       *logger.Logger
	conv      *chat.Conversation
	client    ChatClient
	asm       *assembler.Assembler
	sessionID string
	language  string

	// mu keeps one request in flight at a time.
	mu sync.Mutex
}

func New(log *logger.Logger, conv *chat.Conversation, client ChatClient, opts Options) *Controller {
	if conv == nil {
		conv = chat.NewConversation()
	}
	sid := strings.TrimSpace(opts.SessionID)
	if sid == "" {
		sid = uuid.NewString()
	}
	log = logger.OrNop(log).With("service", "conversation.Controller")
	return &Controller{
		log:       log,
		conv:      conv,
		client:    client,
		asm:       assembler.New(log),
		sessionID: sid,
		language:  strings.TrimSpace(opts.Language),
	}
}

func (c *Controller) SessionID() string                { return c.sessionID }
func (c *Controller) Conversation() *chat.Conversation { return c.conv }

// OnUpdate forwards partial progress of assistant replies.
func (c *Controller) OnUpdate(fn func(chat.Snapshot)) { c.asm.OnUpdate(fn) }

// Send appends a user turn and streams the reply. An image is kept with the
// turn for display; the text alone goes to the backend. A turn with only an
// image gets no reply.
func (c *Controller) Send(ctx context.Context, text string, image []byte) (*chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(image) == 0 {
		return nil, ErrEmptyInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conv.Append(chat.NewUserMessage(text, image))
	if text == "" {
		return nil, nil
	}
	return c.reply(ctx, text)
}

// SendResolution hands a pipeline result to chat. Lookup results become a user
// turn that is answered by the backend; visual analysis results and failures
// are shown directly as the assistant's turn.
func (c *Controller) SendResolution(ctx context.Context, res product.Result) (*chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res.IsPrompt() {
		if strings.TrimSpace(res.Prompt) == "" {
			return nil, ErrEmptyInput
		}
		c.conv.Append(chat.NewUserMessage(res.Prompt, nil))
		return c.reply(ctx, res.Prompt)
	}

	msg := chat.NewAssistantMessage()
	switch res.Kind {
	case product.KindAIStructured:
		if res.Insight == nil {
			return nil, ErrEmptyInput
		}
		_ = msg.SetInsight(res.Insight)
	case product.KindAINarrative:
		_ = msg.AppendNarrative(res.Narrative)
	case product.KindFailure:
		text := res.Failure
		if strings.TrimSpace(text) == "" {
			text = apology.Image
		}
		_ = msg.AppendNarrative(text)
	default:
		return nil, ErrEmptyInput
	}
	_ = msg.Advance(chat.StateComplete)
	c.conv.Append(msg)
	c.log.Debug("resolution shown directly", "kind", string(res.Kind))
	return msg, nil
}

// Edit replaces a user turn with newText, drops everything after it and asks
// again.
func (c *Controller) Edit(ctx context.Context, messageID, newText string) (*chat.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, ErrEmptyInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.conv.Find(messageID)
	if !ok {
		return nil, chat.ErrNotFound
	}
	if old.Role != chat.RoleUser {
		return nil, ErrNotEditable
	}
	if err := c.conv.TruncateAfter(messageID); err != nil {
		return nil, err
	}
	if err := c.conv.Remove(messageID); err != nil {
		return nil, err
	}
	c.conv.Append(chat.NewUserMessage(newText, old.AttachedImage))
	c.log.Info("message edited", "message_id", messageID)
	return c.reply(ctx, newText)
}

func (c *Controller) reply(ctx context.Context, text string) (*chat.Message, error) {
	stream, err := c.client.Send(ctx, chatstream.Request{
		Message:   text,
		SessionID: c.sessionID,
		Language:  c.language,
	})
	if err != nil {
		c.log.Warn("chat request failed", "session_id", c.sessionID, "error", err,
			"transport", httpx.IsTransportError(err), "retryable", httpx.Retryable(err))
		return c.appendApology(err), err
	}
	defer stream.Close()

	msg, err := c.asm.Run(ctx, stream, c.conv)
	if truncated := stream.Truncated(); truncated > 0 {
		c.log.Warn("reply lost undecodable data", "session_id", c.sessionID, "fragments", truncated)
	}
	if err != nil {
		c.log.Warn("reply ended with error", "session_id", c.sessionID, "error", err,
			"transport", httpx.IsTransportError(err), "timeout", httpx.IsTimeout(err))
	}
	if msg == nil && err != nil {
		return c.appendApology(err), err
	}
	return msg, err
}

func (c *Controller) appendApology(err error) *chat.Message {
	msg := chat.NewAssistantMessage()
	_ = msg.AppendNarrative(apology.ForChat(err))
	_ = msg.Advance(chat.StateComplete)
	c.conv.Append(msg)
	return msg
}
