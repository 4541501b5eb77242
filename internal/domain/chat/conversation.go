package chat

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("chat: message not found")

// Conversation is the ordered message list the UI renders. Writes come from
// a single flow of control; the lock only protects readers on other
// goroutines (a renderer, a signal handler).
type Conversation struct {
	mu       sync.RWMutex
	messages []*Message
	subs     []func(Snapshot)
}

func NewConversation() *Conversation {
	return &Conversation{}
}

func (c *Conversation) Append(m *Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	c.Notify(m)
}

// Remove deletes a message by id.
func (c *Conversation) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Find returns the message with id, if present.
func (c *Conversation) Find(id string) (*Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// TruncateAfter drops every message that follows id, keeping id itself.
func (c *Conversation) TruncateAfter(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.ID == id {
			for j := i + 1; j < len(c.messages); j++ {
				c.messages[j] = nil
			}
			c.messages = c.messages[:i+1]
			return nil
		}
	}
	return ErrNotFound
}

func (c *Conversation) Last() (*Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return nil, false
	}
	return c.messages[len(c.messages)-1], true
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Messages returns snapshots in conversation order.
func (c *Conversation) Messages() []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Snapshot, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m.Snapshot())
	}
	return out
}

// Subscribe registers fn to receive a snapshot whenever a message changes.
func (c *Conversation) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Notify publishes the current state of m to subscribers.
func (c *Conversation) Notify(m *Message) {
	c.mu.RLock()
	subs := append([]func(Snapshot){}, c.subs...)
	c.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	snap := m.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}
