// Package apology holds the fixed, user-facing strings shown in place of
// transport or backend failures. Raw error text never reaches a message.
package apology

import (
	"github.com/yungbote/foodlens/internal/platform/httpx"
)

const (
	Image   = "I couldn't analyze this image right now. Mind trying again?"
	Chat    = "I'm having trouble right now. Could you try again?"
	Timeout = "That took longer than expected. Could you try again in a moment?"
	Busy    = "I'm a little busy at the moment. Please try again shortly."
)

// ForChat picks the apology shown when a chat stream fails.
func ForChat(err error) string {
	switch {
	case httpx.IsTimeout(err):
		return Timeout
	case httpx.StatusCode(err) == 429 || httpx.StatusCode(err) == 503:
		return Busy
	default:
		return Chat
	}
}

// ForImage picks the apology shown when visual analysis fails.
func ForImage(err error) string {
	if httpx.IsTimeout(err) {
		return Timeout
	}
	return Image
}
