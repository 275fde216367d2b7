// Package status surfaces transient, auto-expiring human-readable messages.
// Any component may publish; at most one message is current at a time.
package status

import (
	"regexp"
	"sync"
	"time"
)

// Severity labels a message for presentation.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// errorKeywords mirrors the keyword heuristic the production demo UI uses to
// style messages. Kept behind Classify so callers never depend on it directly.
var errorKeywords = regexp.MustCompile(`(?i)wrong|fail|error|required|insufficient`)

// Classify infers a severity from the message text. Deliberately fuzzy, for
// compatibility with the production demo's styling.
func Classify(text string) Severity {
	if errorKeywords.MatchString(text) {
		return SeverityError
	}
	return SeveritySuccess
}

// Message is a published status entry.
type Message struct {
	Text       string
	Severity   Severity
	Persistent bool
}

// Channel holds the single current status message and expires non-persistent
// ones after a fixed interval. A new publish replaces the prior message and
// cancels any pending clear.
type Channel struct {
	mu       sync.Mutex
	ttl      time.Duration
	current  *Message
	timer    *time.Timer
	listener func(Message, bool)
}

// NewChannel builds a channel whose non-persistent messages expire after ttl.
func NewChannel(ttl time.Duration) *Channel {
	return &Channel{ttl: ttl}
}

// SetListener registers a callback invoked on every publish and clear. The
// boolean is false when the channel was cleared. Intended for the UI; a nil
// listener is fine.
func (c *Channel) SetListener(fn func(Message, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
}

// Publish replaces the current message and schedules its expiry.
func (c *Channel) Publish(text string) {
	c.publish(Message{Text: text, Severity: Classify(text)})
}

// PublishPersistent replaces the current message with one that never expires.
func (c *Channel) PublishPersistent(text string) {
	c.publish(Message{Text: text, Severity: Classify(text), Persistent: true})
}

func (c *Channel) publish(msg Message) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.current = &msg
	if !msg.Persistent {
		c.timer = time.AfterFunc(c.ttl, func() { c.expire(msg) })
	}
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(msg, true)
	}
}

// expire clears the message only if it is still the current one.
func (c *Channel) expire(msg Message) {
	c.mu.Lock()
	if c.current == nil || *c.current != msg {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(Message{}, false)
	}
}

// Clear drops the current message immediately.
func (c *Channel) Clear() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	cleared := c.current != nil
	c.current = nil
	listener := c.listener
	c.mu.Unlock()

	if cleared && listener != nil {
		listener(Message{}, false)
	}
}

// Current returns the live message, if any.
func (c *Channel) Current() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Message{}, false
	}
	return *c.current, true
}
