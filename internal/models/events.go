package models

import (
	"strings"
	"time"
)

type EventKind int

const (
	KindMessage EventKind = iota + 1
	KindMembership
	KindControl
)

func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindMembership:
		return "membership"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Event is one inbound event from the chat platform. The concrete type is
// one of MessageEvent, MembershipEvent or ControlActionEvent.
type Event interface {
	Kind() EventKind
}

// MessageEvent is an ordinary (non-command) message.
type MessageEvent struct {
	Actor     Actor
	Chat      Chat
	MessageID int
	Text      string
	Caption   string
	SentAt    time.Time
}

func (MessageEvent) Kind() EventKind { return KindMessage }

// Content returns the message text, falling back to the media caption.
func (e MessageEvent) Content() string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	return e.Caption
}

// MembershipEvent reports the bot joining or leaving a chat.
type MembershipEvent struct {
	Actor  Actor
	Chat   Chat
	Joined bool
}

func (MembershipEvent) Kind() EventKind { return KindMembership }

// ControlActionEvent is either a slash command or an inline button press.
// Button presses carry a CallbackID and the opaque Token from the button.
type ControlActionEvent struct {
	Actor      Actor
	Chat       Chat
	Command    string
	Args       string
	CallbackID string
	Token      string
	MessageID  int
}

func (ControlActionEvent) Kind() EventKind { return KindControl }

func (e ControlActionEvent) IsCallback() bool {
	return e.CallbackID != ""
}
