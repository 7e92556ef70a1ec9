package models

import "time"

// ChatType mirrors the chat kinds reported by Telegram.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSuperGroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat is the chat an event was observed in.
type Chat struct {
	ID    int64    `json:"id"`
	Type  ChatType `json:"type"`
	Title string   `json:"title"`
}

func (c Chat) IsPrivate() bool {
	return c.Type == ChatPrivate
}

// IsGroup reports whether the chat is a group or a supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatGroup || c.Type == ChatSuperGroup
}

// Actor is the user behind an event.
type Actor struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

func (a Actor) DisplayName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// ChatRecord is a chat the bot has seen.
type ChatRecord struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Member    bool      `json:"member"`
	FirstSeen time.Time `json:"first_seen"`
}

// Candidate is a chat offered to an operator in a selection menu.
type Candidate struct {
	ChatID int64  `json:"chat_id"`
	Title  string `json:"title"`
}

// PendingRecord is a snapshot of one matched message waiting to be persisted.
type PendingRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	SenderID     int64     `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	SenderHandle string    `json:"sender_handle,omitempty"`
	Text         string    `json:"text"`
	ChatTitle    string    `json:"chat_title"`
	ChatID       int64     `json:"chat_id"`
}
