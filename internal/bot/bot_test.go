package bot

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/goodluck-bot/internal/models"
)

const selfID = 5000

func groupChat() *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: -100, Type: "supergroup", Title: "Ops"}
}

func sender() *tgbotapi.User {
	return &tgbotapi.User{ID: 7, FirstName: "Olga", LastName: "K", UserName: "olga"}
}

func commandMessage(text string, length int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		From:      sender(),
		Chat:      groupChat(),
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func TestToEvents_Command(t *testing.T) {
	events := toEvents(tgbotapi.Update{Message: commandMessage("/Enable@goodluck_bot now", 20)}, selfID)
	require.Len(t, events, 1)

	ev, ok := events[0].(models.ControlActionEvent)
	require.True(t, ok)
	assert.Equal(t, "enable", ev.Command)
	assert.Equal(t, "now", ev.Args)
	assert.Equal(t, models.Chat{ID: -100, Type: models.ChatSuperGroup, Title: "Ops"}, ev.Chat)
	assert.Equal(t, int64(7), ev.Actor.ID)
	assert.False(t, ev.IsCallback())
}

func TestToEvents_Message(t *testing.T) {
	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &tgbotapi.Message{
		MessageID: 11,
		From:      sender(),
		Chat:      groupChat(),
		Date:      int(sent.Unix()),
		Caption:   "goodluck",
	}

	events := toEvents(tgbotapi.Update{Message: msg}, selfID)
	require.Len(t, events, 1)
	ev, ok := events[0].(models.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "goodluck", ev.Content())
	assert.Equal(t, "Olga K", ev.Actor.DisplayName())
	assert.Equal(t, "olga", ev.Actor.Username)
	assert.True(t, sent.Equal(ev.SentAt))
}

func TestToEvents_BotAddedToGroup(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID:      12,
		From:           sender(),
		Chat:           groupChat(),
		NewChatMembers: []tgbotapi.User{{ID: 1}, {ID: selfID, IsBot: true}},
	}

	events := toEvents(tgbotapi.Update{Message: msg}, selfID)
	require.Len(t, events, 1)
	assert.Equal(t, models.MembershipEvent{
		Actor:  models.Actor{ID: 7, FirstName: "Olga", LastName: "K", Username: "olga"},
		Chat:   models.Chat{ID: -100, Type: models.ChatSuperGroup, Title: "Ops"},
		Joined: true,
	}, events[0])
}

func TestToEvents_BotRemovedFromGroup(t *testing.T) {
	msg := &tgbotapi.Message{
		From:           sender(),
		Chat:           groupChat(),
		LeftChatMember: &tgbotapi.User{ID: selfID},
	}

	events := toEvents(tgbotapi.Update{Message: msg}, selfID)
	require.Len(t, events, 1)
	m, ok := events[0].(models.MembershipEvent)
	require.True(t, ok)
	assert.False(t, m.Joined)
}

func TestToEvents_OtherMemberLeftOnlyRegistersChat(t *testing.T) {
	msg := &tgbotapi.Message{
		From:           sender(),
		Chat:           groupChat(),
		LeftChatMember: &tgbotapi.User{ID: 1},
	}

	events := toEvents(tgbotapi.Update{Message: msg}, selfID)
	require.Len(t, events, 1)
	ev, ok := events[0].(models.MessageEvent)
	require.True(t, ok)
	assert.Empty(t, ev.Content())
	assert.Equal(t, int64(-100), ev.Chat.ID)
}

func TestToEvents_StickerWithoutTextIsStillAMessage(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 13,
		From:      sender(),
		Chat:      groupChat(),
		Sticker:   &tgbotapi.Sticker{FileID: "sticker-1", Emoji: "🍀"},
	}

	events := toEvents(tgbotapi.Update{Message: msg}, selfID)
	require.Len(t, events, 1)
	ev, ok := events[0].(models.MessageEvent)
	require.True(t, ok)
	assert.Empty(t, ev.Content())
	assert.Equal(t, 13, ev.MessageID)
	assert.Equal(t, models.Chat{ID: -100, Type: models.ChatSuperGroup, Title: "Ops"}, ev.Chat)
}

func TestToEvents_MyChatMember(t *testing.T) {
	cases := map[string]bool{
		"member":        true,
		"administrator": true,
		"left":          false,
		"kicked":        false,
	}
	for status, joined := range cases {
		t.Run(status, func(t *testing.T) {
			update := tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
				Chat:          *groupChat(),
				From:          *sender(),
				NewChatMember: tgbotapi.ChatMember{User: &tgbotapi.User{ID: selfID}, Status: status},
			}}

			events := toEvents(update, selfID)
			require.Len(t, events, 1)
			m, ok := events[0].(models.MembershipEvent)
			require.True(t, ok)
			assert.Equal(t, joined, m.Joined)
			assert.Equal(t, int64(-100), m.Chat.ID)
		})
	}
}

func TestToEvents_Callback(t *testing.T) {
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: sender(),
		Data: "sel:-100",
		Message: &tgbotapi.Message{
			MessageID: 33,
			Chat:      &tgbotapi.Chat{ID: 7, Type: "private"},
		},
	}}

	events := toEvents(update, selfID)
	require.Len(t, events, 1)
	ev, ok := events[0].(models.ControlActionEvent)
	require.True(t, ok)
	assert.True(t, ev.IsCallback())
	assert.Equal(t, "sel:-100", ev.Token)
	assert.Equal(t, 33, ev.MessageID)
	assert.True(t, ev.Chat.IsPrivate())
}

func TestToEvents_EmptyUpdate(t *testing.T) {
	assert.Empty(t, toEvents(tgbotapi.Update{}, selfID))
	assert.Empty(t, toEvents(tgbotapi.Update{Message: &tgbotapi.Message{Text: "orphan"}}, selfID))
}
