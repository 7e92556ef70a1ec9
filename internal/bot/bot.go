package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/goodluck-bot/internal/models"
	"github.com/xaenox/goodluck-bot/internal/selector"
	"go.uber.org/zap"
)

// Handler consumes converted events. The engine in internal/tracker is the
// only production implementation.
type Handler interface {
	Handle(ctx context.Context, ev models.Event)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	logger      *zap.Logger
	pollTimeout time.Duration
}

func New(token string, pollTimeout time.Duration, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Authorized on account", zap.String("username", api.Self.UserName))

	return &Bot{
		api:         api,
		logger:      logger,
		pollTimeout: pollTimeout,
	}, nil
}

// Run long-polls for updates and hands them to h one at a time, in arrival
// order, until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	u.AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			for _, ev := range toEvents(update, b.api.Self.ID) {
				h.Handle(ctx, ev)
			}
		}
	}
}

func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) SendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMenu(chatID int64, text string, options []selector.Option) (int, error) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, opt.Token),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the message text. The edit carries no reply markup, so
// the inline keyboard is removed.
func (b *Bot) EditText(chatID int64, messageID int, text string) error {
	_, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (b *Bot) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	_, err := b.api.Request(cb)
	return err
}

// toEvents converts one update into zero or more events. selfID is the bot's
// own user id, used to spot membership changes in service messages.
func toEvents(update tgbotapi.Update, selfID int64) []models.Event {
	switch {
	case update.CallbackQuery != nil:
		return callbackEvents(update.CallbackQuery)
	case update.MyChatMember != nil:
		return memberEvents(update.MyChatMember)
	case update.Message != nil:
		return messageEvents(update.Message, selfID)
	default:
		return nil
	}
}

func messageEvents(msg *tgbotapi.Message, selfID int64) []models.Event {
	if msg.Chat == nil {
		return nil
	}
	chat := toChat(msg.Chat)
	actor := toActor(msg.From)

	if msg.IsCommand() {
		return []models.Event{models.ControlActionEvent{
			Actor:     actor,
			Chat:      chat,
			Command:   strings.ToLower(msg.Command()),
			Args:      strings.TrimSpace(msg.CommandArguments()),
			MessageID: msg.MessageID,
		}}
	}

	var events []models.Event
	for _, member := range msg.NewChatMembers {
		if member.ID == selfID {
			events = append(events, models.MembershipEvent{Actor: actor, Chat: chat, Joined: true})
		}
	}
	if msg.LeftChatMember != nil && msg.LeftChatMember.ID == selfID {
		events = append(events, models.MembershipEvent{Actor: actor, Chat: chat, Joined: false})
	}
	// Service messages about the bot itself are membership changes only;
	// anything else, stickers and media without captions included, registers
	// the chat.
	if len(events) > 0 {
		return events
	}
	return append(events, models.MessageEvent{
		Actor:     actor,
		Chat:      chat,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Caption:   msg.Caption,
		SentAt:    msg.Time(),
	})
}

func memberEvents(m *tgbotapi.ChatMemberUpdated) []models.Event {
	var joined bool
	switch m.NewChatMember.Status {
	case "member", "administrator", "creator", "restricted":
		joined = true
	case "left", "kicked":
		joined = false
	default:
		return nil
	}
	return []models.Event{models.MembershipEvent{
		Actor:  toActor(&m.From),
		Chat:   toChat(&m.Chat),
		Joined: joined,
	}}
}

func callbackEvents(q *tgbotapi.CallbackQuery) []models.Event {
	ev := models.ControlActionEvent{
		Actor:      toActor(q.From),
		CallbackID: q.ID,
		Token:      q.Data,
	}
	if q.Message != nil {
		ev.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			ev.Chat = toChat(q.Message.Chat)
		}
	}
	return []models.Event{ev}
}

func toChat(c *tgbotapi.Chat) models.Chat {
	return models.Chat{
		ID:    c.ID,
		Type:  models.ChatType(c.Type),
		Title: c.Title,
	}
}

func toActor(u *tgbotapi.User) models.Actor {
	if u == nil {
		return models.Actor{}
	}
	return models.Actor{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}
