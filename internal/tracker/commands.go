package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/goodluck-bot/internal/auth"
	"github.com/xaenox/goodluck-bot/internal/buffer"
	"github.com/xaenox/goodluck-bot/internal/models"
	"github.com/xaenox/goodluck-bot/internal/selector"
	"go.uber.org/zap"
)

const helpText = `Available commands:
/start - Pick the group to track (private chat only)
/enable - Start tracking this group
/disable - Stop tracking this group
/flush - Write pending records now
/status - Show tracking status
/help - Show this help message`

func (e *Engine) cmdMenu(ctx context.Context, c models.ControlActionEvent) {
	if !c.Chat.IsPrivate() {
		e.reply(c.Chat.ID, "⚡ Please DM me to select the target group.")
		return
	}
	if err := e.Guard.Authorize(c.Actor.ID); err != nil {
		e.deny(c, "select the target group")
		return
	}

	options := e.Selector.Begin(c.Actor.ID)
	text := "Select the target group for tracking:"
	if len(options) == 1 {
		text = "⚠️ No groups detected yet. Send a message in a group where I'm added, then /start again.\nYou can also skip for now:"
	}
	if _, err := e.Messenger.SendMenu(c.Chat.ID, text, options); err != nil {
		e.logger.Error("Failed to send selection menu",
			zap.Error(err),
			zap.Int64("chat_id", c.Chat.ID))
	}
}

func (e *Engine) handleSelection(ctx context.Context, c models.ControlActionEvent) {
	if err := e.Guard.Authorize(c.Actor.ID); err != nil {
		e.logger.Info("Denied selection",
			zap.Int64("user_id", c.Actor.ID),
			zap.String("token", c.Token))
		e.answer(c.CallbackID, "⛔ You are not allowed to change the target.", true)
		return
	}

	target, err := e.Selector.Choose(ctx, c.Actor.ID, c.Token)
	switch {
	case errors.Is(err, selector.ErrStaleSelection):
		e.logger.Info("Rejected stale selection",
			zap.Int64("user_id", c.Actor.ID),
			zap.String("token", c.Token),
			zap.Error(err))
		e.answer(c.CallbackID, "⚠️ This option is no longer available. Pick another one or send /start again.", true)
		return
	case err != nil:
		e.logger.Error("Failed to apply selection",
			zap.Error(err),
			zap.Int64("user_id", c.Actor.ID),
			zap.String("token", c.Token))
		e.answer(c.CallbackID, "⚠️ Couldn't save your choice, please try again.", true)
		return
	}

	text := fmt.Sprintf("✅ Group set for tracking: %s", target.Title)
	if others := e.otherEnabledTitles(target.ChatID); len(others) > 0 {
		text += fmt.Sprintf("\nStill tracked: %s. Send /disable there to stop.", strings.Join(others, ", "))
	}
	if target.State == selector.Skipped {
		text = "⏭ No group selected. Send /start to choose one later."
	}
	if err := e.Messenger.EditText(c.Chat.ID, c.MessageID, text); err != nil {
		e.logger.Error("Failed to edit selection prompt",
			zap.Error(err),
			zap.Int64("chat_id", c.Chat.ID),
			zap.Int("message_id", c.MessageID))
	}
	e.answer(c.CallbackID, "", false)
	e.logger.Info("Tracking target changed",
		zap.Int64("user_id", c.Actor.ID),
		zap.Stringer("state", target.State),
		zap.Int64("chat_id", target.ChatID))
}

// otherEnabledTitles names the enabled chats other than chatID, which a new
// selection leaves tracked.
func (e *Engine) otherEnabledTitles(chatID int64) []string {
	var titles []string
	for _, id := range e.Enabled.List() {
		if id != chatID {
			titles = append(titles, e.Registry.Title(id))
		}
	}
	return titles
}

func (e *Engine) cmdEnable(ctx context.Context, c models.ControlActionEvent) {
	if !e.checkChatAction(c, "enable tracking") {
		return
	}
	changed, err := e.Enabled.Enable(ctx, c.Chat.ID)
	if err != nil {
		e.logger.Error("Failed to enable tracking", zap.Error(err), zap.Int64("chat_id", c.Chat.ID))
		e.reply(c.Chat.ID, "⚠️ Couldn't update tracking, please try again.")
		return
	}
	if !changed {
		e.reply(c.Chat.ID, "Tracking is already enabled for this chat.")
		return
	}
	e.reply(c.Chat.ID, fmt.Sprintf("✅ Tracking enabled for %s.", e.Registry.Title(c.Chat.ID)))
}

func (e *Engine) cmdDisable(ctx context.Context, c models.ControlActionEvent) {
	if !e.checkChatAction(c, "disable tracking") {
		return
	}
	changed, err := e.Enabled.Disable(ctx, c.Chat.ID)
	if err != nil {
		e.logger.Error("Failed to disable tracking", zap.Error(err), zap.Int64("chat_id", c.Chat.ID))
		e.reply(c.Chat.ID, "⚠️ Couldn't update tracking, please try again.")
		return
	}
	if !changed {
		e.reply(c.Chat.ID, "Tracking is not enabled for this chat.")
		return
	}
	e.reply(c.Chat.ID, fmt.Sprintf("🛑 Tracking disabled for %s.", e.Registry.Title(c.Chat.ID)))
}

// checkChatAction gates actions on "this chat": operator only, groups only.
func (e *Engine) checkChatAction(c models.ControlActionEvent, action string) bool {
	if err := e.Guard.Authorize(c.Actor.ID); err != nil {
		e.deny(c, action)
		return false
	}
	if err := auth.RequireGroup(c.Chat); err != nil {
		e.reply(c.Chat.ID, "This command only works inside a group chat.")
		return false
	}
	return true
}

func (e *Engine) cmdFlush(ctx context.Context, c models.ControlActionEvent) {
	if err := e.Guard.Authorize(c.Actor.ID); err != nil {
		e.deny(c, "flush records")
		return
	}

	res, err := e.Flusher.Flush(ctx)
	switch {
	case errors.Is(err, buffer.ErrFlushInProgress):
		e.reply(c.Chat.ID, "⏳ A flush is already running.")
	case err != nil:
		e.reply(c.Chat.ID, fmt.Sprintf("⚠️ Flush finished with errors: %d written, %d will be retried, %d dropped.",
			res.Written, res.Requeued, res.Dropped))
	default:
		e.reply(c.Chat.ID, fmt.Sprintf("💾 Flushed %d records to %d destinations.", res.Written, res.Destinations))
	}
}

func (e *Engine) cmdStatus(ctx context.Context, c models.ControlActionEvent) {
	if err := e.Messenger.SendMarkdown(c.Chat.ID, e.statusText(c.Actor.ID)); err != nil {
		e.logger.Error("Failed to send status",
			zap.Error(err),
			zap.Int64("chat_id", c.Chat.ID))
	}
}

func (e *Engine) cmdHelp(ctx context.Context, c models.ControlActionEvent) {
	e.reply(c.Chat.ID, helpText)
}

func (e *Engine) answer(callbackID, text string, alert bool) {
	if err := e.Messenger.AnswerCallback(callbackID, text, alert); err != nil {
		e.logger.Error("Failed to answer callback",
			zap.Error(err),
			zap.String("callback_id", callbackID))
	}
}
