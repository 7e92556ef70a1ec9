package tracker

import (
	"strings"

	"github.com/xaenox/goodluck-bot/internal/selector"
)

// Messenger is the outbound side of the chat platform.
type Messenger interface {
	SendText(chatID int64, text string) error
	// SendMarkdown sends text that is already escaped for MarkdownV2.
	SendMarkdown(chatID int64, text string) error
	// SendMenu sends a prompt with one button per option and returns the
	// id of the sent message.
	SendMenu(chatID int64, text string, options []selector.Option) (int, error)
	// EditText replaces the text of a sent message and removes its buttons.
	EditText(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string, alert bool) error
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
