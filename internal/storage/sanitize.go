package storage

import (
	"strconv"
	"strings"
	"unicode"
)

// MaxDestinationLen is the longest destination name the store accepts.
const MaxDestinationLen = 100

const untitled = "Untitled"

// SanitizeDestination strips characters the store does not allow in sheet
// names, collapses whitespace and caps the length.
func SanitizeDestination(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`[]*?:/\'`, r):
			continue
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = truncateRunes(cleaned, MaxDestinationLen)
	if cleaned == "" {
		return untitled
	}
	return cleaned
}

// ChatDestination names the per-chat log destination. The chat id suffix keeps
// two chats with the same title apart.
func ChatDestination(title string, chatID int64) string {
	suffix := " " + strconv.FormatInt(chatID, 10)
	base := SanitizeDestination(title)
	base = strings.TrimSpace(truncateRunes(base, MaxDestinationLen-len([]rune(suffix))))
	if base == "" {
		base = untitled
	}
	return SanitizeDestination(base + suffix)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
