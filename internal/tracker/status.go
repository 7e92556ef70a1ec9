package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/goodluck-bot/internal/buffer"
	"github.com/xaenox/goodluck-bot/internal/classifier"
	"github.com/xaenox/goodluck-bot/internal/selector"
	"github.com/xaenox/goodluck-bot/internal/tally"
)

// EnabledChat is one entry of the enabled set, with its known title.
type EnabledChat struct {
	ChatID int64  `json:"chat_id"`
	Title  string `json:"title"`
}

// Status is a point-in-time view of the engine, served by /status and
// /health.
type Status struct {
	Uptime        string          `json:"uptime"`
	KnownChats    int             `json:"known_chats"`
	Enabled       []EnabledChat   `json:"enabled"`
	Scope         selector.Scope  `json:"scope"`
	Target        selector.Target `json:"target"`
	MatchMode     string          `json:"match_mode,omitempty"`
	Pending       int             `json:"pending"`
	FlushRunning  bool            `json:"flush_running"`
	LastFlush     *buffer.Result  `json:"last_flush,omitempty"`
	Counts        []tally.Entry   `json:"counts"`
	CountingSince time.Time       `json:"counting_since"`
}

func matchMode(c classifier.Classifier) string {
	if m, ok := c.(interface{ Mode() classifier.MatchMode }); ok {
		return string(m.Mode())
	}
	return ""
}

// Status reports the view of actorID; under global scope every actor sees
// the same target.
func (e *Engine) Status(actorID int64) Status {
	ids := e.Enabled.List()
	enabledChats := make([]EnabledChat, 0, len(ids))
	for _, id := range ids {
		enabledChats = append(enabledChats, EnabledChat{ChatID: id, Title: e.Registry.Title(id)})
	}

	st := Status{
		Uptime:        time.Since(e.startedAt).Round(time.Second).String(),
		KnownChats:    e.Registry.Len(),
		Enabled:       enabledChats,
		Scope:         e.Selector.Scope(),
		Target:        e.Selector.Target(actorID),
		MatchMode:     matchMode(e.Classifier),
		Pending:       e.Buffer.Len(),
		FlushRunning:  e.Flusher.Running(),
		Counts:        e.Table.Snapshot(),
		CountingSince: e.Table.Since(),
	}
	if last, ok := e.Flusher.Last(); ok {
		st.LastFlush = &last
	}
	return st
}

// Health is the StatusFunc handed to the metrics server.
func (e *Engine) Health() any {
	return e.Status(0)
}

func (e *Engine) statusText(actorID int64) string {
	st := e.Status(actorID)

	var b strings.Builder
	b.WriteString("📊 *Status*\n\n")
	fmt.Fprintf(&b, "Uptime: %s\n", escapeMarkdown(st.Uptime))
	fmt.Fprintf(&b, "Known groups: %d\n", st.KnownChats)
	if st.MatchMode != "" {
		fmt.Fprintf(&b, "Match mode: %s\n", escapeMarkdown(st.MatchMode))
	}

	switch st.Target.State {
	case selector.Set:
		fmt.Fprintf(&b, "Target: %s\n", escapeMarkdown(st.Target.Title))
	case selector.Skipped:
		b.WriteString("Target: none \\(skipped\\)\n")
	default:
		b.WriteString("Target: not set\n")
	}

	if len(st.Enabled) == 0 {
		b.WriteString("Tracking: no groups enabled\n")
	} else {
		b.WriteString("Tracking:\n")
		for _, c := range st.Enabled {
			fmt.Fprintf(&b, "  • %s\n", escapeMarkdown(c.Title))
		}
	}

	fmt.Fprintf(&b, "\nPending records: %d\n", st.Pending)
	if st.FlushRunning {
		b.WriteString("Flush: running\n")
	} else if st.LastFlush != nil {
		outcome := "ok"
		if st.LastFlush.Err != nil {
			outcome = "with errors"
		}
		fmt.Fprintf(&b, "Last flush: %s, %d written \\(%s\\)\n",
			escapeMarkdown(st.LastFlush.FinishedAt.UTC().Format(time.RFC3339)),
			st.LastFlush.Written, escapeMarkdown(outcome))
	}

	fmt.Fprintf(&b, "\n*Counts since %s*\n", escapeMarkdown(st.CountingSince.UTC().Format("2006-01-02 15:04")))
	if len(st.Counts) == 0 {
		b.WriteString("No matches yet\\.\n")
	}
	for _, entry := range st.Counts {
		fmt.Fprintf(&b, "%s: %d\n", escapeMarkdown(entry.Name), entry.Count)
	}
	return b.String()
}
