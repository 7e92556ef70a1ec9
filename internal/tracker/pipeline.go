package tracker

import (
	"context"

	"github.com/google/uuid"
	"github.com/xaenox/goodluck-bot/internal/metrics"
	"github.com/xaenox/goodluck-bot/internal/models"
	"go.uber.org/zap"
)

// Match carries one message through the pipeline.
type Match struct {
	Message models.MessageEvent
	Text    string
	Count   int
	Record  models.PendingRecord
}

// Stage is one step of message processing. Returning false stops the
// pipeline.
type Stage func(ctx context.Context, m *Match) bool

// Process runs classify -> aggregate -> enqueue and reports whether the
// message went all the way through.
func (e *Engine) Process(ctx context.Context, msg models.MessageEvent) (Match, bool) {
	m := Match{Message: msg}
	for _, stage := range e.stages {
		if !stage(ctx, &m) {
			return m, false
		}
	}
	return m, true
}

func (e *Engine) classify(ctx context.Context, m *Match) bool {
	m.Text = m.Message.Content()
	return e.Classifier.Classify(m.Text)
}

func (e *Engine) aggregate(ctx context.Context, m *Match) bool {
	actor := m.Message.Actor
	m.Count = e.Table.RecordMatch(actor.ID, actor.DisplayName())
	metrics.MatchesTotal.Inc()

	e.logger.Info("Trigger matched",
		zap.Int64("user_id", actor.ID),
		zap.String("name", actor.DisplayName()),
		zap.Int64("chat_id", m.Message.Chat.ID),
		zap.Int("total", m.Count))
	return true
}

func (e *Engine) enqueue(ctx context.Context, m *Match) bool {
	ts := m.Message.SentAt
	if ts.IsZero() {
		ts = e.now()
	}
	title := m.Message.Chat.Title
	if title == "" {
		title = e.Registry.Title(m.Message.Chat.ID)
	}

	m.Record = models.PendingRecord{
		ID:           uuid.NewString(),
		Timestamp:    ts,
		SenderID:     m.Message.Actor.ID,
		SenderName:   m.Message.Actor.DisplayName(),
		SenderHandle: m.Message.Actor.Username,
		Text:         m.Text,
		ChatTitle:    title,
		ChatID:       m.Message.Chat.ID,
	}
	e.Buffer.Enqueue(m.Record)
	return true
}
