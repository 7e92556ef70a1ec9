package tracker

import (
	"context"
	"time"

	"github.com/xaenox/goodluck-bot/internal/auth"
	"github.com/xaenox/goodluck-bot/internal/buffer"
	"github.com/xaenox/goodluck-bot/internal/classifier"
	"github.com/xaenox/goodluck-bot/internal/enabled"
	"github.com/xaenox/goodluck-bot/internal/metrics"
	"github.com/xaenox/goodluck-bot/internal/models"
	"github.com/xaenox/goodluck-bot/internal/registry"
	"github.com/xaenox/goodluck-bot/internal/selector"
	"github.com/xaenox/goodluck-bot/internal/tally"
	"go.uber.org/zap"
)

// Deps is the state shared by every handler. It is created once at startup.
type Deps struct {
	Messenger  Messenger
	Guard      *auth.Guard
	Registry   *registry.Registry
	Selector   *selector.Selector
	Classifier classifier.Classifier
	Table      *tally.Table
	Buffer     *buffer.Buffer
	Flusher    *buffer.Flusher
	Enabled    *enabled.Set
}

type handlerFunc func(ctx context.Context, ev models.Event)

type commandFunc func(ctx context.Context, ev models.ControlActionEvent)

// Engine routes inbound events. Events must be handed to Handle one at a
// time, in arrival order.
type Engine struct {
	Deps
	logger *zap.Logger

	handlers  map[models.EventKind]handlerFunc
	commands  map[string]commandFunc
	stages    []Stage
	startedAt time.Time
	now       func() time.Time
}

func New(deps Deps, logger *zap.Logger) *Engine {
	e := &Engine{
		Deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
	e.handlers = map[models.EventKind]handlerFunc{
		models.KindMessage:    e.handleMessage,
		models.KindMembership: e.handleMembership,
		models.KindControl:    e.handleControl,
	}
	e.commands = map[string]commandFunc{
		"start":   e.cmdMenu,
		"menu":    e.cmdMenu,
		"enable":  e.cmdEnable,
		"disable": e.cmdDisable,
		"flush":   e.cmdFlush,
		"status":  e.cmdStatus,
		"health":  e.cmdStatus,
		"help":    e.cmdHelp,
	}
	e.stages = []Stage{e.classify, e.aggregate, e.enqueue}
	return e
}

// Handle processes one event. A panic in a handler is logged and swallowed
// so the update loop keeps running.
func (e *Engine) Handle(ctx context.Context, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered from panic while handling event",
				zap.Any("panic", r),
				zap.Stringer("kind", ev.Kind()))
		}
	}()

	metrics.EventsTotal.WithLabelValues(ev.Kind().String()).Inc()
	handler, ok := e.handlers[ev.Kind()]
	if !ok {
		e.logger.Warn("No handler for event", zap.Stringer("kind", ev.Kind()))
		return
	}
	handler(ctx, ev)
}

func (e *Engine) handleMessage(ctx context.Context, ev models.Event) {
	msg, ok := ev.(models.MessageEvent)
	if !ok || !msg.Chat.IsGroup() {
		return
	}

	e.Registry.Observe(msg.Chat, msg.Actor.ID)
	if !e.Enabled.Contains(msg.Chat.ID) {
		return
	}
	e.Process(ctx, msg)
}

func (e *Engine) handleMembership(ctx context.Context, ev models.Event) {
	m, ok := ev.(models.MembershipEvent)
	if !ok {
		return
	}

	if m.Joined {
		e.Registry.Observe(m.Chat, m.Actor.ID)
	}
	e.Registry.SetMembership(m.Chat, m.Joined)
	e.logger.Info("Bot membership changed",
		zap.Int64("chat_id", m.Chat.ID),
		zap.String("chat_title", m.Chat.Title),
		zap.Bool("joined", m.Joined),
		zap.Int64("user_id", m.Actor.ID))
}

func (e *Engine) handleControl(ctx context.Context, ev models.Event) {
	c, ok := ev.(models.ControlActionEvent)
	if !ok {
		return
	}
	if c.IsCallback() {
		e.handleSelection(ctx, c)
		return
	}

	e.Registry.Observe(c.Chat, c.Actor.ID)
	cmd, ok := e.commands[c.Command]
	if !ok {
		if c.Chat.IsPrivate() {
			e.reply(c.Chat.ID, "Unknown command. Use /help to see available commands.")
		}
		return
	}
	cmd(ctx, c)
}

func (e *Engine) reply(chatID int64, text string) {
	if err := e.Messenger.SendText(chatID, text); err != nil {
		e.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (e *Engine) deny(c models.ControlActionEvent, action string) {
	e.logger.Info("Denied control action",
		zap.Int64("user_id", c.Actor.ID),
		zap.Int64("chat_id", c.Chat.ID),
		zap.String("action", action))
	e.reply(c.Chat.ID, "⛔ You are not allowed to "+action+".")
}
