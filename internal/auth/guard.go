package auth

import (
	"errors"

	"github.com/xaenox/goodluck-bot/internal/models"
)

var (
	// ErrUnauthorized is returned when an actor outside the allow-list tries
	// a control action.
	ErrUnauthorized = errors.New("not an operator")
	// ErrPrivateChat is returned when a "this chat" action is used in a DM.
	ErrPrivateChat = errors.New("command only works inside a group chat")
)

// Guard checks actors against a static operator allow-list.
type Guard struct {
	operators map[int64]struct{}
}

func NewGuard(operatorIDs []int64) *Guard {
	g := &Guard{operators: make(map[int64]struct{}, len(operatorIDs))}
	for _, id := range operatorIDs {
		g.operators[id] = struct{}{}
	}
	return g
}

func (g *Guard) IsAuthorized(actorID int64) bool {
	_, ok := g.operators[actorID]
	return ok
}

func (g *Guard) Authorize(actorID int64) error {
	if !g.IsAuthorized(actorID) {
		return ErrUnauthorized
	}
	return nil
}

// RequireGroup rejects chats that have no group context.
func RequireGroup(chat models.Chat) error {
	if !chat.IsGroup() {
		return ErrPrivateChat
	}
	return nil
}
