package registry

import (
	"sync"
	"time"

	"github.com/xaenox/goodluck-bot/internal/models"
)

const unnamedChat = "Unnamed Group"

// Registry remembers the group chats the bot has seen and, per operator,
// which of those chats the operator has been observed in.
type Registry struct {
	mu    sync.RWMutex
	chats map[int64]*models.ChatRecord
	views map[int64][]int64
	now   func() time.Time
}

func New() *Registry {
	return &Registry{
		chats: make(map[int64]*models.ChatRecord),
		views: make(map[int64][]int64),
		now:   time.Now,
	}
}

// Observe upserts the chat and adds it to the actor's view. Private chats
// and channels are ignored.
func (r *Registry) Observe(chat models.Chat, actorID int64) {
	if !chat.IsGroup() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.upsertLocked(chat, true)
	if actorID == 0 {
		return
	}
	for _, id := range r.views[actorID] {
		if id == chat.ID {
			return
		}
	}
	r.views[actorID] = append(r.views[actorID], chat.ID)
}

// SetMembership records whether the bot currently participates in the chat.
func (r *Registry) SetMembership(chat models.Chat, member bool) {
	if !chat.IsGroup() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.upsertLocked(chat, member)
}

func (r *Registry) upsertLocked(chat models.Chat, member bool) {
	title := chat.Title
	rec, exists := r.chats[chat.ID]
	if !exists {
		if title == "" {
			title = unnamedChat
		}
		r.chats[chat.ID] = &models.ChatRecord{
			ID:        chat.ID,
			Title:     title,
			Member:    member,
			FirstSeen: r.now(),
		}
		return
	}
	if title != "" {
		rec.Title = title
	}
	rec.Member = member
}

// ListCandidates returns the chats the actor may select, first observed first.
// Chats the bot is no longer a member of are left out.
func (r *Registry) ListCandidates(actorID int64) []models.Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	view := r.views[actorID]
	candidates := make([]models.Candidate, 0, len(view))
	for _, id := range view {
		rec, ok := r.chats[id]
		if !ok || !rec.Member {
			continue
		}
		candidates = append(candidates, models.Candidate{ChatID: rec.ID, Title: rec.Title})
	}
	return candidates
}

func (r *Registry) Chat(id int64) (models.ChatRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.chats[id]
	if !ok {
		return models.ChatRecord{}, false
	}
	return *rec, true
}

// Title returns the last seen title of the chat, or a placeholder.
func (r *Registry) Title(id int64) string {
	if rec, ok := r.Chat(id); ok {
		return rec.Title
	}
	return unnamedChat
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}
