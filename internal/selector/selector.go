package selector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xaenox/goodluck-bot/internal/models"
)

// ErrStaleSelection is returned for a token that is not valid for the
// actor's current menu.
var ErrStaleSelection = errors.New("selection is no longer valid")

const (
	SkipToken   = "skip"
	SkipLabel   = "⏭ None / skip"
	selectToken = "sel:"
)

type State int

const (
	Unset State = iota
	Selecting
	Set
	Skipped
)

func (s State) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Set:
		return "set"
	case Skipped:
		return "skipped"
	default:
		return "unset"
	}
}

// Scope decides whether a target is shared by the whole deployment or kept
// per operator.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeOperator Scope = "operator"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeOperator:
		return ScopeOperator, nil
	default:
		return "", fmt.Errorf("unknown target scope %q (want %q or %q)", s, ScopeGlobal, ScopeOperator)
	}
}

// Target is the tracking target chosen through the selector.
type Target struct {
	State  State  `json:"state"`
	ChatID int64  `json:"chat_id,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Option is one button of a selection menu.
type Option struct {
	Token string
	Label string
}

type Candidates interface {
	ListCandidates(actorID int64) []models.Candidate
}

type Enabler interface {
	Enable(ctx context.Context, chatID int64) (bool, error)
}

type session struct {
	tokens map[string]struct{}
}

// Selector runs the UNSET -> SELECTING -> SET/SKIPPED workflow per operator.
type Selector struct {
	scope      Scope
	candidates Candidates
	enabled    Enabler

	mu       sync.Mutex
	sessions map[int64]*session
	global   Target
	targets  map[int64]Target
}

func New(scope Scope, candidates Candidates, enabled Enabler) *Selector {
	return &Selector{
		scope:      scope,
		candidates: candidates,
		enabled:    enabled,
		sessions:   make(map[int64]*session),
		targets:    make(map[int64]Target),
	}
}

// Begin puts the actor into Selecting and returns the menu: one option per
// candidate plus a skip option, which is always present.
func (s *Selector) Begin(actorID int64) []Option {
	candidates := s.candidates.ListCandidates(actorID)

	options := make([]Option, 0, len(candidates)+1)
	sess := &session{tokens: make(map[string]struct{}, len(candidates)+1)}
	for _, c := range candidates {
		token := selectToken + strconv.FormatInt(c.ChatID, 10)
		options = append(options, Option{Token: token, Label: c.Title})
		sess.tokens[token] = struct{}{}
	}
	options = append(options, Option{Token: SkipToken, Label: SkipLabel})
	sess.tokens[SkipToken] = struct{}{}

	s.mu.Lock()
	s.sessions[actorID] = sess
	s.mu.Unlock()
	return options
}

// Choose applies a token from the actor's menu. On any error the actor stays
// in Selecting and the target is unchanged.
func (s *Selector) Choose(ctx context.Context, actorID int64, token string) (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[actorID]
	if !ok {
		return Target{}, fmt.Errorf("%w: no open menu", ErrStaleSelection)
	}
	if _, issued := sess.tokens[token]; !issued {
		return Target{}, fmt.Errorf("%w: token %q was not offered", ErrStaleSelection, token)
	}

	if token == SkipToken {
		target := Target{State: Skipped}
		s.commitLocked(actorID, target)
		return target, nil
	}

	chatID, err := strconv.ParseInt(strings.TrimPrefix(token, selectToken), 10, 64)
	if err != nil {
		return Target{}, fmt.Errorf("%w: malformed token %q", ErrStaleSelection, token)
	}
	candidate, found := s.findCandidate(actorID, chatID)
	if !found {
		return Target{}, fmt.Errorf("%w: chat %d is no longer available", ErrStaleSelection, chatID)
	}

	if _, err := s.enabled.Enable(ctx, chatID); err != nil {
		return Target{}, err
	}
	target := Target{State: Set, ChatID: candidate.ChatID, Title: candidate.Title}
	s.commitLocked(actorID, target)
	return target, nil
}

// Target returns the current target for the actor (or the global target).
func (s *Selector) Target(actorID int64) Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLocked(actorID)
}

// State reports where the actor is in the workflow.
func (s *Selector) State(actorID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.sessions[actorID]; open {
		return Selecting
	}
	return s.targetLocked(actorID).State
}

func (s *Selector) Scope() Scope {
	return s.scope
}

func (s *Selector) targetLocked(actorID int64) Target {
	if s.scope == ScopeGlobal {
		return s.global
	}
	return s.targets[actorID]
}

func (s *Selector) commitLocked(actorID int64, target Target) {
	delete(s.sessions, actorID)
	if s.scope == ScopeGlobal {
		s.global = target
		return
	}
	s.targets[actorID] = target
}

func (s *Selector) findCandidate(actorID, chatID int64) (models.Candidate, bool) {
	for _, c := range s.candidates.ListCandidates(actorID) {
		if c.ChatID == chatID {
			return c, true
		}
	}
	return models.Candidate{}, false
}
