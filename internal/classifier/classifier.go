package classifier

import (
	"fmt"
	"strings"
)

type Classifier interface {
	Classify(text string) bool
}

// MatchMode decides how a message is compared against the trigger phrases.
// Both modes ignore case.
type MatchMode string

const (
	// MatchExact matches when the trimmed message equals a trigger.
	MatchExact MatchMode = "exact"
	// MatchSubstring matches when the message contains a trigger anywhere.
	MatchSubstring MatchMode = "substring"
)

func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchSubstring:
		return MatchSubstring, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, MatchExact, MatchSubstring)
	}
}

type TriggerClassifier struct {
	mode     MatchMode
	triggers []string
}

// NewTriggerClassifier keeps the trigger order; blank triggers are dropped.
func NewTriggerClassifier(mode MatchMode, triggers []string) *TriggerClassifier {
	normalized := make([]string, 0, len(triggers))
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalized = append(normalized, t)
		}
	}
	return &TriggerClassifier{
		mode:     mode,
		triggers: normalized,
	}
}

func (c *TriggerClassifier) Classify(text string) bool {
	content := strings.ToLower(strings.TrimSpace(text))
	if content == "" {
		return false
	}
	for _, trigger := range c.triggers {
		switch c.mode {
		case MatchSubstring:
			if strings.Contains(content, trigger) {
				return true
			}
		default:
			if content == trigger {
				return true
			}
		}
	}
	return false
}

func (c *TriggerClassifier) Mode() MatchMode {
	return c.mode
}

func (c *TriggerClassifier) Triggers() []string {
	return append([]string(nil), c.triggers...)
}
