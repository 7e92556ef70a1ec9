package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Exact(t *testing.T) {
	c := NewTriggerClassifier(MatchExact, []string{"goodluck"})

	for _, text := range []string{"goodluck", "GoodLuck", "  goodluck \n"} {
		assert.True(t, c.Classify(text), text)
	}
	for _, text := range []string{"goodluck!", "say goodluck now", "good luck", ""} {
		assert.False(t, c.Classify(text), text)
	}
}

func TestClassify_Substring(t *testing.T) {
	c := NewTriggerClassifier(MatchSubstring, []string{"goodluck"})

	for _, text := range []string{"goodluck", "GoodLuck!", "say goodluck now"} {
		assert.True(t, c.Classify(text), text)
	}
	assert.False(t, c.Classify("good luck"))
}

func TestClassify_MultipleTriggers(t *testing.T) {
	c := NewTriggerClassifier(MatchExact, []string{" Good Luck ", "", "gl"})

	assert.Equal(t, []string{"good luck", "gl"}, c.Triggers())
	assert.True(t, c.Classify("GL"))
	assert.True(t, c.Classify("good luck"))
	assert.False(t, c.Classify("glhf"))
}

func TestClassify_NoTriggers(t *testing.T) {
	assert.False(t, NewTriggerClassifier(MatchSubstring, nil).Classify("anything"))
}

func TestParseMatchMode(t *testing.T) {
	m, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, m)

	m, err = ParseMatchMode(" Substring ")
	require.NoError(t, err)
	assert.Equal(t, MatchSubstring, m)

	_, err = ParseMatchMode("regex")
	assert.Error(t, err)
}
