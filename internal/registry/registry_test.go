package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/goodluck-bot/internal/models"
)

func group(id int64, title string) models.Chat {
	return models.Chat{ID: id, Type: models.ChatGroup, Title: title}
}

func TestObserve_OrderIsFirstSeen(t *testing.T) {
	r := New()
	r.Observe(group(3, "Three"), 1)
	r.Observe(group(1, "One"), 1)
	r.Observe(models.Chat{ID: 2, Type: models.ChatSuperGroup, Title: "Two"}, 1)
	r.Observe(group(3, "Three"), 1)

	want := []models.Candidate{
		{ChatID: 3, Title: "Three"},
		{ChatID: 1, Title: "One"},
		{ChatID: 2, Title: "Two"},
	}
	require.Equal(t, want, r.ListCandidates(1))
	require.Equal(t, want, r.ListCandidates(1), "repeated renders must be stable")
}

func TestObserve_PrivateChatIsNoop(t *testing.T) {
	r := New()
	r.Observe(models.Chat{ID: 7, Type: models.ChatPrivate}, 7)
	r.Observe(models.Chat{ID: 8, Type: models.ChatChannel, Title: "news"}, 7)

	assert.Empty(t, r.ListCandidates(7))
	assert.Equal(t, 0, r.Len())
}

func TestObserve_ViewsArePerActor(t *testing.T) {
	r := New()
	r.Observe(group(10, "A"), 1)
	r.Observe(group(20, "B"), 2)
	r.Observe(group(10, "A"), 2)

	assert.Equal(t, []models.Candidate{{ChatID: 10, Title: "A"}}, r.ListCandidates(1))
	assert.Equal(t, []models.Candidate{{ChatID: 20, Title: "B"}, {ChatID: 10, Title: "A"}}, r.ListCandidates(2))
	assert.Empty(t, r.ListCandidates(3))
}

func TestObserve_TitleLastSeenWins(t *testing.T) {
	r := New()
	r.Observe(group(42, "Ops"), 1)
	r.Observe(group(42, "Ops Team"), 2)
	r.Observe(group(42, ""), 2)

	rec, ok := r.Chat(42)
	require.True(t, ok)
	assert.Equal(t, "Ops Team", rec.Title)
	assert.Equal(t, []models.Candidate{{ChatID: 42, Title: "Ops Team"}}, r.ListCandidates(1))
}

func TestObserve_MissingTitle(t *testing.T) {
	r := New()
	r.Observe(group(5, ""), 1)
	assert.Equal(t, "Unnamed Group", r.Title(5))
}

func TestSetMembership_LeftChatIsNotACandidate(t *testing.T) {
	r := New()
	r.Observe(group(1, "One"), 9)
	r.Observe(group(2, "Two"), 9)

	r.SetMembership(group(1, "One"), false)
	assert.Equal(t, []models.Candidate{{ChatID: 2, Title: "Two"}}, r.ListCandidates(9))

	// Rejoining restores the original position.
	r.SetMembership(group(1, "One"), true)
	assert.Equal(t, []models.Candidate{{ChatID: 1, Title: "One"}, {ChatID: 2, Title: "Two"}}, r.ListCandidates(9))
}

func TestListCandidates_NeverContainsUnobservedChats(t *testing.T) {
	r := New()
	observed := map[int64]bool{}
	for i := int64(1); i <= 20; i++ {
		actor := i%3 + 1
		r.Observe(group(i, "chat"), actor)
		if actor == 2 {
			observed[i] = true
		}
	}
	for _, c := range r.ListCandidates(2) {
		assert.True(t, observed[c.ChatID], "chat %d was never observed for actor 2", c.ChatID)
	}
	assert.Len(t, r.ListCandidates(2), len(observed))
}
