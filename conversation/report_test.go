package conversation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siriusbot/dialogue"
)

func fieldsOf(pairs ...string) Fields {
	var f Fields
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Set(pairs[i], pairs[i+1])
	}
	return f
}

func TestComposerProblemRules(t *testing.T) {
	c, err := NewComposer(ReportTemplate{
		Problems: []ProblemRule{
			{Field: "situation", Equals: "typo", Chats: []string{"math"}, Text: "math typo in grade {grade}"},
			{Field: "situation", Equals: "typo", Text: "typo in grade {grade}"},
			{Field: "urgent", Text: "urgent"},
		},
		DefaultProblem: "misc",
	}, testChats)
	require.NoError(t, err)

	typo := fieldsOf("situation", "typo", "grade", "10")
	assert.Equal(t, "math typo in grade 10", c.Problem(-1001, typo))
	assert.Equal(t, "typo in grade 10", c.Problem(-1002, typo))
	assert.Equal(t, "urgent", c.Problem(-1002, fieldsOf("situation", "other", "urgent", "yes")))
	assert.Equal(t, "misc", c.Problem(-1002, fieldsOf("situation", "other")))
}

func TestComposerDefaults(t *testing.T) {
	c, err := NewComposer(ReportTemplate{FieldLabels: map[string]string{"grade": "Класс"}}, nil)
	require.NoError(t, err)

	r := c.Compose(Sender{ID: 5, FirstName: "Аня"}, -1, fieldsOf("grade", "7"), "", []string{"x"})
	assert.Equal(t, int64(-1), r.Destination)
	assert.Equal(t, []string{"x"}, r.PhotoIDs)
	assert.Equal(t, "Пользователь: Аня, tg://user?id=5\nПроблема: другое\nКласс: 7\nТекст: ", r.Text)
}

func TestComposerRejectsUnknownChat(t *testing.T) {
	_, err := NewComposer(ReportTemplate{
		Problems: []ProblemRule{{Text: "x", Chats: []string{"nowhere"}}},
	}, testChats)

	var cfgErr *dialogue.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "report.problems[0].chats", cfgErr.Path)
	assert.ErrorIs(t, err, dialogue.ErrUnknownDestination)
}

func TestComposerRejectsEmptyRule(t *testing.T) {
	_, err := NewComposer(ReportTemplate{Problems: []ProblemRule{{Field: "x"}}}, nil)
	assert.ErrorIs(t, err, ErrMissingProblemText)
}

func TestDedupeKeepsFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, dedupe([]string{"b", "a", "b", "c", "a"}))
	assert.Nil(t, dedupe(nil))
}

func TestFieldsFirstValueSticks(t *testing.T) {
	var f Fields
	assert.True(t, f.Set("grade", "7"))
	assert.False(t, f.Set("grade", "8"))
	v, _ := f.Get("grade")
	assert.Equal(t, "7", v)
	assert.Equal(t, 1, f.Len())
}

func TestStoreExpiresIdleConversations(t *testing.T) {
	s := NewStore(20*time.Millisecond, 0)
	conv := newConversation(Key{ChatID: 1, UserID: 2}, Sender{})
	s.replace(conv)
	_, ok := s.Get(conv.Key)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = s.Get(conv.Key)
	assert.False(t, ok)
	assert.False(t, s.remove(conv))
}

func TestStoreRemoveIsIdentityChecked(t *testing.T) {
	s := NewStore(0, 0)
	key := Key{ChatID: 1, UserID: 2}
	old := newConversation(key, Sender{})
	s.replace(old)
	cur := newConversation(key, Sender{})
	s.replace(cur)

	assert.Equal(t, PhaseClosed, old.Phase())
	assert.False(t, s.remove(old))
	assert.True(t, s.remove(cur))
	assert.Equal(t, PhaseNone, s.Phase(key))
}
