package practice

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestResumeOrder(t *testing.T) {
	q := ids(6)
	h := History{
		Mastered: map[uuid.UUID]bool{q[4]: true, q[1]: true, q[5]: true},
		Missed:   map[uuid.UUID]bool{q[0]: true, q[5]: true, q[3]: true},
	}

	got := ResumeOrder(q, h)

	// mastered wins over missed for q[5]
	assert.Equal(t, []uuid.UUID{q[1], q[4], q[5], q[2], q[0], q[3]}, got)
}

func TestResumeOrderEmptyHistory(t *testing.T) {
	q := ids(3)
	assert.Equal(t, q, ResumeOrder(q, History{}))
	assert.Empty(t, ResumeOrder(nil, History{}))
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return today.AddDate(0, 0, -offset) }

	assert.Equal(t, 0, Streak(nil, today))
	assert.Equal(t, 1, Streak([]time.Time{day(0)}, today))
	assert.Equal(t, 3, Streak([]time.Time{day(0), day(1), day(2), day(4)}, today))
	assert.Equal(t, 0, Streak([]time.Time{day(1), day(2)}, today), "streak must end today")
	assert.Equal(t, 2, Streak([]time.Time{day(-1), day(0), day(1)}, today), "future days are ignored")
}

func TestSessionAccuracy(t *testing.T) {
	s := &Session{}
	assert.Zero(t, s.Accuracy())

	s.QuestionsAnswered, s.CorrectAnswers = 5, 4
	assert.InDelta(t, 80.0, s.Accuracy(), 0.0001)
}

func TestFiltersValidate(t *testing.T) {
	require.NoError(t, Filters{}.validate())
	require.NoError(t, Filters{Type: TypeSPR, Difficulty: DifficultyHard}.validate())
	assert.ErrorIs(t, Filters{Type: "essay"}.validate(), ErrInvalidFilter)
	assert.ErrorIs(t, Filters{Difficulty: "X"}.validate(), ErrInvalidFilter)
}

func TestOptionsScan(t *testing.T) {
	var o Options
	require.NoError(t, o.Scan([]byte(`{"A":"one","B":"two"}`)))
	assert.Equal(t, "two", o["B"])

	var l UUIDList
	require.NoError(t, l.Scan(nil))
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
