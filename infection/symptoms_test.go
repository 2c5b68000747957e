package infection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episim/model"
)

// outcomeDraw forces NewSymptoms to pick the outcome at index idx by shaping
// the cumulative vector around a mid-range uniform draw.
func forcedCumulative(idx int) []float64 {
	out := make([]float64, 8)
	for i := range out {
		if i < idx {
			out[i] = 0.0
		} else {
			out[i] = 1.0
		}
	}
	return out
}

func TestNewSymptomsPicksSearchedOutcome(t *testing.T) {
	tags := testTags(t)
	makers := testMakers(t)
	for idx := 0; idx < tags.NOutcomes(); idx++ {
		s, err := NewSymptoms(tags, forcedCumulative(idx), makers, NewRNG(uint64(idx)+1))
		require.NoError(t, err)
		assert.Equal(t, tags.OutcomeTag(idx), s.MaxTag)
		assert.Equal(t, tags.Exposed(), s.Tag, "course starts exposed")
	}
}

func TestSymptomOnset(t *testing.T) {
	tags := testTags(t)
	makers := testMakers(t)

	t.Run("asymptomatic course has no onset", func(t *testing.T) {
		s, err := NewSymptoms(tags, forcedCumulative(0), makers, NewRNG(1))
		require.NoError(t, err)
		assert.Nil(t, s.OnsetTime)
	})

	t.Run("symptomatic course onsets at first visible stage", func(t *testing.T) {
		s, err := NewSymptoms(tags, forcedCumulative(1), makers, NewRNG(1))
		require.NoError(t, err)
		require.NotNil(t, s.OnsetTime)
		assert.Equal(t, 2.0, *s.OnsetTime, "mild begins when the exposed stage ends")
	})
}

func TestTimeExposed(t *testing.T) {
	tags := testTags(t)
	makers := testMakers(t)
	s, err := NewSymptoms(tags, forcedCumulative(3), makers, NewRNG(9))
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.TimeExposed())
}

func TestUpdateTrajectoryStageSingleStep(t *testing.T) {
	tags := testTags(t)
	makers := testMakers(t)
	// mild course: stages at t=0 (exposed), t=2 (mild), t=8 (recovered)
	s, err := NewSymptoms(tags, forcedCumulative(1), makers, NewRNG(4))
	require.NoError(t, err)

	s.UpdateTrajectoryStage(1.0)
	assert.Equal(t, tags.Exposed(), s.Tag)

	s.UpdateTrajectoryStage(2.5)
	assert.Equal(t, model.SymptomTag(1), s.Tag)

	// one call advances at most one stage even if time jumped past two
	s2, err := NewSymptoms(tags, forcedCumulative(1), makers, NewRNG(4))
	require.NoError(t, err)
	s2.UpdateTrajectoryStage(100.0)
	assert.Equal(t, model.SymptomTag(1), s2.Tag)
	s2.UpdateTrajectoryStage(100.0)
	assert.True(t, s2.Recovered())
}

func TestRecoveredAndDead(t *testing.T) {
	tags := testTags(t)
	makers := testMakers(t)

	s, err := NewSymptoms(tags, forcedCumulative(5), makers, NewRNG(8))
	require.NoError(t, err)
	// dead_home course: exposed 2, mild 2, severe 6, then dead
	for _, tm := range []float64{2.5, 4.5, 10.5} {
		s.UpdateTrajectoryStage(tm)
	}
	assert.False(t, s.Recovered())
	assert.True(t, s.Dead())
}
