package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	obs := mustDate(2024, time.March, 15)
	cases := []When{
		{Kind: KindFixedOffset, Direction: Past, N: 3, Unit: Week},
		{Kind: KindDirectionOnly, Direction: Future},
		{Kind: KindKeyword, Keyword: YTD},
		{Kind: KindKeyword, Keyword: LastMonth},
		{Kind: KindKeyword, Keyword: NextBusinessDay},
	}
	cfg := Config{IncludeEventsOnObsDate: true}

	for _, w := range cases {
		a, err := Materialize(w, obs, cfg)
		require.NoError(t, err)
		b, err := Materialize(w, obs, cfg)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestFixedOffsetPastRespectsObsDateFlag(t *testing.T) {
	obs := mustDate(2024, time.March, 15)
	w := When{Kind: KindFixedOffset, Direction: Past, N: 3, Unit: Day}

	excl, err := Materialize(w, obs, Config{IncludeEventsOnObsDate: false})
	require.NoError(t, err)
	assert.False(t, excl.InclusiveEnd)
	assert.True(t, excl.End.Equal(obs))

	incl, err := Materialize(w, obs, Config{IncludeEventsOnObsDate: true})
	require.NoError(t, err)
	assert.True(t, incl.InclusiveEnd)
	assert.True(t, incl.Start.Equal(obs.AddDate(0, 0, -3)))
}

func TestDirectionOnlyUnbounded(t *testing.T) {
	obs := mustDate(2024, time.March, 15)
	past, err := Materialize(When{Kind: KindDirectionOnly, Direction: Past}, obs, Config{})
	require.NoError(t, err)
	assert.Nil(t, past.Start)
	assert.True(t, past.End.Equal(obs))

	future, err := Materialize(When{Kind: KindDirectionOnly, Direction: Future}, obs, Config{})
	require.NoError(t, err)
	assert.Nil(t, future.End)
	assert.True(t, future.Start.Equal(obs))
}

func TestYTDStartsAtBeginningOfYear(t *testing.T) {
	obs := mustDate(2024, time.March, 15)
	got, err := Materialize(When{Kind: KindKeyword, Keyword: YTD}, obs, Config{})
	require.NoError(t, err)
	assert.Equal(t, mustDate(2024, time.January, 1), *got.Start)
	assert.True(t, got.End.Equal(obs))
}

func TestWTDUsesMondayWeekStart(t *testing.T) {
	obs := mustDate(2024, time.March, 14) // Thursday
	got, err := Materialize(When{Kind: KindKeyword, Keyword: WTD}, obs, Config{})
	require.NoError(t, err)
	assert.Equal(t, time.Monday, got.Start.Weekday())
}

func TestLastMonthIsClosedAndNeverTouchesObsDate(t *testing.T) {
	obs := mustDate(2024, time.March, 15)
	a, err := Materialize(When{Kind: KindKeyword, Keyword: LastMonth}, obs, Config{IncludeEventsOnObsDate: false})
	require.NoError(t, err)
	b, err := Materialize(When{Kind: KindKeyword, Keyword: LastMonth}, obs, Config{IncludeEventsOnObsDate: true})
	require.NoError(t, err)
	assert.Equal(t, a, b, "LastMonth bounds never touch obs date, so the flag is irrelevant")
	assert.True(t, a.InclusiveStart)
	assert.True(t, a.InclusiveEnd)
	assert.Equal(t, time.February, a.Start.Month())
	assert.Equal(t, time.February, a.End.Month())
}

func TestNextBusinessDaySkipsWeekend(t *testing.T) {
	friday := mustDate(2024, time.March, 15)
	got, err := Materialize(When{Kind: KindKeyword, Keyword: NextBusinessDay}, friday, Config{})
	require.NoError(t, err)
	assert.Equal(t, time.Monday, got.Start.Weekday())
	assert.Equal(t, 18, got.Start.Day())
}

func TestPreviousBusinessDaySkipsWeekend(t *testing.T) {
	monday := mustDate(2024, time.March, 18)
	got, err := Materialize(When{Kind: KindKeyword, Keyword: PreviousBusinessDay}, monday, Config{})
	require.NoError(t, err)
	assert.Equal(t, time.Friday, got.Start.Weekday())
	assert.Equal(t, 15, got.Start.Day())
}

func TestBetweenExpressionsPassesThroughPreEvaluatedBounds(t *testing.T) {
	start := mustDate(2024, time.January, 1)
	end := mustDate(2024, time.June, 1)
	got, err := Materialize(When{Kind: KindBetween, BetweenStart: start, BetweenEnd: end}, mustDate(2024, time.March, 1), Config{})
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(start))
	assert.True(t, got.End.Equal(end))
	assert.True(t, got.InclusiveStart)
	assert.True(t, got.InclusiveEnd)
}
