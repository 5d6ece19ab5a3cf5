package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"@every 90m":  base.Add(90 * time.Minute),
		"6h":          base.Add(6 * time.Hour),
		"@hourly":     time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
		"@daily":      time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		"0 6 * * *":   time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC),
		"30 12 * * *": time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		"45 * * * *":  time.Date(2024, 5, 1, 10, 45, 0, 0, time.UTC),
		"@weekly":     time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
	}
	for spec, want := range cases {
		s, err := ParseSchedule(spec, time.UTC)
		require.NoError(t, err, spec)
		assert.Equal(t, want, s.Next(base), spec)
	}
}

func TestParseScheduleRejectsUnsupported(t *testing.T) {
	for _, spec := range []string{"", "@yearly", "0 6 1 * *", "61 * * * *", "0 25 * * *", "@every 10ms", "@every soon"} {
		_, err := ParseSchedule(spec, time.UTC)
		assert.Error(t, err, spec)
	}
}

func TestWeeklyAlignsToSundayMidnight(t *testing.T) {
	s, err := ParseSchedule("@weekly", time.UTC)
	require.NoError(t, err)

	sunday := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sunday.AddDate(0, 0, 7), s.Next(sunday), "an activation is strictly after the given time")
	assert.Equal(t, sunday.AddDate(0, 0, 7), s.Next(sunday.Add(10*time.Hour)))
	assert.Equal(t, sunday, s.Next(time.Date(2024, 5, 4, 23, 59, 0, 0, time.UTC)))

	loc := time.FixedZone("UTC-5", -5*3600)
	s, err = ParseSchedule("@weekly", loc)
	require.NoError(t, err)
	// Sunday 02:00 UTC is still Saturday 21:00 local.
	next := s.Next(time.Date(2024, 5, 5, 2, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 5, 5, 0, 0, 0, time.UTC), next.UTC())
}

func TestClockRespectsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	s, err := ParseSchedule("0 6 * * *", loc)
	require.NoError(t, err)

	after := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC) // 05:00 local
	assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC), s.Next(after).UTC())
}

func TestCronSchedulerRunsAndStops(t *testing.T) {
	sched, err := NewCronScheduler("@every 1s", time.UTC)
	require.NoError(t, err)
	sched.schedule = every(10 * time.Millisecond)

	var runs atomic.Int32
	require.NoError(t, sched.Start(context.Background(), func(time.Time) { runs.Add(1) }))

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sched.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no job runs after Stop returns")
}
