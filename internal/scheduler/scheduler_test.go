package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRun_Weekdays(t *testing.T) {
	chicago, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "later the same weekday",
			after: time.Date(2024, 5, 1, 12, 0, 0, 0, chicago), // Wednesday
			want:  time.Date(2024, 5, 1, 17, 30, 0, 0, chicago),
		},
		{
			name:  "friday evening rolls to monday",
			after: time.Date(2024, 5, 3, 18, 0, 0, 0, chicago),
			want:  time.Date(2024, 5, 6, 17, 30, 0, 0, chicago),
		},
		{
			name:  "utc input is evaluated in chicago",
			after: time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC), // 18:00 CDT
			want:  time.Date(2024, 5, 2, 17, 30, 0, 0, chicago),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(DefaultSpec, "", tt.after)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestNextRun_Invalid(t *testing.T) {
	_, err := NextRun("not a cron", "UTC", time.Now())
	assert.Error(t, err)

	_, err = NextRun(DefaultSpec, "Mars/Olympus", time.Now())
	assert.Error(t, err)
}

func TestScheduler_AddJob(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	assert.Equal(t, "UTC", s.Location().String())

	job := JobFunc{JobName: "noop", Fn: func(context.Context) error { return nil }}
	require.NoError(t, s.AddJob(DefaultSpec, job))
	assert.Error(t, s.AddJob("61 * * * *", job))
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	require.NoError(t, s.AddJob("@hourly", JobFunc{JobName: "noop", Fn: func(context.Context) error { return nil }}))

	s.Start(context.Background())
	next := s.Next()
	s.Stop()

	assert.False(t, next.IsZero())
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), next, 31*time.Minute)
}

func TestScheduler_RunNow(t *testing.T) {
	s, err := New("", nil)
	require.NoError(t, err)

	want := errors.New("boom")
	var calls int
	job := JobFunc{JobName: "daily", Fn: func(context.Context) error {
		calls++
		return want
	}}

	assert.ErrorIs(t, s.RunNow(context.Background(), job), want)
	assert.Equal(t, 1, calls)
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Nowhere/Special", nil)
	assert.Error(t, err)
}
