package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcdev12/celebration/go/internal/config"
	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/events/eventstest"
)

var june29 = config.MonthDay{Month: time.June, Day: 29}

func TestComputeScenarios(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want State
	}{
		{
			name: "day before",
			now:  time.Date(2025, time.June, 28, 0, 0, 0, 0, time.UTC),
			want: State{Days: 1},
		},
		{
			name: "on the day",
			now:  time.Date(2025, time.June, 29, 10, 0, 0, 0, time.UTC),
			want: State{IsTargetDay: true},
		},
		{
			name: "last second of the day is still the day",
			now:  time.Date(2025, time.June, 29, 23, 59, 59, 0, time.UTC),
			want: State{IsTargetDay: true},
		},
		{
			name: "carries into every unit",
			now:  time.Date(2025, time.June, 26, 21, 29, 15, 0, time.UTC),
			want: State{Days: 2, Hours: 2, Minutes: 30, Seconds: 45},
		},
		{
			name: "truncates sub-second remainder",
			now:  time.Date(2025, time.June, 28, 23, 59, 58, 400_000_000, time.UTC),
			want: State{Seconds: 1},
		},
		{
			name: "passed this year rolls to next year",
			now:  time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
			want: State{Days: 364},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(june29, tt.now))
		})
	}
}

func TestComputeTargetDayIsAllZero(t *testing.T) {
	for h := 0; h < 24; h++ {
		s := Compute(june29, time.Date(2031, time.June, 29, h, 17, 3, 0, time.UTC))
		assert.Equal(t, State{IsTargetDay: true}, s)
	}
}

func TestComputeMatchesTrueDifference(t *testing.T) {
	targets := []config.MonthDay{
		june29,
		{Month: time.January, Day: 1},
		{Month: time.December, Day: 31},
		{Month: time.February, Day: 29},
	}
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	for _, target := range targets {
		// Step 7h13m so every hour of the day and every day of the year is visited.
		for now := start; now.Year() < 2026; now = now.Add(7*time.Hour + 13*time.Minute + 11*time.Second) {
			s := Compute(target, now)
			if target.Matches(now) {
				require.Equal(t, State{IsTargetDay: true}, s, "target %s at %s", target, now)
				continue
			}
			require.False(t, s.IsTargetDay)
			require.GreaterOrEqual(t, s.Days, 0)

			want := NextOccurrence(target, now).Sub(now)
			got := s.Remaining()
			require.LessOrEqual(t, got, want, "target %s at %s", target, now)
			require.Less(t, want-got, time.Second, "target %s at %s", target, now)
		}
	}
}

func TestNextOccurrenceLeapDay(t *testing.T) {
	leap := config.MonthDay{Month: time.February, Day: 29}

	got := NextOccurrence(leap, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC), got)

	got = NextOccurrence(leap, time.Date(2028, time.February, 28, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC), got)

	assert.False(t, Compute(leap, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)).IsTargetDay)
}

func TestNextOccurrenceUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2025, time.June, 28, 0, 0, 0, 0, loc)

	got := NextOccurrence(june29, now)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, State{Days: 1}, Compute(june29, now))
}

func TestTickerEmitsEveryInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fc := clockwork.NewFakeClockAt(time.Date(2025, time.June, 28, 0, 0, 0, 0, time.UTC))
	rec := eventstest.NewRecorder(16)
	tk := NewTicker(Options{
		ViewID:      "view-1",
		Target:      june29,
		DisplayName: "Kashish",
		Interval:    time.Second,
		Clock:       fc,
		Publisher:   rec,
	})

	tk.Start(ctx)
	first := nextCountdown(t, rec)
	assert.Equal(t, events.CountdownPayload{DisplayName: "Kashish", TargetDate: "06-29", Days: 1}, first)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Second)
	second := nextCountdown(t, rec)
	assert.Equal(t, 0, second.Days)
	assert.Equal(t, 23, second.Hours)
	assert.Equal(t, 59, second.Minutes)
	assert.Equal(t, 59, second.Seconds)
	assert.Equal(t, State{Hours: 23, Minutes: 59, Seconds: 59}, tk.State())

	tk.Stop()
	tk.Stop()

	fc.Advance(5 * time.Second)
	assert.Empty(t, rec.Drain(), "no ticks after Stop")
}

func TestTickerRunReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := clockwork.NewFakeClockAt(time.Date(2025, time.June, 29, 8, 0, 0, 0, time.UTC))
	rec := eventstest.NewRecorder(4)
	tk := NewTicker(Options{Target: june29, Clock: fc, Publisher: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tk.Run(ctx) }()

	got := nextCountdown(t, rec)
	assert.True(t, got.IsTargetDay)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func nextCountdown(t *testing.T, rec *eventstest.Recorder) events.CountdownPayload {
	t.Helper()
	select {
	case ev := <-rec.Events():
		require.Equal(t, events.EventTypeCountdownStateChanged, ev.Type)
		var p events.CountdownPayload
		require.NoError(t, ev.Decode(&p))
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown event")
		return events.CountdownPayload{}
	}
}
