package countdown

import (
	"time"

	"github.com/mcdev12/celebration/go/internal/config"
)

// State is the remaining time until the target day.
// When IsTargetDay is set every counter is zero.
type State struct {
	Days        int  `json:"days"`
	Hours       int  `json:"hours"`
	Minutes     int  `json:"minutes"`
	Seconds     int  `json:"seconds"`
	IsTargetDay bool `json:"is_target_day"`
}

// Remaining converts the counters back to a duration.
func (s State) Remaining() time.Duration {
	return time.Duration(s.Days)*24*time.Hour +
		time.Duration(s.Hours)*time.Hour +
		time.Duration(s.Minutes)*time.Minute +
		time.Duration(s.Seconds)*time.Second
}

// Compute returns the countdown to the next occurrence of target as seen
// from now, in now's location. The target day itself is terminal and is
// detected by calendar match, not by the arithmetic reaching zero.
func Compute(target config.MonthDay, now time.Time) State {
	if target.Matches(now) {
		return State{IsTargetDay: true}
	}

	diff := NextOccurrence(target, now).Sub(now)
	if diff <= 0 {
		return State{}
	}

	days := diff / (24 * time.Hour)
	diff -= days * 24 * time.Hour
	hours := diff / time.Hour
	diff -= hours * time.Hour
	minutes := diff / time.Minute
	diff -= minutes * time.Minute
	seconds := diff / time.Second

	return State{
		Days:    int(days),
		Hours:   int(hours),
		Minutes: int(minutes),
		Seconds: int(seconds),
	}
}

// NextOccurrence returns local midnight of the first target day not before
// now. Feb 29 resolves to the next leap year.
func NextOccurrence(target config.MonthDay, now time.Time) time.Time {
	year := now.Year()
	for {
		candidate := time.Date(year, target.Month, target.Day, 0, 0, 0, 0, now.Location())
		// time.Date normalizes Feb 29 of a common year into March.
		if candidate.Month() == target.Month && !now.After(candidate) {
			return candidate
		}
		year++
	}
}
