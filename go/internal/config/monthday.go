package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTargetDate is returned for dates that do not exist in any year.
var ErrInvalidTargetDate = errors.New("invalid target date")

// daysIn is the longest each month can be. February allows 29 so leap-day
// birthdays are accepted.
var daysIn = [...]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// MonthDay is a year-agnostic calendar date.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	if len(s) != 5 || s[2] != '-' {
		return MonthDay{}, fmt.Errorf("%w: %q is not in MM-DD form", ErrInvalidTargetDate, s)
	}
	m, ok1 := twoDigits(s[0:2])
	d, ok2 := twoDigits(s[3:5])
	if !ok1 || !ok2 {
		return MonthDay{}, fmt.Errorf("%w: %q is not in MM-DD form", ErrInvalidTargetDate, s)
	}
	md := MonthDay{Month: time.Month(m), Day: d}
	if err := md.Validate(); err != nil {
		return MonthDay{}, err
	}
	return md, nil
}

// Validate reports whether the month/day exists, e.g. 04-31 does not.
func (md MonthDay) Validate() error {
	if md.Month < time.January || md.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidTargetDate, int(md.Month))
	}
	if md.Day < 1 || md.Day > daysIn[md.Month] {
		return fmt.Errorf("%w: %s has no day %d", ErrInvalidTargetDate, md.Month, md.Day)
	}
	return nil
}

// Matches reports whether t falls on this month/day in t's location.
func (md MonthDay) Matches(t time.Time) bool {
	return t.Month() == md.Month && t.Day() == md.Day
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

func (md MonthDay) MarshalYAML() (interface{}, error) {
	return md.String(), nil
}

func (md *MonthDay) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMonthDay(s)
	if err != nil {
		return err
	}
	*md = parsed
	return nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}
