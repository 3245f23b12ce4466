/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recurrence computes future posting slots from an account's
// recurrence policy. The calculator is pure: no I/O, no persisted state.
package recurrence

import (
	"strconv"
	"strings"
	"time"
)

// Period enumerates the supported posting cadences.
type Period string

const (
	PeriodDaily   Period = "day"
	PeriodWeekly  Period = "week"
	PeriodMonthly Period = "month"
)

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// on places the time of day onto t's calendar date, in t's location.
func (at TimeOfDay) on(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), at.Hour, at.Minute, 0, 0, t.Location())
}

// Defaults holds the named fallback values applied when a stored policy is
// missing or malformed. All clamping happens here, at policy construction,
// so the calculator itself stays total.
type Defaults struct {
	FallbackWeekday    time.Weekday
	FallbackDayOfMonth int
	FallbackTimeOfDay  TimeOfDay
	MinFrequency       int
}

// StandardDefaults returns the fallback values used in production.
func StandardDefaults() Defaults {
	return Defaults{
		FallbackWeekday:    time.Monday,
		FallbackDayOfMonth: 1,
		FallbackTimeOfDay:  TimeOfDay{Hour: 9, Minute: 0},
		MinFrequency:       1,
	}
}

// Policy is one case of the per-period recurrence union. Implementations
// return the first instant strictly after ref that satisfies the policy;
// an instant equal to ref is never accepted.
type Policy interface {
	Period() Period
	nextAfter(ref time.Time) time.Time
}

// DailyPolicy posts Frequency times per day. With Frequency 1 slots snap to
// the configured time of day; with higher frequencies slots are spaced
// 24/Frequency hours apart from the previous slot without snapping.
type DailyPolicy struct {
	Frequency int
	At        TimeOfDay
}

// Period implements Policy.
func (p DailyPolicy) Period() Period { return PeriodDaily }

func (p DailyPolicy) nextAfter(ref time.Time) time.Time {
	if p.Frequency <= 1 {
		candidate := p.At.on(ref)
		if !candidate.After(ref) {
			candidate = p.At.on(ref.AddDate(0, 0, 1))
		}
		return candidate
	}
	interval := time.Duration(float64(24*time.Hour) / float64(p.Frequency))
	return ref.Add(interval)
}

// WeeklyPolicy posts on a fixed set of weekdays at a fixed time of day.
type WeeklyPolicy struct {
	Days []time.Weekday
	At   TimeOfDay
}

// Period implements Policy.
func (p WeeklyPolicy) Period() Period { return PeriodWeekly }

func (p WeeklyPolicy) nextAfter(ref time.Time) time.Time {
	days := p.Days
	if len(days) == 0 {
		days = []time.Weekday{time.Monday}
	}

	candidate := p.At.on(ref)
	if !candidate.After(ref) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	// The day set is non-empty, so at most 6 further steps reach a member.
	for i := 0; i < 7; i++ {
		if weekdayIn(candidate.Weekday(), days) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func weekdayIn(day time.Weekday, set []time.Weekday) bool {
	for _, d := range set {
		if d == day {
			return true
		}
	}
	return false
}

// MonthlyPolicy posts on a fixed day of the month at a fixed time of day.
// When the target day exceeds the month's length (day 31 in a 30-day month)
// the slot clamps to the month's last day.
type MonthlyPolicy struct {
	DayOfMonth int
	At         TimeOfDay
}

// Period implements Policy.
func (p MonthlyPolicy) Period() Period { return PeriodMonthly }

func (p MonthlyPolicy) nextAfter(ref time.Time) time.Time {
	candidate := monthSlot(ref.Year(), ref.Month(), p.DayOfMonth, p.At, ref.Location())
	if !candidate.After(ref) {
		next := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()).AddDate(0, 1, 0)
		candidate = monthSlot(next.Year(), next.Month(), p.DayOfMonth, p.At, ref.Location())
	}
	return candidate
}

func monthSlot(year int, month time.Month, day int, at TimeOfDay, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, at.Hour, at.Minute, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// fallbackPolicy handles unrecognized period values: exactly 24 hours later,
// snapped to the configured time of day.
type fallbackPolicy struct {
	At TimeOfDay
}

func (p fallbackPolicy) Period() Period { return "" }

func (p fallbackPolicy) nextAfter(ref time.Time) time.Time {
	return p.At.on(ref.Add(24 * time.Hour))
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParsePolicy builds the per-period policy variant from an account's stored
// posting configuration. Malformed values never fail: they clamp to the
// supplied defaults so the calculator stays total.
func ParsePolicy(period string, frequency int, day, hourOfDay string, d Defaults) Policy {
	at := ParseTimeOfDay(hourOfDay, d.FallbackTimeOfDay)

	switch Period(strings.ToLower(strings.TrimSpace(period))) {
	case PeriodDaily:
		if frequency < d.MinFrequency {
			frequency = d.MinFrequency
		}
		return DailyPolicy{Frequency: frequency, At: at}
	case PeriodWeekly:
		return WeeklyPolicy{Days: parseWeekdays(day, d.FallbackWeekday), At: at}
	case PeriodMonthly:
		return MonthlyPolicy{DayOfMonth: parseDayOfMonth(day, d.FallbackDayOfMonth), At: at}
	default:
		return fallbackPolicy{At: at}
	}
}

// ParseTimeOfDay parses an "HH:MM" wall-clock string, falling back when the
// value is malformed or out of range.
func ParseTimeOfDay(s string, fallback TimeOfDay) TimeOfDay {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return fallback
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fallback
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return fallback
	}
	return TimeOfDay{Hour: hour, Minute: minute}
}

// parseWeekdays parses a comma-separated list of weekday names into a sorted,
// de-duplicated set. Unknown names are dropped; an empty result falls back to
// the configured weekday.
func parseWeekdays(csv string, fallback time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{})
	for _, part := range strings.Split(csv, ",") {
		if day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(part))]; ok {
			seen[day] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return []time.Weekday{fallback}
	}

	days := make([]time.Weekday, 0, len(seen))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if _, ok := seen[day]; ok {
			days = append(days, day)
		}
	}
	return days
}

func parseDayOfMonth(s string, fallback int) int {
	day, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || day < 1 || day > 31 {
		return fallback
	}
	return day
}
