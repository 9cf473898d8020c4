// Package timeparse converts natural-language date and time-of-day
// expressions into concrete calendar values.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError reports an expression that could not be understood. The original
// expression is kept for user-facing rephrase prompts.
type ParseError struct {
	Expr string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timeparse: unrecognized expression %q", e.Expr)
}

// dateLayouts are tried in order for absolute date expressions.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// yearlessLayouts are anchored to the reference date's year.
var yearlessLayouts = []string{
	"January 2",
	"Jan 2",
	"2 January",
	"2 Jan",
	"01/02",
	"1/2",
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tues":      time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thurs":     time.Thursday,
	"thur":      time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// NormalizeDate resolves a natural-language date expression against a
// reference date and returns the result at UTC midnight.
//
// Resolution order: absolute date layouts, relative phrases
// (today/tomorrow), then weekday names. A weekday name always resolves to
// the next occurrence strictly after the reference date; naming the current
// weekday yields the date seven days out, never the reference date itself.
func NormalizeDate(expr string, ref time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return time.Time{}, &ParseError{Expr: expr}
	}
	refDate := Midnight(ref)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return Midnight(t), nil
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(refDate.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	switch strings.ToLower(trimmed) {
	case "today":
		return refDate, nil
	case "tomorrow":
		return refDate.AddDate(0, 0, 1), nil
	}

	if wd, ok := weekdayNames[strings.ToLower(trimmed)]; ok {
		daysAhead := (int(wd) - int(refDate.Weekday()) + 7) % 7
		if daysAhead == 0 {
			daysAhead = 7
		}
		return refDate.AddDate(0, 0, daysAhead), nil
	}

	return time.Time{}, &ParseError{Expr: expr}
}

// Midnight truncates a timestamp to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as an ISO calendar date string.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate parses an ISO calendar date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ParseError{Expr: s}
	}
	return t, nil
}

var clockRE = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm|a|p)?`)

// ParseTimeOfDay interprets a time-of-day preference such as "2pm", "14:30",
// "2:30 pm" or "noon". A bare hour between 1 and 7 without a meridiem is
// read as afternoon, matching how people state meeting times.
func ParseTimeOfDay(expr string) (hour, minute int, err error) {
	trimmed := strings.ToLower(strings.TrimSpace(expr))
	if trimmed == "" {
		return 0, 0, &ParseError{Expr: expr}
	}

	switch {
	case strings.Contains(trimmed, "noon"):
		return 12, 0, nil
	case strings.Contains(trimmed, "midnight"):
		return 0, 0, nil
	case strings.Contains(trimmed, "morning"):
		return 9, 0, nil
	case strings.Contains(trimmed, "afternoon"):
		return 14, 0, nil
	case strings.Contains(trimmed, "evening"):
		return 17, 0, nil
	}

	m := clockRE.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, 0, &ParseError{Expr: expr}
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := normalizeMeridiem(m[3])

	switch {
	case meridiem == "pm" && hour != 12:
		hour += 12
	case meridiem == "am" && hour == 12:
		hour = 0
	case meridiem == "" && hour >= 1 && hour <= 7:
		hour += 12
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, &ParseError{Expr: expr}
	}
	return hour, minute, nil
}

func normalizeMeridiem(s string) string {
	switch strings.TrimSpace(s) {
	case "a":
		return "am"
	case "p":
		return "pm"
	default:
		return s
	}
}

// At combines a calendar date with an hour and minute in UTC.
func At(date time.Time, hour, minute int) time.Time {
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}
