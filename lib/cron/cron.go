// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
)

// Field indexes, in expression order.
const (
	minuteField = iota
	hourField
	dayOfMonthField
	monthField
	dayOfWeekField
	fieldCount
)

type fieldSpec struct {
	name     string
	min, max int
	names    map[string]int
}

var fieldSpecs = [fieldCount]fieldSpec{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31},
	{name: "month", min: 1, max: 12, names: map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}},
	{name: "day-of-week", min: 0, max: 7, names: map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}},
}

var descriptors = map[string]string{
	"@nightly":  "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@daily":    "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
}

// searchDays bounds Next. Any satisfiable day constraint (Feb 29
// included) recurs within eight years.
const searchDays = 8*366 + 1

// Schedule is a parsed expression. The zero value never fires.
type Schedule struct {
	expression string
	sets       [fieldCount]uint64

	// A day field written as "*" or "*/N" does not restrict the day
	// when the other day field does.
	anyDayOfMonth bool
	anyDayOfWeek  bool
}

// Parse parses a five-field expression or a descriptor.
func Parse(expression string) (Schedule, error) {
	expression = strings.TrimSpace(expression)
	source := expression
	if strings.HasPrefix(expression, "@") {
		expanded, ok := descriptors[strings.ToLower(expression)]
		if !ok {
			return Schedule{}, fmt.Errorf("cron: unknown descriptor %q", expression)
		}
		source = expanded
	}

	terms := strings.Fields(source)
	if len(terms) != fieldCount {
		return Schedule{}, fmt.Errorf("cron: %q has %d fields, want 5 (minute hour day-of-month month day-of-week)",
			expression, len(terms))
	}

	schedule := Schedule{
		expression:    expression,
		anyDayOfMonth: strings.HasPrefix(terms[dayOfMonthField], "*"),
		anyDayOfWeek:  strings.HasPrefix(terms[dayOfWeekField], "*"),
	}
	for index, spec := range fieldSpecs {
		set, err := spec.parse(terms[index])
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %s field %q: %w", spec.name, terms[index], err)
		}
		schedule.sets[index] = set
	}
	if week := schedule.sets[dayOfWeekField]; week&(1<<7) != 0 {
		schedule.sets[dayOfWeekField] = week&^(1<<7) | 1
	}
	return schedule, nil
}

// ParseNightly parses the schedule of a nightly release and rejects
// expressions that fire more than once on any day: two runs on one
// UTC date would publish the same stamped version twice.
func ParseNightly(expression string) (Schedule, error) {
	schedule, err := Parse(expression)
	if err != nil {
		return Schedule{}, err
	}
	if runs := schedule.RunsPerDay(); runs > 1 {
		return Schedule{}, fmt.Errorf("cron: %q fires %d times a day; a nightly schedule fires at most once per UTC day",
			expression, runs)
	}
	return schedule, nil
}

func (spec fieldSpec) parse(text string) (uint64, error) {
	var set uint64
	for term := range strings.SplitSeq(text, ",") {
		span, stepText, stepped := strings.Cut(term, "/")
		step := 1
		if stepped {
			parsed, err := strconv.Atoi(stepText)
			if err != nil || parsed <= 0 {
				return 0, fmt.Errorf("step %q is not a positive integer", stepText)
			}
			step = parsed
		}

		low, high := spec.min, spec.max
		if span != "*" {
			first, last, isRange := strings.Cut(span, "-")
			var err error
			if low, err = spec.value(first); err != nil {
				return 0, err
			}
			switch {
			case isRange:
				if high, err = spec.value(last); err != nil {
					return 0, err
				}
				if high < low {
					return 0, fmt.Errorf("range %s runs backwards", span)
				}
			case !stepped:
				high = low
			}
		}
		for value := low; value <= high; value += step {
			set |= 1 << uint(value)
		}
	}
	return set, nil
}

func (spec fieldSpec) value(text string) (int, error) {
	if value, ok := spec.names[strings.ToLower(text)]; ok {
		return value, nil
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%q is not a %s", text, spec.name)
	}
	if value < spec.min || value > spec.max {
		return 0, fmt.Errorf("%d is outside %d-%d", value, spec.min, spec.max)
	}
	return value, nil
}

// String returns the expression as written.
func (schedule Schedule) String() string { return schedule.expression }

// RunsPerDay is how many times the schedule fires on a matching day.
func (schedule Schedule) RunsPerDay() int {
	return bits.OnesCount64(schedule.sets[hourField]) * bits.OnesCount64(schedule.sets[minuteField])
}

// Next returns the first due time strictly after t, in UTC.
func (schedule Schedule) Next(t time.Time) (time.Time, error) {
	start := t.UTC().Truncate(time.Minute).Add(time.Minute)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	fromMinute := start.Hour()*60 + start.Minute()

	for range searchDays {
		if schedule.matchesDay(day) {
			if offset, ok := schedule.firstTimeOfDay(fromMinute); ok {
				return day.Add(offset), nil
			}
		}
		day = day.AddDate(0, 0, 1)
		fromMinute = 0
	}
	return time.Time{}, fmt.Errorf("cron: %q is never due after %s", schedule.expression, t.UTC().Format(time.RFC3339))
}

func (schedule Schedule) matchesDay(day time.Time) bool {
	if schedule.sets[monthField]&(1<<uint(day.Month())) == 0 {
		return false
	}
	inMonth := schedule.sets[dayOfMonthField]&(1<<uint(day.Day())) != 0
	inWeek := schedule.sets[dayOfWeekField]&(1<<uint(day.Weekday())) != 0
	switch {
	case schedule.anyDayOfMonth:
		return inWeek
	case schedule.anyDayOfWeek:
		return inMonth
	default:
		return inMonth || inWeek
	}
}

// firstTimeOfDay finds the earliest hour and minute at or after
// fromMinute (minutes since midnight).
func (schedule Schedule) firstTimeOfDay(fromMinute int) (time.Duration, bool) {
	firstHour := fromMinute / 60
	for hour := firstHour; hour < 24; hour++ {
		if schedule.sets[hourField]&(1<<uint(hour)) == 0 {
			continue
		}
		minutes := schedule.sets[minuteField]
		if hour == firstHour {
			minutes &^= uint64(1)<<uint(fromMinute%60) - 1
		}
		if minutes != 0 {
			return time.Duration(hour)*time.Hour + time.Duration(bits.TrailingZeros64(minutes))*time.Minute, true
		}
	}
	return 0, false
}

// Run is the next scheduled nightly.
type Run struct {
	At   time.Time
	Wait time.Duration

	// DateStamp is the UTC date the run's version will carry.
	DateStamp string
}

// NextRun returns the first run due after now.
func (schedule Schedule) NextRun(now time.Time) (Run, error) {
	at, err := schedule.Next(now)
	if err != nil {
		return Run{}, err
	}
	return Run{At: at, Wait: at.Sub(now), DateStamp: at.Format(releaseinfo.DateStampLayout)}, nil
}
