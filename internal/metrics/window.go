/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"fmt"
	"time"
)

type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodCustom  Period = "custom"
	PeriodAll     Period = "all"
)

// Named periods are fixed-length so that the previous window is always
// directly comparable: week=7d, month=28d, quarter=84d.
func (p Period) days() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 28
	case PeriodQuarter:
		return 84
	default:
		return 0
	}
}

// DateWindow is the half-open interval [Start, End). A zero Start means
// open-ended toward the earliest data, a zero End open-ended toward now;
// both zero means unbounded (accept everything).
type DateWindow struct {
	Start time.Time
	End   time.Time
}

func (w DateWindow) Unbounded() bool { return w.Start.IsZero() && w.End.IsZero() }

func (w DateWindow) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// ResolveWindow turns a named period into a concrete window ending at
// now. Custom windows take their bounds as given; a custom start after
// the custom end is a validation error, never silently swapped.
func ResolveWindow(p Period, now time.Time, customStart, customEnd *time.Time) (DateWindow, error) {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodQuarter:
		return DateWindow{Start: now.AddDate(0, 0, -p.days()), End: now}, nil
	case PeriodCustom:
		w := DateWindow{}
		if customStart != nil {
			w.Start = *customStart
		}
		if customEnd != nil {
			w.End = *customEnd
		}
		if !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End) {
			return DateWindow{}, fmt.Errorf("invalid custom range: start %s after end %s",
				w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
		}
		return w, nil
	case PeriodAll, "":
		return DateWindow{}, nil
	default:
		return DateWindow{}, fmt.Errorf("unknown time period %q", p)
	}
}

// PreviousWindow returns the window of identical length immediately
// preceding the current one. Custom and unbounded periods have no
// comparable previous window; ok is false and callers skip the delta.
func PreviousWindow(p Period, now time.Time) (DateWindow, bool) {
	d := p.days()
	if d == 0 {
		return DateWindow{}, false
	}
	end := now.AddDate(0, 0, -d)
	return DateWindow{Start: end.AddDate(0, 0, -d), End: end}, true
}
