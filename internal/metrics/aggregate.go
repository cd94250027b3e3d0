/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"math"
	"strings"
	"time"

	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

// StoryPointFields is the probe order for the instance-specific story
// points custom field. The hardcoded fallback list is kept for parity
// with historical reports; an unpointed issue counts as exactly 1.
var StoryPointFields = []string{
	"customfield_10016",
	"customfield_10002",
	"customfield_10004",
	"customfield_10008",
}

// BugKeywords matches bug-like issue type names across locales.
var BugKeywords = []string{"bug", "defeito", "erro", "fault", "incident"}

// Snapshot is the dashboard metrics record. The JSON field names are the
// export contract consumed by the CSV/PDF routines downstream; renaming
// one is a breaking change.
type Snapshot struct {
	TasksDelivered       int     `json:"tasksDelivered"`
	TasksDeliveredChange int     `json:"tasksDeliveredChange"`
	Velocity             float64 `json:"velocity"`
	VelocityChange       int     `json:"velocityChange"`
	CycleTime            float64 `json:"cycleTime"`
	CycleTimeChange      int     `json:"cycleTimeChange"`
	BugRate              int     `json:"bugRate"`
	BugRateChange        int     `json:"bugRateChange"`
}

// PeriodStats are the raw aggregates for one window, before deltas.
type PeriodStats struct {
	Delivered     int
	Velocity      float64
	CycleTimeDays float64
	BugRate       int
}

type Aggregator struct {
	Classifier *Classifier
	Mapping    StatusMapping
}

func NewAggregator(mapping StatusMapping) Aggregator {
	return Aggregator{Classifier: NewClassifier(), Mapping: mapping}
}

// StoryPoints probes the candidate custom fields in order and returns
// the first positive numeric value, defaulting to 1.
func StoryPoints(issue domain.Issue) float64 {
	for _, field := range StoryPointFields {
		v, ok := issue.CustomFields[field]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return n
			}
		case int:
			if n > 0 {
				return float64(n)
			}
		}
	}
	return 1
}

// PercentChange computes the signed integer percentage delta, rounding
// half away from zero. A zero previous value yields 100 when anything
// was delivered and 0 otherwise.
func PercentChange(current, previous float64) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round((current - previous) / previous * 100))
}

func IsBugType(issueType string) bool {
	return containsAny(strings.ToLower(issueType), BugKeywords)
}

// completed reports whether the issue counts as done: either Jira set a
// resolution date or its status classifies into the Done bucket.
func (a Aggregator) completed(issue domain.Issue) bool {
	if issue.Resolved != nil {
		return true
	}
	return a.Classifier.Classify(issue.Status, a.Mapping) == Done
}

// resolvedAt is the completion timestamp: the resolution date when Jira
// recorded one, otherwise the last update.
func resolvedAt(issue domain.Issue) time.Time {
	if issue.Resolved != nil {
		return *issue.Resolved
	}
	return issue.Updated
}

// CycleTimeDays is the elapsed days between creation and completion,
// floored at one day.
func CycleTimeDays(issue domain.Issue) int {
	days := int(math.Round(resolvedAt(issue).Sub(issue.Created).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// WindowStats aggregates the issues completed inside the window. All
// four card metrics count by completion timestamp; creation-date
// bucketing exists only in the presentation shapers.
func (a Aggregator) WindowStats(issues []domain.Issue, w DateWindow) PeriodStats {
	var stats PeriodStats
	var cycleSum float64
	var bugs int
	for _, issue := range issues {
		if !a.completed(issue) || !w.Contains(resolvedAt(issue)) {
			continue
		}
		stats.Delivered++
		stats.Velocity += StoryPoints(issue)
		cycleSum += float64(CycleTimeDays(issue))
		if IsBugType(issue.Type) {
			bugs++
		}
	}
	if stats.Delivered > 0 {
		stats.CycleTimeDays = math.Round(cycleSum/float64(stats.Delivered)*10) / 10
		stats.BugRate = int(math.Round(float64(bugs) / float64(stats.Delivered) * 100))
	}
	return stats
}

// Aggregate builds the full snapshot for the named period, comparing
// against the immediately preceding window of equal length when one
// exists. Empty input degrades to all-zero metrics.
func (a Aggregator) Aggregate(issues []domain.Issue, p Period, now time.Time, customStart, customEnd *time.Time) (Snapshot, error) {
	window, err := ResolveWindow(p, now, customStart, customEnd)
	if err != nil {
		return Snapshot{}, err
	}

	cur := a.WindowStats(issues, window)
	snap := Snapshot{
		TasksDelivered: cur.Delivered,
		Velocity:       cur.Velocity,
		CycleTime:      cur.CycleTimeDays,
		BugRate:        a.overallBugRate(issues),
	}

	prevWindow, ok := PreviousWindow(p, now)
	if !ok {
		return snap, nil
	}
	prev := a.WindowStats(issues, prevWindow)
	snap.TasksDeliveredChange = PercentChange(float64(cur.Delivered), float64(prev.Delivered))
	snap.VelocityChange = PercentChange(cur.Velocity, prev.Velocity)
	snap.CycleTimeChange = PercentChange(cur.CycleTimeDays, prev.CycleTimeDays)
	snap.BugRateChange = PercentChange(float64(cur.BugRate), float64(prev.BugRate))
	return snap, nil
}

// overallBugRate is the share of bug-like issues across everything in
// scope, not only the completed ones.
func (a Aggregator) overallBugRate(issues []domain.Issue) int {
	if len(issues) == 0 {
		return 0
	}
	bugs := 0
	for _, issue := range issues {
		if IsBugType(issue.Type) {
			bugs++
		}
	}
	return int(math.Round(float64(bugs) / float64(len(issues)) * 100))
}
