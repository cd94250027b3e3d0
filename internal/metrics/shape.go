/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

// Presentation-adjacent shaping: chart series, per-developer rollups and
// distributions. The one hard property here is gaplessness: every
// bucket in range appears, zero-valued when empty.

type Granularity string

const (
	ByDay   Granularity = "day"
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
)

type SeriesPoint struct {
	Label string    `json:"name"`
	Start time.Time `json:"start"`
	Count int       `json:"value"`
}

// CompletionSeries buckets completed issues by completion timestamp:
// the last 30 days, 12 weeks (starting Sunday) or 12 calendar months
// ending at now. Buckets are contiguous and zero-filled.
func (a Aggregator) CompletionSeries(issues []domain.Issue, g Granularity, now time.Time) []SeriesPoint {
	starts := bucketStarts(g, now)
	points := make([]SeriesPoint, len(starts))
	for i, start := range starts {
		points[i] = SeriesPoint{Label: bucketLabel(g, start), Start: start}
	}
	for _, issue := range issues {
		if !a.completed(issue) {
			continue
		}
		done := resolvedAt(issue)
		for i := len(points) - 1; i >= 0; i-- {
			if !done.Before(points[i].Start) {
				end := nextBucket(g, points[i].Start)
				if done.Before(end) {
					points[i].Count++
				}
				break
			}
		}
	}
	return points
}

func bucketStarts(g Granularity, now time.Time) []time.Time {
	var starts []time.Time
	switch g {
	case ByDay:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		for i := 29; i >= 0; i-- {
			starts = append(starts, day.AddDate(0, 0, -i))
		}
	case ByWeek:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		week := day.AddDate(0, 0, -int(day.Weekday()))
		for i := 11; i >= 0; i-- {
			starts = append(starts, week.AddDate(0, 0, -7*i))
		}
	default:
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		for i := 11; i >= 0; i-- {
			starts = append(starts, month.AddDate(0, -i, 0))
		}
	}
	return starts
}

func nextBucket(g Granularity, start time.Time) time.Time {
	switch g {
	case ByDay:
		return start.AddDate(0, 0, 1)
	case ByWeek:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 1, 0)
	}
}

func bucketLabel(g Granularity, start time.Time) string {
	switch g {
	case ByDay:
		return start.Format("02/01")
	case ByWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return start.Format("Jan/06")
	}
}

// DeveloperStats field names are part of the export contract.
type DeveloperStats struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	IssuesResolved int     `json:"issuesResolved"`
	StoryPoints    float64 `json:"storyPoints"`
	AvgCycleTime   float64 `json:"avgCycleTime"`
}

// DeveloperRollup groups completed issues by assignee. Unassigned issues
// are skipped; the result is sorted by resolved count, descending.
func (a Aggregator) DeveloperRollup(issues []domain.Issue) []DeveloperStats {
	type acc struct {
		stats    DeveloperStats
		cycleSum float64
	}
	byDev := map[string]*acc{}
	var order []string
	for _, issue := range issues {
		if issue.Assignee == nil || !a.completed(issue) {
			continue
		}
		key := issue.Assignee.Email
		if key == "" {
			key = issue.Assignee.AccountID
		}
		dev, ok := byDev[key]
		if !ok {
			dev = &acc{stats: DeveloperStats{Name: issue.Assignee.DisplayName, Email: issue.Assignee.Email}}
			byDev[key] = dev
			order = append(order, key)
		}
		dev.stats.IssuesResolved++
		dev.stats.StoryPoints += StoryPoints(issue)
		dev.cycleSum += float64(CycleTimeDays(issue))
	}

	out := make([]DeveloperStats, 0, len(order))
	for _, key := range order {
		dev := byDev[key]
		if dev.stats.IssuesResolved > 0 {
			dev.stats.AvgCycleTime = math.Round(dev.cycleSum/float64(dev.stats.IssuesResolved)*10) / 10
		}
		out = append(out, dev.stats)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuesResolved > out[j].IssuesResolved })
	return out
}

type TypeCount struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// TypeDistribution counts issues per type name with integer percentages
// of the total, sorted by count descending.
func TypeDistribution(issues []domain.Issue) []TypeCount {
	if len(issues) == 0 {
		return nil
	}
	counts := map[string]int{}
	var order []string
	for _, issue := range issues {
		if _, seen := counts[issue.Type]; !seen {
			order = append(order, issue.Type)
		}
		counts[issue.Type]++
	}
	out := make([]TypeCount, 0, len(order))
	for _, typ := range order {
		out = append(out, TypeCount{
			Type:    typ,
			Count:   counts[typ],
			Percent: int(math.Round(float64(counts[typ]) / float64(len(issues)) * 100)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

type BucketCounts struct {
	Total         int `json:"total"`
	ToDo          int `json:"todo"`
	InProgress    int `json:"inProgress"`
	Done          int `json:"done"`
	Uncategorized int `json:"uncategorized"`
}

// CountBuckets classifies every issue for the kanban columns. Issues no
// rule can place land in Uncategorized instead of disappearing.
func (a Aggregator) CountBuckets(issues []domain.Issue) BucketCounts {
	counts := BucketCounts{Total: len(issues)}
	for _, issue := range issues {
		switch a.Classifier.Classify(issue.Status, a.Mapping) {
		case ToDo:
			counts.ToDo++
		case InProgress:
			counts.InProgress++
		case Done:
			counts.Done++
		default:
			counts.Uncategorized++
		}
	}
	return counts
}
