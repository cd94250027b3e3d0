/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"fmt"
	"math"
)

// Insights is a rule-based recommendation engine over a snapshot. There
// is no model behind it; the texts are deterministic functions of the
// metrics, so two identical snapshots always produce identical advice.
type Insights struct {
	Performance     string `json:"performance"`
	Predictions     string `json:"predictions"`
	Recommendations string `json:"recommendations"`
}

func GenerateInsights(snap Snapshot) Insights {
	return Insights{
		Performance:     performanceInsight(snap),
		Predictions:     predictionInsight(snap),
		Recommendations: recommendationInsight(snap),
	}
}

func performanceInsight(snap Snapshot) string {
	switch {
	case snap.VelocityChange > 10:
		return "Your team's velocity has increased significantly this period. The main contributing factor appears to be improved task estimation accuracy."
	case snap.VelocityChange < -10:
		return "Your team's velocity has decreased this period. Consider reviewing task complexity and potential blockers."
	case snap.CycleTimeChange < -15:
		return "Cycle time has improved notably. Your team is resolving tasks more efficiently than before."
	default:
		return "Your team is maintaining steady performance with consistent delivery patterns."
	}
}

func predictionInsight(snap Snapshot) string {
	velocity := snap.Velocity
	if velocity <= 0 {
		velocity = 30
	}
	low := int(math.Round(velocity * 0.9))
	if low < 1 {
		low = 1
	}
	high := int(math.Round(velocity * 1.1))
	return fmt.Sprintf("Based on current trends, your team is likely to complete %d-%d story points next period. Consider adding 2-3 more small tasks if capacity allows.", low, high)
}

func recommendationInsight(snap Snapshot) string {
	switch {
	case snap.BugRate > 15:
		return "Consider implementing more thorough code reviews and automated testing to reduce the bug rate."
	case snap.CycleTime > 5:
		return "Focus on breaking down larger tasks and improving the review process to reduce cycle time."
	default:
		return "Your team is performing well. Consider documenting successful practices for knowledge sharing."
	}
}
