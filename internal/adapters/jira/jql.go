/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"fmt"
	"strings"

	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

// allAssignees is the sentinel the dashboard sends when no assignee
// filter is active.
const allAssignees = "All Developers"

// BuildJQL assembles the search query for a project plus optional
// filters. The updated-date clauses over-fetch on purpose: windowing by
// resolution date happens after the fetch, and pulling by updated date
// keeps issues whose resolution predates their last touch.
func BuildJQL(projectKey string, filters domain.Filters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "project = %s", projectKey)

	switch filters.TimePeriod {
	case "week":
		b.WriteString(" AND updated >= -1w")
	case "month":
		b.WriteString(" AND updated >= -4w")
	case "quarter":
		b.WriteString(" AND updated >= -12w")
	case "custom":
		if filters.CustomStartDate != nil {
			fmt.Fprintf(&b, " AND updated >= %q", filters.CustomStartDate.Format("2006-01-02"))
		}
		if filters.CustomEndDate != nil {
			fmt.Fprintf(&b, " AND updated <= %q", filters.CustomEndDate.Format("2006-01-02"))
		}
	}

	if filters.Assignee != "" && filters.Assignee != allAssignees {
		fmt.Fprintf(&b, " AND assignee = %q", filters.Assignee)
	}

	if len(filters.IssueTypes) > 0 {
		quoted := make([]string, len(filters.IssueTypes))
		for i, t := range filters.IssueTypes {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		fmt.Fprintf(&b, " AND issueType in (%s)", strings.Join(quoted, ", "))
	}

	return b.String()
}
