/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// Credentials travel with every proxy request; they are never stored.
type Credentials struct {
	JiraURL  string `json:"jiraUrl"`
	Username string `json:"username"`
	APIToken string `json:"apiToken"`
}

type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Status struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category StatusCategory `json:"statusCategory"`
}

type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

type Issue struct {
	Key      string     `json:"key"`
	Summary  string     `json:"summary"`
	Status   Status     `json:"status"`
	Type     string     `json:"issueType"`
	Assignee *User      `json:"assignee,omitempty"`
	Created  time.Time  `json:"created"`
	Updated  time.Time  `json:"updated"`
	Resolved *time.Time `json:"resolutionDate,omitempty"`

	// Raw customfield_* values from the Jira payload. The concrete
	// story-points field ID is instance-specific and has to be probed.
	CustomFields map[string]any `json:"customFields,omitempty"`
}

type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Sprint struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	State string     `json:"state"`
	Start *time.Time `json:"startDate,omitempty"`
	End   *time.Time `json:"endDate,omitempty"`
}

// IssueTypeStatuses is one entry of /rest/api/3/project/{key}/statuses:
// the workflow statuses available to a single issue type.
type IssueTypeStatuses struct {
	IssueType string   `json:"name"`
	Statuses  []Status `json:"statuses"`
}

type Filters struct {
	TimePeriod      string     `json:"timePeriod"`
	CustomStartDate *time.Time `json:"customStartDate,omitempty"`
	CustomEndDate   *time.Time `json:"customEndDate,omitempty"`
	Assignee        string     `json:"assignee,omitempty"`
	IssueTypes      []string   `json:"issueTypes,omitempty"`
}
