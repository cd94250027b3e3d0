/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"strings"

	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

// Bucket is the three-way dashboard classification of a workflow status.
// Unclassified statuses are kept visible as a data-quality signal rather
// than silently dropped.
type Bucket int

const (
	Unclassified Bucket = iota
	ToDo
	InProgress
	Done
)

func (b Bucket) String() string {
	switch b {
	case ToDo:
		return "To Do"
	case InProgress:
		return "In Progress"
	case Done:
		return "Done"
	default:
		return "Uncategorized"
	}
}

// StatusMapping is the authoritative status-ID → bucket table built from
// a project's status-category metadata. When present it always wins over
// the keyword heuristics.
type StatusMapping map[string]Bucket

// BuildStatusMapping flattens the per-issue-type status lists into a
// single mapping, deduplicating by status ID and grouping by the Jira
// category key (new / indeterminate / done).
func BuildStatusMapping(perType []domain.IssueTypeStatuses) StatusMapping {
	if len(perType) == 0 {
		return nil
	}
	m := StatusMapping{}
	for _, it := range perType {
		for _, st := range it.Statuses {
			if st.ID == "" {
				continue
			}
			if _, seen := m[st.ID]; seen {
				continue
			}
			switch strings.ToLower(st.Category.Key) {
			case "new":
				m[st.ID] = ToDo
			case "indeterminate":
				m[st.ID] = InProgress
			case "done":
				m[st.ID] = Done
			}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// KeywordTable drives the heuristic fallback. New locales or odd status
// names are added here, not in control flow.
type KeywordTable struct {
	ToDo       []string
	InProgress []string
	Done       []string
}

// DefaultKeywords covers the English and Portuguese status names seen on
// real boards.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		ToDo:       []string{"aberto", "novo", "backlog", "to do", "a fazer"},
		InProgress: []string{"progresso", "progress", "desenvolvimento", "em andamento", "fazendo", "doing"},
		Done:       []string{"concluído", "done", "fechado", "resolvido", "finalizado", "terminado"},
	}
}

type Classifier struct {
	Keywords KeywordTable
}

func NewClassifier() *Classifier {
	return &Classifier{Keywords: DefaultKeywords()}
}

// Classify maps a status to a bucket. Precedence: authoritative mapping
// by status ID, then the category key/name literals, then keyword
// substring matching on the lowercased status name. Pure and
// deterministic for identical inputs.
func (c *Classifier) Classify(status domain.Status, mapping StatusMapping) Bucket {
	if mapping != nil {
		if b, ok := mapping[status.ID]; ok {
			return b
		}
	}

	switch strings.ToLower(status.Category.Key) {
	case "new":
		return ToDo
	case "indeterminate":
		return InProgress
	case "done":
		return Done
	}
	switch status.Category.Name {
	case "To Do", "new":
		return ToDo
	case "In Progress", "indeterminate":
		return InProgress
	case "Done", "complete":
		return Done
	}

	name := strings.ToLower(status.Name)
	if containsAny(name, c.Keywords.ToDo) {
		return ToDo
	}
	if containsAny(name, c.Keywords.InProgress) {
		return InProgress
	}
	if containsAny(name, c.Keywords.Done) {
		return Done
	}
	return Unclassified
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
