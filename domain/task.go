package domain

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts low, medium or high in any case. The empty string
// yields medium.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Task represents a single card on a board.
type Task struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Tags        []string  `json:"tags"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TaskFields carries the mutable part of a task. It is used both for
// creation and for full replacement: a field left empty is stored empty.
type TaskFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Normalize applies the defaulting rules shared by create and replace:
// priority matched case-insensitively with medium as the fallback, tags as
// a set in first-seen order, non-nil slices.
func (f TaskFields) Normalize() TaskFields {
	out := TaskFields{
		Title:       f.Title,
		Description: f.Description,
		Tags:        normalizeTags(f.Tags),
		Images:      append([]string{}, f.Images...),
	}
	p, err := ParsePriority(string(f.Priority))
	if err != nil {
		p = PriorityMedium
	}
	out.Priority = p
	return out
}

// Clone returns a copy of t that shares no slices with it.
func (t Task) Clone() Task {
	t.Tags = append([]string{}, t.Tags...)
	t.Images = append([]string{}, t.Images...)
	return t
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
