package model

import (
	"strings"
	"time"
)

// TaskPatch is a partial field update.
// nil pointer => "no change"
// empty string for DueDate/ProjectID/ParentID => clear
// ClearSchedule drops start_time and end_time.
type TaskPatch struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Priority       *Priority  `json:"priority,omitempty"`
	Completed      *bool      `json:"completed,omitempty"`
	ProjectID      *string    `json:"project_id,omitempty"`
	ParentID       *string    `json:"parent_id,omitempty"`
	DueDate        *string    `json:"due_date,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	ClearSchedule  bool       `json:"clear_schedule,omitempty"`
	RecurrenceRule *string    `json:"recurrence_rule,omitempty"`
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Completed == nil &&
		p.ProjectID == nil && p.ParentID == nil && p.DueDate == nil && p.StartTime == nil &&
		p.EndTime == nil && !p.ClearSchedule && p.RecurrenceRule == nil
}

// TouchesSchedule reports whether the patch moves the task in time.
func (p TaskPatch) TouchesSchedule() bool {
	return p.DueDate != nil || p.StartTime != nil || p.EndTime != nil || p.ClearSchedule
}

// Apply returns a copy of t with the patch applied. The result is not
// validated.
func (p TaskPatch) Apply(t Task) (Task, error) {
	out := t.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.ProjectID != nil {
		out.ProjectID = strings.TrimSpace(*p.ProjectID)
	}
	if p.ParentID != nil {
		out.ParentID = strings.TrimSpace(*p.ParentID)
	}
	if p.DueDate != nil {
		if strings.TrimSpace(*p.DueDate) == "" {
			out.DueDate = nil
		} else {
			d, err := ParseDate(*p.DueDate)
			if err != nil {
				return Task{}, err
			}
			out.DueDate = &d
		}
	}
	if p.ClearSchedule {
		out.StartTime = nil
		out.EndTime = nil
	}
	if p.StartTime != nil {
		s := *p.StartTime
		out.StartTime = &s
	}
	if p.EndTime != nil {
		e := *p.EndTime
		out.EndTime = &e
	}
	if p.RecurrenceRule != nil {
		out.RecurrenceRule = strings.TrimSpace(*p.RecurrenceRule)
	}
	return out, nil
}
