package api

import (
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

type CreateTaskRequest struct {
	ID             string           `json:"id,omitempty"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Priority       model.Priority   `json:"priority,omitempty"`
	ProjectID      string           `json:"project_id,omitempty"`
	ParentID       string           `json:"parent_id,omitempty"`
	DueDate        *model.LocalDate `json:"due_date,omitempty"`
	StartTime      *time.Time       `json:"start_time,omitempty"`
	EndTime        *time.Time       `json:"end_time,omitempty"`
	RecurrenceRule string           `json:"recurrence_rule,omitempty"`
}

func (r CreateTaskRequest) toTask() model.Task {
	return model.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Priority:       r.Priority,
		ProjectID:      r.ProjectID,
		ParentID:       r.ParentID,
		DueDate:        r.DueDate,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		RecurrenceRule: r.RecurrenceRule,
	}
}

// EditRequest targets the master when Date is omitted.
type EditRequest struct {
	Date  *model.LocalDate `json:"date,omitempty"`
	Mode  string           `json:"mode,omitempty"`
	Patch model.TaskPatch  `json:"patch"`
}

type DetachRequest struct {
	Date model.LocalDate `json:"date"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type OutcomeDTO struct {
	series.Outcome
	Warnings []string `json:"warnings,omitempty"`
}

func toOutcomeDTO(o series.Outcome) OutcomeDTO {
	return OutcomeDTO{Outcome: o, Warnings: o.WarningMessages()}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
