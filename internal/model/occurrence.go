package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidStatus = errors.New("model: invalid override status")

// OverrideStatus is the per-date status overlay on a recurring series.
type OverrideStatus string

const (
	StatusNone      OverrideStatus = ""
	StatusCompleted OverrideStatus = "completed"
	StatusSkipped   OverrideStatus = "skipped"
	// StatusArchived hides the occurrence entirely.
	StatusArchived OverrideStatus = "archived"
)

func (s OverrideStatus) IsValid() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusArchived:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (OverrideStatus, error) {
	st := OverrideStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return StatusNone, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// OccurrenceKey identifies one occurrence of a master task.
type OccurrenceKey struct {
	TaskID string
	Date   LocalDate
}

func (k OccurrenceKey) String() string {
	return k.TaskID + "@" + k.Date.String()
}

// OccurrenceOverride is the stored overlay record for one occurrence.
type OccurrenceOverride struct {
	TaskID    string         `json:"task_id"`
	Date      LocalDate      `json:"date"`
	Status    OverrideStatus `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (o OccurrenceOverride) Key() OccurrenceKey {
	return OccurrenceKey{TaskID: o.TaskID, Date: o.Date}
}

func (o OccurrenceOverride) Validate() error {
	if strings.TrimSpace(o.TaskID) == "" {
		return errors.New("model: override task_id is required")
	}
	if o.Date.IsZero() {
		return errors.New("model: override date is required")
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	return nil
}

// Overlay is a sparse map of override statuses for a query window.
type Overlay map[OccurrenceKey]OverrideStatus

func NewOverlay(records []OccurrenceOverride) Overlay {
	out := make(Overlay, len(records))
	for _, r := range records {
		out[r.Key()] = r.Status
	}
	return out
}

func (o Overlay) Status(taskID string, date LocalDate) OverrideStatus {
	if o == nil {
		return StatusNone
	}
	return o[OccurrenceKey{TaskID: taskID, Date: date}]
}

// Occurrence is one computed appearance of a master task. It is never
// persisted; DisplayID is for rendering only and is not a storage key.
type Occurrence struct {
	MasterID  string         `json:"master_id"`
	Date      LocalDate      `json:"date"`
	DisplayID string         `json:"display_id"`
	Virtual   bool           `json:"is_virtual"`
	Status    OverrideStatus `json:"status,omitempty"`
	Task      Task           `json:"task"`
}

func (o Occurrence) Key() OccurrenceKey {
	return OccurrenceKey{TaskID: o.MasterID, Date: o.Date}
}

// Start is the occurrence's effective start instant: start_time when the
// master is timed, otherwise local midnight of Date.
func (o Occurrence) Start(loc *time.Location) time.Time {
	if o.Task.StartTime != nil {
		return o.Task.StartTime.In(loc)
	}
	return o.Date.At(loc)
}

// DisplayID builds the render key for an occurrence. The master's own
// occurrence keeps the bare task id.
func DisplayID(masterID string, start time.Time, virtual bool) string {
	if !virtual {
		return masterID
	}
	return masterID + "_" + strconv.FormatInt(start.UnixMilli(), 10)
}
