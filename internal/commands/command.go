package commands

import (
	"fmt"
	"strings"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

type Type string

const (
	TypeEdit    Type = "edit"
	TypeDelete  Type = "delete"
	TypeDetach  Type = "detach"
	TypeDone    Type = "done"
	TypeSkip    Type = "skip"
	TypeRestore Type = "restore"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Field names accepted by /edit.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldProject     = "project"
	FieldDue         = "due"
	FieldRule        = "rule"
)

type EditArgs struct {
	Mode  series.Mode
	Field string
	Value string
}

// Patch turns the edit into a single-field patch.
func (a EditArgs) Patch() (model.TaskPatch, error) {
	value := a.Value
	var p model.TaskPatch
	switch a.Field {
	case FieldTitle:
		p.Title = &value
	case FieldDescription:
		p.Description = &value
	case FieldPriority:
		prio, err := parsePriority(value)
		if err != nil {
			return model.TaskPatch{}, err
		}
		p.Priority = &prio
	case FieldProject:
		p.ProjectID = &value
	case FieldDue:
		if value != "" {
			if _, err := model.ParseDate(value); err != nil {
				return model.TaskPatch{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("due expects YYYY-MM-DD, got %q", value)}
			}
		}
		p.DueDate = &value
	case FieldRule:
		p.RecurrenceRule = &value
	default:
		return model.TaskPatch{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown field: %s", a.Field)}
	}
	return p, nil
}

type DeleteArgs struct {
	Mode series.Mode
}

type Command struct {
	Type   Type
	Raw    string
	Edit   *EditArgs
	Delete *DeleteArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeEdit:
		return parseEdit(input, args)
	case TypeDelete:
		return parseDelete(input, args)
	case TypeDetach, TypeDone, TypeSkip, TypeRestore:
		if len(args) > 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes no arguments", head)}
		}
		return Command{Type: Type(head), Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseEdit(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "edit requires mode, field and value"}
	}
	mode, err := parseMode(args[0])
	if err != nil {
		return Command{}, err
	}
	field := strings.ToLower(args[1])
	value := strings.TrimSpace(strings.Join(args[2:], " "))
	if value == "" && (field == FieldTitle || field == FieldPriority) {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("edit %s requires a value", field)}
	}
	edit := EditArgs{Mode: mode, Field: field, Value: value}
	if _, err := edit.Patch(); err != nil {
		return Command{}, err
	}
	return Command{Type: TypeEdit, Raw: raw, Edit: &edit}, nil
}

func parseDelete(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "delete requires a mode"}
	}
	mode, err := parseMode(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeDelete, Raw: raw, Delete: &DeleteArgs{Mode: mode}}, nil
}

func parseMode(s string) (series.Mode, error) {
	mode, err := series.ParseMode(s)
	if err != nil || mode == series.ModeUnset {
		return series.ModeUnset, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("mode must be single, following or all, got %q", s)}
	}
	return mode, nil
}

func parsePriority(s string) (model.Priority, error) {
	for _, p := range []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityCritical} {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	if strings.EqualFold(s, "none") {
		return model.PriorityNone, nil
	}
	return "", &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown priority: %s", s)}
}
