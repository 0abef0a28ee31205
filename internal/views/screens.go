package views

import (
	"fmt"
	"strings"
)

type AgendaItemData struct {
	DisplayID string
	Date      string
	Weekday   string
	Time      string
	Title     string
	Status    string
	Recurring bool
	Virtual   bool
}

type AgendaPanelData struct {
	Start      string
	End        string
	Items      []AgendaItemData
	SelectedID string
	Warnings   []string
}

type DetailData struct {
	MasterID    string
	Title       string
	Date        string
	When        string
	Priority    string
	Project     string
	Rule        string
	Status      string
	Virtual     bool
	Description string
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

func RenderAgendaPanel(data AgendaPanelData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("week %s .. %s\n", data.Start, data.End))
	if len(data.Items) == 0 {
		b.WriteString("\n(nothing scheduled)")
		return b.String()
	}

	day := ""
	for _, item := range data.Items {
		if item.Date != day {
			day = item.Date
			b.WriteString("\n" + dayStyle.Render(fmt.Sprintf("%s %s", item.Weekday, item.Date)) + "\n")
		}
		when := item.Time
		if when == "" {
			when = "all-day"
		}
		line := fmt.Sprintf("%s %-7s %s%s", statusMark(item.Status), when, item.Title, seriesMark(item))
		switch {
		case item.DisplayID == data.SelectedID:
			line = selectedStyle.Render("> " + line)
		case item.Status == "completed" || item.Status == "skipped":
			line = "  " + mutedStyle.Render(line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	for _, w := range data.Warnings {
		b.WriteString(warnStyle.Render("! "+w) + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderDetail(data DetailData) string {
	if data.MasterID == "" {
		return "details:\n(no selection)"
	}
	var b strings.Builder
	b.WriteString("details:\n")
	b.WriteString(fmt.Sprintf("title: %s\n", data.Title))
	b.WriteString(fmt.Sprintf("series: %s\n", data.MasterID))
	b.WriteString(fmt.Sprintf("date: %s", data.Date))
	if data.When != "" {
		b.WriteString(" " + data.When)
	}
	b.WriteString("\n")
	if data.Priority != "" {
		b.WriteString(fmt.Sprintf("priority: %s\n", data.Priority))
	}
	if data.Project != "" {
		b.WriteString(fmt.Sprintf("project: %s\n", data.Project))
	}
	if data.Rule != "" {
		b.WriteString(fmt.Sprintf("repeats: %s\n", strings.ReplaceAll(data.Rule, "\n", " | ")))
	}
	if data.Status != "" {
		b.WriteString(fmt.Sprintf("status: %s\n", data.Status))
	}
	if data.Virtual {
		b.WriteString("generated occurrence\n")
	}
	if md := RenderMarkdown(data.Description); md != "" {
		b.WriteString("\n" + md + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("\ncommand: /%s", input)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("\nhelp:\n%s\n%s", strings.Join(data.Bindings, "\n"), data.HelpView)
}

func statusMark(status string) string {
	switch status {
	case "completed":
		return "[x]"
	case "skipped":
		return "[-]"
	default:
		return "[ ]"
	}
}

func seriesMark(item AgendaItemData) string {
	if item.Recurring {
		return " (repeats)"
	}
	return ""
}
