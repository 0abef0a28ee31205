package update

import (
	"fmt"

	"github.com/gurin-alexey/pulse-app-sub001/internal/views"
)

var paletteHelp = []string{
	"/edit <single|following|all> <field> <value>",
	"/delete <single|following|all>",
	"/detach  /done  /skip  /restore",
}

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	lines := make([]string, 0, len(paletteHelp)+1)
	lines = append(lines, "palette:")
	for _, l := range paletteHelp {
		lines = append(lines, fmt.Sprintf("- %s", l))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: lines,
		HelpView: m.helpModel.View(m.keys),
	})
}
