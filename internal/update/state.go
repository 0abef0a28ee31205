package update

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
)

// State is the part of the agenda that survives restarts.
type State struct {
	FocusDate model.LocalDate `json:"focus_date"`
	LastMode  series.Mode     `json:"last_mode,omitempty"`
}

func DefaultState() State {
	return State{}
}

// LoadState reads path. A missing or empty file yields DefaultState.
func LoadState(path string) (State, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultState(), nil
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultState(), nil
		}
		return State{}, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return DefaultState(), nil
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, err
	}
	if !st.LastMode.IsValid() {
		st.LastMode = series.ModeUnset
	}
	return st, nil
}

// SaveState writes st to path through a temp file and rename.
func SaveState(path string, st State) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(payload, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (m *Model) persistState() {
	if err := SaveState(m.statePath, m.State); err != nil {
		m.Status = StatusBar{Text: "state not saved: " + err.Error(), IsError: true}
	}
}
