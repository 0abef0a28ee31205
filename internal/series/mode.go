package series

import "strings"

// Mode selects which occurrences of a series an edit or delete applies to.
type Mode string

const (
	ModeUnset     Mode = ""
	ModeSingle    Mode = "single"
	ModeFollowing Mode = "following"
	ModeAll       Mode = "all"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeSingle, ModeFollowing, ModeAll:
		return true
	default:
		return false
	}
}

// ParseMode accepts the three mode names case-insensitively. An empty string
// yields ModeUnset.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == ModeUnset || m.IsValid() {
		return m, nil
	}
	return ModeUnset, invalidOp("unknown mode %q", s)
}

func (m Mode) String() string {
	if m == ModeUnset {
		return "unset"
	}
	return string(m)
}
