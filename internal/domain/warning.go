package domain

import "fmt"

// WarningLevel classifies proximity risk. Values are ordered so that a
// larger value is always the worse condition.
type WarningLevel int

const (
	WarningUnknown WarningLevel = iota
	WarningSafe
	WarningWarn
	WarningDanger
)

// String returns the level name used in logs and snapshots.
func (w WarningLevel) String() string {
	switch w {
	case WarningSafe:
		return "SAFE"
	case WarningWarn:
		return "WARN"
	case WarningDanger:
		return "DANGER"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets the level appear by name in JSON.
func (w WarningLevel) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText parses a level name.
func (w *WarningLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "UNKNOWN":
		*w = WarningUnknown
	case "SAFE":
		*w = WarningSafe
	case "WARN":
		*w = WarningWarn
	case "DANGER":
		*w = WarningDanger
	default:
		return fmt.Errorf("unknown warning level %q", string(b))
	}
	return nil
}

// Worse returns the more severe of two levels.
func Worse(a, b WarningLevel) WarningLevel {
	if b > a {
		return b
	}
	return a
}
