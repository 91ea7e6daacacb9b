// Package display maps readings to the levels and labels a viewer shows.
package display

import "smart-energy/internal/models"

type Level int

const (
	LevelUnknown Level = iota
	LevelGood
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelGood:
		return "good"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	}
	return "unknown"
}

// Color is the ANSI escape sequence used for the level on a terminal.
func (l Level) Color() string {
	switch l {
	case LevelGood:
		return "\033[32m"
	case LevelWarning:
		return "\033[33m"
	case LevelCritical:
		return "\033[31m"
	}
	return "\033[0m"
}

const Reset = "\033[0m"

// PowerLevel grades a generation reading in kW.
func PowerLevel(power float64) Level {
	switch {
	case power > 15:
		return LevelGood
	case power > 8:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// BatteryLevel grades a battery reading on the 0-100 scale.
func BatteryLevel(battery float64) Level {
	switch {
	case battery > 70:
		return LevelGood
	case battery > 30:
		return LevelWarning
	default:
		return LevelCritical
	}
}

func StatusLevel(status models.Status) Level {
	switch status {
	case models.StatusNormal:
		return LevelGood
	case models.StatusAbnormal:
		return LevelCritical
	}
	return LevelUnknown
}

func StatusText(status models.Status) string {
	switch status {
	case models.StatusNormal:
		return "Parameters normal"
	case models.StatusAbnormal:
		return "Parameter abnormal!"
	}
	return "Unknown status"
}

// Colorize wraps text in the level's color.
func Colorize(level Level, text string) string {
	return level.Color() + text + Reset
}
