package types

import (
	"fmt"
)

// OptimizationMode selects the objective weights used by the optimizer.
type OptimizationMode string

const (
	ModeComfort  OptimizationMode = "comfort"
	ModeBalanced OptimizationMode = "balanced"
	ModeSaver    OptimizationMode = "saver"
)

// Valid reports whether the mode is one of the known optimization modes.
func (m OptimizationMode) Valid() bool {
	switch m {
	case ModeComfort, ModeBalanced, ModeSaver:
		return true
	}
	return false
}

// ObjectiveWeights are the weights over the optimizer's scoring terms.
// They sum to 1 for the built-in modes.
type ObjectiveWeights struct {
	Energy     float64 `json:"energy"`
	CO2        float64 `json:"co2"`
	Peak       float64 `json:"peak"`
	Discomfort float64 `json:"discomfort"`
}

// Weights returns the objective weights for the mode. Unknown modes fall
// back to balanced.
func (m OptimizationMode) Weights() ObjectiveWeights {
	switch m {
	case ModeComfort:
		return ObjectiveWeights{Energy: 0.2, CO2: 0.1, Peak: 0.1, Discomfort: 0.6}
	case ModeSaver:
		return ObjectiveWeights{Energy: 0.5, CO2: 0.2, Peak: 0.2, Discomfort: 0.1}
	default:
		return ObjectiveWeights{Energy: 0.35, CO2: 0.2, Peak: 0.2, Discomfort: 0.25}
	}
}

// Preferences is the per-home user configuration. The comfort band is a
// hard constraint everywhere in the system and is never relaxed.
type Preferences struct {
	HomeID string `json:"homeID"`

	// Comfort band in °C. ComfortMinC <= ComfortMaxC is enforced at every
	// write boundary; the core never silently corrects an inverted band.
	ComfortMinC float64 `json:"comfortMinC"`
	ComfortMaxC float64 `json:"comfortMaxC"`

	// EV charging goals.
	EVDepartureTime string  `json:"evDepartureTime"` // HH:MM
	EVTargetSOCPct  float64 `json:"evTargetSOCPct"`

	// Maximum minutes a flexible load may be shifted.
	MaxShiftMinutes int `json:"maxShiftMinutes"`

	Mode             OptimizationMode `json:"mode"`
	AutopilotEnabled bool             `json:"autopilotEnabled"`
}

// DefaultPreferences returns the seed defaults for a home.
func DefaultPreferences(homeID string) Preferences {
	return Preferences{
		HomeID:          homeID,
		ComfortMinC:     22.0,
		ComfortMaxC:     26.0,
		EVDepartureTime: "07:30",
		EVTargetSOCPct:  80.0,
		MaxShiftMinutes: 120,
		Mode:            ModeBalanced,
	}
}

// Validate rejects malformed preferences. It never mutates.
func (p Preferences) Validate() error {
	if p.ComfortMinC > p.ComfortMaxC {
		return fmt.Errorf("comfort band inverted: min %.1f > max %.1f", p.ComfortMinC, p.ComfortMaxC)
	}
	if p.ComfortMinC < 10 || p.ComfortMaxC > 35 {
		return fmt.Errorf("comfort band out of range: [%.1f, %.1f]", p.ComfortMinC, p.ComfortMaxC)
	}
	if p.EVTargetSOCPct < 0 || p.EVTargetSOCPct > 100 {
		return fmt.Errorf("ev target SOC out of range: %.1f", p.EVTargetSOCPct)
	}
	if p.MaxShiftMinutes < 0 {
		return fmt.Errorf("max shift minutes negative: %d", p.MaxShiftMinutes)
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("unknown optimization mode: %q", p.Mode)
	}
	if p.EVDepartureTime != "" {
		if _, err := ParseClock(p.EVDepartureTime); err != nil {
			return fmt.Errorf("invalid ev departure time: %w", err)
		}
	}
	return nil
}

// MigratePreferences migrates stored preferences to the current version.
// It returns the migrated preferences, a boolean indicating if changes were
// made, and an error if migration failed.
func MigratePreferences(p Preferences, currentVersion int) (Preferences, bool, error) {
	if currentVersion >= CurrentPreferencesVersion {
		return p, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentPreferencesVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if p.ComfortMinC == 0 && p.ComfortMaxC == 0 {
				p.ComfortMinC = 22.0
				p.ComfortMaxC = 26.0
				migrated = true
			}
			if p.EVTargetSOCPct == 0 {
				p.EVTargetSOCPct = 80.0
				migrated = true
			}
			if p.EVDepartureTime == "" {
				p.EVDepartureTime = "07:30"
				migrated = true
			}
			if p.Mode == "" {
				p.Mode = ModeBalanced
				migrated = true
			}
		case 2:
			// version 2: add MaxShiftMinutes
			if p.MaxShiftMinutes == 0 {
				p.MaxShiftMinutes = 120
				migrated = true
			}
		default:
			return p, false, fmt.Errorf("unknown preferences version: %d", version)
		}
	}

	return p, migrated, nil
}

// ParseClock parses an HH:MM wall-clock string and returns minutes since
// midnight.
func ParseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return hh*60 + mm, nil
}
