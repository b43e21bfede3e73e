package types

import (
	"math"
	"time"
)

const (
	// ScenarioSamples is the number of samples in one scenario day
	// (24 hours at 15-minute resolution).
	ScenarioSamples = 96
	// ScenarioSampleMinutes is the width of one scenario sample.
	ScenarioSampleMinutes = 15
)

// DeviceProfile is a per-device baseline load curve at 15-minute resolution.
type DeviceProfile struct {
	DeviceID   string    `json:"deviceID"`
	BaselineKW []float64 `json:"baselineKW"`
}

// Scenario is a named, fixed 96-sample-per-day profile of per-device
// baseline power, outside temperature, and occupancy factor. Scenarios
// drive the environment model in simulated mode and the baseline-vs-
// optimized comparison.
type Scenario struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Description  string                   `json:"description"`
	Devices      map[string]DeviceProfile `json:"devices"`
	OutsideTempC []float64                `json:"outsideTempC"`
	Occupancy    []float64                `json:"occupancy"`
}

// SampleIndex returns the scenario sample index for a wall-clock time.
func SampleIndex(t time.Time) int {
	mins := t.Hour()*60 + t.Minute()
	return (mins / ScenarioSampleMinutes) % ScenarioSamples
}

// SampleAt returns the value of a 96-sample profile at time t, or fallback
// if the profile is missing or short.
func SampleAt(profile []float64, t time.Time, fallback float64) float64 {
	i := SampleIndex(t)
	if i >= len(profile) {
		return fallback
	}
	return profile[i]
}

// TotalBaselineKW sums the per-device baselines into a single 96-sample
// aggregate curve.
func (s *Scenario) TotalBaselineKW() []float64 {
	total := make([]float64, ScenarioSamples)
	for _, dev := range s.Devices {
		for i := 0; i < len(dev.BaselineKW) && i < ScenarioSamples; i++ {
			total[i] += dev.BaselineKW[i]
		}
	}
	return total
}

// Seed device IDs shared by the built-in scenarios and cmd/seed.
const (
	SeedDeviceACLiving    = "ac-living"
	SeedDeviceACBedroom   = "ac-bedroom"
	SeedDeviceWaterHeater = "water-heater"
	SeedDeviceWasherDryer = "washer-dryer"
	SeedDeviceEVCharger   = "ev-charger"
)

// BuiltinScenarioNames lists the scenarios available without seeding.
var BuiltinScenarioNames = []string{"normal", "peak", "heatwave"}

// BuiltinScenario builds one of the fixed demo scenarios. The profiles are
// deterministic so baseline comparisons are reproducible.
func BuiltinScenario(name string) (Scenario, bool) {
	var desc string
	switch name {
	case "normal":
		desc = "Typical summer day with moderate cooling demand"
	case "peak":
		desc = "Hot afternoon with high occupancy and peak tariff"
	case "heatwave":
		desc = "Extreme heat event with sustained cooling demand"
	default:
		return Scenario{}, false
	}

	ac := deviceBaseline(DeviceAC, name)
	acBedroom := make([]float64, len(ac))
	for i, v := range ac {
		acBedroom[i] = round3(v * 0.8)
	}

	return Scenario{
		ID:          name,
		Name:        name,
		Description: desc,
		Devices: map[string]DeviceProfile{
			SeedDeviceACLiving:    {DeviceID: SeedDeviceACLiving, BaselineKW: ac},
			SeedDeviceACBedroom:   {DeviceID: SeedDeviceACBedroom, BaselineKW: acBedroom},
			SeedDeviceWaterHeater: {DeviceID: SeedDeviceWaterHeater, BaselineKW: deviceBaseline(DeviceWaterHeater, name)},
			SeedDeviceWasherDryer: {DeviceID: SeedDeviceWasherDryer, BaselineKW: deviceBaseline(DeviceWasherDryer, name)},
			SeedDeviceEVCharger:   {DeviceID: SeedDeviceEVCharger, BaselineKW: deviceBaseline(DeviceEVCharger, name)},
		},
		OutsideTempC: outsideTempProfile(name),
		Occupancy:    occupancyProfile(name),
	}, true
}

// deviceBaseline generates 96 intervals of baseline kW for a device kind
// under a scenario.
func deviceBaseline(kind DeviceKind, scenario string) []float64 {
	baseline := make([]float64, ScenarioSamples)
	for i := range baseline {
		hour := float64(i*ScenarioSampleMinutes) / 60.0
		var kw float64

		switch kind {
		case DeviceAC:
			// AC: heavy during hot hours, reduced at night.
			switch scenario {
			case "heatwave":
				base := 3.5
				switch {
				case hour >= 12 && hour < 18:
					kw = base + 2.0*math.Sin(math.Pi*(hour-12)/6)
				case hour >= 6 && hour < 12:
					kw = base + 0.5
				case hour >= 18 && hour < 22:
					kw = base + 0.8
				default:
					kw = base * 0.7
				}
			case "peak":
				base := 2.5
				switch {
				case hour >= 13 && hour < 17:
					kw = base + 1.8*math.Sin(math.Pi*(hour-13)/4)
				case hour >= 9 && hour < 13:
					kw = base + 0.5
				case hour >= 17 && hour < 21:
					kw = base + 0.6
				default:
					kw = base * 0.5
				}
			default:
				base := 2.0
				switch {
				case hour >= 12 && hour < 18:
					kw = base + 1.2*math.Sin(math.Pi*(hour-12)/6)
				case hour >= 6 && hour < 12:
					kw = base * 0.6
				case hour >= 18 && hour < 22:
					kw = base * 0.7
				default:
					kw = base * 0.3
				}
			}

		case DeviceEVCharger:
			// EV: charges in the evening and overnight.
			switch {
			case hour >= 18 && hour < 22:
				if scenario != "normal" {
					kw = 7.0
				} else {
					kw = 5.0
				}
			case hour >= 22 || hour < 2:
				kw = 3.0
			}

		case DeviceWaterHeater:
			// Water heater: morning and evening peaks.
			switch {
			case hour >= 5 && hour < 8:
				kw = 2.5
			case hour >= 17 && hour < 20:
				kw = 2.0
			default:
				kw = 0.3
			}

		case DeviceWasherDryer:
			// Washer: typically afternoon.
			if hour >= 14 && hour < 16 {
				if scenario == "peak" {
					kw = 1.8
				} else {
					kw = 1.5
				}
			}

		default:
			kw = 0.5
		}

		baseline[i] = round3(math.Max(0, kw))
	}
	return baseline
}

// outsideTempProfile generates 96 intervals of outside temperature.
func outsideTempProfile(scenario string) []float64 {
	temps := make([]float64, ScenarioSamples)
	for i := range temps {
		hour := float64(i*ScenarioSampleMinutes) / 60.0
		var base, variation float64
		switch scenario {
		case "heatwave":
			base = 42.0
			variation = -3.0
			if hour >= 6 && hour <= 18 {
				variation = 6.0 * math.Sin(math.Pi*(hour-6)/12)
			}
		case "peak":
			base = 38.0
			variation = -2.5
			if hour >= 6 && hour <= 18 {
				variation = 5.0 * math.Sin(math.Pi*(hour-6)/12)
			}
		default:
			base = 34.0
			variation = -2.0
			if hour >= 6 && hour <= 18 {
				variation = 4.0 * math.Sin(math.Pi*(hour-6)/12)
			}
		}
		temps[i] = math.Round((base+variation)*10) / 10
	}
	return temps
}

// occupancyProfile generates an occupancy factor (0-1) per interval.
func occupancyProfile(scenario string) []float64 {
	occ := make([]float64, ScenarioSamples)
	for i := range occ {
		hour := float64(i*ScenarioSampleMinutes) / 60.0
		if scenario == "peak" {
			// High occupancy all day.
			if hour >= 7 && hour < 22 {
				occ[i] = 0.9
			} else {
				occ[i] = 0.3
			}
			continue
		}
		switch {
		case hour >= 7 && hour < 9:
			occ[i] = 0.8
		case hour >= 9 && hour < 16:
			occ[i] = 0.2
		case hour >= 16 && hour < 22:
			occ[i] = 0.9
		default:
			occ[i] = 0.3
		}
	}
	return occ
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
