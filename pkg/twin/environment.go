package twin

import (
	"math"
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

// Environment defaults used when no scenario sample is available.
const (
	defaultOutsideTempC  = 36.0
	defaultHumidityPct   = 55.0
	defaultGridCarbonKg  = 0.45
	solarPeakWM2         = 950.0
	solarSunriseHour     = 6.0
	solarSunsetHour      = 18.5
	occupantHeatKWPerson = 0.1
)

// EnvironmentAt derives ambient conditions from the scenario profile at a
// wall-clock time. It is a pure function: same scenario and time always
// yield the same state. A nil scenario returns defaults with computed solar.
func EnvironmentAt(sc *types.Scenario, t time.Time) types.EnvironmentState {
	env := types.EnvironmentState{
		OutsideTempC:       defaultOutsideTempC,
		HumidityPct:        defaultHumidityPct,
		GridCarbonKgPerKWH: defaultGridCarbonKg,
	}
	if sc != nil {
		env.OutsideTempC = types.SampleAt(sc.OutsideTempC, t, defaultOutsideTempC)
	}
	hour := float64(t.Hour()) + float64(t.Minute())/60.0
	env.SolarIrradianceWM2 = solarIrradiance(hour)
	if env.OutsideTempC > 35 {
		env.HumidityPct = 60.0
	} else {
		env.HumidityPct = 50.0
	}
	return env
}

// solarIrradiance approximates irradiance (W/m²) for an hour of day.
// Sinusoidal, peaking shortly after solar noon, zero at night.
func solarIrradiance(hour float64) float64 {
	if hour < solarSunriseHour || hour > solarSunsetHour {
		return 0.0
	}
	angle := math.Pi * (hour - solarSunriseHour) / (solarSunsetHour - solarSunriseHour)
	return math.Max(0, solarPeakWM2*math.Sin(angle))
}

// occupants estimates the number of people in a room by hour of day.
// The tables mirror a weekday household routine.
func occupants(hour float64, roomName string) float64 {
	switch roomName {
	case "Bedroom":
		switch {
		case hour >= 22 || hour < 7:
			return 2.0
		case hour >= 7 && hour < 9:
			return 1.0
		}
		return 0.0
	case "Living Room":
		switch {
		case hour >= 7 && hour < 9:
			return 2.0
		case hour >= 9 && hour < 16:
			return 0.5
		case hour >= 16 && hour < 23:
			return 3.0
		}
		return 0.0
	case "Kitchen":
		switch {
		case hour >= 6 && hour < 9:
			return 1.5
		case hour >= 11 && hour < 14:
			return 1.5
		case hour >= 17 && hour < 21:
			return 2.0
		}
		return 0.0
	case "Garage":
		if (hour >= 7 && hour < 8) || (hour >= 17 && hour < 18) {
			return 1.0
		}
		return 0.0
	}
	return 0.5
}
