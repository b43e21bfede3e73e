package optimizer

import (
	"math"
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

// Simulate builds baseline and optimized 24h load curves for a scenario.
// The baseline is the scenario's aggregated per-device profile; the
// optimized curve applies the rule maneuvers (pre-cool, EV shift, water
// heater shift) with the mode's peak reduction, then both are aggregated
// from 15-minute samples to hourly means.
func (o *Optimizer) Simulate(sc *types.Scenario, prefs types.Preferences, now time.Time) types.SimulationResult {
	n := types.ScenarioSamples

	baseline := make([]float64, n)
	if sc != nil {
		copy(baseline, sc.TotalBaselineKW())
	}
	if allZero(baseline) {
		for i := range baseline {
			hour := float64(i*types.ScenarioSampleMinutes) / 60.0
			baseline[i] = 3.0 + 5.0*heuristicFactor(hour)
		}
	}

	optimized := o.optimizeProfile(baseline, sc, prefs)

	start := now.UTC().Truncate(time.Hour)
	res := types.SimulationResult{
		TS:          make([]time.Time, 0, 24),
		BaselineKW:  make([]float64, 0, 24),
		OptimizedKW: make([]float64, 0, 24),
		DeltaKW:     make([]float64, 0, 24),
	}
	for h := 0; h < 24; h++ {
		b := mean(baseline[h*4 : (h+1)*4])
		op := mean(optimized[h*4 : (h+1)*4])
		res.TS = append(res.TS, start.Add(time.Duration(h)*time.Hour))
		res.BaselineKW = append(res.BaselineKW, round3(b))
		res.OptimizedKW = append(res.OptimizedKW, round3(op))
		res.DeltaKW = append(res.DeltaKW, round3(b-op))
	}
	return res
}

// optimizeProfile applies the maneuver rules to a 15-minute baseline.
func (o *Optimizer) optimizeProfile(baseline []float64, sc *types.Scenario, prefs types.Preferences) []float64 {
	n := len(baseline)
	optimized := make([]float64, n)
	copy(optimized, baseline)

	red, ok := peakReduction[prefs.Mode]
	if !ok {
		red = peakReduction[types.ModeBalanced]
	}

	// Pre-cool boosts load before the peak window then sheds during it.
	boost := red * 0.4
	for i := precoolStartIdx; i < precoolEndIdx && i < n; i++ {
		optimized[i] = baseline[i] * (1 + boost)
	}
	for i := peakStartIdx; i < peakEndIdx && i < n; i++ {
		optimized[i] = baseline[i] * (1 - red)
	}

	if sc != nil {
		// EV: move evening charging overnight, paying the efficiency toll.
		if ev, ok := sc.Devices[types.SeedDeviceEVCharger]; ok {
			for i := evEveningStart; i < evEveningEnd && i < n; i++ {
				if i >= len(ev.BaselineKW) {
					break
				}
				removed := ev.BaselineKW[i] * evShiftedFraction
				optimized[i] -= removed
				target := (i - evEveningStart + evOvernightIdx) % n
				optimized[target] += removed * evShiftEfficiency
			}
		}

		// Water heater: shift afternoon heating to early morning.
		if wh, ok := sc.Devices[types.SeedDeviceWaterHeater]; ok {
			for i := peakStartIdx; i < whShiftEnd && i < n; i++ {
				if i >= len(wh.BaselineKW) {
					break
				}
				removed := wh.BaselineKW[i] * whShiftedFraction
				optimized[i] -= removed
				target := i - peakStartIdx + whShiftTarget
				if target < n {
					optimized[target] += removed * whShiftEfficiency
				}
			}
		}
	}

	for i := range optimized {
		if optimized[i] < loadFloorKW {
			optimized[i] = loadFloorKW
		}
	}
	return optimized
}

// KPIs folds a simulation's positive deltas into savings totals. The
// compliance figure comes from the twin's comfort summary.
func (o *Optimizer) KPIs(res types.SimulationResult, compliancePct float64) types.KPIs {
	var kwh float64
	for _, d := range res.DeltaKW {
		if d > 0 {
			// Hourly means, so each positive delta is kW over one hour.
			kwh += d
		}
	}
	return types.KPIs{
		KWHSaved:             round2(kwh),
		CurrencySaved:        round2(kwh * o.cfg.TariffPerKWH),
		CO2AvoidedKg:         round2(kwh * o.cfg.EmissionKgPerKWH),
		ComfortCompliancePct: round2(compliancePct),
	}
}

// heuristicFactor is the fallback time-of-day load shape when a scenario
// carries no device baselines.
func heuristicFactor(hour float64) float64 {
	switch {
	case hour < 6:
		return 0.35
	case hour < 9:
		return 0.55
	case hour < 12:
		return 0.70
	case hour < 15:
		return 0.95
	case hour < 18:
		return 1.0
	case hour < 21:
		return 0.80
	case hour < 23:
		return 0.60
	}
	return 0.40
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
