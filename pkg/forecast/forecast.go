// Package forecast produces a deterministic 24-hour load forecast from the
// active scenario, recent load history, and a time-of-day profile. Same
// inputs always produce the same output.
package forecast

import (
	"math"
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

const (
	// DefaultHorizonHours is the forecast length returned by the API.
	DefaultHorizonHours = 24

	// Baseline blending: scenario/heuristic load versus observed history.
	baseWeight    = 0.7
	historyWeight = 0.3

	// Confidence band half-width as a fraction of the prediction.
	bandFraction = 0.15

	tempBaselineC  = 35.0
	minPredictedKW = 0.1
)

// timeOfDayFactor shapes the load profile for a hot-climate villa: primary
// peak mid-afternoon from AC, secondary peak in the evening, low overnight.
func timeOfDayFactor(hour float64) float64 {
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

// tempFactor scales load with outside temperature relative to a 35°C
// baseline, clamped so extreme inputs stay plausible.
func tempFactor(outsideC float64) float64 {
	return math.Max(0.5, math.Min(1.5, outsideC/tempBaselineC))
}

// HistoryAverage weights the most recent samples more heavily: 60% on the
// last 4, 40% on the last 12. Zero-power samples are skipped.
func HistoryAverage(powersKW []float64) float64 {
	var nonzero []float64
	for _, p := range powersKW {
		if p > 0 {
			nonzero = append(nonzero, p)
		}
	}
	if len(nonzero) == 0 {
		return 0
	}
	return 0.6*tailMean(nonzero, 4) + 0.4*tailMean(nonzero, 12)
}

func tailMean(v []float64, n int) float64 {
	if len(v) > n {
		v = v[len(v)-n:]
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Next24h builds an hourly forecast starting at now. The scenario supplies
// the baseline and outside temperatures; historyAvgKW (from HistoryAverage)
// nudges the baseline toward observed load when nonzero.
func Next24h(sc *types.Scenario, now time.Time, historyAvgKW float64, horizonHours int) []types.ForecastPoint {
	if horizonHours <= 0 {
		horizonHours = DefaultHorizonHours
	}
	n := horizonHours * 4

	var baseline []float64
	if sc != nil {
		baseline = sc.TotalBaselineKW()
	}

	// Build at 15-minute resolution, then aggregate to hourly.
	quarter := make([]types.ForecastPoint, 0, n)
	for i := 0; i < n; i++ {
		t := now.Add(time.Duration(i) * 15 * time.Minute)
		hour := float64(t.Hour()) + float64(t.Minute())/60.0

		var baseKW float64
		idx := types.SampleIndex(t)
		if len(baseline) > idx && baseline[idx] > 0 {
			baseKW = baseline[idx]
		} else {
			// Heuristic villa profile in the 3 to 8 kW range.
			baseKW = 3.0 + 5.0*timeOfDayFactor(hour)
		}

		if historyAvgKW > 0 {
			baseKW = baseWeight*baseKW + historyWeight*historyAvgKW
		}

		if sc != nil {
			baseKW *= tempFactor(types.SampleAt(sc.OutsideTempC, t, tempBaselineC))
		}

		// Small sinusoidal variation so the curve is not stair-stepped.
		variation := 0.15 * math.Sin(2*math.Pi*float64(i)/float64(n)+0.5)
		predicted := math.Max(minPredictedKW, baseKW*(1+variation))

		quarter = append(quarter, types.ForecastPoint{
			TS:          t,
			PredictedKW: round3(predicted),
			LowerKW:     round3(predicted * (1 - bandFraction)),
			UpperKW:     round3(predicted * (1 + bandFraction)),
		})
	}

	hourly := make([]types.ForecastPoint, 0, horizonHours)
	for h := 0; h < horizonHours; h++ {
		chunk := quarter[h*4 : (h+1)*4]
		var pred, lower, upper float64
		for _, p := range chunk {
			pred += p.PredictedKW
			lower += p.LowerKW
			upper += p.UpperKW
		}
		hourly = append(hourly, types.ForecastPoint{
			TS:          chunk[0].TS,
			PredictedKW: round3(pred / 4),
			LowerKW:     round3(lower / 4),
			UpperKW:     round3(upper / 4),
		})
	}
	return hourly
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
