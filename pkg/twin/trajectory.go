package twin

import (
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

// Trajectory is the result of a what-if room simulation.
type Trajectory struct {
	// TempsC holds one sample per simulated minute, including the start.
	TempsC []float64
	// MaxCoolingKW is the largest cooling demand seen across the window.
	MaxCoolingKW float64
}

// Min returns the lowest temperature in the trajectory.
func (tr Trajectory) Min() float64 {
	min := tr.TempsC[0]
	for _, v := range tr.TempsC {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the highest temperature in the trajectory.
func (tr Trajectory) Max() float64 {
	max := tr.TempsC[0]
	for _, v := range tr.TempsC {
		if v > max {
			max = v
		}
	}
	return max
}

// SimulateRoom runs a minute-resolution what-if trajectory for a room held
// at a setpoint by an idealized capacity-limited AC. The controller removes
// exactly the heat needed to reach and hold the setpoint, up to the rated
// cooling capacity; if gains exceed capacity the temperature drifts up and
// the caller sees the violation in the trajectory.
func SimulateRoom(roomName string, startTempC float64, sc *types.Scenario, start time.Time, duration time.Duration, setpointC float64) Trajectory {
	env, ok := envelopes[roomName]
	if !ok {
		env = defaultEnvelope
	}

	minutes := int(duration.Minutes())
	tr := Trajectory{TempsC: make([]float64, 0, minutes+1)}
	temp := startTempC
	tr.TempsC = append(tr.TempsC, temp)

	const dtHours = 1.0 / 60.0
	for i := 0; i < minutes; i++ {
		t := start.Add(time.Duration(i) * time.Minute)
		ambient := EnvironmentAt(sc, t)
		hour := float64(t.Hour()) + float64(t.Minute())/60.0

		qWall := (ambient.OutsideTempC - temp) / env.rWall
		qSolar := ambient.SolarIrradianceWM2 * env.windowM2 * env.shgc / 1000.0
		qOcc := occupants(hour, roomName) * occupantHeatKWPerson
		gains := qWall + qSolar + qOcc

		// Cooling needed to land on the setpoint by the end of this minute.
		needed := gains + (temp-setpointC)*env.capacity/dtHours
		cooling := clamp(needed, 0, acRatedCoolingKW)
		if cooling > tr.MaxCoolingKW {
			tr.MaxCoolingKW = cooling
		}

		temp += (gains - cooling) * dtHours / env.capacity
		tr.TempsC = append(tr.TempsC, temp)
	}
	return tr
}
