package twin

import "github.com/hometwin/hometwin/pkg/types"

// washerPhase is one fixed program phase with its duration and draw.
type washerPhase struct {
	name    string
	minutes float64
	powerKW float64
}

// The program is fixed: phases always run in order for their full duration.
var washerProgram = []washerPhase{
	{"washing", 15, 0.5},
	{"rinsing", 10, 0.3},
	{"spinning", 10, 0.8},
	{"drying", 30, 2.0},
}

func washerCycleMinutes() float64 {
	var total float64
	for _, p := range washerProgram {
		total += p.minutes
	}
	return total
}

// washerDryerModel simulates a combined washer/dryer running a fixed
// multi-phase program tracked by elapsed minutes.
type washerDryerModel struct {
	dev types.Device

	status       string
	elapsedMin   float64
	powerKW      float64
	cycleKWH     float64
	cycleRunning bool
}

func newWasherDryerModel(dev types.Device) *washerDryerModel {
	status := dev.Status
	if status == "" {
		status = "idle"
	}
	m := &washerDryerModel{dev: dev, status: status}
	if phaseIndex(status) >= 0 {
		m.cycleRunning = true
		// Resume mid-phase at the phase start; progress catches up as it steps.
		m.elapsedMin = phaseStartMinutes(status)
	}
	return m
}

func phaseIndex(status string) int {
	for i, p := range washerProgram {
		if p.name == status {
			return i
		}
	}
	return -1
}

func phaseStartMinutes(status string) float64 {
	var start float64
	for _, p := range washerProgram {
		if p.name == status {
			return start
		}
		start += p.minutes
	}
	return 0
}

func (m *washerDryerModel) startCycle() bool {
	if m.cycleRunning {
		return false
	}
	m.cycleRunning = true
	m.elapsedMin = 0
	m.cycleKWH = 0
	m.status = washerProgram[0].name
	return true
}

func (m *washerDryerModel) step(in StepInput) types.DeviceState {
	if in.ReportedStatus != "" && in.ReportedStatus != m.status {
		m.status = in.ReportedStatus
		if idx := phaseIndex(m.status); idx >= 0 {
			if !m.cycleRunning {
				m.cycleRunning = true
				m.cycleKWH = 0
			}
			m.elapsedMin = phaseStartMinutes(m.status)
		} else {
			m.cycleRunning = false
		}
	}

	if !m.cycleRunning {
		m.powerKW = 0
		return m.state()
	}

	dtMin := in.DT.Minutes()
	m.elapsedMin += dtMin

	total := washerCycleMinutes()
	if m.elapsedMin >= total {
		m.elapsedMin = total
		m.cycleRunning = false
		m.status = "complete"
		m.powerKW = 0
		return m.state()
	}

	// Find the current phase by elapsed time.
	var start float64
	for _, p := range washerProgram {
		if m.elapsedMin < start+p.minutes {
			m.status = p.name
			m.powerKW = p.powerKW
			break
		}
		start += p.minutes
	}
	m.cycleKWH += m.powerKW * dtMin / 60.0
	return m.state()
}

func (m *washerDryerModel) wasteHeatKW() float64 {
	// Roughly 30% of drum power escapes into the room as heat.
	return m.powerKW * 0.3
}

func (m *washerDryerModel) state() types.DeviceState {
	total := washerCycleMinutes()
	progress := m.elapsedMin / total * 100.0
	if progress > 100 {
		progress = 100
	}
	remaining := total - m.elapsedMin
	if remaining < 0 || !m.cycleRunning {
		remaining = 0
	}
	if !m.cycleRunning && m.status != "complete" {
		progress = 0
	}
	return types.DeviceState{
		DeviceID: m.dev.ID,
		RoomID:   m.dev.RoomID,
		Kind:     m.dev.Kind,
		Name:     m.dev.Name,
		Status:   m.status,
		PowerKW:  round3(m.powerKW),
		Washer: &types.WasherState{
			CyclePhase:         m.status,
			ProgressPct:        round1(progress),
			TimeRemainingMin:   round1(remaining),
			EnergyThisCycleKWH: round3(m.cycleKWH),
		},
	}
}
