package twin

import (
	"math"

	"github.com/hometwin/hometwin/pkg/types"
)

// AC model parameters for a typical residential inverter split unit.
const (
	acRatedCoolingKW   = 5.0
	acRatedPowerKW     = 1.8
	acNominalCOP       = 3.2
	acCOPDegradePerC   = 0.05
	acCOPDegradeAboveC = 35.0
	acMinCOP           = 1.5
	acMinModulationPct = 30.0
	acSetpointMinC     = 16.0
	acSetpointMaxC     = 30.0
	acStandbyKW        = 0.01
)

// acModel simulates an inverter AC: a proportional controller sets the
// compressor load from the room temperature error, and the COP degrades
// with outside temperature.
type acModel struct {
	dev types.Device

	setpointC     float64
	status        string
	powerKW       float64
	coolingKW     float64
	cop           float64
	compressorPct float64
	runtimeMin    float64
	cyclesToday   int
	wasRunning    bool
}

func newACModel(dev types.Device) *acModel {
	sp := dev.SetpointC
	if sp == 0 {
		sp = 24.0
	}
	status := dev.Status
	if status == "" {
		status = "off"
	}
	return &acModel{
		dev:       dev,
		setpointC: clamp(sp, acSetpointMinC, acSetpointMaxC),
		status:    status,
		cop:       acNominalCOP,
	}
}

func (m *acModel) setSetpoint(c float64) {
	m.setpointC = clamp(c, acSetpointMinC, acSetpointMaxC)
}

func (m *acModel) step(in StepInput) types.DeviceState {
	if in.ReportedStatus != "" {
		m.status = in.ReportedStatus
	}

	// COP falls off as the condenser fights a hotter outdoor coil.
	m.cop = acNominalCOP
	if in.Env.OutsideTempC > acCOPDegradeAboveC {
		m.cop = acNominalCOP - acCOPDegradePerC*(in.Env.OutsideTempC-acCOPDegradeAboveC)
	}
	if m.cop < acMinCOP {
		m.cop = acMinCOP
	}

	if m.status != "on" {
		m.powerKW = 0
		if m.status == "standby" {
			m.powerKW = acStandbyKW
		}
		m.coolingKW = 0
		m.compressorPct = 0
		m.wasRunning = false
		return m.state()
	}

	gain := in.CompressorGainPct
	if gain <= 0 {
		gain = 20.0
	}
	errC := in.RoomTempC - m.setpointC
	if errC <= 0 {
		// At or below setpoint: compressor off, fan only.
		m.compressorPct = 0
		m.coolingKW = 0
		m.powerKW = 0.05
		m.wasRunning = false
		return m.state()
	}

	load := gain * errC
	if load < acMinModulationPct {
		load = acMinModulationPct
	}
	if load > 100 {
		load = 100
	}
	m.compressorPct = load

	m.coolingKW = acRatedCoolingKW * load / 100.0
	// Electrical draw is delivered cooling over the current COP, so a
	// degraded COP costs more power for the same cooling.
	m.powerKW = m.coolingKW / m.cop

	dtMin := in.DT.Minutes()
	m.runtimeMin += dtMin
	if !m.wasRunning {
		m.cyclesToday++
	}
	m.wasRunning = true
	return m.state()
}

func (m *acModel) state() types.DeviceState {
	return types.DeviceState{
		DeviceID: m.dev.ID,
		RoomID:   m.dev.RoomID,
		Kind:     m.dev.Kind,
		Name:     m.dev.Name,
		Status:   m.status,
		PowerKW:  round3(m.powerKW),
		AC: &types.ACState{
			SetpointC:         m.setpointC,
			CoolingOutputKW:   round3(m.coolingKW),
			COP:               round3(m.cop),
			CompressorLoadPct: round1(m.compressorPct),
			RuntimeMinutes:    round1(m.runtimeMin),
			CyclesToday:       m.cyclesToday,
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
