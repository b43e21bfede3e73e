package twin

import "github.com/hometwin/hometwin/pkg/types"

// Water heater parameters for a 200 L resistive tank.
const (
	whElementKW       = 2.0
	whTargetC         = 60.0
	whDeadBandC       = 3.0
	whThermalMassKWHK = 0.2325 // ~200 L of water
	whLossKWPerK      = 0.002
	whAmbientC        = 28.0
	whReferenceC      = 20.0 // baseline for stored-energy reporting
)

// waterHeaterModel simulates a thermostat-controlled tank with hysteresis:
// the element switches on below target minus the dead band and off at target.
type waterHeaterModel struct {
	dev types.Device

	status     string
	waterTempC float64
	targetC    float64
	elementOn  bool
	powerKW    float64
	lossKW     float64
}

func newWaterHeaterModel(dev types.Device) *waterHeaterModel {
	status := dev.Status
	if status == "" {
		status = "standby"
	}
	return &waterHeaterModel{
		dev:        dev,
		status:     status,
		waterTempC: 55.0,
		targetC:    whTargetC,
	}
}

func (m *waterHeaterModel) step(in StepInput) types.DeviceState {
	if in.ReportedStatus != "" {
		m.status = in.ReportedStatus
		m.elementOn = m.status == "heating"
	}
	if in.ReportedPowerKW >= 0 && in.ReportedStatus == "" {
		// Infer element state from measured draw when no status came in.
		m.elementOn = in.ReportedPowerKW > 0.5
	}

	hours := in.DT.Hours()

	// Standing loss toward ambient is proportional to the temperature delta.
	m.lossKW = whLossKWPerK * (m.waterTempC - whAmbientC)
	if m.lossKW < 0 {
		m.lossKW = 0
	}
	m.waterTempC -= m.lossKW * hours / whThermalMassKWHK

	if m.status == "off" {
		m.elementOn = false
		m.powerKW = 0
		return m.state()
	}

	// Thermostat hysteresis.
	if m.waterTempC <= m.targetC-whDeadBandC {
		m.elementOn = true
	} else if m.waterTempC >= m.targetC {
		m.elementOn = false
	}

	if m.elementOn {
		m.powerKW = whElementKW
		m.waterTempC += whElementKW * hours / whThermalMassKWHK
		m.status = "heating"
	} else {
		m.powerKW = 0
		m.status = "standby"
	}
	return m.state()
}

func (m *waterHeaterModel) wasteHeatKW() float64 {
	// Tank standing losses heat the surrounding room.
	return m.lossKW
}

func (m *waterHeaterModel) state() types.DeviceState {
	stored := whThermalMassKWHK * (m.waterTempC - whReferenceC)
	if stored < 0 {
		stored = 0
	}
	return types.DeviceState{
		DeviceID: m.dev.ID,
		RoomID:   m.dev.RoomID,
		Kind:     m.dev.Kind,
		Name:     m.dev.Name,
		Status:   m.status,
		PowerKW:  round3(m.powerKW),
		WaterHeater: &types.WaterHeaterState{
			WaterTempC:      round1(m.waterTempC),
			TargetTempC:     m.targetC,
			ElementOn:       m.elementOn,
			HeatLossRateKW:  round3(m.lossKW),
			EnergyStoredKWH: round3(stored),
		},
	}
}
