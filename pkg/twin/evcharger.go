package twin

import "github.com/hometwin/hometwin/pkg/types"

// EV charger parameters for a level-2 home wallbox.
const (
	evBatteryCapacityKWH = 60.0
	evMaxChargeRateKW    = 7.4
	evChargeEfficiency   = 0.92
	evCVKneeSOCPct       = 80.0
	evStandbyKW          = 0.02
	evInitialSOCPct      = 45.0
	evDefaultTargetPct   = 80.0
)

// evChargerModel simulates a CC-CV charge curve: constant current up to the
// knee SOC, then a linear taper toward full.
type evChargerModel struct {
	dev types.Device

	status       string
	socPct       float64
	powerKW      float64
	deliveredKWH float64
	targetSOCPct float64
}

func newEVChargerModel(dev types.Device) *evChargerModel {
	status := dev.Status
	if status == "" {
		status = "idle"
	}
	return &evChargerModel{
		dev:          dev,
		status:       status,
		socPct:       evInitialSOCPct,
		targetSOCPct: evDefaultTargetPct,
	}
}

func (m *evChargerModel) setCharging(on bool) {
	if on {
		if m.socPct < 100 {
			m.status = "charging"
		}
	} else if m.status == "charging" {
		m.status = "idle"
	}
}

func (m *evChargerModel) step(in StepInput) types.DeviceState {
	if in.ReportedStatus != "" {
		m.status = in.ReportedStatus
	}

	if m.status != "charging" || m.socPct >= 100 {
		m.powerKW = 0
		if m.status == "standby" || m.status == "complete" {
			m.powerKW = evStandbyKW
		}
		if m.socPct >= 100 && m.status == "charging" {
			m.status = "complete"
			m.powerKW = evStandbyKW
		}
		return m.state()
	}

	rate := evMaxChargeRateKW
	if m.socPct > evCVKneeSOCPct {
		// CV taper: linear falloff from full rate at the knee to zero at 100%.
		rate = evMaxChargeRateKW * (100.0 - m.socPct) / (100.0 - evCVKneeSOCPct)
		if rate < 0.3 {
			rate = 0.3
		}
	}
	m.powerKW = rate

	hours := in.DT.Hours()
	added := rate * evChargeEfficiency * hours
	m.deliveredKWH += rate * hours
	m.socPct += added / evBatteryCapacityKWH * 100.0
	if m.socPct >= 100 {
		m.socPct = 100
		m.status = "complete"
		m.powerKW = evStandbyKW
	}
	return m.state()
}

// timeToTargetMinutes estimates minutes until the target SOC at the current
// rate, ignoring the CV taper above the knee.
func (m *evChargerModel) timeToTargetMinutes() float64 {
	if m.socPct >= m.targetSOCPct || m.status != "charging" {
		return 0
	}
	needKWH := (m.targetSOCPct - m.socPct) / 100.0 * evBatteryCapacityKWH
	rate := evMaxChargeRateKW * evChargeEfficiency
	return needKWH / rate * 60.0
}

func (m *evChargerModel) wasteHeatKW() float64 {
	// Conversion losses end up as heat in the garage.
	return m.powerKW * (1 - evChargeEfficiency)
}

func (m *evChargerModel) state() types.DeviceState {
	return types.DeviceState{
		DeviceID: m.dev.ID,
		RoomID:   m.dev.RoomID,
		Kind:     m.dev.Kind,
		Name:     m.dev.Name,
		Status:   m.status,
		PowerKW:  round3(m.powerKW),
		EV: &types.EVState{
			SOCPct:              round1(m.socPct),
			BatteryCapacityKWH:  evBatteryCapacityKWH,
			MaxChargeRateKW:     evMaxChargeRateKW,
			EnergyDeliveredKWH:  round3(m.deliveredKWH),
			TimeToTargetMinutes: round1(m.timeToTargetMinutes()),
		},
	}
}
