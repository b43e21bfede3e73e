package twin

import (
	"fmt"
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

// StepInput carries everything a device model may need for one step.
type StepInput struct {
	// DT is the elapsed simulated time since the previous step.
	DT time.Duration
	// Env is the ambient state for this step.
	Env types.EnvironmentState
	// RoomTempC is the current temperature of the device's room.
	RoomTempC float64
	// ReportedPowerKW is the measured draw from telemetry, negative if absent.
	ReportedPowerKW float64
	// ReportedStatus is the status from telemetry, empty if absent.
	ReportedStatus string
	// CompressorGainPct is the AC proportional gain in percent per °C of error.
	CompressorGainPct float64
}

// DeviceModel is the simulation state for a single device. The set of
// kinds is closed: construction rejects anything outside the four known
// kinds, so the switch in Step covers every value that can exist.
type DeviceModel struct {
	dev types.Device

	ac *acModel
	ev *evChargerModel
	wh *waterHeaterModel
	wd *washerDryerModel
}

// NewDeviceModel builds the model for a device, seeding kind-specific
// state from the device record.
func NewDeviceModel(dev types.Device) (*DeviceModel, error) {
	m := &DeviceModel{dev: dev}
	switch dev.Kind {
	case types.DeviceAC:
		m.ac = newACModel(dev)
	case types.DeviceEVCharger:
		m.ev = newEVChargerModel(dev)
	case types.DeviceWaterHeater:
		m.wh = newWaterHeaterModel(dev)
	case types.DeviceWasherDryer:
		m.wd = newWasherDryerModel(dev)
	default:
		return nil, fmt.Errorf("unknown device kind %q for device %s", dev.Kind, dev.ID)
	}
	return m, nil
}

// Device returns the static device record.
func (m *DeviceModel) Device() types.Device { return m.dev }

// Step advances the device by in.DT and returns its new state. Exactly one
// branch runs per device; the constructor guarantees the kind is known.
func (m *DeviceModel) Step(in StepInput) types.DeviceState {
	switch m.dev.Kind {
	case types.DeviceAC:
		return m.ac.step(in)
	case types.DeviceEVCharger:
		return m.ev.step(in)
	case types.DeviceWaterHeater:
		return m.wh.step(in)
	case types.DeviceWasherDryer:
		return m.wd.step(in)
	}
	// Unreachable: NewDeviceModel rejects unknown kinds.
	panic(fmt.Sprintf("device %s has unknown kind %q", m.dev.ID, m.dev.Kind))
}

// State returns the last computed state without advancing.
func (m *DeviceModel) State() types.DeviceState {
	switch m.dev.Kind {
	case types.DeviceAC:
		return m.ac.state()
	case types.DeviceEVCharger:
		return m.ev.state()
	case types.DeviceWaterHeater:
		return m.wh.state()
	case types.DeviceWasherDryer:
		return m.wd.state()
	}
	panic(fmt.Sprintf("device %s has unknown kind %q", m.dev.ID, m.dev.Kind))
}

// CoolingKW is the sensible cooling the device delivers to its room.
// Zero for everything except a running AC.
func (m *DeviceModel) CoolingKW() float64 {
	if m.dev.Kind == types.DeviceAC {
		return m.ac.coolingKW
	}
	return 0
}

// WasteHeatKW is the heat the device dumps into its room while drawing
// power. ACs reject heat outside and contribute nothing here.
func (m *DeviceModel) WasteHeatKW() float64 {
	switch m.dev.Kind {
	case types.DeviceEVCharger:
		return m.ev.wasteHeatKW()
	case types.DeviceWaterHeater:
		return m.wh.wasteHeatKW()
	case types.DeviceWasherDryer:
		return m.wd.wasteHeatKW()
	}
	return 0
}

// PowerKW is the device's electrical draw as of the last step.
func (m *DeviceModel) PowerKW() float64 {
	return m.State().PowerKW
}

// SetSetpoint updates the AC target temperature. It is a no-op for other
// kinds and clamps to the supported range.
func (m *DeviceModel) SetSetpoint(c float64) {
	if m.dev.Kind == types.DeviceAC {
		m.ac.setSetpoint(c)
	}
}

// StartCycle begins a washer/dryer program if the device is idle.
func (m *DeviceModel) StartCycle() bool {
	if m.dev.Kind == types.DeviceWasherDryer {
		return m.wd.startCycle()
	}
	return false
}

// SetCharging toggles an EV charger between charging and idle.
func (m *DeviceModel) SetCharging(on bool) {
	if m.dev.Kind == types.DeviceEVCharger {
		m.ev.setCharging(on)
	}
}
