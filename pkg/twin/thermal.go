package twin

import (
	"time"

	"github.com/hometwin/hometwin/pkg/types"
)

// envelope holds a room's thermal characteristics.
type envelope struct {
	// rWall is the wall thermal resistance in K/kW.
	rWall float64
	// capacity is the thermal capacitance in kWh/K.
	capacity float64
	// windowM2 is the effective glazing area.
	windowM2 float64
	// shgc is the solar heat gain coefficient of the glazing.
	shgc float64
}

// Envelope presets by room name. Unknown rooms get the default.
var envelopes = map[string]envelope{
	"Living Room": {rWall: 4.5, capacity: 0.45, windowM2: 6.0, shgc: 0.25},
	"Bedroom":     {rWall: 5.0, capacity: 0.35, windowM2: 3.0, shgc: 0.20},
	"Kitchen":     {rWall: 4.0, capacity: 0.30, windowM2: 2.0, shgc: 0.25},
	"Garage":      {rWall: 2.5, capacity: 0.60, windowM2: 0.5, shgc: 0.15},
}

var defaultEnvelope = envelope{rWall: 4.0, capacity: 0.35, windowM2: 3.0, shgc: 0.22}

// trendWindow is how many recent samples feed the temperature trend slope.
const trendWindow = 8

// roomModel integrates a lumped-capacitance heat balance for one room.
type roomModel struct {
	room types.Room
	env  envelope

	tempC   float64
	history []tempSample
}

type tempSample struct {
	at    time.Time
	tempC float64
}

func newRoomModel(room types.Room, initialTempC float64) *roomModel {
	env, ok := envelopes[room.Name]
	if !ok {
		env = defaultEnvelope
	}
	return &roomModel{room: room, env: env, tempC: initialTempC}
}

// roomStepInput is the per-step heat flow into and out of one room.
type roomStepInput struct {
	dt           time.Duration
	now          time.Time
	outside      types.EnvironmentState
	coolingKW    float64
	deviceHeatKW float64
	toleranceC   float64
	comfortMinC  float64
	comfortMaxC  float64
	setpointC    float64 // AC setpoint, 0 if no AC in the room
}

// step advances the room temperature by one heat-balance integration.
func (m *roomModel) step(in roomStepInput) types.RoomState {
	hour := float64(in.now.Hour()) + float64(in.now.Minute())/60.0

	qWall := (in.outside.OutsideTempC - m.tempC) / m.env.rWall
	qSolar := in.outside.SolarIrradianceWM2 * m.env.windowM2 * m.env.shgc / 1000.0
	qOccupancy := occupants(hour, m.room.Name) * occupantHeatKWPerson
	qNet := qWall + qSolar + qOccupancy + in.deviceHeatKW - in.coolingKW

	hours := in.dt.Hours()
	m.tempC += qNet * hours / m.env.capacity

	m.history = append(m.history, tempSample{at: in.now, tempC: m.tempC})
	if len(m.history) > trendWindow {
		m.history = m.history[len(m.history)-trendWindow:]
	}

	heatGain := qWall + qSolar + qOccupancy + in.deviceHeatKW
	return types.RoomState{
		RoomID:            m.room.ID,
		RoomName:          m.room.Name,
		TempC:             round1(m.tempC),
		TrendCPerHour:     round3(m.trendCPerHour()),
		HumidityPct:       round1(in.outside.HumidityPct),
		Comfort:           classifyComfort(m.tempC, in.comfortMinC, in.comfortMaxC, in.toleranceC),
		HeatGainKW:        round3(heatGain),
		CoolingKW:         round3(in.coolingKW),
		MinutesToSetpoint: round1(m.minutesToSetpoint(in.setpointC)),
	}
}

// trendCPerHour is a finite-difference slope over the recent history.
func (m *roomModel) trendCPerHour() float64 {
	if len(m.history) < 2 {
		return 0
	}
	first := m.history[0]
	last := m.history[len(m.history)-1]
	hours := last.at.Sub(first.at).Hours()
	if hours <= 0 {
		return 0
	}
	return (last.tempC - first.tempC) / hours
}

// minutesToSetpoint extrapolates the current trend to the AC setpoint.
// Returns 0 when already there or the trend points away.
func (m *roomModel) minutesToSetpoint(setpointC float64) float64 {
	if setpointC == 0 {
		return 0
	}
	trend := m.trendCPerHour()
	deltaC := setpointC - m.tempC
	if deltaC == 0 || trend == 0 {
		return 0
	}
	minutes := deltaC / trend * 60.0
	if minutes < 0 || minutes > 24*60 {
		return 0
	}
	return minutes
}

// classifyComfort buckets a temperature against the comfort band. The
// tolerance widens the warm/cool bands before out_of_band applies.
func classifyComfort(tempC, minC, maxC, toleranceC float64) types.ComfortStatus {
	switch {
	case tempC >= minC && tempC <= maxC:
		return types.ComfortComfortable
	case tempC > maxC && tempC <= maxC+toleranceC:
		return types.ComfortWarm
	case tempC < minC && tempC >= minC-toleranceC:
		return types.ComfortCool
	}
	return types.ComfortOutOfBand
}
