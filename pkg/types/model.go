package types

import "time"

const (
	CurrentPreferencesVersion = 2

	HomeIDNone = "none"
)

// Home represents a household whose thermal environment is modeled by the twin.
type Home struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room belongs to exactly one Home. Thermal state is computed by the twin,
// not stored here; this is the registry record.
type Room struct {
	ID     string `json:"id"`
	HomeID string `json:"homeID"`
	Name   string `json:"name"`
}

// DeviceKind identifies the model variant used to step a device.
type DeviceKind string

const (
	DeviceAC          DeviceKind = "ac"
	DeviceEVCharger   DeviceKind = "ev_charger"
	DeviceWaterHeater DeviceKind = "water_heater"
	DeviceWasherDryer DeviceKind = "washer_dryer"
)

// Valid reports whether the kind is one of the known device kinds.
func (k DeviceKind) Valid() bool {
	switch k {
	case DeviceAC, DeviceEVCharger, DeviceWaterHeater, DeviceWasherDryer:
		return true
	}
	return false
}

// ValidStatus reports whether the status belongs to this kind's vocabulary.
func (k DeviceKind) ValidStatus(status string) bool {
	switch k {
	case DeviceAC:
		switch status {
		case "on", "off", "standby":
			return true
		}
	case DeviceEVCharger:
		switch status {
		case "charging", "standby", "complete", "idle":
			return true
		}
	case DeviceWaterHeater:
		switch status {
		case "heating", "standby", "off":
			return true
		}
	case DeviceWasherDryer:
		switch status {
		case "off", "idle", "washing", "rinsing", "spinning", "drying", "complete":
			return true
		}
	}
	return false
}

// Device belongs to exactly one Room. Back-references are IDs, never
// pointers; the twin resolves them through its registry.
type Device struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"roomID"`
	Kind      DeviceKind `json:"kind"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	PowerKW   float64    `json:"powerKW"`
	SetpointC float64    `json:"setpointC,omitempty"` // AC only
}

// Telemetry is a single inbound sensor sample for one device.
type Telemetry struct {
	DeviceID  string    `json:"deviceID"`
	Timestamp time.Time `json:"timestamp"`
	PowerKW   float64   `json:"powerKW"`
	TempC     *float64  `json:"tempC,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// ComfortStatus classifies a room temperature against the comfort band.
type ComfortStatus string

const (
	ComfortComfortable ComfortStatus = "comfortable"
	ComfortWarm        ComfortStatus = "warm"
	ComfortCool        ComfortStatus = "cool"
	ComfortOutOfBand   ComfortStatus = "out_of_band"
)

// EnvironmentState holds ambient conditions from the scenario or live sensors.
type EnvironmentState struct {
	OutsideTempC       float64 `json:"outsideTempC"`
	SolarIrradianceWM2 float64 `json:"solarIrradianceWM2"`
	HumidityPct        float64 `json:"humidityPct"`
	GridCarbonKgPerKWH float64 `json:"gridCarbonKgPerKWH"`
}

// RoomState is a room's computed thermal state for one snapshot.
type RoomState struct {
	RoomID            string        `json:"roomID"`
	RoomName          string        `json:"roomName"`
	TempC             float64       `json:"tempC"`
	TrendCPerHour     float64       `json:"trendCPerHour"`
	HumidityPct       float64       `json:"humidityPct"`
	Comfort           ComfortStatus `json:"comfort"`
	HeatGainKW        float64       `json:"heatGainKW"`
	CoolingKW         float64       `json:"coolingKW"`
	MinutesToSetpoint float64       `json:"minutesToSetpoint"`
}

// ACState is the computed state of an AC unit.
type ACState struct {
	SetpointC         float64 `json:"setpointC"`
	CoolingOutputKW   float64 `json:"coolingOutputKW"`
	COP               float64 `json:"cop"`
	CompressorLoadPct float64 `json:"compressorLoadPct"`
	RuntimeMinutes    float64 `json:"runtimeMinutes"`
	CyclesToday       int     `json:"cyclesToday"`
}

// EVState is the computed state of an EV charger.
type EVState struct {
	SOCPct              float64 `json:"socPct"`
	BatteryCapacityKWH  float64 `json:"batteryCapacityKWH"`
	MaxChargeRateKW     float64 `json:"maxChargeRateKW"`
	EnergyDeliveredKWH  float64 `json:"energyDeliveredKWH"`
	TimeToTargetMinutes float64 `json:"timeToTargetMinutes"`
}

// WaterHeaterState is the computed state of a tank water heater.
type WaterHeaterState struct {
	WaterTempC      float64 `json:"waterTempC"`
	TargetTempC     float64 `json:"targetTempC"`
	ElementOn       bool    `json:"elementOn"`
	HeatLossRateKW  float64 `json:"heatLossRateKW"`
	EnergyStoredKWH float64 `json:"energyStoredKWH"`
}

// WasherState is the computed state of a washer/dryer.
type WasherState struct {
	CyclePhase         string  `json:"cyclePhase"`
	ProgressPct        float64 `json:"progressPct"`
	TimeRemainingMin   float64 `json:"timeRemainingMin"`
	EnergyThisCycleKWH float64 `json:"energyThisCycleKWH"`
}

// DeviceState is a device's computed state for one snapshot. Exactly one of
// the kind-specific fields is set, matching Kind.
type DeviceState struct {
	DeviceID string     `json:"deviceID"`
	RoomID   string     `json:"roomID"`
	Kind     DeviceKind `json:"kind"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	PowerKW  float64    `json:"powerKW"`

	AC          *ACState          `json:"ac,omitempty"`
	EV          *EVState          `json:"ev,omitempty"`
	WaterHeater *WaterHeaterState `json:"waterHeater,omitempty"`
	Washer      *WasherState      `json:"washer,omitempty"`
}

// EnergyTotals are the twin's running energy accumulators.
type EnergyTotals struct {
	CurrentPowerKW float64 `json:"currentPowerKW"`
	TotalEnergyKWH float64 `json:"totalEnergyKWH"`
	Cost           float64 `json:"cost"`
	CO2Kg          float64 `json:"co2Kg"`
	PeakPowerKW    float64 `json:"peakPowerKW"`
}

// ComfortSummary aggregates comfort compliance over the conditioned rooms.
type ComfortSummary struct {
	CompliancePct    float64 `json:"compliancePct"`
	RoomsComfortable int     `json:"roomsComfortable"`
	RoomsTotal       int     `json:"roomsTotal"`
}

// TwinSnapshot is the complete computed state of the twin at one step.
// It is rebuilt whole on every step and never partially updated.
type TwinSnapshot struct {
	Timestamp     time.Time        `json:"timestamp"`
	HomeName      string           `json:"homeName"`
	Environment   EnvironmentState `json:"environment"`
	Rooms         []RoomState      `json:"rooms"`
	Devices       []DeviceState    `json:"devices"`
	Energy        EnergyTotals     `json:"energy"`
	Comfort       ComfortSummary   `json:"comfort"`
	StepCount     uint64           `json:"stepCount"`
	UptimeSeconds float64          `json:"uptimeSeconds"`
}

// ActionSource tags how an action came to be applied.
type ActionSource string

const (
	// SourceRecommended means the action was proposed but not applied.
	SourceRecommended ActionSource = "recommended"
	SourceAutopilot   ActionSource = "autopilot"
	SourceManual      ActionSource = "manual"
)

// ManeuverKind identifies one of the fixed optimization maneuvers.
type ManeuverKind string

const (
	ManeuverACPrecool    ManeuverKind = "ac_precool"
	ManeuverEVShift      ManeuverKind = "ev_shift"
	ManeuverWaterPreheat ManeuverKind = "water_preheat"
	ManeuverWasherDelay  ManeuverKind = "washer_delay"
)

// Maneuver describes the concrete schedule change behind an Action.
type Maneuver struct {
	Kind          ManeuverKind `json:"kind"`
	DeviceID      string       `json:"deviceID,omitempty"`
	PrecoolToC    float64      `json:"precoolToC,omitempty"`
	PeakSetpointC float64      `json:"peakSetpointC,omitempty"`
	WindowStart   string       `json:"windowStart,omitempty"` // HH:MM
	WindowEnd     string       `json:"windowEnd,omitempty"`   // HH:MM
	TargetSOCPct  float64      `json:"targetSOCPct,omitempty"`
	ShiftMinutes  int          `json:"shiftMinutes,omitempty"`
}

// Action is an immutable record of one recommendation or applied maneuver.
type Action struct {
	ID                 string       `json:"id"`
	Timestamp          time.Time    `json:"timestamp"`
	Title              string       `json:"title"`
	Reason             string       `json:"reason"`
	EstimatedKWHSaved  float64      `json:"estimatedKWHSaved"`
	EstimatedCostSaved float64      `json:"estimatedCostSaved"`
	EstimatedCO2Saved  float64      `json:"estimatedCO2Saved"`
	Confidence         float64      `json:"confidence"` // [0,1]
	Source             ActionSource `json:"source"`
	Maneuver           Maneuver     `json:"maneuver"`
	AppliedAt          time.Time    `json:"appliedAt,omitzero"`
}

// ForecastPoint is one hourly point of the load forecast.
type ForecastPoint struct {
	TS          time.Time `json:"ts"`
	PredictedKW float64   `json:"predictedKW"`
	LowerKW     float64   `json:"lowerKW"`
	UpperKW     float64   `json:"upperKW"`
}

// SimulationResult compares baseline and optimized hourly load curves.
type SimulationResult struct {
	TS          []time.Time `json:"ts"`
	BaselineKW  []float64   `json:"baselineKW"`
	OptimizedKW []float64   `json:"optimizedKW"`
	DeltaKW     []float64   `json:"deltaKW"`
}

// KPIs are the running savings totals surfaced to the user.
type KPIs struct {
	KWHSaved             float64 `json:"kwhSaved"`
	CurrencySaved        float64 `json:"currencySaved"`
	CO2AvoidedKg         float64 `json:"co2AvoidedKg"`
	ComfortCompliancePct float64 `json:"comfortCompliancePct"`
}
