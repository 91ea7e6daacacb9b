package simulation

import (
	"math"
	"sync"

	"smart-energy/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	FieldWindPower         models.Field = "wind_power"
	FieldSolarPower        models.Field = "solar_power"
	FieldTotalPower        models.Field = "total_power"
	FieldHouseholdPower    models.Field = "household_power"
	FieldBatteryCapacity   models.Field = "battery_capacity"
	FieldBatteryPercentage models.Field = "battery_percentage"

	// FieldEnergySystem is announced by Refresh: the whole state should be re-read.
	FieldEnergySystem models.Field = "energy_system"
)

const (
	initialWindMax      = 10.0 // kW
	initialSolarMax     = 15.0 // kW
	initialHouseholdMax = 8.0  // kW

	windStep      = 2.0 // ±1 kW
	solarStep     = 3.0 // ±1.5 kW
	householdStep = 1.5 // ±0.75 kW

	batteryMax       = 100.0
	chargeEfficiency = 0.1

	parameterJitter = 0.05 // fraction of the parameter's max value
)

// ParameterDefinition describes one monitored safety parameter.
type ParameterDefinition struct {
	Name     string
	Value    float64
	MinValue float64
	MaxValue float64
	Unit     string
}

// DefaultParameters are the parameters every EnergySystem monitors, in
// display order.
var DefaultParameters = []ParameterDefinition{
	{Name: "temperature", Value: 25, MinValue: 0, MaxValue: 60, Unit: "°C"},
	{Name: "voltage", Value: 220, MinValue: 210, MaxValue: 230, Unit: "V"},
	{Name: "current", Value: 5, MinValue: 0, MaxValue: 15, Unit: "A"},
}

// EnergySystem owns the simulated generation, consumption and battery
// readings. Tick advances them one step; it is the only mutator.
type EnergySystem struct {
	logger *logrus.Logger
	rng    Source

	// dispatch serialises whole ticks and refreshes including their
	// notifications, mutex guards the readings.
	dispatch sync.Mutex
	mutex    sync.RWMutex

	windPower         float64
	solarPower        float64
	totalPower        float64
	householdPower    float64
	batteryCapacity   float64
	batteryPercentage float64
	ticks             uint64

	parameters []*models.SecurityParameter

	pending  []models.Field
	notifier models.Notifier
}

func NewEnergySystem(rng Source, logger *logrus.Logger) *EnergySystem {
	if rng == nil {
		rng = NewSource(0)
	}

	e := &EnergySystem{
		logger: logger,
		rng:    rng,
	}

	for _, def := range DefaultParameters {
		e.parameters = append(e.parameters,
			models.NewSecurityParameter(def.Name, def.Value, def.MinValue, def.MaxValue, def.Unit))
	}

	e.setWindPower(rng.Float64() * initialWindMax)
	e.setSolarPower(rng.Float64() * initialSolarMax)
	e.setHouseholdPower(rng.Float64() * initialHouseholdMax)
	e.setBatteryCapacity(batteryMax)
	e.setBatteryPercentage(e.batteryCapacity)
	e.pending = nil

	logger.Infof("Energy system initialized: wind=%.2fkW solar=%.2fkW household=%.2fkW battery=%.0f",
		e.windPower, e.solarPower, e.householdPower, e.batteryCapacity)

	return e
}

// Tick advances the simulation by one step. Observers are notified after the
// whole step is committed, so they never see a partial update. Listeners
// must not call Tick or Refresh themselves.
func (e *EnergySystem) Tick() {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()

	e.mutex.Lock()
	e.stepEnergy()
	parameterChanges := make([][]models.Field, len(e.parameters))
	for i, p := range e.parameters {
		parameterChanges[i] = p.Jitter(e.rng.Float64(), parameterJitter)
	}
	e.ticks++
	changed := e.pending
	e.pending = nil
	tick := e.ticks
	e.mutex.Unlock()

	e.logger.Debugf("Tick %d: %d field changes", tick, len(changed))

	e.notifier.Publish(changed...)
	for i, p := range e.parameters {
		p.Notify(parameterChanges[i]...)
	}
}

func (e *EnergySystem) stepEnergy() {
	e.setWindPower(math.Max(0, e.windPower+(e.rng.Float64()-0.5)*windStep))
	e.setSolarPower(math.Max(0, e.solarPower+(e.rng.Float64()-0.5)*solarStep))

	// Generation is balanced against the household load of the previous
	// step; the load is walked afterwards.
	delta := e.totalPower - e.householdPower
	if delta > 0 {
		e.setBatteryCapacity(math.Min(batteryMax, e.batteryCapacity+delta*chargeEfficiency))
	} else {
		drawn := math.Min(math.Abs(delta), e.batteryCapacity)
		e.setBatteryCapacity(e.batteryCapacity - drawn)
	}

	e.setHouseholdPower(math.Max(0, e.householdPower+(e.rng.Float64()-0.5)*householdStep))
	e.setBatteryPercentage(e.batteryCapacity)
}

// Refresh re-announces the current state without changing it.
func (e *EnergySystem) Refresh() {
	e.dispatch.Lock()
	defer e.dispatch.Unlock()

	e.logger.Debug("Refresh requested")
	e.notifier.Publish(FieldEnergySystem)
}

func (e *EnergySystem) Subscribe(fn models.Listener) func() {
	return e.notifier.Subscribe(fn)
}

func (e *EnergySystem) setWindPower(value float64) {
	if e.windPower == value {
		return
	}
	e.windPower = value
	e.changed(FieldWindPower)
	e.updateTotalPower()
}

func (e *EnergySystem) setSolarPower(value float64) {
	if e.solarPower == value {
		return
	}
	e.solarPower = value
	e.changed(FieldSolarPower)
	e.updateTotalPower()
}

func (e *EnergySystem) updateTotalPower() {
	total := e.windPower + e.solarPower
	if e.totalPower == total {
		return
	}
	e.totalPower = total
	e.changed(FieldTotalPower)
}

func (e *EnergySystem) setHouseholdPower(value float64) {
	if e.householdPower == value {
		return
	}
	e.householdPower = value
	e.changed(FieldHouseholdPower)
}

func (e *EnergySystem) setBatteryCapacity(value float64) {
	if e.batteryCapacity == value {
		return
	}
	e.batteryCapacity = value
	e.changed(FieldBatteryCapacity)
}

func (e *EnergySystem) setBatteryPercentage(value float64) {
	if e.batteryPercentage == value {
		return
	}
	e.batteryPercentage = value
	e.changed(FieldBatteryPercentage)
}

func (e *EnergySystem) changed(field models.Field) {
	e.pending = append(e.pending, field)
}

func (e *EnergySystem) WindPower() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.windPower
}

func (e *EnergySystem) SolarPower() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.solarPower
}

func (e *EnergySystem) TotalPower() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.totalPower
}

func (e *EnergySystem) HouseholdPower() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.householdPower
}

func (e *EnergySystem) BatteryCapacity() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.batteryCapacity
}

func (e *EnergySystem) BatteryPercentage() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.batteryPercentage
}

func (e *EnergySystem) Ticks() uint64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.ticks
}

// SecurityParameters returns the monitored parameters in display order.
func (e *EnergySystem) SecurityParameters() []*models.SecurityParameter {
	return append([]*models.SecurityParameter(nil), e.parameters...)
}

// Snapshot is a consistent copy of every reading after a complete tick.
type Snapshot struct {
	Tick               uint64                     `json:"tick"`
	WindPower          float64                    `json:"wind_power"`
	SolarPower         float64                    `json:"solar_power"`
	TotalPower         float64                    `json:"total_power"`
	HouseholdPower     float64                    `json:"household_power"`
	BatteryCapacity    float64                    `json:"battery_capacity"`
	BatteryPercentage  float64                    `json:"battery_percentage"`
	SecurityParameters []models.ParameterSnapshot `json:"security_parameters"`
}

func (e *EnergySystem) Snapshot() Snapshot {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	s := Snapshot{
		Tick:               e.ticks,
		WindPower:          e.windPower,
		SolarPower:         e.solarPower,
		TotalPower:         e.totalPower,
		HouseholdPower:     e.householdPower,
		BatteryCapacity:    e.batteryCapacity,
		BatteryPercentage:  e.batteryPercentage,
		SecurityParameters: make([]models.ParameterSnapshot, 0, len(e.parameters)),
	}
	for _, p := range e.parameters {
		s.SecurityParameters = append(s.SecurityParameters, p.Snapshot())
	}
	return s
}

// Value returns the reading named by field.
func (s Snapshot) Value(field models.Field) (float64, bool) {
	switch field {
	case FieldWindPower:
		return s.WindPower, true
	case FieldSolarPower:
		return s.SolarPower, true
	case FieldTotalPower:
		return s.TotalPower, true
	case FieldHouseholdPower:
		return s.HouseholdPower, true
	case FieldBatteryCapacity:
		return s.BatteryCapacity, true
	case FieldBatteryPercentage:
		return s.BatteryPercentage, true
	}
	return 0, false
}

// ReadingFields lists the system's own readings in publication order.
var ReadingFields = []models.Field{
	FieldWindPower,
	FieldSolarPower,
	FieldTotalPower,
	FieldHouseholdPower,
	FieldBatteryCapacity,
	FieldBatteryPercentage,
}
