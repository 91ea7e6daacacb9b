package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

const (
	FieldValue    Field = "value"
	FieldMinValue Field = "min_value"
	FieldMaxValue Field = "max_value"
	FieldIsNormal Field = "is_normal"
)

type Status int

const (
	StatusNormal Status = iota
	StatusAbnormal
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusAbnormal:
		return "abnormal"
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "normal":
		*s = StatusNormal
	case "abnormal":
		*s = StatusAbnormal
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// SecurityParameter is a monitored quantity with a valid operating band.
// Value is clamped into [MinValue, MaxValue] on every write; bound changes
// leave the stored value untouched.
type SecurityParameter struct {
	name string
	unit string

	value    float64
	minValue float64
	maxValue float64

	mutex    sync.RWMutex
	notifier Notifier
}

type ParameterSnapshot struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`
	Unit     string  `json:"unit"`
	IsNormal bool    `json:"is_normal"`
	Status   Status  `json:"status"`
}

func NewSecurityParameter(name string, value, minValue, maxValue float64, unit string) *SecurityParameter {
	return &SecurityParameter{
		name:     name,
		unit:     unit,
		value:    clamp(value, minValue, maxValue),
		minValue: minValue,
		maxValue: maxValue,
	}
}

func (p *SecurityParameter) Name() string { return p.name }
func (p *SecurityParameter) Unit() string { return p.unit }

func (p *SecurityParameter) Value() float64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.value
}

func (p *SecurityParameter) MinValue() float64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.minValue
}

func (p *SecurityParameter) MaxValue() float64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.maxValue
}

// IsNormal is evaluated on every call. With inverted bounds no value can
// satisfy both, so it reports false.
func (p *SecurityParameter) IsNormal() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.isNormal()
}

func (p *SecurityParameter) isNormal() bool {
	return p.value >= p.minValue && p.value <= p.maxValue
}

func (p *SecurityParameter) Status() Status {
	if p.IsNormal() {
		return StatusNormal
	}
	return StatusAbnormal
}

func (p *SecurityParameter) SetValue(value float64) {
	p.mutex.Lock()
	changed := p.commitValue(clamp(value, p.minValue, p.maxValue))
	p.mutex.Unlock()

	p.notifier.Publish(changed...)
}

func (p *SecurityParameter) SetMinValue(minValue float64) {
	p.mutex.Lock()
	var changed []Field
	if p.minValue != minValue {
		p.minValue = minValue
		changed = []Field{FieldMinValue, FieldIsNormal}
	}
	p.mutex.Unlock()

	p.notifier.Publish(changed...)
}

func (p *SecurityParameter) SetMaxValue(maxValue float64) {
	p.mutex.Lock()
	var changed []Field
	if p.maxValue != maxValue {
		p.maxValue = maxValue
		changed = []Field{FieldMaxValue, FieldIsNormal}
	}
	p.mutex.Unlock()

	p.notifier.Publish(changed...)
}

// Jitter moves the value by (draw-0.5) * maxValue * amplitude, clamped to
// the band. The changed fields are returned instead of published so the
// caller can announce them once its own update is complete.
func (p *SecurityParameter) Jitter(draw, amplitude float64) []Field {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	variation := (draw - 0.5) * p.maxValue * amplitude
	return p.commitValue(clamp(p.value+variation, p.minValue, p.maxValue))
}

func (p *SecurityParameter) commitValue(value float64) []Field {
	if p.value == value {
		return nil
	}
	p.value = value
	return []Field{FieldValue, FieldIsNormal}
}

// Notify publishes fields to this parameter's subscribers.
func (p *SecurityParameter) Notify(fields ...Field) {
	p.notifier.Publish(fields...)
}

func (p *SecurityParameter) Subscribe(fn Listener) func() {
	return p.notifier.Subscribe(fn)
}

func (p *SecurityParameter) Snapshot() ParameterSnapshot {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	normal := p.isNormal()
	status := StatusNormal
	if !normal {
		status = StatusAbnormal
	}

	return ParameterSnapshot{
		Name:     p.name,
		Value:    p.value,
		MinValue: p.minValue,
		MaxValue: p.maxValue,
		Unit:     p.unit,
		IsNormal: normal,
		Status:   status,
	}
}

func clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}
