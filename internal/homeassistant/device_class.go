package homeassistant

import "encoding/json"

type DeviceClass int64

const (
	NoDeviceClass DeviceClass = iota
	Battery
	Current
	Enum
	Power
	Temperature
	Voltage
)

func (s DeviceClass) String() string {
	switch s {
	case NoDeviceClass:
		return ""
	case Battery:
		return "battery"
	case Current:
		return "current"
	case Enum:
		return "enum"
	case Power:
		return "power"
	case Temperature:
		return "temperature"
	case Voltage:
		return "voltage"
	}
	return "unknown"
}

func (s DeviceClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DeviceClassFor picks the device class matching a measurement unit.
func DeviceClassFor(unit Unit) DeviceClass {
	switch unit {
	case W, KW:
		return Power
	case V:
		return Voltage
	case A:
		return Current
	case Celsius:
		return Temperature
	case Percent:
		return Battery
	}
	return NoDeviceClass
}
