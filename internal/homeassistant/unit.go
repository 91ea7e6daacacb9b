package homeassistant

import "encoding/json"

type Unit int64

const (
	None Unit = iota
	W
	KW
	V
	A
	Percent
	Celsius
)

func (s Unit) String() string {
	switch s {
	case None:
		return ""
	case W:
		return "W"
	case KW:
		return "kW"
	case V:
		return "V"
	case A:
		return "A"
	case Percent:
		return "%"
	case Celsius:
		return "°C"
	}
	return "unknown"
}

func (s Unit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnitFor maps a display unit string to its Home Assistant unit.
func UnitFor(unit string) Unit {
	switch unit {
	case "W":
		return W
	case "kW":
		return KW
	case "V":
		return V
	case "A":
		return A
	case "%":
		return Percent
	case "°C":
		return Celsius
	}
	return None
}
