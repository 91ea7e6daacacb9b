package display

import (
	"fmt"
	"io"

	"smart-energy/internal/models"
	"smart-energy/internal/simulation"
)

// Overall is abnormal as soon as one parameter is out of range.
func Overall(parameters []models.ParameterSnapshot) models.Status {
	for _, p := range parameters {
		if p.Status != models.StatusNormal {
			return models.StatusAbnormal
		}
	}
	return models.StatusNormal
}

// Render writes a snapshot as a colored dashboard.
func Render(w io.Writer, snapshot simulation.Snapshot) error {
	lines := []string{
		fmt.Sprintf("Tick %d", snapshot.Tick),
		fmt.Sprintf("  Wind power:      %s", Colorize(PowerLevel(snapshot.WindPower), fmt.Sprintf("%6.2f kW", snapshot.WindPower))),
		fmt.Sprintf("  Solar power:     %s", Colorize(PowerLevel(snapshot.SolarPower), fmt.Sprintf("%6.2f kW", snapshot.SolarPower))),
		fmt.Sprintf("  Total power:     %s", Colorize(PowerLevel(snapshot.TotalPower), fmt.Sprintf("%6.2f kW", snapshot.TotalPower))),
		fmt.Sprintf("  Household power: %6.2f kW", snapshot.HouseholdPower),
		fmt.Sprintf("  Battery:         %s", Colorize(BatteryLevel(snapshot.BatteryPercentage), fmt.Sprintf("%6.2f %%", snapshot.BatteryPercentage))),
	}

	for _, p := range snapshot.SecurityParameters {
		lines = append(lines, fmt.Sprintf("  %-16s %s [%.1f, %.1f]",
			p.Name+":",
			Colorize(StatusLevel(p.Status), fmt.Sprintf("%6.2f %s", p.Value, p.Unit)),
			p.MinValue, p.MaxValue))
	}

	status := Overall(snapshot.SecurityParameters)
	lines = append(lines, "  "+Colorize(StatusLevel(status), StatusText(status)))

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
