package security

import (
	"fmt"
	"strings"

	"parkwatch-service/internal/detector"
)

// VehicleContext describes the sighted vehicle for alert phrasing.
type VehicleContext struct {
	ZoneName     string `json:"zoneName"`
	VehicleColor string `json:"vehicleColor,omitempty"`
	VehicleType  string `json:"vehicleType,omitempty"`
	PlateNumber  string `json:"plateNumber,omitempty"`
}

// BuildAlertText renders the spoken security announcement for a set of
// threat findings. The sentence structure is fixed: attention phrase,
// vehicle description, de-duplicated threat list, urgency phrase.
func BuildAlertText(threats []detector.Detection, vehicle VehicleContext) string {
	parts := []string{"Attention security."}

	var desc []string
	if vehicle.VehicleColor != "" {
		desc = append(desc, vehicle.VehicleColor)
	}
	if vehicle.VehicleType != "" {
		desc = append(desc, vehicle.VehicleType)
	} else if len(desc) > 0 {
		desc = append(desc, "vehicle")
	}

	switch {
	case len(desc) > 0 && vehicle.PlateNumber != "":
		parts = append(parts, fmt.Sprintf("%s near %s, plate %s.", strings.Join(desc, " "), vehicle.ZoneName, vehicle.PlateNumber))
	case len(desc) > 0:
		parts = append(parts, fmt.Sprintf("%s near %s.", strings.Join(desc, " "), vehicle.ZoneName))
	case vehicle.PlateNumber != "":
		parts = append(parts, fmt.Sprintf("vehicle near %s, plate %s.", vehicle.ZoneName, vehicle.PlateNumber))
	default:
		parts = append(parts, fmt.Sprintf("Activity detected near %s.", vehicle.ZoneName))
	}

	labels := uniqueLowerLabels(threats)
	switch {
	case len(labels) == 1:
		parts = append(parts, fmt.Sprintf("Possible %s detected.", labels[0]))
	case len(labels) > 1:
		last := labels[len(labels)-1]
		parts = append(parts, fmt.Sprintf("Possible %s and %s detected.", strings.Join(labels[:len(labels)-1], ", "), last))
	}

	parts = append(parts, "Please respond immediately.")
	return strings.Join(parts, " ")
}

func uniqueLowerLabels(threats []detector.Detection) []string {
	seen := make(map[string]struct{}, len(threats))
	var labels []string
	for _, t := range threats {
		label := strings.ToLower(t.Label)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}
