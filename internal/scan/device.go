package scan

import (
	"sort"
	"strings"
)

var rearLabelHints = []string{"back", "rear", "environment"}

// IsRearFacing classifies a camera from its facing hint or, failing that, its label.
func IsRearFacing(facing Facing, label string) bool {
	switch facing {
	case FacingEnvironment:
		return true
	case FacingUser:
		return false
	}
	lower := strings.ToLower(label)
	for _, hint := range rearLabelHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// SortDevices classifies devices and orders rear-facing ones first, keeping
// platform order otherwise.
func SortDevices(devices []Device) []Device {
	out := make([]Device, len(devices))
	copy(out, devices)
	for i := range out {
		out[i].RearFacing = IsRearFacing(out[i].Facing, out[i].Label)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RearFacing && !out[j].RearFacing
	})
	return out
}
