// Package units converts the memory figures reported by the telemetry API.
package units

import (
	"fmt"
	"strings"
	"unicode"

	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	Mi = "Mi"
	Gi = "Gi"

	// MiPerGi is the number of mebibytes in a gibibyte.
	MiPerGi = 1024
)

// ConvertGiToMi converts gibibytes to mebibytes.
func ConvertGiToMi(gi float64) float64 {
	return gi * MiPerGi
}

// NormalizeMemoryValue returns value in Mi. Values in any unit other than Gi are
// assumed to be Mi already.
func NormalizeMemoryValue(value float64, unit string) float64 {
	if unit == Gi {
		return ConvertGiToMi(value)
	}
	return value
}

// FormatMemory renders value with two decimals. Gi values keep their unit; Mi values of
// 1024 and above are shown in Gi.
func FormatMemory(value float64, unit string) string {
	switch {
	case unit == Gi:
		return fmt.Sprintf("%.2f Gi", value)
	case value >= MiPerGi:
		return fmt.Sprintf("%.2f Gi", value/MiPerGi)
	default:
		return fmt.Sprintf("%.2f Mi", value)
	}
}

// ParseQuantityMi parses a Kubernetes quantity such as "512Mi", "2Gi" or "1.5G" and
// returns it in Mi. A bare number is taken as Mi, the API's default unit.
func ParseQuantityMi(s string) (float64, error) {
	s = strings.TrimSpace(s)
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("parsing memory quantity %q: %w", s, err)
	}
	if strings.IndexFunc(s, unicode.IsLetter) < 0 {
		return q.AsApproximateFloat64(), nil
	}
	return q.AsApproximateFloat64() / (1024 * 1024), nil
}

// HumanizeQuantity formats a quantity string for display, or returns it unchanged when it
// does not parse.
func HumanizeQuantity(s string) string {
	mi, err := ParseQuantityMi(s)
	if err != nil {
		return s
	}
	return FormatMemory(mi, Mi)
}
