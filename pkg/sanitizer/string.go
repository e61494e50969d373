package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims surrounding whitespace and collapses internal runs
// of whitespace into single spaces.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizePatientName cleans a patient name without changing its casing;
// names are displayed back to the patient as entered.
func NormalizePatientName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeServiceLabel cleans a free-form service label and lowercases it so
// equivalent labels compare equal.
func NormalizeServiceLabel(label string) string {
	p := Pipeline{
		TrimAndNormalize,
		strings.ToLower,
	}
	return p.Apply(label)
}
