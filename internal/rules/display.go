package rules

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName renders a jurisdiction identifier for humans. A trailing
// two-letter segment is treated as a state code:
//
//	"austin_tx"      -> "Austin, TX"
//	"san_antonio_tx" -> "San Antonio, TX"
//	"austin"         -> "Austin"
func DisplayName(jurisdiction string) string {
	parts := strings.Split(strings.TrimSpace(jurisdiction), "_")
	if len(parts) >= 2 && len(parts[len(parts)-1]) == 2 {
		city := strings.Join(parts[:len(parts)-1], " ")
		return title(city) + ", " + strings.ToUpper(parts[len(parts)-1])
	}
	return title(strings.Join(parts, " "))
}

// CityKey returns the city portion of a jurisdiction identifier
// ("austin_tx" -> "austin"), used to name map sources.
func CityKey(jurisdiction string) string {
	parts := strings.Split(strings.TrimSpace(jurisdiction), "_")
	if len(parts) >= 2 && len(parts[len(parts)-1]) == 2 {
		parts = parts[:len(parts)-1]
	}
	return strings.ToLower(strings.Join(parts, "_"))
}

// title is per call because a Caser must not be shared across goroutines.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
