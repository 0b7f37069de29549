// Package seed derives stable integer seeds from entity identifiers so
// fallback synthesis produces the same base metrics for the same region or
// city on every regeneration.
package seed

// Sum returns the sum of the character codes of id. Pure and deterministic.
func Sum(id string) int {
	total := 0
	for _, r := range id {
		total += int(r)
	}
	return total
}

// CityModifier maps a city id to a load modifier in [0.7, 1.3).
// Used to scale a region's load down to a plausible city share.
func CityModifier(id string) float64 {
	return 0.7 + float64(Sum(id)%60)/100
}
