// Package synth generates grid records locally: severity classification,
// diurnal demand forecasts, vulnerability and recommendation entries, and
// the hash-seeded fallback records served when the upstream source fails.
package synth

import (
	"errors"

	"github.com/gridwatch/grid-status-service/internal/models"
)

// ErrInvalidCapacity is returned when capacity is zero or negative.
var ErrInvalidCapacity = errors.New("capacity must be positive")

// Classify maps a load/capacity pair to a severity tier. Both thresholds
// are strict: utilization must exceed 0.90 for critical and 0.75 for
// warning. Returns ErrInvalidCapacity when capacity <= 0; callers normally
// guarantee a positive capacity at construction time.
func Classify(load, capacity float64) (models.Status, error) {
	if capacity <= 0 {
		return models.StatusNormal, ErrInvalidCapacity
	}
	utilization := load / capacity
	switch {
	case utilization > 0.90:
		return models.StatusCritical, nil
	case utilization > 0.75:
		return models.StatusWarning, nil
	default:
		return models.StatusNormal, nil
	}
}
