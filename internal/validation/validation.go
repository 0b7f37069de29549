package validation

import (
	"errors"
	"strings"
)

// ErrCityIDEmpty is returned when the city id is empty or whitespace-only after trim.
var ErrCityIDEmpty = errors.New("city id is required")

// ErrCityIDTooLong is returned when the city id exceeds the maximum length.
var ErrCityIDTooLong = errors.New("city id too long")

// ErrCityIDInvalidChars is returned when the city id contains disallowed characters.
var ErrCityIDInvalidChars = errors.New("city id contains invalid characters")

// ErrUnknownTimeframe is returned for timeframe values other than 24h, 7d, 30d.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

const maxCityIDLen = 16

// ValidateCityID trims and lowercases the input and restricts it to ASCII
// letters. Returns the normalized id or an error suitable for 400
// INVALID_CITY responses. Whether the id names a known city is the service
// layer's call.
func ValidateCityID(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", ErrCityIDEmpty
	}
	if len(s) > maxCityIDLen {
		return "", ErrCityIDTooLong
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return "", ErrCityIDInvalidChars
		}
	}
	return s, nil
}

// ValidateTimeframe normalizes a history timeframe. Empty input defaults to
// 24h; anything other than 24h, 7d, or 30d is rejected.
func ValidateTimeframe(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "24h", nil
	}
	switch s {
	case "24h", "7d", "30d":
		return s, nil
	}
	return "", ErrUnknownTimeframe
}
