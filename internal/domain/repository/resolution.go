package repository

import "DeepInfo/internal/domain/models"

// DefaultResolutionValue is the resolution a chart starts with.
const DefaultResolutionValue = "_1d"

// resolutions is the ordered registry of supported candle sizes.
var resolutions = []models.Resolution{
	{Label: "1m", Value: "_1m", Seconds: 60},
	{Label: "5m", Value: "_5m", Seconds: 5 * 60},
	{Label: "15m", Value: "_15m", Seconds: 15 * 60},
	{Label: "30m", Value: "_30m", Seconds: 30 * 60},
	{Label: "1h", Value: "_1h", Seconds: 3600},
	{Label: "2h", Value: "_2h", Seconds: 2 * 3600},
	{Label: "4h", Value: "_4h", Seconds: 4 * 3600},
	{Label: "6h", Value: "_6h", Seconds: 6 * 3600},
	{Label: "12h", Value: "_12h", Seconds: 12 * 3600},
	{Label: "1d", Value: "_1d", Seconds: 86400},
	{Label: "1w", Value: "_7d", Seconds: 7 * 86400},
}

// Resolutions returns a copy of the registry in display order.
func Resolutions() []models.Resolution {
	out := make([]models.Resolution, len(resolutions))
	copy(out, resolutions)
	return out
}

// FindResolution looks up a resolution by value.
func FindResolution(value string) (models.Resolution, bool) {
	for _, r := range resolutions {
		if r.Value == value {
			return r, true
		}
	}
	return models.Resolution{}, false
}

// DefaultResolution returns the registry entry matching DefaultResolutionValue.
func DefaultResolution() models.Resolution {
	r, _ := FindResolution(DefaultResolutionValue)
	return r
}

// NormalizeResolution converts a raw value to a registry entry (or the default).
func NormalizeResolution(s string) models.Resolution {
	if r, ok := FindResolution(s); ok {
		return r
	}
	return DefaultResolution()
}
