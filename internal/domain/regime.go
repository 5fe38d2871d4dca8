package domain

import "fmt"

// Regime is a hydrologic regime label assigned to a reach.
type Regime string

const (
	RegimeRainfall      Regime = "Rainfall"
	RegimeRainSnow      Regime = "Rain-Snow"
	RegimeGroundwater   Regime = "Groundwater"
	RegimeSnowRain      Regime = "Snow-Rain"
	RegimeUltraSnowmelt Regime = "Ultra-Snowmelt"
	RegimeSnowmelt      Regime = "Snowmelt"
	RegimeSnowAndRain   Regime = "Snow and Rain"
)

var regimes = []Regime{
	RegimeRainfall,
	RegimeRainSnow,
	RegimeGroundwater,
	RegimeSnowRain,
	RegimeUltraSnowmelt,
	RegimeSnowmelt,
	RegimeSnowAndRain,
}

// Regimes returns the closed set of labels in a fixed order.
func Regimes() []Regime {
	out := make([]Regime, len(regimes))
	copy(out, regimes)
	return out
}

// Valid reports whether r belongs to the closed label set.
func (r Regime) Valid() bool {
	for _, known := range regimes {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRegime converts a label string into a Regime.
func ParseRegime(s string) (Regime, error) {
	r := Regime(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown regime %q", s)
	}
	return r, nil
}

func (r Regime) String() string { return string(r) }
