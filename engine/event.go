package engine

import (
	"math"

	"github.com/d1nch8g/cuecam/sound"
)

// Category is a color label bound to one cue asset
type Category string

const (
	Red    Category = "red"
	Green  Category = "green"
	Blue   Category = "blue"
	Yellow Category = "yellow"
)

// Categories lists every known category in a stable order
var Categories = []Category{Red, Green, Blue, Yellow}

func (c Category) Valid() bool {
	switch c {
	case Red, Green, Blue, Yellow:
		return true
	}
	return false
}

// Size levels reported by the detector
const (
	Large  = 15
	Medium = 10
	Small  = 5
)

// Event asks the engine to play the cue of a category
type Event struct {
	Category  Category
	Magnitude int
}

// Tier is the playback shaping applied for a magnitude
type Tier struct {
	Rate       float64
	Multiplier float64
}

var defaultTier = Tier{Rate: 1.0, Multiplier: 1.0}

var tiers = map[int]Tier{
	Large:  {Rate: 1.1, Multiplier: 1.0},
	Medium: {Rate: 1.0, Multiplier: 0.66},
	Small:  {Rate: 0.9, Multiplier: 0.33},
}

// TierFor returns the tier of a magnitude, or rate 1 and multiplier 1 for unknown sizes.
func TierFor(magnitude int) Tier {
	if t, ok := tiers[magnitude]; ok {
		return t
	}
	return defaultTier
}

// SilenceDb is the gain used for silence instead of -Inf
const SilenceDb = sound.SilenceDb

// PercentToDb converts a linear fraction of full scale to decibels
func PercentToDb(fraction float64) float64 {
	if fraction <= 0 || math.IsNaN(fraction) {
		return SilenceDb
	}
	return 20 * math.Log10(fraction)
}
