package service

import (
	"math"
	"time"

	"github.com/layer-3/verigate/core"
)

const (
	// SliderThreshold is the share of the usable track a single drag must cover
	SliderThreshold = 0.95

	// PuzzleTolerance is the maximum drop distance from the slot, in pixels
	PuzzleTolerance = 30.0

	// ClickCooldown is how long submit stays disabled after a wrong selection
	ClickCooldown = 1500 * time.Millisecond
)

// DefaultClickBanks are the instruction/target sets of the click challenge
var DefaultClickBanks = []core.ClickBank{
	{
		Instruction: "Select every car, bus and train",
		Items:       []string{"🚗", "🚲", "🚌", "✈️", "🚢", "🚁", "🚂", "🏍️"},
		Targets:     []string{"🚗", "🚌", "🚂"},
	},
	{
		Instruction: "Select all the fruit",
		Items:       []string{"🍎", "🥕", "🍌", "🍇", "🥦", "🍉", "🌽", "🍊"},
		Targets:     []string{"🍎", "🍌", "🍇", "🍉", "🍊"},
	},
	{
		Instruction: "Select all the animals",
		Items:       []string{"🐶", "🌳", "🐱", "🚗", "🐭", "🏠", "🐰", "⚽"},
		Targets:     []string{"🐶", "🐱", "🐭", "🐰"},
	},
}

// EngineConfig holds the tunables of the challenge engine
type EngineConfig struct {
	SliderThreshold float64
	PuzzleTolerance float64
	ClickCooldown   time.Duration
	ClickBanks      []core.ClickBank
	PuzzleSlot      core.Point
	PuzzleStart     core.Point
}

// DefaultEngineConfig returns the standard challenge parameters
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SliderThreshold: SliderThreshold,
		PuzzleTolerance: PuzzleTolerance,
		ClickCooldown:   ClickCooldown,
		ClickBanks:      DefaultClickBanks,
		PuzzleSlot:      core.Point{X: 180, Y: 40},
		PuzzleStart:     core.Point{X: 10, Y: 40},
	}
}

// sliderComplete reports whether position x covers the threshold share of the usable travel
func sliderComplete(x, travel, threshold float64) bool {
	return travel > 0 && x >= travel*threshold
}

// selectionMatches reports whether selected equals targets as a set
func selectionMatches(selected map[string]struct{}, targets []string) bool {
	want := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		want[t] = struct{}{}
	}
	if len(selected) != len(want) {
		return false
	}
	for item := range selected {
		if _, ok := want[item]; !ok {
			return false
		}
	}
	return true
}

// pieceInPlace reports whether the drop point lies strictly within tolerance of the slot
func pieceInPlace(drop, slot core.Point, tolerance float64) bool {
	return math.Hypot(drop.X-slot.X, drop.Y-slot.Y) < tolerance
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
