package selector

import (
	"math/rand/v2"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// Random picks uniformly and keeps no memory between picks
type Random struct{}

// New creates an unseeded uniform selector
func New() ports.Selector {
	return Random{}
}

// Kind picks one of kinds uniformly
func (Random) Kind(kinds []core.ChallengeKind) core.ChallengeKind {
	return kinds[rand.IntN(len(kinds))]
}

// ClickBank picks one of banks uniformly
func (Random) ClickBank(banks []core.ClickBank) core.ClickBank {
	return banks[rand.IntN(len(banks))]
}
