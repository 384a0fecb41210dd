package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/layer-3/verigate/core"
)

func TestRandom_CoversEveryKind(t *testing.T) {
	t.Parallel()
	s := New()
	seen := map[core.ChallengeKind]int{}

	for i := 0; i < 3000; i++ {
		seen[s.Kind(core.AllChallengeKinds)]++
	}

	for _, k := range core.AllChallengeKinds {
		assert.Greater(t, seen[k], 500, k)
	}
}

func TestRandom_SingleChoice(t *testing.T) {
	t.Parallel()
	s := New()
	banks := []core.ClickBank{{Instruction: "only"}}

	assert.Equal(t, core.ChallengePuzzle, s.Kind([]core.ChallengeKind{core.ChallengePuzzle}))
	assert.Equal(t, "only", s.ClickBank(banks).Instruction)
}
