package bot

import (
	"github.com/mcoot/villefarm/internal/dependencies/random"
	"github.com/mcoot/villefarm/internal/model"
)

// RandomStrategy plants a random affordable kind
type RandomStrategy struct {
	random random.Random
}

// NewRandomStrategy creates a new RandomStrategy
func NewRandomStrategy(rnd random.Random) *RandomStrategy {
	return &RandomStrategy{random: rnd}
}

// ChooseKind picks uniformly among the affordable kinds
func (s *RandomStrategy) ChooseKind(_ *model.Farm, affordable []model.Kind) model.Kind {
	return affordable[s.random.Intn(len(affordable))]
}
