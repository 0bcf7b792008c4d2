package bot

import (
	"github.com/mcoot/villefarm/internal/dependencies/random"
	"github.com/mcoot/villefarm/internal/model"
)

// Strategy names
const (
	StrategyGreedy = "greedy"
	StrategyRandom = "random"
)

// Strategy decides what a bot plants on an empty plot
type Strategy interface {
	// ChooseKind picks one of the affordable kinds. affordable is never empty
	// and is ordered cheapest first.
	ChooseKind(farm *model.Farm, affordable []model.Kind) model.Kind
}

// GreedyStrategy plants the most expensive kind the farm can afford
type GreedyStrategy struct{}

// ChooseKind returns the last, and so priciest, affordable kind
func (GreedyStrategy) ChooseKind(_ *model.Farm, affordable []model.Kind) model.Kind {
	return affordable[len(affordable)-1]
}

// DefaultStrategies returns every built-in strategy keyed by name
func DefaultStrategies(rnd random.Random) map[string]Strategy {
	return map[string]Strategy{
		StrategyGreedy: GreedyStrategy{},
		StrategyRandom: NewRandomStrategy(rnd),
	}
}

// affordableKinds lists the kinds the player has the gold for, cheapest first
func affordableKinds(farm *model.Farm) []model.Kind {
	var out []model.Kind
	for _, k := range model.AllKinds() {
		if farm.Player.CanAfford(k.Cost()) {
			out = append(out, k)
		}
	}
	return out
}
