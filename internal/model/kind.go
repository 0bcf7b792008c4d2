package model

// Kind is a plantable human type. The zero value means an empty plot.
type Kind string

const (
	KindNone       Kind = ""
	KindPeasant    Kind = "peasant"
	KindBreadmaker Kind = "breadmaker"
	KindBeerbrewer Kind = "beerbrewer"
	KindBlacksmith Kind = "blacksmith"
	KindSolanadev  Kind = "solanadev"
)

type price struct {
	cost   uint64
	reward uint64
}

var prices = map[Kind]price{
	KindPeasant:    {cost: 5, reward: 10},
	KindBreadmaker: {cost: 10, reward: 20},
	KindBeerbrewer: {cost: 30, reward: 60},
	KindBlacksmith: {cost: 50, reward: 100},
	KindSolanadev:  {cost: 250, reward: 500},
}

// AllKinds returns every plantable kind, cheapest first
func AllKinds() []Kind {
	return []Kind{KindPeasant, KindBreadmaker, KindBeerbrewer, KindBlacksmith, KindSolanadev}
}

// IsValid returns true if the kind can be planted
func (k Kind) IsValid() bool {
	_, ok := prices[k]
	return ok
}

// Cost returns the gold needed to plant the kind, or 0 if the kind is not plantable
func (k Kind) Cost() uint64 {
	return prices[k].cost
}

// Reward returns the gold paid out on harvest, or 0 if the kind is not plantable
func (k Kind) Reward() uint64 {
	return prices[k].reward
}

// String returns the kind name
func (k Kind) String() string {
	return string(k)
}
