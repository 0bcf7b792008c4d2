package model

// Player is the per-identity resource record
type Player struct {
	Owner     IdentityID // controlling identity, immutable after creation
	Name      string     // reserved
	Level     uint8      // reserved
	XP        uint64     // reserved
	Energy    uint64     // reserved, never consumed
	Gold      uint64
	LastLogin int64 // Unix seconds
}

// CanAfford returns true if the player holds at least amount gold
func (p *Player) CanAfford(amount uint64) bool {
	return p.Gold >= amount
}

// Clone returns a copy of the player record
func (p *Player) Clone() *Player {
	c := *p
	return &c
}
