package model

// Plot is the single planting slot owned by an identity
type Plot struct {
	Owner     IdentityID
	Occupant  Kind  // KindNone when nothing is planted
	PlantedAt int64 // Unix seconds, meaningful only while occupied
}

// IsEmpty returns true if nothing is planted
func (p *Plot) IsEmpty() bool {
	return p.Occupant == KindNone
}

// MaturesAt returns the first Unix second at which the occupant can be harvested
func (p *Plot) MaturesAt(window int64) int64 {
	return p.PlantedAt + window
}

// IsMature reports whether the occupant can be harvested at now
func (p *Plot) IsMature(now, window int64) bool {
	return now >= p.MaturesAt(window)
}

// Clone returns a copy of the plot record
func (p *Plot) Clone() *Plot {
	c := *p
	return &c
}

// Farm pairs a player's records, which are always read and written together
type Farm struct {
	Player *Player
	Plot   *Plot
}
