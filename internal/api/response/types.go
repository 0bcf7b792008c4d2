package response

import (
	"time"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/services/bot"
	"github.com/mcoot/villefarm/internal/services/identity"
)

// Identity represents an identity in API responses
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// IdentityFromModel converts a model.Identity to a response Identity
func IdentityFromModel(i *model.Identity) Identity {
	return Identity{
		ID:          string(i.ID),
		DisplayName: i.DisplayName,
		IsGuest:     i.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Identity     Identity  `json:"identity"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *identity.Session) AuthResponse {
	return AuthResponse{
		Identity:     IdentityFromModel(&s.Identity),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Player is the resource record of a farm
type Player struct {
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Level     uint8  `json:"level"`
	XP        uint64 `json:"xp"`
	Energy    uint64 `json:"energy"`
	Gold      uint64 `json:"gold"`
	LastLogin int64  `json:"last_login"`
}

// Plot is the planting slot of a farm
type Plot struct {
	Occupant      string `json:"occupant,omitempty"`
	PlantedAt     int64  `json:"planted_at,omitempty"`
	HarvestableAt int64  `json:"harvestable_at,omitempty"`
	Mature        bool   `json:"mature"`
}

// Farm is a player's record pair with derived timing
type Farm struct {
	Player Player `json:"player"`
	Plot   Plot   `json:"plot"`
	// Now is the server clock in Unix seconds when the farm was read
	Now int64 `json:"now"`
}

// FarmFromModel converts a farm, computing harvest timing at now for the
// given maturation window in seconds
func FarmFromModel(f *model.Farm, now, window int64) Farm {
	plot := Plot{}
	if !f.Plot.IsEmpty() {
		plot = Plot{
			Occupant:      f.Plot.Occupant.String(),
			PlantedAt:     f.Plot.PlantedAt,
			HarvestableAt: f.Plot.MaturesAt(window),
			Mature:        f.Plot.IsMature(now, window),
		}
	}
	return Farm{
		Player: Player{
			Owner:     string(f.Player.Owner),
			Name:      f.Player.Name,
			Level:     f.Player.Level,
			XP:        f.Player.XP,
			Energy:    f.Player.Energy,
			Gold:      f.Player.Gold,
			LastLogin: f.Player.LastLogin,
		},
		Plot: plot,
		Now:  now,
	}
}

// Event is a committed farm transition
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Owner     string    `json:"owner"`
	Signer    string    `json:"signer"`
	Payload   any       `json:"payload,omitempty"`
}

// EventFromModel converts a model.Event
func EventFromModel(e model.Event) Event {
	return Event{
		ID:        e.ID,
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Owner:     string(e.Owner),
		Signer:    string(e.Signer),
		Payload:   e.Payload,
	}
}

// OperationResponse is returned by farm mutations
type OperationResponse struct {
	Farm  Farm  `json:"farm"`
	Event Event `json:"event"`
}

// Delegation represents a delegation token
type Delegation struct {
	ID         string    `json:"id"`
	Authority  string    `json:"authority"`
	Signer     string    `json:"signer"`
	CreatedAt  time.Time `json:"created_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// DelegationFromModel converts a model.Delegation
func DelegationFromModel(d *model.Delegation) Delegation {
	return Delegation{
		ID:         string(d.ID),
		Authority:  string(d.Authority),
		Signer:     string(d.Signer),
		CreatedAt:  d.CreatedAt,
		ValidUntil: d.ValidUntil,
	}
}

// DelegationsResponse lists delegations
type DelegationsResponse struct {
	Delegations []Delegation `json:"delegations"`
}

// Kind is one row of the pricing table
type Kind struct {
	Name   string `json:"name"`
	Cost   uint64 `json:"cost"`
	Reward uint64 `json:"reward"`
}

// KindsResponse is the pricing table plus the maturation window
type KindsResponse struct {
	Kinds             []Kind `json:"kinds"`
	MaturationSeconds int64  `json:"maturation_seconds"`
}

// KindsFromModel builds the pricing table
func KindsFromModel(window int64) KindsResponse {
	kinds := model.AllKinds()
	out := KindsResponse{Kinds: make([]Kind, 0, len(kinds)), MaturationSeconds: window}
	for _, k := range kinds {
		out.Kinds = append(out.Kinds, Kind{Name: k.String(), Cost: k.Cost(), Reward: k.Reward()})
	}
	return out
}

// BotAction is one operation a bot took
type BotAction struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Event Event  `json:"event"`
}

// TendResponse is returned when a bot tends a farm
type TendResponse struct {
	Actions []BotAction `json:"actions"`
	Farm    Farm        `json:"farm"`
	Waiting bool        `json:"waiting"`
}

// TendResponseFromOutcome converts a bot outcome
func TendResponseFromOutcome(o *bot.Outcome, now, window int64) TendResponse {
	out := TendResponse{
		Actions: make([]BotAction, 0, len(o.Actions)),
		Farm:    FarmFromModel(o.Farm, now, window),
		Waiting: o.Waiting,
	}
	for _, a := range o.Actions {
		out.Actions = append(out.Actions, BotAction{
			Type:  string(a.Type),
			Kind:  a.Kind.String(),
			Event: EventFromModel(a.Event),
		})
	}
	return out
}
