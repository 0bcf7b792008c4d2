package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventPlayerInitialized EventType = "player_initialized"
	EventPlanted           EventType = "planted"
	EventHarvested         EventType = "harvested"
	EventUpdated           EventType = "updated"
)

// Event records a committed farm transition
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Owner     IdentityID // whose farm changed
	Signer    IdentityID // who requested the change
	Payload   any        // Type-specific data, nil if none
}

// PlantedPayload contains data for planted events
type PlantedPayload struct {
	Kind      Kind   `json:"kind"`
	Cost      uint64 `json:"cost"`
	GoldAfter uint64 `json:"gold_after"`
}

// HarvestedPayload contains data for harvested events
type HarvestedPayload struct {
	Kind      Kind   `json:"kind"`
	Reward    uint64 `json:"reward"`
	GoldAfter uint64 `json:"gold_after"`
}

// PlayerInitializedPayload contains data for player initialized events
type PlayerInitializedPayload struct {
	Gold   uint64 `json:"gold"`
	Energy uint64 `json:"energy"`
}
