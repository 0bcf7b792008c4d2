package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Identity:
		o.printIdentity(v)
	case AuthResult:
		o.printAuthResult(v)
	case Farm:
		o.printFarm(v)
	case OperationResult:
		o.printOperationResult(v)
	case TendResult:
		o.printTendResult(v)
	case Delegation:
		o.printDelegation(v)
	case DelegationList:
		o.printDelegationList(v)
	case KindsResult:
		o.printKinds(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Identity response type (matches API)
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// AuthResult combines identity and token
type AuthResult struct {
	Identity     Identity  `json:"identity"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Player response type
type Player struct {
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Level     uint8  `json:"level"`
	XP        uint64 `json:"xp"`
	Energy    uint64 `json:"energy"`
	Gold      uint64 `json:"gold"`
	LastLogin int64  `json:"last_login"`
}

// Plot response type
type Plot struct {
	Occupant      string `json:"occupant,omitempty"`
	PlantedAt     int64  `json:"planted_at,omitempty"`
	HarvestableAt int64  `json:"harvestable_at,omitempty"`
	Mature        bool   `json:"mature"`
}

// Farm response type
type Farm struct {
	Player Player `json:"player"`
	Plot   Plot   `json:"plot"`
	Now    int64  `json:"now"`
}

// Event response type
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Owner     string          `json:"owner"`
	Signer    string          `json:"signer"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// OperationResult is returned by farm mutations
type OperationResult struct {
	Farm  Farm  `json:"farm"`
	Event Event `json:"event"`
}

// BotAction response type
type BotAction struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Event Event  `json:"event"`
}

// TendResult response type
type TendResult struct {
	Actions []BotAction `json:"actions"`
	Farm    Farm        `json:"farm"`
	Waiting bool        `json:"waiting"`
}

// Delegation response type
type Delegation struct {
	ID         string    `json:"id"`
	Authority  string    `json:"authority"`
	Signer     string    `json:"signer"`
	CreatedAt  time.Time `json:"created_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// DelegationList response type
type DelegationList struct {
	Delegations []Delegation `json:"delegations"`
}

// Kind response type
type Kind struct {
	Name   string `json:"name"`
	Cost   uint64 `json:"cost"`
	Reward uint64 `json:"reward"`
}

// KindsResult response type
type KindsResult struct {
	Kinds             []Kind `json:"kinds"`
	MaturationSeconds int64  `json:"maturation_seconds"`
}

// HealthResult response type
type HealthResult struct {
	Status    string `json:"status"`
	Server    string `json:"server,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

func (o *Output) printIdentity(i Identity) {
	guestStr := "no"
	if i.IsGuest {
		guestStr = "yes"
	}
	fmt.Printf("Identity: %s (%s)\n", i.DisplayName, i.ID)
	fmt.Printf("Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printIdentity(a.Identity)
	fmt.Printf("Token: %s\n", a.SessionToken)
	fmt.Printf("Expires: %s\n", a.ExpiresAt.Local().Format(time.DateTime))
}

func (o *Output) printFarm(f Farm) {
	fmt.Printf("Farm: %s\n", f.Player.Owner)
	fmt.Printf("Gold: %d\n", f.Player.Gold)
	fmt.Printf("Energy: %d\n", f.Player.Energy)

	if f.Plot.Occupant == "" {
		fmt.Println("Plot: empty")
		return
	}
	fmt.Printf("Plot: %s\n", f.Plot.Occupant)
	if f.Plot.Mature {
		fmt.Println("Ready to harvest")
		return
	}
	remaining := time.Duration(f.Plot.HarvestableAt-f.Now) * time.Second
	fmt.Printf("Harvestable in: %s\n", remaining)
}

func (o *Output) printOperationResult(r OperationResult) {
	switch r.Event.Type {
	case "player_initialized":
		fmt.Println("Farm created")
	case "planted":
		fmt.Printf("Planted %s\n", r.Farm.Plot.Occupant)
	case "harvested":
		fmt.Println("Harvested")
	case "updated":
		fmt.Println("Farm updated")
	}
	if r.Event.Signer != r.Event.Owner {
		fmt.Printf("Signed by: %s\n", r.Event.Signer)
	}
	o.printFarm(r.Farm)
}

func (o *Output) printTendResult(r TendResult) {
	if len(r.Actions) == 0 {
		fmt.Println("Nothing to do")
	}
	for _, a := range r.Actions {
		fmt.Printf("Bot: %s %s\n", a.Type, a.Kind)
	}
	o.printFarm(r.Farm)
}

func (o *Output) printDelegation(d Delegation) {
	fmt.Printf("Delegation: %s\n", d.ID)
	fmt.Printf("Authority: %s\n", d.Authority)
	fmt.Printf("Signer: %s\n", d.Signer)
	fmt.Printf("Valid until: %s\n", d.ValidUntil.Local().Format(time.DateTime))
}

func (o *Output) printDelegationList(l DelegationList) {
	if len(l.Delegations) == 0 {
		fmt.Println("No delegations")
		return
	}
	fmt.Printf("Delegations (%d):\n", len(l.Delegations))
	for _, d := range l.Delegations {
		fmt.Printf("  - %s -> %s until %s\n", d.ID, d.Signer, d.ValidUntil.Local().Format(time.DateTime))
	}
}

func (o *Output) printKinds(k KindsResult) {
	fmt.Printf("%-12s %6s %6s\n", "KIND", "COST", "REWARD")
	for _, kind := range k.Kinds {
		fmt.Printf("%-12s %6d %6d\n", kind.Name, kind.Cost, kind.Reward)
	}
	fmt.Printf("\nMaturation: %s\n", time.Duration(k.MaturationSeconds)*time.Second)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("%s is %s (%dms)\n", h.Server, h.Status, h.LatencyMS)
}
