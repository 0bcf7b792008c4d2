package farm

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/mcoot/villefarm/internal/config"
	"github.com/mcoot/villefarm/internal/dependencies/clock"
	"github.com/mcoot/villefarm/internal/events"
	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/services/authority"
	"github.com/mcoot/villefarm/internal/storage"
)

// Operation names, as reported to the observer
const (
	OpInitPlayer = "init_player"
	OpPlant      = "plant"
	OpHarvest    = "harvest"
	OpUpdate     = "update"
)

// ErrGoldOverflow is returned if a reward would not fit in the gold counter
var ErrGoldOverflow = errors.New("gold would overflow")

// Request is the caller context of a farm mutation
type Request = authority.Request

// Observer is told the outcome of every farm operation
type Observer interface {
	ObserveOperation(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error) {}

// Result is a committed transition: the farm as stored and the event emitted
type Result struct {
	Farm  *model.Farm
	Event model.Event
}

// View is a read-only snapshot of a farm with derived timing
type View struct {
	Farm *model.Farm
	// Now is the clock reading the view was computed at, in Unix seconds
	Now int64
	// HarvestableAt is the first Unix second the occupant can be harvested,
	// zero when the plot is empty
	HarvestableAt int64
	Mature        bool
}

// Controller runs the farm state machine
type Controller struct {
	storage   storage.Storage
	verifier  authority.Verifier
	rules     config.Rules
	clock     clock.Clock
	publisher events.Publisher
	observer  Observer
	logger    *slog.Logger
}

// NewController creates a new farm Controller. A nil publisher or observer is
// replaced with a no-op.
func NewController(
	storage storage.Storage,
	verifier authority.Verifier,
	rules config.Rules,
	clock clock.Clock,
	publisher events.Publisher,
	observer Observer,
	logger *slog.Logger,
) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Controller{
		storage:   storage,
		verifier:  verifier,
		rules:     rules,
		clock:     clock,
		publisher: publisher,
		observer:  observer,
		logger:    logger.With(slog.String("component", "farm")),
	}
}

// Rules returns the rules the controller was built with
func (c *Controller) Rules() config.Rules {
	return c.rules
}

// Clock returns the clock the controller reads the current time from
func (c *Controller) Clock() clock.Clock {
	return c.clock
}

// InitPlayer creates the record pair for signer. Fails with
// model.ErrAlreadyInitialized if signer already has a farm.
func (c *Controller) InitPlayer(ctx context.Context, signer model.IdentityID) (res *Result, err error) {
	defer func() { c.finish(OpInitPlayer, signer, err) }()

	now := c.clock.Now()
	farm := &model.Farm{
		Player: &model.Player{
			Owner:     signer,
			Energy:    c.rules.MaxEnergy,
			Gold:      c.rules.StartingGold,
			LastLogin: now.Unix(),
		},
		Plot: &model.Plot{Owner: signer, Occupant: model.KindNone},
	}

	if err := c.storage.CreateFarm(ctx, farm); err != nil {
		return nil, err
	}

	return c.emit(ctx, farm, model.Event{
		Type:    model.EventPlayerInitialized,
		Owner:   signer,
		Signer:  signer,
		Payload: model.PlayerInitializedPayload{Gold: farm.Player.Gold, Energy: farm.Player.Energy},
	}), nil
}

// Plant puts kind on the owner's empty plot and debits its cost.
//
// Checks run in order: farm exists, caller is authorised, plot is empty,
// kind is plantable, gold covers the cost. Nothing is written on failure.
func (c *Controller) Plant(ctx context.Context, req Request, kind model.Kind) (res *Result, err error) {
	defer func() { c.finish(OpPlant, req.Owner, err) }()

	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	now := clock.Unix(c.clock)
	var payload model.PlantedPayload
	farm, err := c.storage.UpdateFarm(ctx, req.Owner, func(f *model.Farm) error {
		if !f.Plot.IsEmpty() {
			return model.ErrPlotOccupied
		}
		if !kind.IsValid() {
			return model.ErrUnknownKind
		}
		cost := kind.Cost()
		if !f.Player.CanAfford(cost) {
			return model.ErrInsufficientFunds
		}

		f.Plot.Occupant = kind
		f.Plot.PlantedAt = now
		f.Player.Gold -= cost
		payload = model.PlantedPayload{Kind: kind, Cost: cost, GoldAfter: f.Player.Gold}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.emit(ctx, farm, model.Event{
		Type:    model.EventPlanted,
		Owner:   req.Owner,
		Signer:  req.Signer,
		Payload: payload,
	}), nil
}

// Harvest clears a mature plot and credits the occupant's reward.
//
// Checks run in order: farm exists, caller is authorised, plot is occupied
// by a known kind, the maturation window has fully elapsed.
func (c *Controller) Harvest(ctx context.Context, req Request) (res *Result, err error) {
	defer func() { c.finish(OpHarvest, req.Owner, err) }()

	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	now := clock.Unix(c.clock)
	window := c.rules.MaturationSeconds()
	var payload model.HarvestedPayload
	farm, err := c.storage.UpdateFarm(ctx, req.Owner, func(f *model.Farm) error {
		if f.Plot.IsEmpty() {
			return model.ErrNothingPlanted
		}
		kind := f.Plot.Occupant
		if !kind.IsValid() {
			return model.ErrUnknownKind
		}
		if !f.Plot.IsMature(now, window) {
			return model.ErrNotMature
		}
		reward := kind.Reward()
		if f.Player.Gold > math.MaxUint64-reward {
			return ErrGoldOverflow
		}

		f.Player.Gold += reward
		f.Plot.Occupant = model.KindNone
		f.Plot.PlantedAt = 0
		payload = model.HarvestedPayload{Kind: kind, Reward: reward, GoldAfter: f.Player.Gold}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.emit(ctx, farm, model.Event{
		Type:    model.EventHarvested,
		Owner:   req.Owner,
		Signer:  req.Signer,
		Payload: payload,
	}), nil
}

// Update checks the farm exists and the caller may act on it. It changes
// nothing; energy regeneration will hang off it.
func (c *Controller) Update(ctx context.Context, req Request) (res *Result, err error) {
	defer func() { c.finish(OpUpdate, req.Owner, err) }()

	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	farm, err := c.storage.GetFarm(ctx, req.Owner)
	if err != nil {
		return nil, err
	}

	return c.emit(ctx, farm, model.Event{
		Type:   model.EventUpdated,
		Owner:  req.Owner,
		Signer: req.Signer,
	}), nil
}

// GetFarm returns a read-only view of a farm. Anyone may read any farm.
func (c *Controller) GetFarm(ctx context.Context, owner model.IdentityID) (*View, error) {
	farm, err := c.storage.GetFarm(ctx, owner)
	if err != nil {
		return nil, err
	}
	now := clock.Unix(c.clock)
	view := &View{Farm: farm, Now: now}
	if !farm.Plot.IsEmpty() {
		window := c.rules.MaturationSeconds()
		view.HarvestableAt = farm.Plot.MaturesAt(window)
		view.Mature = farm.Plot.IsMature(now, window)
	}
	return view, nil
}

// authorize loads the farm and checks the caller against its stored owner.
// It runs before the write so verifiers are free to read storage; the owner
// never changes after creation so the decision stays valid for the write.
func (c *Controller) authorize(ctx context.Context, req Request) error {
	farm, err := c.storage.GetFarm(ctx, req.Owner)
	if err != nil {
		return err
	}
	return c.verifier.Authorize(ctx, req, farm.Player.Owner)
}

func (c *Controller) emit(ctx context.Context, farm *model.Farm, event model.Event) *Result {
	event.ID = uuid.NewString()
	event.Timestamp = c.clock.Now()
	c.publisher.Publish(ctx, event)
	return &Result{Farm: farm, Event: event}
}

func (c *Controller) finish(op string, owner model.IdentityID, err error) {
	c.observer.ObserveOperation(op, err)
	if err == nil {
		return
	}
	level := slog.LevelInfo
	if model.LegacyCode(err) == "" &&
		!errors.Is(err, model.ErrPlayerNotFound) &&
		!errors.Is(err, model.ErrAlreadyInitialized) {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "farm operation rejected",
		slog.String("operation", op),
		slog.String("owner", string(owner)),
		slog.String("error", err.Error()))
}
