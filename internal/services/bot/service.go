// Package bot tends farms automatically: it harvests mature plots and replants
// them using a pluggable strategy. A bot signs as whoever calls it, so acting on
// another player's farm needs a delegation token like any other signer.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/services/farm"
)

// MaxTendActions is a safety limit for the Tend loop
const MaxTendActions = 8

// ErrUnknownStrategy is returned when Tend is asked for a strategy that isn't registered
var ErrUnknownStrategy = errors.New("unknown bot strategy")

// ActionType represents the type of action a bot took
type ActionType string

const (
	ActionHarvest ActionType = "harvest"
	ActionPlant   ActionType = "plant"
)

// Action represents a single farm operation taken during Tend
type Action struct {
	Type  ActionType
	Kind  model.Kind
	Event model.Event
}

// Outcome is the result of one Tend call
type Outcome struct {
	Actions []Action
	// Farm is the state after the last action, or as read if nothing was done
	Farm *model.Farm
	// Waiting is true when the plot holds a crop that isn't mature yet
	Waiting bool
}

// Service runs bot turns against the farm controller
type Service struct {
	controller *farm.Controller
	strategies map[string]Strategy
	logger     *slog.Logger
}

// NewService creates a new bot Service
func NewService(controller *farm.Controller, strategies map[string]Strategy, logger *slog.Logger) *Service {
	return &Service{
		controller: controller,
		strategies: strategies,
		logger:     logger.With(slog.String("component", "bot-service")),
	}
}

// Tend harvests the plot if it is mature and replants it if gold allows.
// It stops at the first action it can't take; game errors from the
// controller are returned along with the actions already taken.
func (s *Service) Tend(ctx context.Context, req farm.Request, strategyName string) (*Outcome, error) {
	strategy, ok := s.strategies[strategyName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyName)
	}

	out := &Outcome{}
	for range MaxTendActions {
		view, err := s.controller.GetFarm(ctx, req.Owner)
		if err != nil {
			return out, err
		}
		f := view.Farm
		out.Farm = f

		if !f.Plot.IsEmpty() {
			if !view.Mature {
				out.Waiting = true
				break
			}
			res, err := s.controller.Harvest(ctx, req)
			if err != nil {
				return out, err
			}
			out.Actions = append(out.Actions, Action{Type: ActionHarvest, Kind: f.Plot.Occupant, Event: res.Event})
			out.Farm = res.Farm
			continue
		}

		affordable := affordableKinds(f)
		if len(affordable) == 0 {
			break
		}
		kind := strategy.ChooseKind(f, affordable)
		res, err := s.controller.Plant(ctx, req, kind)
		if err != nil {
			return out, err
		}
		out.Actions = append(out.Actions, Action{Type: ActionPlant, Kind: kind, Event: res.Event})
		out.Farm = res.Farm
	}

	s.logger.Info("bot tended farm",
		slog.String("owner", string(req.Owner)),
		slog.String("signer", string(req.Signer)),
		slog.String("strategy", strategyName),
		slog.Int("actions", len(out.Actions)),
		slog.Bool("waiting", out.Waiting))

	return out, nil
}
