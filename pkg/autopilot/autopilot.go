// Package autopilot gates automatic execution of optimizer actions behind
// guardrails: a cooldown between runs, a daily action cap, and explicit
// trigger conditions. The guardrail check and the decision to run are
// evaluated atomically so concurrent twin steps cannot both pass the gate.
package autopilot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/hometwin/hometwin/pkg/common"
	"github.com/hometwin/hometwin/pkg/optimizer"
	"github.com/hometwin/hometwin/pkg/types"
)

// State is the controller's position in its run cycle.
type State string

const (
	StateIdle     State = "idle"
	StateEligible State = "eligible"
	StateRunning  State = "running"
	StateCooldown State = "cooldown"
)

// Config holds the guardrail parameters.
type Config struct {
	// Cooldown is the minimum time between autopilot runs.
	Cooldown time.Duration
	// MaxActionsPerDay caps autopilot-sourced actions per UTC day.
	MaxActionsPerDay int
	// SpikeThresholdKW triggers a run when aggregate draw exceeds it.
	SpikeThresholdKW float64
}

// DefaultConfig returns the stock guardrails.
func DefaultConfig() Config {
	return Config{
		Cooldown:         2 * time.Minute,
		MaxActionsPerDay: 3,
		SpikeThresholdKW: 12.0,
	}
}

// Recommender produces ranked actions for the current twin state.
type Recommender interface {
	Recommend(ctx context.Context, in optimizer.Input) ([]types.Action, error)
}

// ApplyFunc executes an action against the twin and persists it.
type ApplyFunc func(ctx context.Context, action types.Action) error

// Configured returns a Controller configured via lflag.
func Configured(rec Recommender, apply ApplyFunc) *Controller {
	cooldown := lflag.Duration("autopilot-cooldown", 2*time.Minute, "Minimum time between autopilot runs")
	maxPerDay := lflag.Int("autopilot-max-actions-per-day", 3, "Maximum autopilot actions per UTC day")
	spike := common.Float64Flag("autopilot-spike-threshold-kw", 12.0, "Aggregate draw that triggers an autopilot run")

	c := &Controller{rec: rec, apply: apply, state: StateIdle}
	lflag.Do(func() {
		c.cfg = Config{
			Cooldown:         *cooldown,
			MaxActionsPerDay: *maxPerDay,
			SpikeThresholdKW: spike(),
		}
	})
	return c
}

// New returns a Controller with the given config. Tests use this directly.
func New(cfg Config, rec Recommender, apply ApplyFunc) *Controller {
	return &Controller{cfg: cfg, rec: rec, apply: apply, state: StateIdle}
}

// Controller is the autopilot gate. All state lives behind one mutex.
type Controller struct {
	mu    sync.Mutex
	cfg   Config
	rec   Recommender
	apply ApplyFunc

	enabled      bool
	state        State
	lastRun      time.Time
	actionsToday int
	day          time.Time
}

// Status is a point-in-time view of the controller for the API.
type Status struct {
	Enabled      bool      `json:"enabled"`
	State        State     `json:"state"`
	ActionsToday int       `json:"actionsToday"`
	LastRun      time.Time `json:"lastRun,omitzero"`
}

// SetEnabled flips the autopilot switch and returns a user-facing message.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	msg := "Autopilot disabled"
	if enabled {
		c.state = StateIdle
		msg = "Autopilot enabled. Actions will be applied automatically within guardrails."
	} else {
		c.state = StateIdle
	}
	slog.InfoContext(ctx, "autopilot toggled", slog.Bool("enabled", enabled))
	return c.enabled, msg
}

// Enabled reports the switch state.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Status returns the current guardrail state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Enabled:      c.enabled,
		State:        c.state,
		ActionsToday: c.actionsToday,
		LastRun:      c.lastRun,
	}
}

// OnStep is called after every twin step with the fresh snapshot. If the
// autopilot is enabled, the guardrails pass, and a trigger condition holds,
// it runs the optimizer and applies the top action with source=autopilot.
// Returns the applied action, or nil when nothing ran. Guardrail blocks and
// empty optimizer results are no-ops, never errors.
func (c *Controller) OnStep(ctx context.Context, snap types.TwinSnapshot, in optimizer.Input) (*types.Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		c.state = StateIdle
		return nil, nil
	}

	now := snap.Timestamp
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(c.day) {
		c.day = day
		c.actionsToday = 0
	}

	if c.actionsToday >= c.cfg.MaxActionsPerDay {
		c.state = StateCooldown
		return nil, nil
	}
	if !c.lastRun.IsZero() && now.Sub(c.lastRun) < c.cfg.Cooldown {
		c.state = StateCooldown
		return nil, nil
	}
	c.state = StateEligible

	if !c.triggered(snap) {
		c.state = StateIdle
		return nil, nil
	}

	c.state = StateRunning
	actions, err := c.rec.Recommend(ctx, in)
	if err != nil {
		c.state = StateIdle
		return nil, err
	}
	if len(actions) == 0 {
		// Nothing feasible: log the no-op and back off without spending an
		// action from the daily budget.
		slog.InfoContext(ctx, "autopilot found no feasible action",
			slog.Int("actionsToday", c.actionsToday),
		)
		c.lastRun = now
		c.state = StateCooldown
		return nil, nil
	}

	top := actions[0]
	top.Source = types.SourceAutopilot
	top.AppliedAt = now
	if c.apply != nil {
		if err := c.apply(ctx, top); err != nil {
			c.state = StateIdle
			return nil, err
		}
	}
	c.actionsToday++
	c.lastRun = now
	c.state = StateCooldown
	slog.InfoContext(ctx, "autopilot applied action",
		slog.String("title", top.Title),
		slog.String("maneuver", string(top.Maneuver.Kind)),
		slog.Int("actionsToday", c.actionsToday),
	)
	return &top, nil
}

// triggered reports whether the snapshot warrants a run: a room outside
// comfort and trending further out, or an aggregate power spike.
func (c *Controller) triggered(snap types.TwinSnapshot) bool {
	if snap.Energy.CurrentPowerKW > c.cfg.SpikeThresholdKW {
		return true
	}
	for _, r := range snap.Rooms {
		switch r.Comfort {
		case types.ComfortComfortable:
			continue
		case types.ComfortWarm:
			if r.TrendCPerHour > 0 {
				return true
			}
		case types.ComfortCool:
			if r.TrendCPerHour < 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}
