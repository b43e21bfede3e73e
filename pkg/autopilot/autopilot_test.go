package autopilot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hometwin/hometwin/pkg/optimizer"
	"github.com/hometwin/hometwin/pkg/types"
)

type fakeRecommender struct {
	actions []types.Action
	err     error
	calls   int
}

func (f *fakeRecommender) Recommend(ctx context.Context, in optimizer.Input) ([]types.Action, error) {
	f.calls++
	return f.actions, f.err
}

func hotSnapshot(ts time.Time) types.TwinSnapshot {
	return types.TwinSnapshot{
		Timestamp: ts,
		Rooms: []types.RoomState{
			{RoomID: "living-room", Comfort: types.ComfortWarm, TrendCPerHour: 1.5},
		},
		Energy: types.EnergyTotals{CurrentPowerKW: 5.0},
	}
}

func calmSnapshot(ts time.Time) types.TwinSnapshot {
	return types.TwinSnapshot{
		Timestamp: ts,
		Rooms: []types.RoomState{
			{RoomID: "living-room", Comfort: types.ComfortComfortable},
		},
		Energy: types.EnergyTotals{CurrentPowerKW: 3.0},
	}
}

func oneAction() []types.Action {
	return []types.Action{{
		ID:    "a-1",
		Title: "Smart Pre-Cool Schedule",
		Maneuver: types.Maneuver{
			Kind: types.ManeuverACPrecool,
		},
		Source: types.SourceRecommended,
	}}
}

func TestDisabledIsNoOp(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, nil)

	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	applied, err := c.OnStep(context.Background(), hotSnapshot(now), optimizer.Input{})
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Zero(t, rec.calls)
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestAppliesTopActionOnTrigger(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	var got []types.Action
	c := New(DefaultConfig(), rec, func(ctx context.Context, a types.Action) error {
		got = append(got, a)
		return nil
	})
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	applied, err := c.OnStep(ctx, hotSnapshot(now), optimizer.Input{})
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, types.SourceAutopilot, applied.Source)
	assert.Equal(t, now, applied.AppliedAt)
	require.Len(t, got, 1)

	st := c.Status()
	assert.Equal(t, StateCooldown, st.State)
	assert.Equal(t, 1, st.ActionsToday)
	assert.Equal(t, now, st.LastRun)
}

func TestNoTriggerNoRun(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, nil)
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	applied, err := c.OnStep(ctx, calmSnapshot(now), optimizer.Input{})
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Zero(t, rec.calls)
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestPowerSpikeTriggers(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, nil)
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	snap := calmSnapshot(time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC))
	snap.Energy.CurrentPowerKW = 15.0
	applied, err := c.OnStep(ctx, snap, optimizer.Input{})
	require.NoError(t, err)
	assert.NotNil(t, applied)
}

func TestCooldownBetweenRuns(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, nil)
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	applied, err := c.OnStep(ctx, hotSnapshot(now), optimizer.Input{})
	require.NoError(t, err)
	require.NotNil(t, applied)

	t.Run("blocked within cooldown", func(t *testing.T) {
		applied, err := c.OnStep(ctx, hotSnapshot(now.Add(60*time.Second)), optimizer.Input{})
		require.NoError(t, err)
		assert.Nil(t, applied)
		assert.Equal(t, StateCooldown, c.Status().State)
	})

	t.Run("allowed at cooldown boundary", func(t *testing.T) {
		applied, err := c.OnStep(ctx, hotSnapshot(now.Add(120*time.Second)), optimizer.Input{})
		require.NoError(t, err)
		assert.NotNil(t, applied)
	})
}

func TestDailyCap(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, nil)
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 6, 0, 0, 0, time.UTC)
	var applied int
	for i := 0; i < 20; i++ {
		a, err := c.OnStep(ctx, hotSnapshot(now), optimizer.Input{})
		require.NoError(t, err)
		if a != nil {
			applied++
			assert.Equal(t, types.SourceAutopilot, a.Source)
		}
		now = now.Add(3 * time.Minute)
	}
	assert.Equal(t, 3, applied, "daily cap is three autopilot actions")
	assert.Equal(t, 3, c.Status().ActionsToday)

	t.Run("resets at midnight", func(t *testing.T) {
		next := time.Date(2026, 7, 15, 0, 1, 0, 0, time.UTC)
		a, err := c.OnStep(ctx, hotSnapshot(next), optimizer.Input{})
		require.NoError(t, err)
		assert.NotNil(t, a)
		assert.Equal(t, 1, c.Status().ActionsToday)
	})
}

func TestCooldownBetweenConsecutiveActions(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, nil)
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 6, 0, 0, 0, time.UTC)
	var appliedAt []time.Time
	for i := 0; i < 300; i++ {
		a, err := c.OnStep(ctx, hotSnapshot(now), optimizer.Input{})
		require.NoError(t, err)
		if a != nil {
			appliedAt = append(appliedAt, a.AppliedAt)
		}
		now = now.Add(10 * time.Second)
	}
	require.NotEmpty(t, appliedAt)
	for i := 1; i < len(appliedAt); i++ {
		assert.GreaterOrEqual(t, appliedAt[i].Sub(appliedAt[i-1]), 120*time.Second)
	}
}

func TestInfeasibleDoesNotSpendBudget(t *testing.T) {
	rec := &fakeRecommender{}
	c := New(DefaultConfig(), rec, nil)
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	applied, err := c.OnStep(ctx, hotSnapshot(now), optimizer.Input{})
	require.NoError(t, err)
	assert.Nil(t, applied)

	st := c.Status()
	assert.Zero(t, st.ActionsToday, "a no-op run must not count against the cap")
	assert.Equal(t, StateCooldown, st.State)
	assert.Equal(t, now, st.LastRun, "a no-op run still starts the cooldown")
}

func TestApplyFailureSurfaces(t *testing.T) {
	rec := &fakeRecommender{actions: oneAction()}
	c := New(DefaultConfig(), rec, func(ctx context.Context, a types.Action) error {
		return assert.AnError
	})
	ctx := context.Background()
	c.SetEnabled(ctx, true)

	now := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	_, err := c.OnStep(ctx, hotSnapshot(now), optimizer.Input{})
	require.Error(t, err)
	assert.Zero(t, c.Status().ActionsToday)
}

func TestToggleMessages(t *testing.T) {
	c := New(DefaultConfig(), &fakeRecommender{}, nil)
	ctx := context.Background()

	on, msg := c.SetEnabled(ctx, true)
	assert.True(t, on)
	assert.Contains(t, msg, "enabled")
	off, msg := c.SetEnabled(ctx, false)
	assert.False(t, off)
	assert.Contains(t, msg, "disabled")
}
