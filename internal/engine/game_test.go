package engine

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

func TestStartNewHand_BlindsAndTurnOrder(t *testing.T) {
	g, table, sink := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())

	hand := table.CurrentHand
	require.NotNil(t, hand)
	assert.Equal(t, models.StatusPlaying, table.Status)
	assert.Equal(t, models.PhasePreflop, hand.Phase)
	assert.Equal(t, 0, hand.DealerPosition)
	assert.Equal(t, 1, hand.SmallBlindPosition)
	assert.Equal(t, 2, hand.BigBlindPosition)

	assert.Equal(t, 10, table.Players[1].Bet)
	assert.Equal(t, 20, table.Players[2].Bet)
	assert.Equal(t, 20, hand.CurrentBet)
	assert.Equal(t, 20, hand.MinRaise)

	// Three-handed the dealer is under the gun.
	assert.Equal(t, "p0", actorID(g))

	for _, p := range table.Players {
		assert.Len(t, p.Cards, 2)
	}

	state := sink.lastState()
	require.NotNil(t, state)
	assert.Equal(t, 30, state.Pot)
	assert.Equal(t, 30, state.TurnTimer)
}

func TestStartNewHand_RequiresTwoEligible(t *testing.T) {
	g, _, _ := newTestGame(t, quartz.NewMock(t), 1000)
	assert.Error(t, g.StartNewHand())
}

func TestStartNewHand_BustedPlayersSitOut(t *testing.T) {
	g, table, sink := newTestGame(t, quartz.NewMock(t), 1000, 0, 1000)
	require.NoError(t, g.StartNewHand())

	assert.Equal(t, models.StatusSittingOut, table.Players[1].Status)
	assert.True(t, sink.has(models.EventPlayerBusted))
	assert.Empty(t, table.Players[1].Cards)
}

func TestStartNewHand_RepeatedTimeoutsSitOut(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	table.Players[1].ConsecutiveTimeouts = 3
	require.NoError(t, g.StartNewHand())

	assert.Equal(t, models.StatusSittingOut, table.Players[1].Status)
	// Down to heads-up, so the dealer posts the small blind.
	assert.Equal(t, 0, table.CurrentHand.SmallBlindPosition)
	assert.Equal(t, 2, table.CurrentHand.BigBlindPosition)
}

func TestHandleAction_FoldsEndHandWithoutShowdown(t *testing.T) {
	g, table, sink := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())

	require.NoError(t, g.HandleAction("p0", models.ActionFold, 0, ""))
	require.NoError(t, g.HandleAction("p1", models.ActionFold, 0, ""))

	assert.Equal(t, models.StatusHandComplete, table.Status)
	require.Len(t, table.Winners, 1)
	assert.Equal(t, "p2", table.Winners[0].PlayerID)
	// The big blind's uncalled 10 comes back silently; only the matched
	// 20 is reported as winnings.
	assert.Equal(t, 20, table.Winners[0].Amount)
	assert.Equal(t, 1010, table.Players[2].Chips)
	assert.Equal(t, 3000, totalChips(table))

	// Nobody called, so nothing is revealed: the snapshot never reaches
	// showdown and masking hides the winner's cards from other viewers.
	state := sink.lastState()
	require.NotNil(t, state)
	assert.NotEqual(t, models.PhaseShowdown, state.Phase)
	masked := MaskForViewer(state, "p0")
	for _, ps := range masked.Players {
		if ps.ID != "p0" {
			assert.Empty(t, ps.Cards)
		}
	}
	assert.True(t, sink.has(models.EventHandComplete))
}

func TestHandleAction_RejectionsLeaveStateUntouched(t *testing.T) {
	g, table, sink := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())
	before := sink.count()

	// Out of turn.
	err := g.HandleAction("p1", models.ActionCall, 0, "")
	assert.ErrorIs(t, err, ErrIllegalAction)

	// Check while facing the big blind.
	err = g.HandleAction("p0", models.ActionCheck, 0, "")
	assert.ErrorIs(t, err, ErrIllegalAction)

	// Stale round tag.
	err = g.HandleAction("p0", models.ActionCall, 0, "flop")
	assert.ErrorIs(t, err, ErrIllegalAction)

	// Unknown player.
	err = g.HandleAction("ghost", models.ActionCall, 0, "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	assert.Equal(t, "p0", actorID(g))
	assert.Equal(t, before, sink.count())
	assert.Equal(t, uint64(0), table.CurrentHand.ActionSequence)
}

func TestHandleAction_MinRaiseRules(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())
	hand := table.CurrentHand

	// First raise must reach big blind + minimum increment.
	assert.ErrorIs(t, g.HandleAction("p0", models.ActionRaise, 30, ""), ErrIllegalAction)
	require.NoError(t, g.HandleAction("p0", models.ActionRaise, 40, ""))
	assert.Equal(t, 40, hand.CurrentBet)
	assert.Equal(t, 20, hand.MinRaise)

	// Re-raise must add at least the previous increment.
	assert.ErrorIs(t, g.HandleAction("p1", models.ActionRaise, 50, ""), ErrIllegalAction)
	require.NoError(t, g.HandleAction("p1", models.ActionRaise, 60, ""))
	assert.Equal(t, 60, hand.CurrentBet)
	assert.Equal(t, 20, hand.MinRaise)

	require.NoError(t, g.HandleAction("p2", models.ActionCall, 0, ""))

	// The full raise reopened the betting, so the first raiser may go again.
	require.NoError(t, g.HandleAction("p0", models.ActionRaise, 100, ""))
	assert.Equal(t, 100, hand.CurrentBet)
	assert.Equal(t, 40, hand.MinRaise)
}

func TestHandleAction_ShortAllInDoesNotReopen(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 50, 1000)
	require.NoError(t, g.StartNewHand())
	hand := table.CurrentHand

	require.NoError(t, g.HandleAction("p0", models.ActionRaise, 40, ""))

	// Small blind shoves 50 total: above the bet but below a full raise.
	require.NoError(t, g.HandleAction("p1", models.ActionAllIn, 0, ""))
	assert.Equal(t, models.StatusAllIn, table.Players[1].Status)
	assert.Equal(t, 50, hand.CurrentBet)
	assert.Equal(t, 20, hand.MinRaise)

	require.NoError(t, g.HandleAction("p2", models.ActionCall, 0, ""))

	// p0 already acted and the shove was short: call or fold only.
	assert.ErrorIs(t, g.HandleAction("p0", models.ActionRaise, 200, ""), ErrIllegalAction)
	assert.ErrorIs(t, g.HandleAction("p0", models.ActionAllIn, 0, ""), ErrIllegalAction)
	require.NoError(t, g.HandleAction("p0", models.ActionCall, 0, ""))

	assert.Equal(t, models.PhaseFlop, hand.Phase)
	assert.Equal(t, 150, hand.Pot.Total())
}

func TestHandleAction_ShortCallBecomesAllIn(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000, 30)
	require.NoError(t, g.StartNewHand())

	require.NoError(t, g.HandleAction("p0", models.ActionRaise, 100, ""))
	require.NoError(t, g.HandleAction("p1", models.ActionCall, 0, ""))

	// Big blind has 10 behind against an 80 call: goes all-in for less.
	require.NoError(t, g.HandleAction("p2", models.ActionCall, 0, ""))
	assert.Equal(t, models.StatusAllIn, table.Players[2].Status)
	assert.Equal(t, 0, table.Players[2].Chips)
	assert.Equal(t, 30, table.Players[2].TotalInvestedThisHand)
}

func TestHandleAction_CheckdownReachesShowdown(t *testing.T) {
	g, table, sink := newTestGame(t, quartz.NewMock(t), 1000, 1000)
	require.NoError(t, g.StartNewHand())
	hand := table.CurrentHand

	// Heads-up: dealer posts small blind and acts first preflop.
	require.Equal(t, 0, hand.DealerPosition)
	require.Equal(t, 0, hand.SmallBlindPosition)
	require.Equal(t, "p0", actorID(g))

	require.NoError(t, g.HandleAction("p0", models.ActionCall, 0, ""))
	require.NoError(t, g.HandleAction("p1", models.ActionCheck, 0, ""))
	assert.Equal(t, models.PhaseFlop, hand.Phase)
	assert.Len(t, hand.CommunityCards, 3)

	// Postflop the non-dealer acts first.
	for _, phase := range []models.Phase{models.PhaseTurn, models.PhaseRiver} {
		require.Equal(t, "p1", actorID(g))
		require.NoError(t, g.HandleAction("p1", models.ActionCheck, 0, ""))
		require.NoError(t, g.HandleAction("p0", models.ActionCheck, 0, ""))
		assert.Equal(t, phase, hand.Phase)
	}
	require.Equal(t, "p1", actorID(g))
	require.NoError(t, g.HandleAction("p1", models.ActionCheck, 0, ""))
	require.NoError(t, g.HandleAction("p0", models.ActionCheck, 0, ""))

	assert.Equal(t, models.StatusHandComplete, table.Status)
	assert.Equal(t, models.PhaseShowdown, hand.Phase)
	assert.Len(t, hand.CommunityCards, 5)
	assert.Equal(t, 2000, totalChips(table))

	paid := 0
	for _, w := range table.Winners {
		paid += w.Amount
	}
	assert.Equal(t, 40, paid)

	// At showdown every non-folded hand is revealed to every viewer.
	state := sink.lastState()
	masked := MaskForViewer(state, "p0")
	for _, ps := range masked.Players {
		assert.NotEmpty(t, ps.Cards)
	}
}

func TestHandleAction_PostflopBetReopensCheckers(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())
	hand := table.CurrentHand

	require.NoError(t, g.HandleAction("p0", models.ActionCall, 0, ""))
	require.NoError(t, g.HandleAction("p1", models.ActionCall, 0, ""))
	require.NoError(t, g.HandleAction("p2", models.ActionCheck, 0, ""))
	require.Equal(t, models.PhaseFlop, hand.Phase)

	// Both blinds check, then the dealer bets: the street is not over
	// until each checker has answered the bet.
	require.NoError(t, g.HandleAction("p1", models.ActionCheck, 0, ""))
	require.NoError(t, g.HandleAction("p2", models.ActionCheck, 0, ""))
	require.NoError(t, g.HandleAction("p0", models.ActionBet, 50, ""))
	assert.Equal(t, models.PhaseFlop, hand.Phase)
	assert.Equal(t, "p1", actorID(g))

	require.NoError(t, g.HandleAction("p1", models.ActionCall, 0, ""))
	assert.Equal(t, models.PhaseFlop, hand.Phase)
	assert.Equal(t, "p2", actorID(g))

	require.NoError(t, g.HandleAction("p2", models.ActionCall, 0, ""))
	assert.Equal(t, models.PhaseTurn, hand.Phase)
}

func TestHandleAction_AllInRunsBoardOut(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 500, 500)
	require.NoError(t, g.StartNewHand())

	require.NoError(t, g.HandleAction("p0", models.ActionAllIn, 0, ""))
	require.NoError(t, g.HandleAction("p1", models.ActionCall, 0, ""))

	assert.Equal(t, models.StatusHandComplete, table.Status)
	assert.Len(t, table.CurrentHand.CommunityCards, 5)
	assert.Equal(t, models.PhaseShowdown, table.CurrentHand.Phase)
	assert.Equal(t, 1000, totalChips(table))
}

func TestTimeout_ChecksWhenFreeFoldsWhenFacingBet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	g, table, _ := newTestGame(t, mock, 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())

	// Facing the big blind, the deadline folds the actor.
	mock.Advance(30 * time.Second).MustWait(ctx)
	assert.Equal(t, models.StatusFolded, table.Players[0].Status)
	assert.Equal(t, 1, table.Players[0].ConsecutiveTimeouts)
	assert.Equal(t, "p1", actorID(g))

	require.NoError(t, g.HandleAction("p1", models.ActionCall, 0, ""))

	// Big blind faces no bet: timing out checks instead of folding.
	require.Equal(t, "p2", actorID(g))
	mock.Advance(30 * time.Second).MustWait(ctx)
	assert.NotEqual(t, models.StatusFolded, table.Players[2].Status)
	assert.Equal(t, models.ActionCheck, table.Players[2].LastAction)
	assert.Equal(t, models.PhaseFlop, table.CurrentHand.Phase)
}

func TestTimeout_LiveActionClearsStrikes(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000)
	require.NoError(t, g.StartNewHand())

	table.Players[0].ConsecutiveTimeouts = 2
	require.NoError(t, g.HandleAction("p0", models.ActionCall, 0, ""))
	assert.Equal(t, 0, table.Players[0].ConsecutiveTimeouts)
}

func TestTimeout_StaleDeadlineIsIgnored(t *testing.T) {
	g, table, sink := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())
	staleSeq := table.CurrentHand.ActionSequence

	require.NoError(t, g.HandleAction("p0", models.ActionCall, 0, ""))
	before := sink.count()

	// A timer armed for the previous turn fires after the action landed.
	g.handleDeadline("p0", staleSeq)

	assert.Equal(t, "p1", actorID(g))
	assert.Equal(t, before, sink.count())
	assert.NotEqual(t, models.StatusFolded, table.Players[0].Status)
}

func TestPendingLeave_AutoFoldsAtTurn(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())

	table.Players[1].PendingLeave = true
	require.NoError(t, g.HandleAction("p0", models.ActionCall, 0, ""))

	// The turn reached the leaver and folded them without waiting.
	assert.Equal(t, models.StatusFolded, table.Players[1].Status)
	assert.Equal(t, "p2", actorID(g))
}

func TestDisconnect_KeepsPlayerInHandUntilDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	g, table, _ := newTestGame(t, mock, 1000, 1000, 1000)
	require.NoError(t, g.StartNewHand())

	g.MarkDisconnected("p0")
	assert.Equal(t, models.StatusDisconnected, table.Players[0].Status)
	assert.Equal(t, "p0", actorID(g))
	assert.Len(t, table.Players[0].Cards, 2)

	// The full deadline still applies before the default action fires.
	mock.Advance(29 * time.Second).MustWait(ctx)
	assert.NotEqual(t, models.StatusFolded, table.Players[0].Status)
	mock.Advance(1 * time.Second).MustWait(ctx)
	assert.Equal(t, models.StatusFolded, table.Players[0].Status)
}

func TestReconnect_RestoresStatusAndCancelsLeave(t *testing.T) {
	g, table, _ := newTestGame(t, quartz.NewMock(t), 1000, 1000)
	require.NoError(t, g.StartNewHand())

	g.MarkDisconnected("p1")
	table.Players[1].PendingLeave = true
	g.MarkReconnected("p1")

	assert.Equal(t, models.StatusActive, table.Players[1].Status)
	assert.False(t, table.Players[1].PendingLeave)
}

func TestNextHandStartsAfterDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	g, table, _ := newTestGame(t, mock, 1000, 1000)
	require.NoError(t, g.StartNewHand())
	firstHand := table.CurrentHand.HandID

	require.NoError(t, g.HandleAction("p0", models.ActionFold, 0, ""))
	require.Equal(t, models.StatusHandComplete, table.Status)

	mock.Advance(3600 * time.Second).MustWait(ctx)

	assert.Equal(t, models.StatusPlaying, table.Status)
	assert.NotEqual(t, firstHand, table.CurrentHand.HandID)
	assert.Equal(t, 2, table.CurrentHand.HandNumber)
	// The button moved.
	assert.Equal(t, 1, table.CurrentHand.DealerPosition)
}
