package history

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zzzchinguun/holdem-server/internal/db"
	"github.com/zzzchinguun/holdem-server/internal/models"
)

func setupTracker(t *testing.T) *Tracker {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	database := &db.DB{DB: gormDB}
	require.NoError(t, database.Migrate())

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	tracker := NewTracker(database, logger)
	t.Cleanup(tracker.Close)
	return tracker
}

func testHand() *models.CurrentHand {
	return &models.CurrentHand{
		HandID:             "hand-1",
		HandNumber:         7,
		DealerPosition:     2,
		SmallBlindPosition: 3,
		BigBlindPosition:   0,
		Pot:                models.Pot{Main: 300},
	}
}

func TestTracker_HandLifecycle(t *testing.T) {
	tracker := setupTracker(t)
	hand := testHand()

	tracker.HandStarted("table-1", hand, 4)
	tracker.PlayerAction("table-1", hand.HandID, "user-a", models.ActionRaise, 60, models.PhasePreflop)
	tracker.StreetDealt("table-1", hand.HandID, models.PhaseFlop, []models.Card{
		{Rank: models.Ace, Suit: models.Hearts},
		{Rank: models.King, Suit: models.Spades},
		{Rank: models.Two, Suit: models.Clubs},
	})
	tracker.HandCompleted("table-1", hand, []models.Winner{
		{PlayerID: "user-a", Amount: 300, HandRank: "Two Pair"},
	}, 0, true)
	tracker.Flush()

	events, err := tracker.EventsForHand(hand.HandID)
	require.NoError(t, err)
	require.Len(t, events, 4)

	// Sequence numbers are dense and ordered.
	for i, ev := range events {
		assert.Equal(t, i, ev.SequenceNumber)
	}
	assert.Equal(t, "hand_started", events[0].EventType)
	assert.Equal(t, "player_action", events[1].EventType)
	require.NotNil(t, events[1].UserID)
	assert.Equal(t, "user-a", *events[1].UserID)
	assert.Equal(t, 60, events[1].Amount)
	assert.Equal(t, "street_dealt", events[2].EventType)
	assert.Contains(t, events[2].Metadata, "Ah")
	assert.Equal(t, "hand_completed", events[3].EventType)

	hands, err := tracker.HandsForTable("table-1", 10)
	require.NoError(t, err)
	require.Len(t, hands, 1)
	assert.Equal(t, 300, hands[0].Pot)
	assert.True(t, hands[0].Showdown)
	assert.NotNil(t, hands[0].CompletedAt)
	assert.Contains(t, hands[0].WinnersJSON, "user-a")
}

func TestTracker_IncompleteHandsExcludedFromListing(t *testing.T) {
	tracker := setupTracker(t)
	hand := testHand()

	tracker.HandStarted("table-1", hand, 2)
	tracker.Flush()

	hands, err := tracker.HandsForTable("table-1", 10)
	require.NoError(t, err)
	assert.Empty(t, hands)
}

func TestTracker_SequencesAreIndependentPerHand(t *testing.T) {
	tracker := setupTracker(t)

	first := testHand()
	second := testHand()
	second.HandID = "hand-2"
	second.HandNumber = 8

	tracker.HandStarted("table-1", first, 2)
	tracker.HandStarted("table-1", second, 2)
	tracker.PlayerAction("table-1", first.HandID, "user-a", models.ActionCall, 20, models.PhasePreflop)
	tracker.PlayerAction("table-1", second.HandID, "user-b", models.ActionFold, 0, models.PhasePreflop)
	tracker.Flush()

	firstEvents, err := tracker.EventsForHand(first.HandID)
	require.NoError(t, err)
	secondEvents, err := tracker.EventsForHand(second.HandID)
	require.NoError(t, err)

	assert.Equal(t, 1, firstEvents[1].SequenceNumber)
	assert.Equal(t, 1, secondEvents[1].SequenceNumber)
}
