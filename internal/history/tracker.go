package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zzzchinguun/holdem-server/internal/db"
	"github.com/zzzchinguun/holdem-server/internal/models"
)

// Tracker writes hand history: one HandRecord per hand plus an ordered
// stream of HandEvents. Sequence numbers are per hand and assigned here,
// so concurrent tables never interleave within a hand's history.
//
// The engine invokes the recorder hooks while holding the game mutex, so
// all database writes go through a single background worker. Hook calls
// only snapshot values and enqueue; write order is the call order.
type Tracker struct {
	db        *db.DB
	logger    *log.Logger
	mu        sync.Mutex
	sequences map[string]int

	writes    chan func()
	drained   chan struct{}
	closeOnce sync.Once
}

func NewTracker(database *db.DB, logger *log.Logger) *Tracker {
	t := &Tracker{
		db:        database,
		logger:    logger.WithPrefix("history"),
		sequences: make(map[string]int),
		writes:    make(chan func(), 1024),
		drained:   make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracker) drain() {
	for fn := range t.writes {
		fn()
	}
	close(t.drained)
}

// enqueue hands a write to the worker. History must never stall a hand,
// so a full backlog drops the record instead of blocking.
func (t *Tracker) enqueue(fn func()) {
	select {
	case t.writes <- fn:
	default:
		t.logger.Warn("history backlog full, dropping record")
	}
}

// Flush blocks until every previously enqueued write has been applied.
func (t *Tracker) Flush() {
	done := make(chan struct{})
	t.writes <- func() { close(done) }
	<-done
}

// Close stops the worker after draining pending writes. No hook may be
// invoked after Close.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() { close(t.writes) })
	<-t.drained
}

func (t *Tracker) nextSequence(handID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.sequences[handID]
	t.sequences[handID] = seq + 1
	return seq
}

func (t *Tracker) record(event db.HandEvent) {
	event.SequenceNumber = t.nextSequence(event.HandID)
	t.enqueue(func() {
		if err := t.db.Create(&event).Error; err != nil {
			t.logger.Error("failed to record event",
				"hand", event.HandID, "type", event.EventType, "err", err)
		}
	})
}

func marshalMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return "{}"
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// HandStarted opens the hand record and writes the first event.
func (t *Tracker) HandStarted(tableID string, hand *models.CurrentHand, numPlayers int) {
	record := db.HandRecord{
		HandID:         hand.HandID,
		TableID:        tableID,
		HandNumber:     hand.HandNumber,
		DealerPosition: hand.DealerPosition,
	}
	t.enqueue(func() {
		if err := t.db.Create(&record).Error; err != nil {
			t.logger.Error("failed to open hand record", "hand", record.HandID, "err", err)
		}
	})

	t.mu.Lock()
	t.sequences[hand.HandID] = 0
	t.mu.Unlock()

	t.record(db.HandEvent{
		HandID:    hand.HandID,
		TableID:   tableID,
		EventType: "hand_started",
		Metadata: marshalMetadata(map[string]interface{}{
			"hand_number":          hand.HandNumber,
			"dealer_position":      hand.DealerPosition,
			"small_blind_position": hand.SmallBlindPosition,
			"big_blind_position":   hand.BigBlindPosition,
			"num_players":          numPlayers,
		}),
	})
}

// PlayerAction records one applied action. Rejected intents never reach
// the tracker.
func (t *Tracker) PlayerAction(tableID, handID, userID string, action models.PlayerAction, amount int, phase models.Phase) {
	phaseStr := string(phase)
	actionStr := string(action)
	t.record(db.HandEvent{
		HandID:     handID,
		TableID:    tableID,
		EventType:  "player_action",
		UserID:     &userID,
		Phase:      &phaseStr,
		ActionType: &actionStr,
		Amount:     amount,
	})
}

// StreetDealt records a phase transition with the community cards so far.
func (t *Tracker) StreetDealt(tableID, handID string, phase models.Phase, community []models.Card) {
	phaseStr := string(phase)
	shown := make([]string, len(community))
	for i, c := range community {
		shown[i] = c.String()
	}
	t.record(db.HandEvent{
		HandID:    handID,
		TableID:   tableID,
		EventType: "street_dealt",
		Phase:     &phaseStr,
		Metadata:  marshalMetadata(map[string]interface{}{"community_cards": shown}),
	})
}

// HandCompleted closes the hand record with the payout and drops the
// in-memory sequence counter.
func (t *Tracker) HandCompleted(tableID string, hand *models.CurrentHand, winners []models.Winner, rake int, showdown bool) {
	winnersJSON, err := json.Marshal(winners)
	if err != nil {
		winnersJSON = []byte("[]")
	}

	now := time.Now().UTC()
	handID := hand.HandID
	pot := hand.Pot.Total()
	updates := map[string]interface{}{
		"pot":          pot,
		"rake":         rake,
		"showdown":     showdown,
		"winners":      string(winnersJSON),
		"completed_at": &now,
	}
	t.enqueue(func() {
		if err := t.db.Model(&db.HandRecord{}).Where("hand_id = ?", handID).Updates(updates).Error; err != nil {
			t.logger.Error("failed to close hand record", "hand", handID, "err", err)
		}
	})

	t.record(db.HandEvent{
		HandID:    handID,
		TableID:   tableID,
		EventType: "hand_completed",
		Amount:    pot,
		Metadata: marshalMetadata(map[string]interface{}{
			"winners":  winners,
			"rake":     rake,
			"showdown": showdown,
		}),
	})

	t.mu.Lock()
	delete(t.sequences, hand.HandID)
	t.mu.Unlock()
}

// HandsForTable returns the most recent completed hands, newest first.
func (t *Tracker) HandsForTable(tableID string, limit int) ([]db.HandRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var hands []db.HandRecord
	err := t.db.
		Where("table_id = ? AND completed_at IS NOT NULL", tableID).
		Order("started_at DESC").
		Limit(limit).
		Find(&hands).Error
	return hands, err
}

// EventsForHand returns a hand's full event stream in order.
func (t *Tracker) EventsForHand(handID string) ([]db.HandEvent, error) {
	var events []db.HandEvent
	err := t.db.
		Where("hand_id = ?", handID).
		Order("sequence_number ASC").
		Find(&events).Error
	return events, err
}
