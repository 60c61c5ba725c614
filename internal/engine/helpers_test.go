package engine

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// eventSink collects engine events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *eventSink) record(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// lastState returns the most recent game_state snapshot, or nil.
func (s *eventSink) lastState() *models.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Event == models.EventGameState {
			return s.events[i].Data.(*models.GameState)
		}
	}
	return nil
}

func (s *eventSink) has(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Event == kind {
			return true
		}
	}
	return false
}

// card parses shorthand like "Ah" or "Ts" into a Card.
func card(s string) models.Card {
	return models.Card{Rank: models.Rank(s[:1]), Suit: models.Suit(s[1:])}
}

func cards(ss ...string) []models.Card {
	out := make([]models.Card, len(ss))
	for i, s := range ss {
		out[i] = card(s)
	}
	return out
}

func testConfig(maxPlayers int) models.TableConfig {
	return models.TableConfig{
		SmallBlind:    10,
		BigBlind:      20,
		MaxPlayers:    maxPlayers,
		ActionTimeout: 30,
		NextHandDelay: 3600,
	}
}

// newTestGame seats one player per stack, ids p0, p1, ... in seat order.
func newTestGame(t *testing.T, clock quartz.Clock, stacks ...int) (*Game, *models.Table, *eventSink) {
	t.Helper()
	table := &models.Table{
		TableID: "t-test",
		Status:  models.StatusWaiting,
		Config:  testConfig(len(stacks)),
		Players: make([]*models.Player, len(stacks)),
	}
	for i, chips := range stacks {
		table.Players[i] = models.NewPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i), i, chips)
	}
	sink := &eventSink{}
	return NewGame(table, clock, testLogger(), sink.record), table, sink
}

func totalChips(table *models.Table) int {
	total := 0
	for _, p := range table.Players {
		if p != nil {
			total += p.Chips + p.TotalInvestedThisHand
		}
	}
	return total
}

func actorID(g *Game) string {
	if actor := g.currentActor(); actor != nil {
		return actor.PlayerID
	}
	return ""
}
