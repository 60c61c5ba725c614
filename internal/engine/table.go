package engine

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

// Table pairs the mutable table model with the game that drives it. All
// seating changes go through the game mutex, so joins and leaves never
// interleave with hand mutations.
type Table struct {
	model *models.Table
	game  *Game
}

func NewTable(tableID string, config models.TableConfig, clock quartz.Clock, logger *log.Logger, onEvent func(models.Event)) *Table {
	if config.ActionTimeout < 0 {
		config.ActionTimeout = 0
	}
	if config.MaxPlayers <= 0 {
		config.MaxPlayers = 8
	}

	model := &models.Table{
		TableID:   tableID,
		Status:    models.StatusWaiting,
		Config:    config,
		Players:   make([]*models.Player, config.MaxPlayers),
		CreatedAt: time.Now(),
	}

	t := &Table{model: model}
	t.game = NewGame(model, clock, logger, onEvent)
	return t
}

// AddPlayer seats a player. With no seat preference the first free seat is
// taken; a full table is CapacityExceeded. Joining while a hand is in
// progress seats the player for the next hand. When seating brings the
// table to two eligible players and nothing is running, a hand starts.
func (t *Table) AddPlayer(playerID, playerName string, seat *int, buyIn int) error {
	g := t.game
	g.mu.Lock()

	if existing := findPlayerByID(t.model.Players, playerID); existing != nil {
		// Re-join over an existing seat is a reconnect.
		existing.PendingLeave = false
		if existing.Status == models.StatusDisconnected {
			existing.Status = models.StatusActive
		}
		g.logger.Info("player rejoined", "player", playerID)
		g.emitState()
		g.mu.Unlock()
		return nil
	}

	seatNumber := -1
	if seat != nil {
		if *seat < 0 || *seat >= t.model.Config.MaxPlayers {
			g.mu.Unlock()
			return fmt.Errorf("%w: seat %d out of range", ErrIllegalAction, *seat)
		}
		if t.model.Players[*seat] != nil {
			g.mu.Unlock()
			return fmt.Errorf("%w: seat %d occupied", ErrCapacityExceeded, *seat)
		}
		seatNumber = *seat
	} else {
		for i, p := range t.model.Players {
			if p == nil {
				seatNumber = i
				break
			}
		}
		if seatNumber < 0 {
			g.mu.Unlock()
			return ErrCapacityExceeded
		}
	}

	if buyIn <= 0 {
		buyIn = defaultBuyIn(t.model.Config)
	}
	if t.model.Config.MinBuyIn > 0 && buyIn < t.model.Config.MinBuyIn {
		g.mu.Unlock()
		return fmt.Errorf("%w: buy-in %d below minimum %d", ErrIllegalAction, buyIn, t.model.Config.MinBuyIn)
	}
	if t.model.Config.MaxBuyIn > 0 && buyIn > t.model.Config.MaxBuyIn {
		buyIn = t.model.Config.MaxBuyIn
	}

	player := models.NewPlayer(playerID, playerName, seatNumber, buyIn)
	if t.model.Status == models.StatusPlaying {
		player.Status = models.StatusSittingOut
		player.AwaitingNextHand = true
	}
	t.model.Players[seatNumber] = player
	g.logger.Info("player seated", "player", playerID, "seat", seatNumber, "chips", buyIn)

	shouldStart := t.model.Status == models.StatusWaiting &&
		countPlayers(t.model.Players, isEligibleForHand) >= 2
	if !shouldStart {
		g.emitState()
	}
	g.mu.Unlock()

	if shouldStart {
		if err := t.game.StartNewHand(); err != nil {
			g.logger.Info("hand not started after join", "reason", err)
		}
	}
	return nil
}

func defaultBuyIn(cfg models.TableConfig) int {
	buyIn := cfg.BigBlind * 100
	if cfg.MaxBuyIn > 0 && buyIn > cfg.MaxBuyIn {
		buyIn = cfg.MaxBuyIn
	}
	if cfg.MinBuyIn > 0 && buyIn < cfg.MinBuyIn {
		buyIn = cfg.MinBuyIn
	}
	return buyIn
}

// RemovePlayer honors a leave_table. Outside a hand, or for a player with
// no stake in the running hand, the seat clears immediately. A player
// inside the hand is deferred: folded at their next turn and removed when
// the hand resolves.
func (t *Table) RemovePlayer(playerID string) error {
	g := t.game
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, p := range t.model.Players {
		if p == nil || p.PlayerID != playerID {
			continue
		}
		// A folded player still has chips committed to the pot, so any
		// stake in the running hand defers the removal until payout.
		if t.model.Status == models.StatusPlaying && (inHand(p) || p.TotalInvestedThisHand > 0) {
			p.PendingLeave = true
			if p.Status == models.StatusActive {
				p.Status = models.StatusDisconnected
			}
			g.logger.Info("leave deferred until hand resolves", "player", playerID)
			// The current actor leaving resolves their turn now.
			if actor := g.currentActor(); actor == p {
				g.stopActionTimer()
				g.autoAct(p)
				return nil
			}
			g.emitState()
			return nil
		}
		t.model.Players[i] = nil
		g.logger.Info("player left", "player", playerID)
		g.emitState()
		return nil
	}
	return ErrPlayerNotFound
}

// SitOut parks a player between hands without freeing the seat.
func (t *Table) SitOut(playerID string) error {
	g := t.game
	g.mu.Lock()
	defer g.mu.Unlock()

	p := findPlayerByID(t.model.Players, playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if t.model.Status == models.StatusPlaying && inHand(p) {
		return fmt.Errorf("%w: cannot sit out mid-hand", ErrIllegalAction)
	}
	p.Status = models.StatusSittingOut
	g.emitState()
	return nil
}

// SitIn returns a sitting-out player to the rotation for the next hand.
func (t *Table) SitIn(playerID string) error {
	g := t.game
	g.mu.Lock()

	p := findPlayerByID(t.model.Players, playerID)
	if p == nil {
		g.mu.Unlock()
		return ErrPlayerNotFound
	}
	if p.Chips <= 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: no chips", ErrIllegalAction)
	}
	p.Status = models.StatusActive
	p.ConsecutiveTimeouts = 0

	shouldStart := t.model.Status == models.StatusWaiting &&
		countPlayers(t.model.Players, isEligibleForHand) >= 2
	if !shouldStart {
		g.emitState()
	}
	g.mu.Unlock()

	if shouldStart {
		if err := t.game.StartNewHand(); err != nil {
			g.logger.Info("hand not started after sit-in", "reason", err)
		}
	}
	return nil
}

// SetRecorder attaches a hand history sink for this table's hands.
func (t *Table) SetRecorder(r HandRecorder) { t.game.SetRecorder(r) }

func (t *Table) HandleAction(playerID string, action models.PlayerAction, amount int, phase string) error {
	return t.game.HandleAction(playerID, action, amount, phase)
}

func (t *Table) MarkDisconnected(playerID string) { t.game.MarkDisconnected(playerID) }
func (t *Table) MarkReconnected(playerID string)  { t.game.MarkReconnected(playerID) }

func (t *Table) Snapshot() *models.GameState { return t.game.Snapshot() }

// Seated reports whether the player occupies a seat.
func (t *Table) Seated(playerID string) bool {
	t.game.mu.Lock()
	defer t.game.mu.Unlock()
	return findPlayerByID(t.model.Players, playerID) != nil
}

// Config returns the table's immutable configuration.
func (t *Table) Config() models.TableConfig {
	return t.model.Config
}

// Occupancy returns seated player count and capacity.
func (t *Table) Occupancy() (int, int) {
	t.game.mu.Lock()
	defer t.game.mu.Unlock()
	seated := 0
	for _, p := range t.model.Players {
		if p != nil {
			seated++
		}
	}
	return seated, t.model.Config.MaxPlayers
}

func (t *Table) Stop() { t.game.Stop() }
