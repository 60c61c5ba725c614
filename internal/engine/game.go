package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

// Game drives the hand lifecycle for one table: blinds, dealing, betting
// rounds, showdown and payout. All mutation is serialized through a single
// mutex so no two intents ever interleave against the same table state,
// and every completed mutation emits exactly one immutable snapshot.
type Game struct {
	table         *models.Table
	pots          *PotManager
	clock         quartz.Clock
	logger        *log.Logger
	onEvent       func(models.Event)
	recorder      HandRecorder
	actionTimer   *quartz.Timer
	nextHandTimer *quartz.Timer
	mu            sync.Mutex
}

func NewGame(table *models.Table, clock quartz.Clock, logger *log.Logger, onEvent func(models.Event)) *Game {
	return &Game{
		table:   table,
		pots:    NewPotManager(),
		clock:   clock,
		logger:  logger.With("table", table.TableID),
		onEvent: onEvent,
	}
}

// SetRecorder attaches a hand history sink. Call before the first hand.
func (g *Game) SetRecorder(r HandRecorder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorder = r
}

// StartNewHand deals the next hand. It requires at least two eligible
// players; busted players are moved to sitting-out first.
func (g *Game) StartNewHand() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startNewHandLocked()
}

func (g *Game) startNewHandLocked() error {
	if g.table.Status == models.StatusPlaying {
		return fmt.Errorf("hand already in progress")
	}

	g.table.Winners = nil

	for _, p := range g.table.Players {
		if p == nil {
			continue
		}
		// Players seated during the previous hand join the table sitting
		// out; they come in once a fresh hand is about to start.
		if p.AwaitingNextHand {
			p.AwaitingNextHand = false
			if p.Status == models.StatusSittingOut && p.Chips > 0 {
				p.Status = models.StatusActive
			}
		}
		if p.Chips <= 0 && p.Status != models.StatusSittingOut {
			p.Status = models.StatusSittingOut
			g.emit(models.Event{
				Event:   models.EventPlayerBusted,
				TableID: g.table.TableID,
				Data:    map[string]interface{}{"playerId": p.PlayerID, "playerName": p.PlayerName},
			})
		}
		if p.ConsecutiveTimeouts >= 3 && p.Status != models.StatusSittingOut {
			p.Status = models.StatusSittingOut
			g.logger.Info("player sat out after repeated timeouts", "player", p.PlayerID)
		}
	}

	pf := positionFinder{players: g.table.Players}
	eligible := countPlayers(g.table.Players, isEligibleForHand)
	if eligible < 2 {
		g.table.Status = models.StatusWaiting
		return fmt.Errorf("not enough players to start hand")
	}

	for _, p := range g.table.Players {
		if p != nil {
			p.ResetForHand()
		}
	}

	g.table.Deck = models.NewDeck()

	prevDealer := -1
	if g.table.CurrentHand != nil {
		prevDealer = g.table.CurrentHand.DealerPosition
	}
	dealerPos := pf.findNextDealer(prevDealer)
	sbPos, bbPos := pf.blindPositions(dealerPos, eligible)

	g.table.Players[dealerPos].IsDealer = true
	g.postBlind(g.table.Players[sbPos], g.table.Config.SmallBlind)
	g.table.Players[sbPos].IsSmallBlind = true
	g.postBlind(g.table.Players[bbPos], g.table.Config.BigBlind)
	g.table.Players[bbPos].IsBigBlind = true
	// Blinds are forced, not actions: both blinds keep their turn, and the
	// big blind retains the option to raise an unraised pot.

	handNumber := 1
	if g.table.CurrentHand != nil {
		handNumber = g.table.CurrentHand.HandNumber + 1
	}

	g.table.CurrentHand = &models.CurrentHand{
		HandID:             uuid.NewString(),
		HandNumber:         handNumber,
		DealerPosition:     dealerPos,
		SmallBlindPosition: sbPos,
		BigBlindPosition:   bbPos,
		Phase:              models.PhasePreflop,
		CommunityCards:     make([]models.Card, 0, 5),
		Pot:                models.Pot{Side: []models.SidePot{}},
		CurrentBet:         g.table.Config.BigBlind,
		MinRaise:           g.table.Config.BigBlind,
		CurrentPosition:    pf.findNextActor(bbPos),
	}

	for _, p := range g.table.Players {
		if inHand(p) {
			cards, err := g.table.Deck.DealMultiple(2)
			if err != nil {
				return g.abortHand(err)
			}
			p.Cards = cards
		}
	}

	g.table.Status = models.StatusPlaying
	g.logger.Info("hand started",
		"hand", g.table.CurrentHand.HandNumber,
		"dealer", dealerPos, "players", eligible)

	if g.recorder != nil {
		g.recorder.HandStarted(g.table.TableID, g.table.CurrentHand, eligible)
	}

	g.beginTurn()
	return nil
}

// postBlind debits a forced bet; a short stack posts all-in.
func (g *Game) postBlind(p *models.Player, amount int) {
	if p == nil {
		return
	}
	p.PlaceBet(amount)
}

// HandleAction validates and applies a player intent. On any rejection the
// table state is unchanged and the acting player's deadline keeps running.
// phase, when non-empty, is the round the client submitted in; a mismatch
// means the action is stale and is rejected without a snapshot.
func (g *Game) HandleAction(playerID string, action models.PlayerAction, amount int, phase string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.table.Status != models.StatusPlaying || g.table.CurrentHand == nil {
		return fmt.Errorf("%w: no hand in progress", ErrIllegalAction)
	}
	hand := g.table.CurrentHand

	if phase != "" && phase != string(hand.Phase) {
		return fmt.Errorf("%w: action submitted for %s but the hand is on %s", ErrIllegalAction, phase, hand.Phase)
	}

	player := findPlayerByID(g.table.Players, playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	current := g.currentActor()
	if current == nil || current.PlayerID != playerID {
		return fmt.Errorf("%w: not your turn", ErrIllegalAction)
	}
	if !canAct(player) {
		return fmt.Errorf("%w: cannot act with status %s", ErrIllegalAction, player.Status)
	}

	if err := g.applyAction(player, action, amount); err != nil {
		return err
	}

	// A live action from a seated player clears the timeout strike count.
	player.ConsecutiveTimeouts = 0
	g.finishTurn(player)
	return nil
}

// applyAction validates the concrete action and mutates the player and
// round state. It either applies fully or returns with nothing changed.
func (g *Game) applyAction(player *models.Player, action models.PlayerAction, amount int) error {
	hand := g.table.CurrentHand
	bv := bettingValidator{currentBet: hand.CurrentBet, minRaise: hand.MinRaise}

	switch action {
	case models.ActionFold:
		player.Status = models.StatusFolded
		player.LastAction = models.ActionFold
		player.LastActionAmount = 0

	case models.ActionCheck:
		if err := bv.validateCheck(player.Bet); err != nil {
			return err
		}
		player.LastAction = models.ActionCheck
		player.LastActionAmount = 0

	case models.ActionCall:
		if !bv.facingBet(player.Bet) {
			return fmt.Errorf("%w: nothing to call", ErrIllegalAction)
		}
		callAmount := hand.CurrentBet - player.Bet
		if callAmount >= player.Chips {
			// InsufficientChips is an implicit all-in, never a rejection.
			g.commitAllIn(player, bv)
			return nil
		}
		player.PlaceBet(callAmount)
		player.LastAction = models.ActionCall
		player.LastActionAmount = callAmount

	case models.ActionBet:
		if amount >= player.Bet+player.Chips {
			return g.validateAndCommitAllIn(player, bv)
		}
		if err := bv.validateBet(amount); err != nil {
			return err
		}
		g.commitTo(player, amount)
		player.LastAction = models.ActionBet
		hand.MinRaise = amount
		hand.CurrentBet = amount
		reopenBetting(g.table.Players, player)

	case models.ActionRaise:
		// An acted flag that survived the last bet means the bet was lifted
		// by a short all-in: betting is not reopened, only call or fold.
		if player.HasActedThisRound {
			return fmt.Errorf("%w: betting is not reopened", ErrIllegalAction)
		}
		if amount >= player.Bet+player.Chips {
			return g.validateAndCommitAllIn(player, bv)
		}
		if err := bv.validateRaise(amount, player.Bet); err != nil {
			return err
		}
		g.commitTo(player, amount)
		player.LastAction = models.ActionRaise
		hand.MinRaise = amount - hand.CurrentBet
		hand.CurrentBet = amount
		reopenBetting(g.table.Players, player)

	case models.ActionAllIn:
		return g.validateAndCommitAllIn(player, bv)

	default:
		return fmt.Errorf("%w: unknown action %q", ErrIllegalAction, action)
	}
	return nil
}

// commitTo brings the player's round contribution up to total.
func (g *Game) commitTo(player *models.Player, total int) {
	player.PlaceBet(total - player.Bet)
	player.LastActionAmount = total
}

func (g *Game) validateAndCommitAllIn(player *models.Player, bv bettingValidator) error {
	if err := bv.validateAllIn(player.Chips); err != nil {
		return err
	}
	if player.HasActedThisRound && player.Bet+player.Chips > bv.currentBet {
		return fmt.Errorf("%w: betting is not reopened", ErrIllegalAction)
	}
	g.commitAllIn(player, bv)
	return nil
}

// commitAllIn puts the whole remaining stack in. A full-raise all-in
// reopens betting; a short all-in only lifts the bet to match without
// reopening for players who already acted.
func (g *Game) commitAllIn(player *models.Player, bv bettingValidator) {
	hand := g.table.CurrentHand
	player.PlaceBet(player.Chips)
	player.LastAction = models.ActionAllIn
	player.LastActionAmount = player.Bet

	if bv.isFullRaise(player.Bet) {
		hand.MinRaise = player.Bet - hand.CurrentBet
		hand.CurrentBet = player.Bet
		reopenBetting(g.table.Players, player)
	} else if player.Bet > hand.CurrentBet {
		hand.CurrentBet = player.Bet
	}
}

// finishTurn records the applied action and moves the hand forward:
// either the round completes or the turn passes to the next actor.
func (g *Game) finishTurn(player *models.Player) {
	g.stopActionTimer()
	player.HasActedThisRound = true
	g.table.CurrentHand.ActionSequence++

	if g.recorder != nil {
		g.recorder.PlayerAction(g.table.TableID, g.table.CurrentHand.HandID,
			player.PlayerID, player.LastAction, player.LastActionAmount, g.table.CurrentHand.Phase)
	}

	if g.isRoundComplete() {
		g.advanceRound()
	} else {
		g.table.CurrentHand.CurrentPosition = positionFinder{players: g.table.Players}.findNextActor(g.table.CurrentHand.CurrentPosition)
		g.beginTurn()
	}
}

// isRoundComplete reports whether every non-folded, non-all-in player has
// acted since the last raise with equal contributions, or at most one
// player can still act.
func (g *Game) isRoundComplete() bool {
	inHandCount := 0
	needToAct := 0

	for _, p := range g.table.Players {
		if !inHand(p) {
			continue
		}
		inHandCount++
		if p.Status == models.StatusAllIn {
			continue
		}
		if !p.HasActedThisRound || p.Bet < g.table.CurrentHand.CurrentBet {
			needToAct++
		}
	}
	return inHandCount <= 1 || needToAct == 0
}

// advanceRound sweeps the finished betting round into the pot structure
// and deals the next street, short-circuiting to payout when the hand is
// already decided.
func (g *Game) advanceRound() {
	hand := g.table.CurrentHand
	hand.Pot = g.pots.BuildPots(g.table.Players)

	for _, p := range g.table.Players {
		if p != nil {
			p.Bet = 0
			if p.Status != models.StatusAllIn {
				p.HasActedThisRound = false
			}
		}
	}
	hand.CurrentBet = 0
	hand.MinRaise = g.table.Config.BigBlind

	contesting := countPlayers(g.table.Players, inHand)
	if contesting <= 1 {
		// Everyone else folded: award without dealing or revealing.
		g.completeHand(false)
		return
	}

	stillToDecide := countPlayers(g.table.Players, canAct)
	if stillToDecide <= 1 {
		// All-in resolution: run the board out, then show down.
		for hand.Phase != models.PhaseRiver {
			if err := g.dealStreet(); err != nil {
				g.abortHand(err)
				return
			}
		}
		g.completeHand(true)
		return
	}

	if hand.Phase == models.PhaseRiver {
		g.completeHand(true)
		return
	}

	if err := g.dealStreet(); err != nil {
		g.abortHand(err)
		return
	}

	hand.CurrentPosition = positionFinder{players: g.table.Players}.findNextActor(hand.DealerPosition)
	g.beginTurn()
}

// dealStreet advances the phase one street and deals its community cards.
func (g *Game) dealStreet() error {
	hand := g.table.CurrentHand
	switch hand.Phase {
	case models.PhasePreflop:
		cards, err := g.table.Deck.DealMultiple(3)
		if err != nil {
			return err
		}
		hand.CommunityCards = append(hand.CommunityCards, cards...)
		hand.Phase = models.PhaseFlop
	case models.PhaseFlop:
		card, err := g.table.Deck.Deal()
		if err != nil {
			return err
		}
		hand.CommunityCards = append(hand.CommunityCards, card)
		hand.Phase = models.PhaseTurn
	case models.PhaseTurn:
		card, err := g.table.Deck.Deal()
		if err != nil {
			return err
		}
		hand.CommunityCards = append(hand.CommunityCards, card)
		hand.Phase = models.PhaseRiver
	default:
		return fmt.Errorf("no street to deal after %s", hand.Phase)
	}
	if g.recorder != nil {
		g.recorder.StreetDealt(g.table.TableID, hand.HandID, hand.Phase, hand.CommunityCards)
	}
	return nil
}

// completeHand runs the payout. showdown selects whether hole cards are
// revealed: early termination awards the pot face down.
func (g *Game) completeHand(showdown bool) {
	hand := g.table.CurrentHand
	returned := g.pots.ReturnUncalled(g.table.Players)
	hand.Pot = g.pots.BuildPots(g.table.Players)
	rake := g.pots.TakeRake(&hand.Pot, g.table.Config)
	g.table.RakeTaken += rake

	if showdown {
		hand.Phase = models.PhaseShowdown
	}

	g.table.Winners = DistributeWinnings(hand.Pot, g.table.Players, hand.CommunityCards, hand.DealerPosition)
	for _, winner := range g.table.Winners {
		if p := findPlayerByID(g.table.Players, winner.PlayerID); p != nil {
			p.AddChips(winner.Amount)
		}
	}
	for _, p := range g.table.Players {
		if p != nil {
			p.TotalInvestedThisHand = 0
			p.Bet = 0
		}
	}

	g.table.Status = models.StatusHandComplete
	g.stopActionTimer()

	g.logger.Info("hand complete",
		"hand", hand.HandNumber, "pot", hand.Pot.Total(), "rake", rake,
		"returned", returned, "winners", len(g.table.Winners), "showdown", showdown)

	if g.recorder != nil {
		g.recorder.HandCompleted(g.table.TableID, hand, g.table.Winners, rake, showdown)
	}

	g.emitState()
	g.emit(models.Event{
		Event:   models.EventHandComplete,
		TableID: g.table.TableID,
		Data:    map[string]interface{}{"handId": hand.HandID, "winners": g.table.Winners},
	})

	g.removeLeavers()
	g.scheduleNextHand()
}

// abortHand unwinds a hand that cannot continue (deck exhaustion). Every
// in-flight contribution is refunded so no chips are lost.
func (g *Game) abortHand(cause error) error {
	g.logger.Error("hand aborted", "err", cause)
	g.pots.RefundContributions(g.table.Players)
	if g.table.CurrentHand != nil {
		g.table.CurrentHand.Pot = models.Pot{Side: []models.SidePot{}}
	}
	g.table.Status = models.StatusWaiting
	g.stopActionTimer()
	g.emitState()
	g.removeLeavers()
	g.scheduleNextHand()
	return fmt.Errorf("hand aborted: %w", cause)
}

// removeLeavers clears seats whose players asked to leave mid-hand, now
// that the hand has resolved for them.
func (g *Game) removeLeavers() {
	for i, p := range g.table.Players {
		if p != nil && p.PendingLeave {
			g.table.Players[i] = nil
		}
	}
}

func (g *Game) scheduleNextHand() {
	delay := time.Duration(g.table.Config.NextHandDelay) * time.Second
	if delay <= 0 {
		delay = 3 * time.Second
	}
	if g.nextHandTimer != nil {
		g.nextHandTimer.Stop()
	}
	g.nextHandTimer = g.clock.AfterFunc(delay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.table.Status == models.StatusPlaying {
			return
		}
		if err := g.startNewHandLocked(); err != nil {
			g.logger.Info("next hand not started", "reason", err)
			g.emitState()
		}
	})
}

// currentActor returns the player at the acting position, or nil.
func (g *Game) currentActor() *models.Player {
	hand := g.table.CurrentHand
	if hand == nil || hand.CurrentPosition < 0 || hand.CurrentPosition >= len(g.table.Players) {
		return nil
	}
	return g.table.Players[hand.CurrentPosition]
}

// beginTurn opens the acting window for the current player and publishes
// the snapshot carrying the fresh deadline. A player with a pending leave
// is folded out immediately instead of burning the clock; the fold is its
// own mutation and emits through the normal path.
func (g *Game) beginTurn() {
	if g.table.Status != models.StatusPlaying {
		g.emitState()
		return
	}
	actor := g.currentActor()
	if actor == nil {
		g.emitState()
		return
	}

	if actor.PendingLeave {
		g.autoAct(actor)
		return
	}

	if timeout := g.table.Config.ActionTimeout; timeout > 0 {
		deadline := g.clock.Now().Add(time.Duration(timeout) * time.Second)
		g.table.CurrentHand.ActionDeadline = &deadline

		seq := g.table.CurrentHand.ActionSequence
		playerID := actor.PlayerID
		g.actionTimer = g.clock.AfterFunc(time.Duration(timeout)*time.Second, func() {
			g.handleDeadline(playerID, seq)
		})
	}
	g.emitState()
}

// handleDeadline fires when the acting window lapses with no valid action.
// The sequence guard discards a timer that lost the race with a real
// action.
func (g *Game) handleDeadline(playerID string, seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	hand := g.table.CurrentHand
	if g.table.Status != models.StatusPlaying || hand == nil || hand.ActionSequence != seq {
		return
	}
	actor := g.currentActor()
	if actor == nil || actor.PlayerID != playerID {
		return
	}

	actor.ConsecutiveTimeouts++
	if actor.ConsecutiveTimeouts >= 3 && actor.Status == models.StatusActive {
		// Escalation is applied between hands; the strike count is checked
		// at the next hand start.
		g.logger.Info("player timing out repeatedly", "player", playerID, "strikes", actor.ConsecutiveTimeouts)
	}
	g.autoAct(actor)
}

// autoAct applies the timeout default for the current actor: check when
// legal, fold otherwise. A pending leave always folds.
func (g *Game) autoAct(actor *models.Player) {
	hand := g.table.CurrentHand
	bv := bettingValidator{currentBet: hand.CurrentBet, minRaise: hand.MinRaise}

	action := models.ActionCheck
	if actor.PendingLeave || bv.facingBet(actor.Bet) {
		action = models.ActionFold
	}

	g.logger.Info("auto action", "player", actor.PlayerID, "action", action)
	if err := g.applyAction(actor, action, 0); err != nil {
		// Only reachable if the default was somehow illegal; fold is
		// unconditionally legal.
		actor.Status = models.StatusFolded
		actor.LastAction = models.ActionFold
	}
	g.finishTurn(actor)
}

func (g *Game) stopActionTimer() {
	if g.actionTimer != nil {
		g.actionTimer.Stop()
		g.actionTimer = nil
	}
	if g.table.CurrentHand != nil {
		g.table.CurrentHand.ActionDeadline = nil
	}
}

// MarkDisconnected flags a transport drop. The player stays in the hand
// with stack and commitments untouched; the timeout default applies when
// their turn comes.
func (g *Game) MarkDisconnected(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := findPlayerByID(g.table.Players, playerID)
	if p == nil {
		return
	}
	if p.Status == models.StatusActive {
		p.Status = models.StatusDisconnected
	}
	g.logger.Info("player disconnected", "player", playerID)
	g.emitState()
}

// MarkReconnected restores a disconnected player and cancels any pending
// leave.
func (g *Game) MarkReconnected(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := findPlayerByID(g.table.Players, playerID)
	if p == nil {
		return
	}
	p.PendingLeave = false
	if p.Status == models.StatusDisconnected {
		p.Status = models.StatusActive
	}
	g.logger.Info("player reconnected", "player", playerID)
	g.emitState()
}

// Stop cancels outstanding timers; used when the table is destroyed.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionTimer != nil {
		g.actionTimer.Stop()
	}
	if g.nextHandTimer != nil {
		g.nextHandTimer.Stop()
	}
}

func (g *Game) emit(event models.Event) {
	if g.onEvent != nil {
		g.onEvent(event)
	}
}

// emitState publishes the post-mutation snapshot. Rejected actions never
// reach here, so observers only ever see fully applied states.
func (g *Game) emitState() {
	g.emit(models.Event{
		Event:   models.EventGameState,
		TableID: g.table.TableID,
		Data:    g.buildSnapshot(),
	})
}

// Snapshot returns the current unmasked state; the gateway masks hole
// cards per recipient.
func (g *Game) Snapshot() *models.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buildSnapshot()
}
