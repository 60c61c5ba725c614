package engine

import (
	"github.com/zzzchinguun/holdem-server/internal/models"
)

// buildSnapshot renders the table into the flat game_state shape the
// client consumes. Hole cards are included for every player here; the
// gateway masks them per recipient before sending. Callers hold g.mu.
func (g *Game) buildSnapshot() *models.GameState {
	t := g.table
	hand := t.CurrentHand

	state := &models.GameState{
		TableID:        t.TableID,
		Players:        make([]models.PlayerState, 0, len(t.Players)),
		CommunityCards: []string{},
		Phase:          models.PhaseWaiting,
	}

	var actorID string
	if t.Status == models.StatusPlaying {
		if actor := g.currentActor(); actor != nil {
			actorID = actor.PlayerID
		}
	}

	if hand != nil && t.Status != models.StatusWaiting {
		state.Phase = hand.Phase
		state.CurrentBet = hand.CurrentBet
		state.ActionSequence = hand.ActionSequence
		for _, card := range hand.CommunityCards {
			state.CommunityCards = append(state.CommunityCards, card.Display())
		}
		if hand.ActionDeadline != nil {
			remaining := int(hand.ActionDeadline.Sub(g.clock.Now()).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			state.TurnTimer = remaining
		}
	}

	pot := 0
	for _, p := range t.Players {
		if p != nil {
			pot += p.TotalInvestedThisHand
		}
	}
	if t.Status == models.StatusHandComplete && hand != nil {
		pot = hand.Pot.Total()
	}
	state.Pot = pot

	for _, p := range t.Players {
		if p == nil {
			continue
		}
		ps := models.PlayerState{
			ID:           p.PlayerID,
			Name:         p.PlayerName,
			Chips:        p.Chips,
			Position:     p.SeatNumber,
			Bet:          p.Bet,
			Folded:       p.Status == models.StatusFolded,
			IsDealer:     p.IsDealer,
			IsSmallBlind: p.IsSmallBlind,
			IsBigBlind:   p.IsBigBlind,
			IsTurn:       p.PlayerID == actorID,
		}
		for _, card := range p.Cards {
			ps.Cards = append(ps.Cards, card.Display())
		}
		state.Players = append(state.Players, ps)
	}

	// Winner summary rides only on the hand-ending snapshot. Split pots
	// surface the largest share; the full list goes to hand history.
	if t.Status == models.StatusHandComplete && len(t.Winners) > 0 {
		top := t.Winners[0]
		for _, w := range t.Winners[1:] {
			if w.Amount > top.Amount {
				top = w
			}
		}
		state.Winner = &models.WinnerSummary{
			PlayerID: top.PlayerID,
			Hand:     top.HandRank,
			Amount:   top.Amount,
		}
	}

	return state
}

// MaskForViewer copies the snapshot with every hole card hidden except the
// viewer's own, unless the hand reached showdown, where all non-folded
// hands are revealed. Early termination never reveals: its snapshot phase
// is not showdown.
func MaskForViewer(state *models.GameState, viewerID string) *models.GameState {
	masked := *state
	masked.Players = make([]models.PlayerState, len(state.Players))
	copy(masked.Players, state.Players)

	for i := range masked.Players {
		p := &masked.Players[i]
		if p.ID == viewerID {
			continue
		}
		if state.Phase == models.PhaseShowdown && !p.Folded {
			continue
		}
		p.Cards = nil
	}
	return &masked
}
