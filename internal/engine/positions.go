package engine

import "github.com/zzzchinguun/holdem-server/internal/models"

// positionFinder walks the sparse seat slice clockwise, skipping seats
// that fail the filter. Seat order never compacts, so button and blind
// math stays correct when players leave mid-session.
type positionFinder struct {
	players []*models.Player
}

func (pf positionFinder) findNext(currentPos int, filter PlayerFilter) int {
	maxPlayers := len(pf.players)
	if maxPlayers == 0 {
		return 0
	}

	nextPos := (currentPos + 1) % maxPlayers
	for checked := 0; checked < maxPlayers; checked++ {
		if filter(pf.players[nextPos]) {
			return nextPos
		}
		nextPos = (nextPos + 1) % maxPlayers
	}
	return currentPos
}

// findNextActor returns the next seat whose player still has a decision.
func (pf positionFinder) findNextActor(currentPos int) int {
	return pf.findNext(currentPos, canAct)
}

// findNextDealer rotates the button to the next seat eligible for the
// coming hand. A negative current position means the first hand: the
// button starts at the first eligible seat.
func (pf positionFinder) findNextDealer(currentPos int) int {
	if currentPos < 0 || currentPos >= len(pf.players) {
		for i, p := range pf.players {
			if isEligibleForHand(p) {
				return i
			}
		}
		return 0
	}
	return pf.findNext(currentPos, isEligibleForHand)
}

// blindPositions computes small and big blind seats. Heads-up the dealer
// posts the small blind.
func (pf positionFinder) blindPositions(dealerPos, eligible int) (int, int) {
	if len(pf.players) == 0 {
		return 0, 0
	}
	if eligible == 2 {
		return dealerPos, pf.findNext(dealerPos, isEligibleForHand)
	}
	sbPos := pf.findNext(dealerPos, isEligibleForHand)
	bbPos := pf.findNext(sbPos, isEligibleForHand)
	return sbPos, bbPos
}
