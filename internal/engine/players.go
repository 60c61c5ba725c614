package engine

import "github.com/zzzchinguun/holdem-server/internal/models"

type PlayerFilter func(*models.Player) bool

// inHand covers every status that keeps a player contesting the pot.
// Disconnected players stay in the hand until their deadline lapses.
func inHand(p *models.Player) bool {
	return p != nil && (p.Status == models.StatusActive || p.Status == models.StatusAllIn || p.Status == models.StatusDisconnected)
}

func isNotFolded(p *models.Player) bool {
	return p != nil && p.Status != models.StatusFolded && p.Status != models.StatusSittingOut
}

// canAct excludes all-in players, who have no further decisions.
func canAct(p *models.Player) bool {
	return inHand(p) && p.Status != models.StatusAllIn
}

// isEligibleForHand selects players who can be dealt into the next hand.
func isEligibleForHand(p *models.Player) bool {
	return p != nil && p.Status != models.StatusSittingOut && !p.AwaitingNextHand && p.Chips > 0
}

func countPlayers(players []*models.Player, filter PlayerFilter) int {
	count := 0
	for _, p := range players {
		if filter(p) {
			count++
		}
	}
	return count
}

func findPlayerByID(players []*models.Player, playerID string) *models.Player {
	for _, p := range players {
		if p != nil && p.PlayerID == playerID {
			return p
		}
	}
	return nil
}
