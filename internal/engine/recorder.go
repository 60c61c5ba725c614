package engine

import "github.com/zzzchinguun/holdem-server/internal/models"

// HandRecorder receives the hand lifecycle for persistence. All methods
// are invoked with the game mutex held and must not call back into the
// game; implementations should hand off to their own storage quickly.
type HandRecorder interface {
	HandStarted(tableID string, hand *models.CurrentHand, numPlayers int)
	PlayerAction(tableID, handID, userID string, action models.PlayerAction, amount int, phase models.Phase)
	StreetDealt(tableID, handID string, phase models.Phase, community []models.Card)
	HandCompleted(tableID string, hand *models.CurrentHand, winners []models.Winner, rake int, showdown bool)
}
