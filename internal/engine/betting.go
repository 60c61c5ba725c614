package engine

import (
	"fmt"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

// bettingValidator checks an action against the current round context.
// With no outstanding bet the legal set is {check, bet}; facing a bet it
// is {fold, call, raise}. All-in is always legal and is exempt from the
// minimum-raise rule.
type bettingValidator struct {
	currentBet int
	minRaise   int
}

func (bv bettingValidator) facingBet(playerBet int) bool {
	return playerBet < bv.currentBet
}

func (bv bettingValidator) validateCheck(playerBet int) error {
	if bv.facingBet(playerBet) {
		return fmt.Errorf("%w: cannot check facing a bet of %d", ErrIllegalAction, bv.currentBet)
	}
	return nil
}

func (bv bettingValidator) validateBet(amount int) error {
	if bv.currentBet > 0 {
		return fmt.Errorf("%w: there is already a bet of %d, raise instead", ErrIllegalAction, bv.currentBet)
	}
	if amount < bv.minRaise {
		return fmt.Errorf("%w: bet %d is below the minimum of %d", ErrIllegalAction, amount, bv.minRaise)
	}
	return nil
}

// validateRaise checks a raise to a total of amount. The caller handles
// the short-stack case where the amount exceeds the player's chips.
func (bv bettingValidator) validateRaise(amount, playerBet int) error {
	if bv.currentBet == 0 {
		return fmt.Errorf("%w: no bet to raise, bet instead", ErrIllegalAction)
	}
	if amount < 0 {
		return fmt.Errorf("%w: negative raise amount", ErrIllegalAction)
	}
	if amount < playerBet {
		return fmt.Errorf("%w: raise to %d is below the %d already committed", ErrIllegalAction, amount, playerBet)
	}
	if amount < bv.minTotalBet() {
		return fmt.Errorf("%w: raise must be to at least %d (bet %d + min raise %d)",
			ErrIllegalAction, bv.minTotalBet(), bv.currentBet, bv.minRaise)
	}
	return nil
}

func (bv bettingValidator) validateAllIn(playerChips int) error {
	if playerChips <= 0 {
		return fmt.Errorf("%w: no chips to go all-in with", ErrIllegalAction)
	}
	return nil
}

// minTotalBet is the smallest total a full raise must reach: the standard
// no-limit rule of at least the previous bet or raise increment.
func (bv bettingValidator) minTotalBet() int {
	return bv.currentBet + bv.minRaise
}

// isFullRaise reports whether an all-in total reopens the betting for
// players who already matched the prior bet.
func (bv bettingValidator) isFullRaise(playerBet int) bool {
	return playerBet >= bv.minTotalBet()
}

// reopenBetting clears the acted flag for everyone who now faces a larger
// bet, except the raiser.
func reopenBetting(players []*models.Player, except *models.Player) {
	for _, p := range players {
		if p != nil && p != except && canAct(p) {
			p.HasActedThisRound = false
		}
	}
}
