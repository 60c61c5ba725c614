package engine

import (
	"sort"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

// PotManager converts per-hand contributions into pot tiers and computes
// payouts. It is rebuilt from player contributions on every sweep, so the
// pot structure is always derivable from the contribution ledger and no
// chips can be created or destroyed by incremental bookkeeping drift.
type PotManager struct{}

func NewPotManager() *PotManager {
	return &PotManager{}
}

// potTier is an internal slice of the pot capped at a contribution level.
type potTier struct {
	amount   int
	eligible []string
}

// BuildPots splits the total contributions into one tier per distinct
// live contribution level, so every all-in depth gets its own pot and an
// uncalled excess ends up in a tier only its contributor can win. Folded
// players' chips stay in the tiers they contributed to but folded players
// are never eligible. The lowest tier is the main pot.
func (pm *PotManager) BuildPots(players []*models.Player) models.Pot {
	capSet := make(map[int]bool)
	for _, p := range players {
		if p != nil && isNotFolded(p) && p.TotalInvestedThisHand > 0 {
			capSet[p.TotalInvestedThisHand] = true
		}
	}
	caps := make([]int, 0, len(capSet))
	for c := range capSet {
		caps = append(caps, c)
	}
	sort.Ints(caps)

	tiers := make([]potTier, 0, len(caps)+1)
	prev := 0
	for _, tierCap := range caps {
		tier := potTier{}
		for _, p := range players {
			if p == nil {
				continue
			}
			contribution := min(p.TotalInvestedThisHand, tierCap) - min(p.TotalInvestedThisHand, prev)
			tier.amount += contribution
			if isNotFolded(p) && p.TotalInvestedThisHand > prev {
				tier.eligible = append(tier.eligible, p.PlayerID)
			}
		}
		if tier.amount > 0 {
			tiers = append(tiers, tier)
		}
		prev = tierCap
	}

	// A folded player can have contributed past the highest live level;
	// those chips belong to the top tier's eligible set.
	excess := 0
	for _, p := range players {
		if p != nil && p.TotalInvestedThisHand > prev {
			excess += p.TotalInvestedThisHand - prev
		}
	}
	if excess > 0 && len(tiers) > 0 {
		tiers[len(tiers)-1].amount += excess
	}

	if len(tiers) == 0 {
		return models.Pot{Side: []models.SidePot{}}
	}

	pot := models.Pot{
		Main:     tiers[0].amount,
		Eligible: tiers[0].eligible,
		Side:     make([]models.SidePot, 0, len(tiers)-1),
	}
	for _, tier := range tiers[1:] {
		pot.Side = append(pot.Side, models.SidePot{Amount: tier.amount, EligiblePlayers: tier.eligible})
	}
	return pot
}

// ReturnUncalled hands the top live contributor back the portion of their
// contribution no other player matched, and returns the amount. The
// refund is silent: those chips were never winnable by anybody else, so
// they are not reported as winnings. A folded top contributor forfeits
// their excess to the pot instead.
func (pm *PotManager) ReturnUncalled(players []*models.Player) int {
	var top *models.Player
	second := 0
	for _, p := range players {
		if p == nil || p.TotalInvestedThisHand == 0 {
			continue
		}
		if top == nil || p.TotalInvestedThisHand > top.TotalInvestedThisHand {
			if top != nil && top.TotalInvestedThisHand > second {
				second = top.TotalInvestedThisHand
			}
			top = p
		} else if p.TotalInvestedThisHand > second {
			second = p.TotalInvestedThisHand
		}
	}
	if top == nil || !isNotFolded(top) || top.TotalInvestedThisHand <= second {
		return 0
	}
	refund := top.TotalInvestedThisHand - second
	top.Chips += refund
	top.TotalInvestedThisHand = second
	return refund
}

// TakeRake removes the configured fee from the main pot before payout and
// returns the amount taken. Zero config means zero rake.
func (pm *PotManager) TakeRake(pot *models.Pot, cfg models.TableConfig) int {
	if cfg.RakePercent <= 0 {
		return 0
	}
	rake := pot.Total() * cfg.RakePercent / 100
	if cfg.RakeCap > 0 && rake > cfg.RakeCap {
		rake = cfg.RakeCap
	}
	if rake > pot.Main {
		rake = pot.Main
	}
	pot.Main -= rake
	return rake
}

// RefundContributions returns every player's in-flight chips to their
// stack. Used only when a hand aborts (deck exhaustion); conservation
// holds because refunds mirror the contribution ledger exactly.
func (pm *PotManager) RefundContributions(players []*models.Player) {
	for _, p := range players {
		if p == nil {
			continue
		}
		p.Chips += p.TotalInvestedThisHand
		p.TotalInvestedThisHand = 0
		p.Bet = 0
		if p.Status == models.StatusAllIn {
			p.Status = models.StatusActive
		}
	}
}

// DistributeWinnings awards each pot tier to its strongest eligible
// player(s). Ties split equally; indivisible remainder chips go to the
// tied winner(s) seated nearest the dealer's left, in action order, so
// awarding is deterministic. The summed payout equals the pot total
// exactly.
func DistributeWinnings(pot models.Pot, players []*models.Player, communityCards []models.Card, dealerPos int) []models.Winner {
	byID := make(map[string]*models.Player)
	for _, p := range players {
		if p != nil {
			byID[p.PlayerID] = p
		}
	}

	evals := make(map[string]HandEvaluation)
	amounts := make(map[string]int)
	ranks := make(map[string]string)

	tiers := []potTier{{amount: pot.Main, eligible: pot.Eligible}}
	for _, sp := range pot.Side {
		tiers = append(tiers, potTier{amount: sp.Amount, eligible: sp.EligiblePlayers})
	}

	for _, tier := range tiers {
		if tier.amount == 0 || len(tier.eligible) == 0 {
			continue
		}

		// Uncontested tier: single eligible player takes it without a
		// showdown (covers both early termination and uncalled excess).
		if len(tier.eligible) == 1 {
			id := tier.eligible[0]
			amounts[id] += tier.amount
			if ranks[id] == "" {
				ranks[id] = "Winner by default"
			}
			continue
		}

		best := -1
		tierWinners := []string{}
		for _, id := range tier.eligible {
			p := byID[id]
			if p == nil {
				continue
			}
			eval, done := evals[id]
			if !done {
				eval = EvaluateHand(p.Cards, communityCards)
				evals[id] = eval
			}
			switch {
			case eval.Value > best:
				best = eval.Value
				tierWinners = []string{id}
			case eval.Value == best:
				tierWinners = append(tierWinners, id)
			}
		}
		if len(tierWinners) == 0 {
			continue
		}

		sortByActionOrder(tierWinners, byID, dealerPos, len(players))

		share := tier.amount / len(tierWinners)
		remainder := tier.amount % len(tierWinners)
		for i, id := range tierWinners {
			amount := share
			if i < remainder {
				amount++
			}
			amounts[id] += amount
			ranks[id] = evals[id].Rank.String()
		}
	}

	winners := make([]models.Winner, 0, len(amounts))
	ids := make([]string, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	sortByActionOrder(ids, byID, dealerPos, len(players))
	for _, id := range ids {
		p := byID[id]
		winners = append(winners, models.Winner{
			PlayerID:   id,
			PlayerName: p.PlayerName,
			Amount:     amounts[id],
			HandRank:   ranks[id],
			HandCards:  evals[id].Cards,
		})
	}
	return winners
}

// sortByActionOrder orders player ids clockwise starting from the seat
// after the dealer button.
func sortByActionOrder(ids []string, byID map[string]*models.Player, dealerPos, seats int) {
	if seats == 0 {
		return
	}
	distance := func(id string) int {
		p := byID[id]
		if p == nil {
			return seats
		}
		return ((p.SeatNumber - dealerPos - 1) + seats*2) % seats
	}
	sort.Slice(ids, func(i, j int) bool {
		return distance(ids[i]) < distance(ids[j])
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
