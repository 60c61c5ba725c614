package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

func seatPlayers(invested ...int) []*models.Player {
	players := make([]*models.Player, len(invested))
	for i, amount := range invested {
		p := models.NewPlayer(playerID(i), playerID(i), i, 1000)
		p.TotalInvestedThisHand = amount
		players[i] = p
	}
	return players
}

func playerID(i int) string {
	return string(rune('a' + i))
}

func TestBuildPots_ThreeWayAllIn(t *testing.T) {
	// Stacks 50, 150 and 300 all in: main pot 150 for everyone, a 200 side
	// pot for the two bigger stacks, and the uncalled 150 back to the
	// biggest stack as a pot only it can win.
	players := seatPlayers(50, 150, 300)
	players[0].Status = models.StatusAllIn
	players[1].Status = models.StatusAllIn

	pot := NewPotManager().BuildPots(players)

	assert.Equal(t, 150, pot.Main)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, pot.Eligible)
	require.Len(t, pot.Side, 2)
	assert.Equal(t, 200, pot.Side[0].Amount)
	assert.ElementsMatch(t, []string{"b", "c"}, pot.Side[0].EligiblePlayers)
	assert.Equal(t, 150, pot.Side[1].Amount)
	assert.ElementsMatch(t, []string{"c"}, pot.Side[1].EligiblePlayers)
	assert.Equal(t, 500, pot.Total())
}

func TestBuildPots_FoldedChipsStayButFolderIneligible(t *testing.T) {
	players := seatPlayers(100, 100, 40)
	players[2].Status = models.StatusFolded

	pot := NewPotManager().BuildPots(players)

	assert.Equal(t, 240, pot.Main)
	assert.ElementsMatch(t, []string{"a", "b"}, pot.Eligible)
	assert.Empty(t, pot.Side)
}

func TestBuildPots_FoldedExcessAboveTopLiveCap(t *testing.T) {
	// The folder put in more than any live player; the overage joins the
	// top pot rather than vanishing.
	players := seatPlayers(100, 60, 60)
	players[0].Status = models.StatusFolded

	pot := NewPotManager().BuildPots(players)

	assert.Equal(t, 220, pot.Main)
	assert.ElementsMatch(t, []string{"b", "c"}, pot.Eligible)
	assert.Empty(t, pot.Side)
	assert.Equal(t, 220, pot.Total())
}

func TestBuildPots_Empty(t *testing.T) {
	pot := NewPotManager().BuildPots(seatPlayers(0, 0))
	assert.Equal(t, 0, pot.Total())
}

func TestTakeRake(t *testing.T) {
	t.Run("zero config takes nothing", func(t *testing.T) {
		pot := models.Pot{Main: 500}
		rake := NewPotManager().TakeRake(&pot, models.TableConfig{})
		assert.Equal(t, 0, rake)
		assert.Equal(t, 500, pot.Main)
	})

	t.Run("percent with cap", func(t *testing.T) {
		pot := models.Pot{Main: 1000}
		cfg := models.TableConfig{RakePercent: 5, RakeCap: 30}
		rake := NewPotManager().TakeRake(&pot, cfg)
		assert.Equal(t, 30, rake)
		assert.Equal(t, 970, pot.Main)
	})
}

func TestRefundContributions(t *testing.T) {
	players := seatPlayers(50, 150)
	players[0].Chips = 0
	players[0].Status = models.StatusAllIn
	players[1].Chips = 850

	NewPotManager().RefundContributions(players)

	assert.Equal(t, 50, players[0].Chips)
	assert.Equal(t, models.StatusActive, players[0].Status)
	assert.Equal(t, 1000, players[1].Chips)
	assert.Equal(t, 0, players[0].TotalInvestedThisHand)
}

func TestDistributeWinnings_SidePotsGoToRightHands(t *testing.T) {
	// Short stack holds the best hand overall; it wins only the main pot,
	// the side pot goes to the better of the remaining two.
	players := seatPlayers(50, 150, 150)
	players[0].Status = models.StatusAllIn
	players[0].Cards = cards("Ah", "Ad")
	players[1].Cards = cards("Kh", "Kd")
	players[2].Cards = cards("2c", "7d")
	community := cards("3h", "8s", "Tc", "Jd", "4h")

	pot := NewPotManager().BuildPots(players)
	require.Equal(t, 150, pot.Main)
	require.Len(t, pot.Side, 1)
	require.Equal(t, 200, pot.Side[0].Amount)

	winners := DistributeWinnings(pot, players, community, 0)

	byID := map[string]int{}
	for _, w := range winners {
		byID[w.PlayerID] += w.Amount
	}
	assert.Equal(t, 150, byID["a"])
	assert.Equal(t, 200, byID["b"])
	assert.Equal(t, 0, byID["c"])
}

func TestDistributeWinnings_SplitPotOddChip(t *testing.T) {
	// Both play the board straight and split 45: the odd chip goes to the
	// seat closest to the dealer's left.
	players := seatPlayers(0, 22, 23)
	players[0].Status = models.StatusFolded
	players[1].Cards = cards("2c", "3c")
	players[2].Cards = cards("Kc", "2d")
	community := cards("4h", "5s", "6c", "7d", "8h")

	pot := models.Pot{Main: 45, Eligible: []string{"b", "c"}}
	winners := DistributeWinnings(pot, players, community, 2)

	require.Len(t, winners, 2)
	byID := map[string]int{}
	for _, w := range winners {
		byID[w.PlayerID] = w.Amount
	}
	// Dealer at seat 2: counting clockwise from its left, b (seat 1) comes
	// before c (seat 2), so b takes the extra chip.
	assert.Equal(t, 23, byID["b"])
	assert.Equal(t, 22, byID["c"])
	assert.Equal(t, 45, byID["b"]+byID["c"])
}

func TestDistributeWinnings_UncontestedTierPaysWithoutEvaluation(t *testing.T) {
	players := seatPlayers(30, 30)
	players[0].Status = models.StatusFolded
	players[1].Cards = nil // never dealt in this scenario

	pot := models.Pot{Main: 60, Eligible: []string{"b"}}
	winners := DistributeWinnings(pot, players, nil, 0)

	require.Len(t, winners, 1)
	assert.Equal(t, "b", winners[0].PlayerID)
	assert.Equal(t, 60, winners[0].Amount)
	assert.Equal(t, "Winner by default", winners[0].HandRank)
}

func TestDistributeWinnings_ConservesChips(t *testing.T) {
	players := seatPlayers(50, 150, 300, 120)
	players[0].Status = models.StatusAllIn
	players[1].Status = models.StatusAllIn
	players[3].Status = models.StatusFolded
	players[0].Cards = cards("Ah", "Kh")
	players[1].Cards = cards("Qc", "Qd")
	players[2].Cards = cards("9s", "9d")
	community := cards("2h", "5s", "9c", "Jd", "4h")

	pot := NewPotManager().BuildPots(players)
	winners := DistributeWinnings(pot, players, community, 0)

	paid := 0
	for _, w := range winners {
		paid += w.Amount
	}
	assert.Equal(t, pot.Total(), paid)
	assert.Equal(t, 50+150+300+120, pot.Total())
}
