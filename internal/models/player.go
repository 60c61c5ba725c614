package models

type PlayerStatus string

const (
	StatusActive       PlayerStatus = "active"
	StatusFolded       PlayerStatus = "folded"
	StatusAllIn        PlayerStatus = "allin"
	StatusSittingOut   PlayerStatus = "sitting_out"
	StatusDisconnected PlayerStatus = "disconnected"
)

type PlayerAction string

const (
	ActionFold  PlayerAction = "fold"
	ActionCheck PlayerAction = "check"
	ActionCall  PlayerAction = "call"
	ActionBet   PlayerAction = "bet"
	ActionRaise PlayerAction = "raise"
	ActionAllIn PlayerAction = "allin"
)

// Player is a seated participant. The chip stack persists across hands;
// hole cards and per-round contribution reset every hand.
type Player struct {
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	SeatNumber int          `json:"seatNumber"`
	Chips      int          `json:"chips"`
	Status     PlayerStatus `json:"status"`
	Bet        int          `json:"bet"`
	Cards      []Card       `json:"cards"`

	IsDealer     bool `json:"isDealer"`
	IsSmallBlind bool `json:"isSmallBlind"`
	IsBigBlind   bool `json:"isBigBlind"`

	LastAction            PlayerAction `json:"lastAction,omitempty"`
	LastActionAmount      int          `json:"lastActionAmount,omitempty"`
	TotalInvestedThisHand int          `json:"totalInvestedThisHand"`

	HasActedThisRound   bool `json:"-"`
	ConsecutiveTimeouts int  `json:"-"`

	// PendingLeave marks a leave_table received mid-hand; honored as a fold
	// at the player's next turn, then removal at hand end.
	PendingLeave bool `json:"-"`
	// AwaitingNextHand marks a player seated while a hand was in progress;
	// they are dealt in at the next hand start.
	AwaitingNextHand bool `json:"-"`
}

func NewPlayer(id, name string, seatNumber, chips int) *Player {
	return &Player{
		PlayerID:   id,
		PlayerName: name,
		SeatNumber: seatNumber,
		Chips:      chips,
		Status:     StatusActive,
		Cards:      make([]Card, 0, 2),
	}
}

func (p *Player) AddChips(amount int) {
	p.Chips += amount
}

// PlaceBet moves up to amount from the stack into the player's round
// contribution. Committing the whole stack flips the player all-in.
func (p *Player) PlaceBet(amount int) {
	if amount >= p.Chips {
		amount = p.Chips
		p.Status = StatusAllIn
	}
	p.Chips -= amount
	p.Bet += amount
	p.TotalInvestedThisHand += amount
}

// ResetForHand clears all per-hand fields ahead of the next deal.
func (p *Player) ResetForHand() {
	p.Bet = 0
	p.Cards = make([]Card, 0, 2)
	p.IsDealer = false
	p.IsSmallBlind = false
	p.IsBigBlind = false
	p.LastAction = ""
	p.LastActionAmount = 0
	p.TotalInvestedThisHand = 0
	p.HasActedThisRound = false
	p.AwaitingNextHand = false
	if p.Status != StatusSittingOut && p.Status != StatusDisconnected && p.Chips > 0 {
		p.Status = StatusActive
	}
}
