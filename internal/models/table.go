package models

import "time"

type TableStatus string

const (
	StatusWaiting      TableStatus = "waiting"
	StatusPlaying      TableStatus = "playing"
	StatusHandComplete TableStatus = "handComplete"
)

// Phase is the strict linear hand sequence the client renders. Early
// termination (one non-folded player left) jumps straight to payout.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

type TableConfig struct {
	SmallBlind    int `json:"smallBlind"`
	BigBlind      int `json:"bigBlind"`
	MaxPlayers    int `json:"maxPlayers"`
	MinBuyIn      int `json:"minBuyIn,omitempty"`
	MaxBuyIn      int `json:"maxBuyIn,omitempty"`
	ActionTimeout int `json:"actionTimeout"` // seconds, 0 disables the deadline
	NextHandDelay int `json:"nextHandDelay"` // seconds between hands

	// RakePercent/RakeCap configure the per-hand fee. Both default to zero:
	// with no rake the chip conservation invariant is exact.
	RakePercent int `json:"rakePercent,omitempty"`
	RakeCap     int `json:"rakeCap,omitempty"`
}

// SidePot is a contribution tier above the main pot, contestable only by
// the players who contributed past the tier below it.
type SidePot struct {
	Amount          int      `json:"amount"`
	EligiblePlayers []string `json:"eligiblePlayers"`
}

// Pot holds the swept chips for the current hand. Main is capped at the
// lowest all-in contribution and contestable by every non-folded
// contributor; Side pots are ordered by ascending contribution tier.
type Pot struct {
	Main     int       `json:"main"`
	Eligible []string  `json:"eligible,omitempty"`
	Side     []SidePot `json:"side,omitempty"`
}

func (p Pot) Total() int {
	total := p.Main
	for _, sp := range p.Side {
		total += sp.Amount
	}
	return total
}

type CurrentHand struct {
	HandID             string     `json:"handId"`
	HandNumber         int        `json:"handNumber"`
	DealerPosition     int        `json:"dealerPosition"`
	SmallBlindPosition int        `json:"smallBlindPosition"`
	BigBlindPosition   int        `json:"bigBlindPosition"`
	CurrentPosition    int        `json:"currentPosition"`
	Phase              Phase      `json:"phase"`
	CommunityCards     []Card     `json:"communityCards"`
	Pot                Pot        `json:"pot"`
	CurrentBet         int        `json:"currentBet"`
	MinRaise           int        `json:"minRaise"`
	ActionDeadline     *time.Time `json:"actionDeadline,omitempty"`
	ActionSequence     uint64     `json:"actionSequence"`
}

type Winner struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Amount     int    `json:"amount"`
	HandRank   string `json:"handRank"`
	HandCards  []Card `json:"handCards,omitempty"`
}

// Table is the single owner of all mutable hand state. Seats are sparse:
// a nil entry is an empty seat and seat order never compacts, so button
// and blind positions stay stable when players leave mid-session.
type Table struct {
	TableID     string       `json:"tableId"`
	Status      TableStatus  `json:"status"`
	Config      TableConfig  `json:"config"`
	CurrentHand *CurrentHand `json:"currentHand,omitempty"`
	Players     []*Player    `json:"players"`
	Winners     []Winner     `json:"winners,omitempty"`
	Deck        *Deck        `json:"-"`
	RakeTaken   int          `json:"rakeTaken"`
	CreatedAt   time.Time    `json:"createdAt"`
}
