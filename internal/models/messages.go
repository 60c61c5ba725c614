package models

// Event is emitted by the engine after every completed mutation. The
// gateway fans it out to every client seated at the table.
type Event struct {
	Event   string      `json:"event"`
	TableID string      `json:"tableId"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	EventGameState    = "game_state"
	EventHandComplete = "hand_complete"
	EventPlayerBusted = "player_busted"
)

// PlayerState is one entry of the game_state player list, shaped for the
// browser client. Cards are masked to nil for everyone but the owning
// client except at showdown.
type PlayerState struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Chips        int      `json:"chips"`
	Position     int      `json:"position"`
	Cards        []string `json:"cards,omitempty"`
	Bet          int      `json:"bet"`
	Folded       bool     `json:"folded"`
	IsDealer     bool     `json:"isDealer"`
	IsSmallBlind bool     `json:"isSmallBlind"`
	IsBigBlind   bool     `json:"isBigBlind"`
	IsTurn       bool     `json:"isTurn"`
}

// WinnerSummary is attached to the hand-ending snapshot only.
type WinnerSummary struct {
	PlayerID string `json:"playerId"`
	Hand     string `json:"hand"`
	Amount   int    `json:"amount"`
}

// GameState is the immutable snapshot broadcast after each mutation.
// Field names mirror what the client's game page consumes.
type GameState struct {
	TableID        string         `json:"tableId"`
	Players        []PlayerState  `json:"players"`
	CommunityCards []string       `json:"communityCards"`
	Pot            int            `json:"pot"`
	CurrentBet     int            `json:"currentBet"`
	Phase          Phase          `json:"phase"`
	TurnTimer      int            `json:"turnTimer"`
	ActionSequence uint64         `json:"actionSequence"`
	Winner         *WinnerSummary `json:"winner,omitempty"`
}

// Intent is an identity-tagged inbound message after the gateway has
// resolved the session token. Phase carries the round the client saw when
// it submitted, so stale retransmits are rejected instead of replayed.
type Intent struct {
	Type      string `json:"type"`
	TableID   string `json:"tableId"`
	Name      string `json:"name,omitempty"`
	Action    string `json:"action,omitempty"`
	Amount    int    `json:"amount,omitempty"`
	Phase     string `json:"phase,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Seat      *int   `json:"seat,omitempty"`
	BuyIn     int    `json:"buyIn,omitempty"`
}
