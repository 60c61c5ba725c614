package models

import "fmt"

type Suit string
type Rank string

const (
	Hearts   Suit = "h"
	Diamonds Suit = "d"
	Clubs    Suit = "c"
	Spades   Suit = "s"
)

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "T"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

// Card is an immutable rank/suit pair.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// Display renders the card the way the browser client shows it, e.g. "A♥".
func (c Card) Display() string {
	symbols := map[Suit]string{
		Hearts:   "♥",
		Diamonds: "♦",
		Clubs:    "♣",
		Spades:   "♠",
	}
	return string(c.Rank) + symbols[c.Suit]
}

// Value returns the numeric rank, 2 through 14 with Ace high.
func (c Card) Value() int {
	switch c.Rank {
	case Two:
		return 2
	case Three:
		return 3
	case Four:
		return 4
	case Five:
		return 5
	case Six:
		return 6
	case Seven:
		return 7
	case Eight:
		return 8
	case Nine:
		return 9
	case Ten:
		return 10
	case Jack:
		return 11
	case Queen:
		return 12
	case King:
		return 13
	case Ace:
		return 14
	}
	return 0
}
