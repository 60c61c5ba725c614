package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// ErrDeckExhausted is returned when a draw exceeds the cards remaining.
// With 52 cards and at most 10 seats this is unreachable in normal play;
// the engine treats it as fatal for the hand and refunds contributions.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is a shuffled sequence of the 52 unique cards, consumed from the
// front by sequential draws. The shuffle uses crypto/rand: a predictable
// deck order is a direct cheating vector.
type Deck struct {
	cards []Card
}

func NewDeck() *Deck {
	d := &Deck{cards: make([]Card, 0, 52)}
	d.Reset()
	return d
}

func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	suits := []Suit{Hearts, Diamonds, Clubs, Spades}
	ranks := []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

	for _, suit := range suits {
		for _, rank := range ranks {
			d.cards = append(d.cards, Card{Rank: rank, Suit: suit})
		}
	}
	d.Shuffle()
}

// Shuffle performs a Fisher-Yates shuffle with cryptographically strong
// randomness.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; refusing to deal is safer than a biased shuffle.
			panic(fmt.Sprintf("deck shuffle: %v", err))
		}
		j := n.Int64()
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

func (d *Deck) Deal() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckExhausted
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, nil
}

func (d *Deck) DealMultiple(n int) ([]Card, error) {
	if len(d.cards) < n {
		return nil, fmt.Errorf("draw %d with %d remaining: %w", n, len(d.cards), ErrDeckExhausted)
	}
	cards := make([]Card, n)
	for i := 0; i < n; i++ {
		card, err := d.Deal()
		if err != nil {
			return nil, err
		}
		cards[i] = card
	}
	return cards, nil
}

func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}
