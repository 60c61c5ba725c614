package engine

import (
	"sort"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

type HandRank int

const (
	HighCard HandRank = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

func (hr HandRank) String() string {
	names := []string{"High Card", "One Pair", "Two Pair", "Three of a Kind", "Straight", "Flush", "Full House", "Four of a Kind", "Straight Flush", "Royal Flush"}
	return names[hr]
}

// HandEvaluation carries a totally ordered strength value. Two hands with
// equal Value are an exact tie and split the pot.
type HandEvaluation struct {
	Rank  HandRank
	Value int
	Cards []models.Card
}

// packValue encodes category and up to five tie-break ranks into one
// comparable integer: category in the high bits, then 4 bits per kicker in
// descending significance. Identical card sets always produce identical
// values.
func packValue(rank HandRank, kickers ...int) int {
	v := int(rank) << 20
	for i := 0; i < 5; i++ {
		k := 0
		if i < len(kickers) {
			k = kickers[i]
		}
		v |= k << uint(16-4*i)
	}
	return v
}

// EvaluateHand ranks the best 5-card hand available from the player's hole
// cards plus the community cards (2 to 7 cards total).
func EvaluateHand(holeCards []models.Card, communityCards []models.Card) HandEvaluation {
	allCards := append([]models.Card{}, holeCards...)
	allCards = append(allCards, communityCards...)

	sort.Slice(allCards, func(i, j int) bool {
		return allCards[i].Value() > allCards[j].Value()
	})

	if eval, ok := checkStraightFlush(allCards); ok {
		if eval.Cards[0].Value() == 14 && eval.Cards[1].Value() == 13 {
			eval.Rank = RoyalFlush
			eval.Value = packValue(RoyalFlush, 14)
		}
		return eval
	}
	if eval, ok := checkFourOfAKind(allCards); ok {
		return eval
	}
	if eval, ok := checkFullHouse(allCards); ok {
		return eval
	}
	if eval, ok := checkFlush(allCards); ok {
		return eval
	}
	if eval, ok := checkStraight(allCards); ok {
		return eval
	}
	if eval, ok := checkThreeOfAKind(allCards); ok {
		return eval
	}
	if eval, ok := checkTwoPair(allCards); ok {
		return eval
	}
	if eval, ok := checkOnePair(allCards); ok {
		return eval
	}
	return checkHighCard(allCards)
}

// CompareHands returns 1, -1 or 0 as eval1 is stronger, weaker or tied.
func CompareHands(eval1, eval2 HandEvaluation) int {
	if eval1.Value > eval2.Value {
		return 1
	}
	if eval1.Value < eval2.Value {
		return -1
	}
	return 0
}

// groupByRank buckets cards by rank, each bucket sorted high-first by the
// caller's pre-sort.
func groupByRank(cards []models.Card) map[int][]models.Card {
	groups := make(map[int][]models.Card)
	for _, card := range cards {
		groups[card.Value()] = append(groups[card.Value()], card)
	}
	return groups
}

// groupValuesBySize returns the distinct rank values that occur with at
// least n cards, descending.
func groupValuesBySize(groups map[int][]models.Card, n int) []int {
	values := make([]int, 0, len(groups))
	for v, g := range groups {
		if len(g) >= n {
			values = append(values, v)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))
	return values
}

// kickerValues returns the rank values of cards not matching any excluded
// rank, descending, up to n entries.
func kickerValues(cards []models.Card, exclude map[int]bool, n int) []int {
	out := make([]int, 0, n)
	for _, c := range cards {
		if exclude[c.Value()] {
			continue
		}
		out = append(out, c.Value())
		if len(out) == n {
			break
		}
	}
	return out
}

func kickerCards(cards []models.Card, exclude map[int]bool, n int) []models.Card {
	out := make([]models.Card, 0, n)
	for _, c := range cards {
		if exclude[c.Value()] {
			continue
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}

func checkStraightFlush(cards []models.Card) (HandEvaluation, bool) {
	suitMap := make(map[models.Suit][]models.Card)
	for _, card := range cards {
		suitMap[card.Suit] = append(suitMap[card.Suit], card)
	}

	for _, suitCards := range suitMap {
		if len(suitCards) >= 5 {
			if straight := findStraight(suitCards); len(straight) == 5 {
				high := straightHigh(straight)
				return HandEvaluation{Rank: StraightFlush, Value: packValue(StraightFlush, high), Cards: straight}, true
			}
		}
	}
	return HandEvaluation{}, false
}

func checkFourOfAKind(cards []models.Card) (HandEvaluation, bool) {
	groups := groupByRank(cards)
	quads := groupValuesBySize(groups, 4)
	if len(quads) == 0 {
		return HandEvaluation{}, false
	}

	quad := quads[0]
	exclude := map[int]bool{quad: true}
	kicker := kickerValues(cards, exclude, 1)
	best := append(append([]models.Card{}, groups[quad][:4]...), kickerCards(cards, exclude, 1)...)
	return HandEvaluation{Rank: FourOfAKind, Value: packValue(FourOfAKind, append([]int{quad}, kicker...)...), Cards: best}, true
}

func checkFullHouse(cards []models.Card) (HandEvaluation, bool) {
	groups := groupByRank(cards)
	trips := groupValuesBySize(groups, 3)
	if len(trips) == 0 {
		return HandEvaluation{}, false
	}

	trip := trips[0]
	pair := 0
	for v, g := range groups {
		if v != trip && len(g) >= 2 && v > pair {
			pair = v
		}
	}
	// With 7 cards a second set of trips also makes the pair.
	if len(trips) > 1 && trips[1] > pair {
		pair = trips[1]
	}
	if pair == 0 {
		return HandEvaluation{}, false
	}

	best := append(append([]models.Card{}, groups[trip][:3]...), groups[pair][:2]...)
	return HandEvaluation{Rank: FullHouse, Value: packValue(FullHouse, trip, pair), Cards: best}, true
}

func checkFlush(cards []models.Card) (HandEvaluation, bool) {
	suitMap := make(map[models.Suit][]models.Card)
	for _, card := range cards {
		suitMap[card.Suit] = append(suitMap[card.Suit], card)
	}

	for _, suitCards := range suitMap {
		if len(suitCards) >= 5 {
			sort.Slice(suitCards, func(i, j int) bool {
				return suitCards[i].Value() > suitCards[j].Value()
			})
			top := suitCards[:5]
			kickers := make([]int, 5)
			for i, c := range top {
				kickers[i] = c.Value()
			}
			return HandEvaluation{Rank: Flush, Value: packValue(Flush, kickers...), Cards: top}, true
		}
	}
	return HandEvaluation{}, false
}

func checkStraight(cards []models.Card) (HandEvaluation, bool) {
	if straight := findStraight(cards); len(straight) == 5 {
		high := straightHigh(straight)
		return HandEvaluation{Rank: Straight, Value: packValue(Straight, high), Cards: straight}, true
	}
	return HandEvaluation{}, false
}

// straightHigh returns the ranking high card of a found straight; the
// wheel (5-4-3-2-A) ranks as five-high.
func straightHigh(straight []models.Card) int {
	if straight[0].Value() == 5 && straight[4].Value() == 14 {
		return 5
	}
	return straight[0].Value()
}

// findStraight returns the five cards of the highest straight present, or
// nil. Input must be sorted descending by rank.
func findStraight(cards []models.Card) []models.Card {
	uniqueRanks := make(map[int]models.Card)
	for _, card := range cards {
		if _, exists := uniqueRanks[card.Value()]; !exists {
			uniqueRanks[card.Value()] = card
		}
	}

	values := make([]int, 0, len(uniqueRanks))
	for val := range uniqueRanks {
		values = append(values, val)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	run := []models.Card{uniqueRanks[values[0]]}
	for i := 1; i < len(values); i++ {
		if values[i-1]-values[i] == 1 {
			run = append(run, uniqueRanks[values[i]])
			if len(run) == 5 {
				return run
			}
		} else {
			run = []models.Card{uniqueRanks[values[i]]}
		}
	}

	// Wheel: A-2-3-4-5 with the ace low.
	if _, hasAce := uniqueRanks[14]; hasAce {
		wheel := []models.Card{}
		for _, val := range []int{5, 4, 3, 2} {
			card, exists := uniqueRanks[val]
			if !exists {
				return nil
			}
			wheel = append(wheel, card)
		}
		return append(wheel, uniqueRanks[14])
	}

	return nil
}

func checkThreeOfAKind(cards []models.Card) (HandEvaluation, bool) {
	groups := groupByRank(cards)
	trips := groupValuesBySize(groups, 3)
	if len(trips) == 0 {
		return HandEvaluation{}, false
	}

	trip := trips[0]
	exclude := map[int]bool{trip: true}
	kickers := kickerValues(cards, exclude, 2)
	best := append(append([]models.Card{}, groups[trip][:3]...), kickerCards(cards, exclude, 2)...)
	return HandEvaluation{Rank: ThreeOfAKind, Value: packValue(ThreeOfAKind, append([]int{trip}, kickers...)...), Cards: best}, true
}

func checkTwoPair(cards []models.Card) (HandEvaluation, bool) {
	groups := groupByRank(cards)
	pairs := groupValuesBySize(groups, 2)
	if len(pairs) < 2 {
		return HandEvaluation{}, false
	}

	hi, lo := pairs[0], pairs[1]
	exclude := map[int]bool{hi: true, lo: true}
	kickers := kickerValues(cards, exclude, 1)
	best := append(append([]models.Card{}, groups[hi][:2]...), groups[lo][:2]...)
	best = append(best, kickerCards(cards, exclude, 1)...)
	return HandEvaluation{Rank: TwoPair, Value: packValue(TwoPair, append([]int{hi, lo}, kickers...)...), Cards: best}, true
}

func checkOnePair(cards []models.Card) (HandEvaluation, bool) {
	groups := groupByRank(cards)
	pairs := groupValuesBySize(groups, 2)
	if len(pairs) == 0 {
		return HandEvaluation{}, false
	}

	pair := pairs[0]
	exclude := map[int]bool{pair: true}
	kickers := kickerValues(cards, exclude, 3)
	best := append(append([]models.Card{}, groups[pair][:2]...), kickerCards(cards, exclude, 3)...)
	return HandEvaluation{Rank: OnePair, Value: packValue(OnePair, append([]int{pair}, kickers...)...), Cards: best}, true
}

func checkHighCard(cards []models.Card) HandEvaluation {
	n := 5
	if len(cards) < n {
		n = len(cards)
	}
	top := cards[:n]
	kickers := make([]int, n)
	for i, c := range top {
		kickers[i] = c.Value()
	}
	return HandEvaluation{Rank: HighCard, Value: packValue(HighCard, kickers...), Cards: top}
}
