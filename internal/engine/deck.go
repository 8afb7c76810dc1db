package engine

import (
	"math/rand"
	"slices"

	"github.com/cardline/timeline-backend/internal/catalog"
)

// Era buckets spread draws across history instead of clustering in one
// century.
var eraBuckets = [][2]int{
	{-100000, 1000},
	{1000, 1800},
	{1800, 2020},
}

const humanTag = "human"

// Stubbed in tests.
var (
	randIntn    = rand.Intn
	randFloat64 = rand.Float64
)

// proximityThreshold is the minimum year gap between a candidate and any
// played card. It loosens as the timeline fills up.
func proximityThreshold(playedCount int) int {
	switch {
	case playedCount >= 40:
		return 5
	case playedCount >= 11:
		return 1
	default:
		return 110 - 10*playedCount
	}
}

func tooClose(card catalog.Card, played []PlacedCard) bool {
	distance := proximityThreshold(len(played))
	for _, p := range played {
		if abs(card.Year-p.Year) < distance {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// drawCard picks a random era bucket, decides with 50% probability to skip
// cards tagged human, and draws uniformly from the deck cards that fit and
// aren't too close to the timeline. If nothing qualifies it falls back to
// the whole deck, so a draw never fails while the deck is non-empty.
// Callers must not pass an empty deck.
func drawCard(deck []catalog.Card, played []PlacedCard) catalog.Card {
	bucket := eraBuckets[randIntn(len(eraBuckets))]
	avoidHumans := randFloat64() > 0.5

	var candidates []catalog.Card
	for _, c := range deck {
		if avoidHumans && c.HasTag(humanTag) {
			continue
		}
		if c.Year < bucket[0] || c.Year > bucket[1] {
			continue
		}
		if tooClose(c, played) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) > 0 {
		return candidates[randIntn(len(candidates))]
	}
	return deck[randIntn(len(deck))]
}

func removeCard(deck []catalog.Card, id string) []catalog.Card {
	out := make([]catalog.Card, 0, len(deck))
	for _, c := range deck {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// buildDeck is the category source minus everything already on the timeline.
func buildDeck(source []catalog.Card, played []PlacedCard) []catalog.Card {
	used := make(map[string]bool, len(played))
	for _, p := range played {
		used[p.ID] = true
	}
	deck := make([]catalog.Card, 0, len(source))
	for _, c := range source {
		if !used[c.ID] {
			deck = append(deck, c)
		}
	}
	return deck
}

// fillDrawSlots tops up Next and NextButOne from the deck. NextButOne is
// drawn as if Next were already on the timeline, so the two are never close
// duplicates of each other.
func fillDrawSlots(s *State) {
	if s.Next == nil && len(s.Deck) > 0 {
		c := drawCard(s.Deck, s.Played)
		s.Deck = removeCard(s.Deck, c.ID)
		s.Next = &c
	}
	if s.NextButOne == nil && len(s.Deck) > 0 {
		avoid := s.Played
		if s.Next != nil {
			avoid = append(slices.Clone(s.Played), PlacedCard{Card: *s.Next})
		}
		c := drawCard(s.Deck, avoid)
		s.Deck = removeCard(s.Deck, c.ID)
		s.NextButOne = &c
	}
}

// dealOpening rebuilds the deck and draw slots for a fresh game or round.
// An empty timeline gets seeded with one drawn card marked correct.
func dealOpening(s *State) {
	s.Deck = buildDeck(s.source, s.Played)
	if len(s.Played) == 0 && len(s.Deck) > 0 {
		seed := drawCard(s.Deck, nil)
		s.Deck = removeCard(s.Deck, seed.ID)
		s.Played = []PlacedCard{{Card: seed, Correct: true}}
	}
	s.Next, s.NextButOne = nil, nil
	fillDrawSlots(s)
	s.BadlyPlaced = nil
}

// advanceDraws shifts NextButOne into Next and draws a replacement. When the
// deck runs dry with both slots empty, it is rebuilt from the source minus
// the played timeline and draws restart. Reports whether a rebuild happened.
func advanceDraws(s *State) bool {
	s.Next, s.NextButOne = s.NextButOne, nil
	fillDrawSlots(s)
	if s.Next == nil && s.NextButOne == nil && len(s.Deck) == 0 {
		s.Deck = buildDeck(s.source, s.Played)
		fillDrawSlots(s)
		return s.Next != nil
	}
	return false
}
