package engine

import (
	"testing"

	"github.com/cardline/timeline-backend/internal/catalog"
)

// scriptRand replays the given ints (mod n) for randIntn and a fixed value
// for randFloat64, restoring the real generators afterwards.
func scriptRand(t *testing.T, ints []int, f float64) {
	t.Helper()
	origInt, origFloat := randIntn, randFloat64
	t.Cleanup(func() { randIntn, randFloat64 = origInt, origFloat })

	i := 0
	randIntn = func(n int) int {
		v := ints[i%len(ints)] % n
		i++
		return v
	}
	randFloat64 = func() float64 { return f }
}

func TestProximityThreshold(t *testing.T) {
	cases := []struct {
		playedCount int
		want        int
	}{
		{0, 110},
		{1, 100},
		{5, 60},
		{10, 10},
		{11, 1},
		{39, 1},
		{40, 5},
		{100, 5},
	}
	for _, tc := range cases {
		if got := proximityThreshold(tc.playedCount); got != tc.want {
			t.Fatalf("proximityThreshold(%d) = %d, want %d", tc.playedCount, got, tc.want)
		}
	}
}

func TestTooClose(t *testing.T) {
	played := []PlacedCard{placedCard("a", 1900)}
	// one played card: threshold 100
	if !tooClose(card("x", 1950), played) {
		t.Fatalf("1950 should be too close to 1900 at threshold 100")
	}
	if tooClose(card("x", 2010), played) {
		t.Fatalf("2010 should not be too close to 1900 at threshold 100")
	}
}

func TestDrawCard_RespectsBucketAndProximity(t *testing.T) {
	// bucket 2 (1800-2020), humans allowed, first candidate
	scriptRand(t, []int{2, 0}, 0.3)

	deck := []catalog.Card{
		card("ancient", -500),
		card("medieval", 1500),
		card("close", 1950), // within 100y of the played card
		card("modern", 2010),
	}
	played := []PlacedCard{placedCard("p", 1900)}

	got := drawCard(deck, played)
	if got.ID != "modern" {
		t.Fatalf("want modern, got %s", got.ID)
	}
}

func TestDrawCard_HumanExclusion(t *testing.T) {
	// bucket 2, avoid humans (float > 0.5), first candidate
	scriptRand(t, []int{2, 0}, 0.9)

	deck := []catalog.Card{
		{ID: "person", Label: "person", Year: 1900, InstanceOf: []string{"human"}},
		card("thing", 1950),
	}

	got := drawCard(deck, nil)
	if got.ID != "thing" {
		t.Fatalf("want thing, got %s", got.ID)
	}
}

func TestDrawCard_FallbackWholeDeck(t *testing.T) {
	// bucket 0 (-100000..1000) matches nothing, so the draw falls back to a
	// uniform pick from the whole deck.
	scriptRand(t, []int{0, 1}, 0.3)

	deck := []catalog.Card{card("x", 1900), card("y", 1950)}

	got := drawCard(deck, nil)
	if got.ID != "y" {
		t.Fatalf("want fallback pick y, got %s", got.ID)
	}
}

func TestDrawCard_NeverTooCloseWhenCandidatesExist(t *testing.T) {
	// Five played cards puts the threshold at 60. Every bucket holds a card
	// at least 60 years from all played ones, so the trap card 30 years from
	// a played card must never come up.
	played := []PlacedCard{
		placedCard("p1", 100),
		placedCard("p2", 600),
		placedCard("p3", 1100),
		placedCard("p4", 1850),
		placedCard("p5", 1950),
	}
	deck := []catalog.Card{
		card("b0", 300),
		card("b1", 1300),
		card("b2", 2015),
		card("trap", 1920),
	}

	for i := 0; i < 500; i++ {
		if got := drawCard(deck, played); got.ID == "trap" {
			t.Fatalf("drew a card 30 years from a played one despite candidates existing")
		}
	}
}

func TestDealOpeningInvariants(t *testing.T) {
	source := []catalog.Card{
		card("a", -2500), card("b", 300), card("c", 1200),
		card("d", 1500), card("e", 1850), card("f", 1950), card("g", 2010),
	}
	s := NewState(GameTypeCooperative, "", source)
	dealOpening(&s)

	if len(s.Played) != 1 || !s.Played[0].Correct {
		t.Fatalf("expected one correct seed card, got %+v", s.Played)
	}
	if s.Next == nil || s.NextButOne == nil {
		t.Fatalf("expected both draw slots filled")
	}
	if s.Next.ID == s.NextButOne.ID {
		t.Fatalf("next and nextButOne must differ")
	}
	assertDeckDisjoint(t, s)
	if len(s.Deck) != len(source)-3 {
		t.Fatalf("seed and both draws should leave the deck, have %d cards", len(s.Deck))
	}
}

func TestAdvanceDrawsRebuildsExhaustedDeck(t *testing.T) {
	source := []catalog.Card{
		card("a", -2500), card("b", 300), card("c", 1200), card("d", 1950),
	}
	s := NewState(GameTypeCooperative, "", source)
	s.Phase = PhaseInProgress
	s.Played = []PlacedCard{placedCard("a", -2500), placedCard("b", 300)}
	s.Deck = nil
	s.Next, s.NextButOne = nil, nil

	if !advanceDraws(&s) {
		t.Fatalf("expected a deck rebuild")
	}
	if s.Next == nil {
		t.Fatalf("expected next to be redrawn after rebuild")
	}
	assertDeckDisjoint(t, s)
}

func assertDeckDisjoint(t *testing.T, s State) {
	t.Helper()
	inPlay := map[string]bool{}
	for _, p := range s.Played {
		inPlay[p.ID] = true
	}
	if s.Next != nil && inPlay[s.Next.ID] {
		t.Fatalf("next %s is already played", s.Next.ID)
	}
	if s.NextButOne != nil && inPlay[s.NextButOne.ID] {
		t.Fatalf("nextButOne %s is already played", s.NextButOne.ID)
	}
	for _, c := range s.Deck {
		if inPlay[c.ID] {
			t.Fatalf("deck card %s is already played", c.ID)
		}
		if s.Next != nil && c.ID == s.Next.ID {
			t.Fatalf("deck card %s is also next", c.ID)
		}
		if s.NextButOne != nil && c.ID == s.NextButOne.ID {
			t.Fatalf("deck card %s is also nextButOne", c.ID)
		}
	}
}
