package engine

import (
	"sort"

	"github.com/cardline/timeline-backend/internal/catalog"
)

// Result is the outcome of a placement check. Delta is the signed distance
// from the submitted index to where the card belonged; clients use it to
// slide a misplaced card into position.
type Result struct {
	Correct bool `json:"correct"`
	Delta   int  `json:"delta"`
}

// CheckPlacement sorts the timeline plus the candidate by year (stable, so
// equal years keep their timeline order) and compares the candidate's sorted
// position with the submitted index. Out-of-range indexes are clamped and
// always incorrect.
func CheckPlacement(played []PlacedCard, candidate catalog.Card, index int) Result {
	type slot struct {
		id   string
		year int
	}
	slots := make([]slot, 0, len(played)+1)
	for _, p := range played {
		slots = append(slots, slot{id: p.ID, year: p.Year})
	}
	slots = append(slots, slot{id: candidate.ID, year: candidate.Year})
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].year < slots[j].year })

	correctIndex := 0
	for i, s := range slots {
		if s.id == candidate.ID {
			correctIndex = i
			break
		}
	}

	clamped, inRange := clampIndex(index, len(played))
	if inRange && clamped == correctIndex {
		return Result{Correct: true}
	}
	return Result{Correct: false, Delta: correctIndex - clamped}
}

// clampIndex bounds a submitted insertion index to [0, playedLen] and
// reports whether it was in range to begin with.
func clampIndex(index, playedLen int) (int, bool) {
	if index < 0 {
		return 0, false
	}
	if index > playedLen {
		return playedLen, false
	}
	return index, true
}
