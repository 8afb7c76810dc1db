package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// Card is one entry of the trivia catalog. Cards are loaded once at startup
// and never mutated.
type Card struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Year        int      `json:"year"` // may be negative (BCE)
	InstanceOf  []string `json:"instance_of"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
}

func (c Card) HasTag(tag string) bool {
	return slices.Contains(c.InstanceOf, tag)
}

// Catalog is an immutable set of cards.
type Catalog struct {
	cards []Card
}

// New keeps the first card per id and skips entries without an id or label.
func New(cards []Card) *Catalog {
	kept := make([]Card, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if c.ID == "" || c.Label == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		kept = append(kept, c)
	}
	return &Catalog{cards: kept}
}

// LoadFile reads a JSON array of cards.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(cards), nil
}

func (c *Catalog) Len() int { return len(c.cards) }

// Cards returns a copy so callers can't reorder the catalog.
func (c *Catalog) Cards() []Card { return slices.Clone(c.cards) }

// ByCategory returns the cards tagged with category. An empty category means
// the whole catalog.
func (c *Catalog) ByCategory(category string) []Card {
	if category == "" {
		return c.Cards()
	}
	var out []Card
	for _, card := range c.cards {
		if card.HasTag(category) {
			out = append(out, card)
		}
	}
	return out
}
