package engine

import (
	"github.com/cardline/timeline-backend/internal/catalog"
)

type GameType string

const (
	GameTypeCooperative GameType = "cooperative"
	GameTypeCompetitive GameType = "competitive"
)

// ParseGameType validates a client-supplied game type string.
func ParseGameType(s string) (GameType, bool) {
	switch s {
	case string(GameTypeCooperative):
		return GameTypeCooperative, true
	case string(GameTypeCompetitive):
		return GameTypeCompetitive, true
	default:
		return "", false
	}
}

type Phase string

const (
	PhaseOpen       Phase = "open"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
	PhaseAbandoned  Phase = "abandoned"
)

const DefaultLives = 3

type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsHost  bool   `json:"isHost"`
	Lives   int    `json:"lives"`
	Ready   bool   `json:"ready"`
	Ranking int    `json:"ranking,omitempty"` // 0 until assigned
}

// Move records who repositioned a card and when (ms since epoch).
type Move struct {
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

// PlacedCard is a card on the timeline. Timeline order is insertion order,
// not year order: an incorrectly placed card stays where it was dropped.
type PlacedCard struct {
	catalog.Card
	Correct bool   `json:"correct"`
	Moves   []Move `json:"moves,omitempty"`
}

// BadlyPlaced points at the most recent incorrect placement so clients can
// slide the card to where it belonged.
type BadlyPlaced struct {
	Index int `json:"index"`
	Delta int `json:"delta"`
}

// State is the full authoritative state of one session. It is broadcast
// whole after every accepted mutation.
type State struct {
	Phase        Phase          `json:"phase"`
	GameType     GameType       `json:"gameType"`
	Category     string         `json:"category,omitempty"`
	Players      []Player       `json:"players"`
	Deck         []catalog.Card `json:"deck"`
	Played       []PlacedCard   `json:"played"`
	Next         *catalog.Card  `json:"next"`
	NextButOne   *catalog.Card  `json:"nextButOne"`
	BadlyPlaced  *BadlyPlaced   `json:"badlyPlaced"`
	Lives        int            `json:"lives"` // session lives (cooperative mode)
	CurrentRound int            `json:"currentRound"`

	// source is the category card pool deck (re)builds draw from. It stays
	// out of snapshots; clients only see the live deck.
	source []catalog.Card
}

// NewState returns an open (pre-game) session state.
func NewState(gameType GameType, category string, source []catalog.Card) State {
	return State{
		Phase:    PhaseOpen,
		GameType: gameType,
		Category: category,
		Lives:    DefaultLives,
		source:   source,
	}
}

// SetSource re-attaches the card pool, e.g. after a state arrived over the
// wire without it.
func (s *State) SetSource(cards []catalog.Card) { s.source = cards }

func (s State) Source() []catalog.Card { return s.source }

func playerIndex(players []Player, id string) int {
	for i, p := range players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func allReady(players []Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return true
}
