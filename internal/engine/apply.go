package engine

import (
	"errors"
	"slices"
	"time"
)

var ErrUnknownPlayer = errors.New("unknown player")
var ErrNotHost = errors.New("only the host can start the game")
var ErrWrongPhase = errors.New("action not valid in current phase")
var ErrInsufficientContent = errors.New("not enough cards in category")
var ErrStaleCard = errors.New("card is no longer up for placement")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdJoin      CommandType = "Join"
	CmdLeave     CommandType = "Leave"
	CmdStartGame CommandType = "StartGame"
	CmdPlaceCard CommandType = "PlaceCard"
	CmdSetReady  CommandType = "SetReady"
)

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string
	CardID   string
	Index    int
	Ready    bool
}

type EventType string

const (
	EvtPlayerJoined     EventType = "PlayerJoined"
	EvtPlayerLeft       EventType = "PlayerLeft"
	EvtHostChanged      EventType = "HostChanged"
	EvtGameStarted      EventType = "GameStarted"
	EvtCardPlaced       EventType = "CardPlaced"
	EvtLifeLost         EventType = "LifeLost"
	EvtRoundAdvanced    EventType = "RoundAdvanced"
	EvtDeckRebuilt      EventType = "DeckRebuilt"
	EvtGameFinished     EventType = "GameFinished"
	EvtSessionAbandoned EventType = "SessionAbandoned"
)

type Event struct {
	Type       EventType
	PlayerID   string
	PlayerName string
	CardID     string
	Correct    bool
}

// Stubbed in tests.
var timeNow = time.Now

// Apply runs one command against a session state. On error the returned
// state is the input, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdStartGame:
		return applyStart(s, cmd)
	case CmdPlaceCard:
		return applyPlaceCard(s, cmd)
	case CmdSetReady:
		return applySetReady(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseFinished || s.Phase == PhaseAbandoned {
		return nil, s, ErrWrongPhase
	}

	newState := s
	newState.Players = slices.Clone(s.Players)

	for i := range newState.Players {
		if newState.Players[i].ID == cmd.PlayerID {
			// Reconnect: only the name is refreshed.
			newState.Players[i].Name = cmd.Name
			return []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID, PlayerName: cmd.Name}}, newState, nil
		}
	}

	p := Player{
		ID:     cmd.PlayerID,
		Name:   cmd.Name,
		IsHost: len(newState.Players) == 0,
		Lives:  DefaultLives,
	}
	newState.Players = append(newState.Players, p)
	return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID, PlayerName: p.Name}}, newState, nil
}

func applyLeave(s State, cmd Command) ([]Event, State, error) {
	idx := playerIndex(s.Players, cmd.PlayerID)
	if idx < 0 {
		return nil, s, ErrUnknownPlayer
	}
	leaving := s.Players[idx]

	newState := s
	newState.Players = slices.Delete(slices.Clone(s.Players), idx, idx+1)
	events := []Event{{Type: EvtPlayerLeft, PlayerID: leaving.ID, PlayerName: leaving.Name}}

	if len(newState.Players) == 0 {
		newState.Phase = PhaseAbandoned
		events = append(events, Event{Type: EvtSessionAbandoned})
		return events, newState, nil
	}
	if leaving.IsHost {
		newState.Players[0].IsHost = true
		events = append(events, Event{
			Type:       EvtHostChanged,
			PlayerID:   newState.Players[0].ID,
			PlayerName: newState.Players[0].Name,
		})
	}
	return events, newState, nil
}

func applyStart(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseOpen {
		return nil, s, ErrWrongPhase
	}
	idx := playerIndex(s.Players, cmd.PlayerID)
	if idx < 0 {
		return nil, s, ErrUnknownPlayer
	}
	if !s.Players[idx].IsHost {
		return nil, s, ErrNotHost
	}
	if len(s.source) < 2 {
		return nil, s, ErrInsufficientContent
	}

	newState := s
	newState.Phase = PhaseInProgress
	newState.CurrentRound = 1
	dealOpening(&newState)
	return []Event{{Type: EvtGameStarted}}, newState, nil
}

func applyPlaceCard(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseInProgress {
		return nil, s, ErrWrongPhase
	}
	idx := playerIndex(s.Players, cmd.PlayerID)
	if idx < 0 {
		return nil, s, ErrUnknownPlayer
	}
	if s.Next == nil || cmd.CardID != s.Next.ID {
		// Duplicate or late submission for a card that already advanced.
		return nil, s, ErrStaleCard
	}

	card := *s.Next
	res := CheckPlacement(s.Played, card, cmd.Index)
	insertAt, _ := clampIndex(cmd.Index, len(s.Played))

	newState := s
	newState.Players = slices.Clone(s.Players)
	placed := PlacedCard{
		Card:    card,
		Correct: res.Correct,
		Moves:   []Move{{PlayerID: cmd.PlayerID, Timestamp: timeNow().UnixMilli()}},
	}
	newState.Played = slices.Insert(slices.Clone(s.Played), insertAt, placed)

	events := []Event{{Type: EvtCardPlaced, PlayerID: cmd.PlayerID, CardID: card.ID, Correct: res.Correct}}

	if res.Correct {
		newState.BadlyPlaced = nil
	} else {
		newState.BadlyPlaced = &BadlyPlaced{Index: insertAt, Delta: res.Delta}
		events = append(events, Event{Type: EvtLifeLost, PlayerID: cmd.PlayerID})
		if newState.GameType == GameTypeCompetitive {
			if newState.Players[idx].Lives > 0 {
				newState.Players[idx].Lives--
			}
		} else if newState.Lives > 0 {
			newState.Lives--
		}
	}

	if advanceDraws(&newState) {
		events = append(events, Event{Type: EvtDeckRebuilt})
	}

	if newState.GameType == GameTypeCompetitive {
		if finishIfDecided(&newState) {
			events = append(events, Event{Type: EvtGameFinished})
		}
	} else if newState.Lives == 0 {
		// All lives lost.
		newState.Phase = PhaseFinished
		events = append(events, Event{Type: EvtGameFinished})
	}
	return events, newState, nil
}

func applySetReady(s State, cmd Command) ([]Event, State, error) {
	idx := playerIndex(s.Players, cmd.PlayerID)
	if idx < 0 {
		return nil, s, ErrUnknownPlayer
	}

	newState := s
	newState.Players = slices.Clone(s.Players)
	newState.Players[idx].Ready = cmd.Ready

	var events []Event
	if newState.GameType == GameTypeCompetitive &&
		newState.Phase == PhaseInProgress &&
		allReady(newState.Players) {
		// Barrier tripped: everyone checked in, advance the round.
		for i := range newState.Players {
			newState.Players[i].Ready = false
		}
		newState.CurrentRound++
		events = append(events, Event{Type: EvtRoundAdvanced})

		if finishIfDecided(&newState) {
			events = append(events, Event{Type: EvtGameFinished})
		} else {
			newState.Played = nil
			dealOpening(&newState)
		}
	}
	return events, newState, nil
}

// finishIfDecided assigns rankings and finishes the game once exactly one
// player is left alive. Players must already be cloned by the caller.
func finishIfDecided(s *State) bool {
	alive := -1
	count := 0
	for i, p := range s.Players {
		if p.Lives > 0 {
			alive = i
			count++
		}
	}
	if count != 1 {
		return false
	}
	for i := range s.Players {
		if i == alive {
			s.Players[i].Ranking = 1
		} else {
			s.Players[i].Ranking = 2
		}
	}
	s.Phase = PhaseFinished
	return true
}
