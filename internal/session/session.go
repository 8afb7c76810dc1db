package session

import (
	"context"
	"time"

	"github.com/cardline/timeline-backend/internal/engine"
)

type Msg interface{ isSessionMsg() }

// FromClient carries one engine command. ClientID identifies where a
// rejection should be reported.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Outbound // where this client wants to receive messages
}

func (Join) isSessionMsg() {}

// Leave unsubscribes a connection and removes its player from the roster.
type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

// Overwrite replaces the whole state, but only if Version still matches the
// current one. The serialized loop stays the single writer; a racing
// overwrite loses instead of clobbering a newer state.
type Overwrite struct {
	ClientID string
	Version  int
	State    engine.State
}

func (Overwrite) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type Snapshot struct {
	Version int
	State   engine.State
}

// MemberEvent is a roster/lifecycle notice broadcast alongside snapshots.
// Name is the wire message type ("playerJoined", "playerLeft",
// "gameStarting").
type MemberEvent struct {
	Name        string
	PlayerID    string
	PlayerName  string
	PlayerCount int
	State       *engine.State // set for gameStarting
}

// Outbound is one message queued for a subscribed connection. Exactly one
// field is set.
type Outbound struct {
	Snapshot *Snapshot
	Event    *MemberEvent
	Err      string
}

// Summary is the lobby-list view of a session.
type Summary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Players     []string        `json:"players"`
	PlayerCount int             `json:"playerCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	GameStarted bool            `json:"gameStarted"`
	GameType    engine.GameType `json:"gameType"`
	Category    string          `json:"category,omitempty"`
	Closed      bool            `json:"-"`
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

// Session serializes every mutation to one game through its inbox and fans
// the resulting snapshots out to all subscribed connections in acceptance
// order.
type Session struct {
	id        string
	name      string
	createdAt time.Time
	inbox     chan Msg
	state     engine.State
	version   int
	clients   map[string]chan Outbound
	summaries chan<- Summary
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(parent context.Context, id, name string, initial engine.State, summaries chan<- Summary) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		id:        id,
		name:      name,
		createdAt: time.Now(),
		inbox:     make(chan Msg, 64),
		state:     initial,
		clients:   make(map[string]chan Outbound),
		summaries: summaries,
		ctx:       ctx,
		cancel:    cancel,
	}

	go s.loop()
	return s
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Outbound{Snapshot: &Snapshot{Version: s.version, State: s.state}}

			case Leave:
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
				}
				// A dropped connection is a leaving player.
				s.apply(msg.ClientID, engine.Command{Type: engine.CmdLeave, PlayerID: msg.ClientID})

			case FromClient:
				s.apply(msg.ClientID, msg.Cmd)

			case Overwrite:
				if msg.Version != s.version {
					s.replyErr(msg.ClientID, "stale state version")
					break
				}
				next := msg.State
				next.SetSource(s.state.Source())
				s.state = next
				s.version++
				s.broadcastExcept(msg.ClientID, Outbound{Snapshot: &Snapshot{Version: s.version, State: s.state}})
				s.reportSummary()

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					State:      s.state,
				}

			case Shutdown:
				s.shutdown()
				return
			}

			if s.state.Phase == engine.PhaseAbandoned {
				s.shutdown()
				return
			}
		}
	}
}

// apply runs one command; an error goes back to the requester only and
// leaves the state untouched.
func (s *Session) apply(clientID string, cmd engine.Command) {
	events, newState, err := engine.Apply(s.state, cmd)
	if err != nil {
		s.replyErr(clientID, err.Error())
		return
	}
	s.state = newState
	s.version++

	for _, ev := range events {
		if out, ok := s.memberEvent(ev); ok {
			s.broadcast(Outbound{Event: out})
		}
	}
	s.broadcast(Outbound{Snapshot: &Snapshot{Version: s.version, State: s.state}})
	s.reportSummary()
}

func (s *Session) memberEvent(ev engine.Event) (*MemberEvent, bool) {
	count := len(s.state.Players)
	switch ev.Type {
	case engine.EvtPlayerJoined:
		return &MemberEvent{Name: "playerJoined", PlayerID: ev.PlayerID, PlayerName: ev.PlayerName, PlayerCount: count}, true
	case engine.EvtPlayerLeft:
		return &MemberEvent{Name: "playerLeft", PlayerID: ev.PlayerID, PlayerName: ev.PlayerName, PlayerCount: count}, true
	case engine.EvtGameStarted:
		st := s.state
		return &MemberEvent{Name: "gameStarting", PlayerCount: count, State: &st}, true
	default:
		return nil, false
	}
}

// reportSummary tells the hub what the lobby list should show for this
// session. A closed summary must arrive, so it blocks; the rest are
// best-effort since the next mutation sends a fresher one anyway.
func (s *Session) reportSummary() {
	if s.summaries == nil {
		return
	}
	names := make([]string, 0, len(s.state.Players))
	for _, p := range s.state.Players {
		names = append(names, p.Name)
	}
	sum := Summary{
		ID:          s.id,
		Name:        s.name,
		Players:     names,
		PlayerCount: len(names),
		CreatedAt:   s.createdAt,
		GameStarted: s.state.Phase != engine.PhaseOpen,
		GameType:    s.state.GameType,
		Category:    s.state.Category,
		Closed:      s.state.Phase == engine.PhaseAbandoned,
	}
	if sum.Closed {
		select {
		case s.summaries <- sum:
		case <-s.ctx.Done():
		}
		return
	}
	select {
	case s.summaries <- sum:
	default:
	}
}

func (s *Session) replyErr(clientID, msg string) {
	ch, ok := s.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- Outbound{Err: msg}:
	default:
		close(ch)
		delete(s.clients, clientID)
	}
}

func (s *Session) broadcast(out Outbound) {
	s.broadcastExcept("", out)
}

func (s *Session) broadcastExcept(skipID string, out Outbound) {
	for id, ch := range s.clients {
		if id == skipID {
			continue
		}
		select {
		case ch <- out:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.clients {
		close(ch) // Tell client no more messages
		delete(s.clients, id)
	}
	s.cancel()
}
