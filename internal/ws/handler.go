package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardline/timeline-backend/internal/engine"
	"github.com/cardline/timeline-backend/internal/hub"
	"github.com/cardline/timeline-backend/internal/session"
	"github.com/cardline/timeline-backend/internal/types"
)

// Handler upgrades the connection and speaks the game protocol until the
// client goes away. Each connection is one player; the connection id doubles
// as the player id.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			hub:  h,
			log:  log,
			out:  make(chan types.ServerMessage, 32),
		}
		c.run(r.Context())
	}
}

type client struct {
	id      string
	conn    *websocket.Conn
	hub     *hub.Hub
	log     *zap.Logger
	out     chan types.ServerMessage
	current *session.Session // session this connection has joined, if any
}

func (c *client) run(ctx context.Context) {
	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go c.writer(writeCtx)

	// Every connection follows the lobby list for its lifetime.
	lobbies := make(chan []session.Summary, 4)
	c.hub.Inbox() <- hub.SubscribeLobbies{ClientID: c.id, Outbox: lobbies}
	go func() {
		for list := range lobbies {
			c.send(types.ServerMessage{Type: types.MsgLobbiesUpdate, Lobbies: list})
		}
	}()

	defer func() {
		c.leaveCurrent()
		c.hub.Inbox() <- hub.UnsubscribeLobbies{ClientID: c.id}
	}()

	// Reader loop
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			// Clean close/going-away and broken pipes all land here; the
			// deferred leave broadcasts playerLeft either way.
			return
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("bad json from client", zap.String("client", c.id), zap.Error(err))
			c.send(types.ServerMessage{Type: types.MsgError, Error: "bad json"})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *client) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.out:
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			_ = c.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

// send queues a message for the writer; a full queue drops the message, the
// next full snapshot heals the client.
func (c *client) send(msg types.ServerMessage) {
	select {
	case c.out <- msg:
	default:
	}
}

func (c *client) dispatch(msg types.ClientMessage) {
	switch msg.Type {
	case types.MsgCreateLobby:
		c.createLobby(msg)
	case types.MsgJoinLobby:
		c.joinByID(msg.LobbyID, msg.PlayerName)
	case types.MsgJoinGame:
		c.joinByID(msg.GameID, msg.PlayerName)
	case types.MsgStartGame:
		c.toSession(engine.Command{Type: engine.CmdStartGame, PlayerID: c.id})
	case types.MsgPlaceCard:
		c.placeCard(msg)
	case types.MsgSetReady:
		c.toSession(engine.Command{Type: engine.CmdSetReady, PlayerID: c.id, Ready: msg.Ready})
	case types.MsgRequestLobbies:
		reply := make(chan []session.Summary, 1)
		c.hub.Inbox() <- hub.ListLobbies{Reply: reply}
		c.send(types.ServerMessage{Type: types.MsgLobbiesUpdate, Lobbies: <-reply})
	case types.MsgGameStateUpdate:
		c.stateUpdate(msg)
	default:
		c.log.Warn("unknown message type", zap.String("client", c.id), zap.String("type", msg.Type))
		c.send(types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
	}
}

func (c *client) createLobby(msg types.ClientMessage) {
	if msg.Name == "" || msg.PlayerName == "" {
		c.log.Warn("createLobby missing fields", zap.String("client", c.id))
		return
	}
	gameType := engine.GameTypeCooperative
	if msg.GameType != "" {
		gt, ok := engine.ParseGameType(msg.GameType)
		if !ok {
			c.send(types.ServerMessage{Type: types.MsgError, Error: "unknown game type"})
			return
		}
		gameType = gt
	}

	reply := make(chan hub.Created, 1)
	c.hub.Inbox() <- hub.CreateSession{
		Name:     msg.Name,
		GameType: gameType,
		Category: msg.Category,
		Reply:    reply,
	}
	created := <-reply
	if created.Session == nil {
		c.send(types.ServerMessage{Type: types.MsgError, Error: "failed to create lobby"})
		return
	}
	c.joinSession(created.Session, msg.PlayerName)
	c.send(types.ServerMessage{Type: types.MsgJoinedLobby, LobbyID: created.ID, IsHost: true})
}

func (c *client) joinByID(id, playerName string) {
	if id == "" || playerName == "" {
		c.log.Warn("join missing fields", zap.String("client", c.id))
		return
	}
	reply := make(chan *session.Session, 1)
	c.hub.Inbox() <- hub.GetSession{ID: id, Reply: reply}
	s := <-reply
	if s == nil {
		c.send(types.ServerMessage{Type: types.MsgError, Error: "lobby not found"})
		return
	}
	c.joinSession(s, playerName)
	c.send(types.ServerMessage{Type: types.MsgJoinedLobby, LobbyID: id, IsHost: false})
}

// joinSession subscribes to the session's broadcasts and adds this
// connection's player to the roster. The session replies with a full
// snapshot immediately.
func (c *client) joinSession(s *session.Session, playerName string) {
	c.leaveCurrent()
	c.current = s

	outbox := make(chan session.Outbound, 16)
	go func() {
		for out := range outbox {
			c.send(outboundToMessage(out))
		}
	}()
	s.Inbox() <- session.Join{ClientID: c.id, Outbox: outbox}
	s.Inbox() <- session.FromClient{
		ClientID: c.id,
		Cmd:      engine.Command{Type: engine.CmdJoin, PlayerID: c.id, Name: playerName},
	}
}

func (c *client) leaveCurrent() {
	if c.current == nil {
		return
	}
	c.current.Inbox() <- session.Leave{ClientID: c.id}
	c.current = nil
}

func (c *client) toSession(cmd engine.Command) {
	if c.current == nil {
		c.send(types.ServerMessage{Type: types.MsgError, Error: "not in a game"})
		return
	}
	c.current.Inbox() <- session.FromClient{ClientID: c.id, Cmd: cmd}
}

func (c *client) placeCard(msg types.ClientMessage) {
	if msg.CardID == "" || msg.Index == nil {
		c.log.Warn("placeCard missing fields", zap.String("client", c.id))
		return
	}
	c.toSession(engine.Command{
		Type:     engine.CmdPlaceCard,
		PlayerID: c.id,
		CardID:   msg.CardID,
		Index:    *msg.Index,
	})
}

func (c *client) stateUpdate(msg types.ClientMessage) {
	if msg.State == nil {
		c.log.Warn("gameStateUpdate missing state", zap.String("client", c.id))
		return
	}
	if c.current == nil {
		c.send(types.ServerMessage{Type: types.MsgError, Error: "not in a game"})
		return
	}
	c.current.Inbox() <- session.Overwrite{
		ClientID: c.id,
		Version:  msg.Version,
		State:    *msg.State,
	}
}

func outboundToMessage(out session.Outbound) types.ServerMessage {
	switch {
	case out.Snapshot != nil:
		return types.ServerMessage{
			Type:    types.MsgGameState,
			Version: out.Snapshot.Version,
			State:   &out.Snapshot.State,
		}
	case out.Event != nil:
		return types.ServerMessage{
			Type:        out.Event.Name,
			PlayerID:    out.Event.PlayerID,
			PlayerName:  out.Event.PlayerName,
			PlayerCount: out.Event.PlayerCount,
			State:       out.Event.State,
		}
	default:
		return types.ServerMessage{Type: types.MsgError, Error: out.Err}
	}
}
