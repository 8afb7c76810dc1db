package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cardline/timeline-backend/internal/catalog"
	"github.com/cardline/timeline-backend/internal/engine"
	"github.com/cardline/timeline-backend/internal/session"
)

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Name     string
	GameType engine.GameType
	Category string
	Reply    chan Created
}

type Created struct {
	ID      string
	Session *session.Session
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type RemoveSession struct {
	ID string
}

type ListLobbies struct {
	Reply chan []session.Summary
}

type SubscribeLobbies struct {
	ClientID string
	Outbox   chan []session.Summary
}

type UnsubscribeLobbies struct {
	ClientID string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg()      {}
func (GetSession) isHubMsg()         {}
func (RemoveSession) isHubMsg()      {}
func (ListLobbies) isHubMsg()        {}
func (SubscribeLobbies) isHubMsg()   {}
func (UnsubscribeLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()        {}

// Hub owns the session map and the lobby list. Session actors report
// summary changes on a shared channel; every change fans out to the
// lobby-list subscribers.
type Hub struct {
	inbox       chan HubMsg
	sessions    map[string]*session.Session
	summaries   map[string]session.Summary
	subscribers map[string]chan []session.Summary
	updates     chan session.Summary
	catalog     *catalog.Catalog
	log         *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewHub(parent context.Context, cat *catalog.Catalog, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:       make(chan HubMsg, 64),
		sessions:    make(map[string]*session.Session),
		summaries:   make(map[string]session.Summary),
		subscribers: make(map[string]chan []session.Summary),
		updates:     make(chan session.Summary, 64),
		catalog:     cat,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case sum := <-h.updates:
			if sum.Closed {
				h.remove(sum.ID)
			} else {
				h.summaries[sum.ID] = sum
			}
			h.broadcastLobbies()

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				id, err := h.uniqueID()
				if err != nil {
					h.log.Error("generate session id", zap.Error(err))
					msg.Reply <- Created{}
					break
				}
				source := h.catalog.ByCategory(msg.Category)
				st := engine.NewState(msg.GameType, msg.Category, source)
				s := session.New(h.ctx, id, msg.Name, st, h.updates)
				h.sessions[id] = s
				h.summaries[id] = session.Summary{
					ID:        id,
					Name:      msg.Name,
					CreatedAt: time.Now(),
					GameType:  msg.GameType,
					Category:  msg.Category,
				}
				h.log.Info("session created",
					zap.String("id", id),
					zap.String("gameType", string(msg.GameType)),
					zap.String("category", msg.Category))
				h.broadcastLobbies()
				msg.Reply <- Created{ID: id, Session: s}

			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // May be nil

			case RemoveSession:
				h.remove(msg.ID)
				h.broadcastLobbies()

			case ListLobbies:
				msg.Reply <- h.lobbyList()

			case SubscribeLobbies:
				h.subscribers[msg.ClientID] = msg.Outbox
				select {
				case msg.Outbox <- h.lobbyList():
				default:
				}

			case UnsubscribeLobbies:
				if ch, ok := h.subscribers[msg.ClientID]; ok {
					close(ch)
					delete(h.subscribers, msg.ClientID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) remove(id string) {
	if s := h.sessions[id]; s != nil {
		s.Inbox() <- session.Shutdown{}
		h.log.Info("session removed", zap.String("id", id))
	}
	delete(h.sessions, id)
	delete(h.summaries, id)
}

func (h *Hub) lobbyList() []session.Summary {
	list := make([]session.Summary, 0, len(h.summaries))
	for _, s := range h.summaries {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (h *Hub) broadcastLobbies() {
	list := h.lobbyList()
	for id, ch := range h.subscribers {
		select {
		case ch <- list:
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(h.subscribers, id)
		}
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
	}
	clear(h.sessions)
	clear(h.summaries)
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.cancel()
}

// uniqueID draws 6-char codes until one is free.
func (h *Hub) uniqueID() (string, error) {
	for {
		id, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.sessions[id]; !taken {
			return id, nil
		}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
