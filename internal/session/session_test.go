package session

import (
	"context"
	"testing"
	"time"

	"github.com/cardline/timeline-backend/internal/catalog"
	"github.com/cardline/timeline-backend/internal/engine"
)

func testCards() []catalog.Card {
	return []catalog.Card{
		{ID: "a", Label: "a", Year: -2500},
		{ID: "b", Label: "b", Year: 300},
		{ID: "c", Label: "c", Year: 1200},
		{ID: "d", Label: "d", Year: 1500},
		{ID: "e", Label: "e", Year: 1850},
		{ID: "f", Label: "f", Year: 1950},
	}
}

// helper: receive one outbound message with a timeout so tests never hang
func recvOutbound(t *testing.T, ch <-chan Outbound, within time.Duration) Outbound {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return out
	case <-time.After(within):
		t.Fatalf("timed out waiting for outbound message")
		return Outbound{} // unreachable
	}
}

func recvSnapshot(t *testing.T, ch <-chan Outbound, within time.Duration) Snapshot {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case out, ok := <-ch:
			if !ok {
				t.Fatalf("client outbox closed unexpectedly")
			}
			if out.Snapshot != nil {
				return *out.Snapshot
			}
			// skip member events
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
			return Snapshot{} // unreachable
		}
	}
}

func recvNothing(t *testing.T, ch <-chan Outbound, within time.Duration) {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			return // closed is fine; nothing further can arrive
		}
		t.Fatalf("expected no message within %v, but got: %+v", within, out)
	case <-time.After(within):
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func joinPlayer(s *Session, clientID, name string, buf int) chan Outbound {
	out := make(chan Outbound, buf)
	s.Inbox() <- Join{ClientID: clientID, Outbox: out}
	s.Inbox() <- FromClient{ClientID: clientID, Cmd: engine.Command{Type: engine.CmdJoin, PlayerID: clientID, Name: name}}
	return out
}

func TestSession_JoinSendsSnapshotThenBroadcastsMutations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, "G1", "test lobby", engine.NewState(engine.GameTypeCooperative, "", testCards()), nil)

	out := make(chan Outbound, 8)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 0 || len(first.State.Players) != 0 {
		t.Fatalf("join should reply with the current empty state, got v%d %+v", first.Version, first.State.Players)
	}

	s.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdJoin, PlayerID: "c1", Name: "Ada"}}

	ev := recvOutbound(t, out, 100*time.Millisecond)
	if ev.Event == nil || ev.Event.Name != "playerJoined" || ev.Event.PlayerCount != 1 {
		t.Fatalf("want playerJoined event first, got %+v", ev)
	}
	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if snap.Version != 1 || len(snap.State.Players) != 1 {
		t.Fatalf("want version=1 with one player, got v%d", snap.Version)
	}

	s.Inbox() <- Shutdown{}
}

func TestSession_ErrorGoesOnlyToRequester(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, "G1", "test lobby", engine.NewState(engine.GameTypeCooperative, "", testCards()), nil)
	host := joinPlayer(s, "host", "Ada", 8)
	other := joinPlayer(s, "other", "Grace", 8)

	// drain join traffic
	recvSnapshot(t, host, 100*time.Millisecond)
	recvSnapshot(t, host, 100*time.Millisecond)
	recvSnapshot(t, host, 100*time.Millisecond)
	recvSnapshot(t, other, 100*time.Millisecond)
	recvSnapshot(t, other, 100*time.Millisecond)

	// Non-host tries to start; only they hear about it.
	s.Inbox() <- FromClient{ClientID: "other", Cmd: engine.Command{Type: engine.CmdStartGame, PlayerID: "other"}}

	errMsg := recvOutbound(t, other, 100*time.Millisecond)
	if errMsg.Err == "" {
		t.Fatalf("requester should get the rejection, got %+v", errMsg)
	}
	recvNothing(t, host, 100*time.Millisecond)

	reply := make(chan View, 1)
	s.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.State.Phase != engine.PhaseOpen {
		t.Fatalf("a rejected action must not change the phase")
	}

	s.Inbox() <- Shutdown{}
}

func TestSession_OverwriteRequiresCurrentVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, "G1", "test lobby", engine.NewState(engine.GameTypeCooperative, "", testCards()), nil)
	a := joinPlayer(s, "a", "Ada", 8)
	b := joinPlayer(s, "b", "Grace", 8)

	recvSnapshot(t, a, 100*time.Millisecond)
	recvSnapshot(t, a, 100*time.Millisecond)
	recvSnapshot(t, a, 100*time.Millisecond)
	recvSnapshot(t, b, 100*time.Millisecond)
	lastB := recvSnapshot(t, b, 100*time.Millisecond)

	// Stale overwrite loses.
	stale := lastB.State
	stale.Lives = 1
	s.Inbox() <- Overwrite{ClientID: "b", Version: lastB.Version - 1, State: stale}

	rej := recvOutbound(t, b, 100*time.Millisecond)
	if rej.Err == "" {
		t.Fatalf("stale overwrite should be rejected, got %+v", rej)
	}
	recvNothing(t, a, 100*time.Millisecond)

	// Current-version overwrite wins and goes to the other members only.
	fresh := lastB.State
	fresh.Lives = 2
	s.Inbox() <- Overwrite{ClientID: "b", Version: lastB.Version, State: fresh}

	got := recvSnapshot(t, a, 100*time.Millisecond)
	if got.Version != lastB.Version+1 || got.State.Lives != 2 {
		t.Fatalf("want v%d lives=2, got v%d lives=%d", lastB.Version+1, got.Version, got.State.Lives)
	}
	recvNothing(t, b, 100*time.Millisecond)

	s.Inbox() <- Shutdown{}
}

func TestSession_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, "G1", "test lobby", engine.NewState(engine.GameTypeCooperative, "", testCards()), nil)

	out := make(chan Outbound, 1)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	// The join snapshot fills the only buffer slot; the next broadcast drops
	// the client.
	s.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdJoin, PlayerID: "c1", Name: "Ada"}}

	reply := make(chan View, 1)
	s.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestSession_LastLeaveReportsClosedSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	summaries := make(chan Summary, 16)
	s := New(ctx, "G1", "test lobby", engine.NewState(engine.GameTypeCooperative, "", testCards()), summaries)

	out := joinPlayer(s, "c1", "Ada", 8)
	recvSnapshot(t, out, 100*time.Millisecond)
	recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- Leave{ClientID: "c1"}

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case sum := <-summaries:
			if sum.Closed {
				if sum.ID != "G1" {
					t.Fatalf("closed summary for wrong session: %+v", sum)
				}
				return
			}
		case <-deadline:
			t.Fatalf("never saw a closed summary after the last leave")
		}
	}
}
