package registry

import (
	"context"
	"testing"
	"time"

	"github.com/one-of-fifteen/backend/internal/engine"
	"github.com/one-of-fifteen/backend/internal/questions"
	"github.com/one-of-fifteen/backend/internal/session"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, func() questions.Source {
		return questions.NewBank(nil)
	}, time.Hour, nil)
}

func TestRegistry_EnsureThenGet_SamePointer(t *testing.T) {
	r := newTestRegistry(t)

	s1 := r.Ensure("GAME01")
	s2 := r.Get("GAME01")

	if s1 == nil || s2 == nil || s1 != s2 {
		t.Fatalf("expected the same session pointer")
	}
}

func TestRegistry_EnsureIsLazyAndIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	if got := r.Get("GAME01"); got != nil {
		t.Fatalf("sessions must not exist before first use")
	}

	s1 := r.Ensure("GAME01")
	s2 := r.Ensure("GAME01")
	if s1 != s2 {
		t.Fatalf("ensure must not replace a live session")
	}
}

func TestRegistry_RemoveShutsSessionDown(t *testing.T) {
	r := newTestRegistry(t)
	s := r.Ensure("GAME01")

	out := make(chan session.Outbound, 2)
	s.Inbox() <- session.Join{ConnID: "c1", Outbox: out}
	<-out // join snapshot

	r.Inbox() <- RemoveSession{GameID: "GAME01"}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected outbox to close after removal")
		}
	case <-time.After(time.Second):
		t.Fatalf("session not shut down on removal")
	}

	if got := r.Get("GAME01"); got != nil {
		t.Fatalf("removed session still resolvable")
	}

	// A new game under the same id starts from a clean lobby.
	fresh := r.Ensure("GAME01")
	reply := make(chan session.View, 1)
	fresh.Inbox() <- session.GetState{Reply: reply}
	view := <-reply
	if view.State.Status != engine.StatusLobby || view.Version != 0 {
		t.Fatalf("recreated session should start fresh, got %+v", view)
	}
}
