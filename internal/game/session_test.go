package game

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSession_PublishesOnChange(t *testing.T) {
	s := NewSession("owner", abcd(t), nil)
	if s.ID == "" || s.Mode != ModeClassic {
		t.Fatalf("session %+v", s)
	}
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	if _, _, err := s.Handle(Click("A")); err != nil {
		t.Fatal(err)
	}
	select {
	case snap := <-ch:
		if snap.ClickedCount != 1 {
			t.Fatalf("clickedCount %d, want 1", snap.ClickedCount)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestSession_IgnoredAndRejectedDoNotPublish(t *testing.T) {
	s := NewSession("owner", abcd(t), nil)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	if _, _, err := s.Handle(Click("Z")); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err %v", err)
	}
	for _, id := range []string{"A", "A"} {
		_, _, _ = s.Handle(Click(id))
	}
	<-ch
	<-ch
	if _, res, _ := s.Handle(Click("B")); res != ResultIgnored {
		t.Fatalf("result %q, want ignored", res)
	}
	select {
	case snap := <-ch:
		t.Fatalf("unexpected publish %+v", snap)
	default:
	}
}

func TestSession_OneShotRefusesReplay(t *testing.T) {
	s := NewSession("owner", abcd(t), nil)
	s.OneShot = true

	// Reset while playing is still allowed.
	if _, _, err := s.Handle(Reset()); err != nil {
		t.Fatalf("reset while active: %v", err)
	}
	_, _, _ = s.Handle(Click("A"))
	_, _, _ = s.Handle(Click("A"))
	snap, _, err := s.Handle(Reset())
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("err %v, want ErrLocked", err)
	}
	if snap.Active || snap.Outcome == nil {
		t.Fatalf("snapshot %+v", snap)
	}
}

func TestSession_StateIsACopy(t *testing.T) {
	s := NewSession("owner", abcd(t), nil)
	_, _, _ = s.Handle(Click("A"))
	st := s.State()
	st.ClickedIDs[0] = "Z"
	if got := s.State().ClickedIDs[0]; got != "A" {
		t.Fatalf("session state mutated through copy: %q", got)
	}
}

func TestSession_ConcurrentClicksAreSerialized(t *testing.T) {
	d, _ := NewDeck(itemsN(50))
	s := NewSession("owner", d, nil)

	var wg sync.WaitGroup
	for _, it := range d.Items() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, _ = s.Handle(Click(id))
		}(it.ID)
	}
	wg.Wait()

	st := s.State()
	if st.Active || st.Score() != 50 || st.TopScore != 50 {
		t.Fatalf("state %+v", st)
	}
	if s.Total() != 50 {
		t.Fatalf("total %d", s.Total())
	}
}

func TestSession_EmptyDeckWinIsNotPublished(t *testing.T) {
	d, err := NewDeck(nil)
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession("owner", d, nil)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	snap := s.Snapshot()
	if snap.Phase != PhaseWon || snap.Outcome == nil || snap.Outcome.Score != 0 {
		t.Fatalf("snapshot %+v, want won with 0", snap)
	}
	select {
	case got := <-ch:
		t.Fatalf("empty-deck win was published: %+v", got)
	default:
	}
}
