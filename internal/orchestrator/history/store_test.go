package history

import (
	"testing"
	"time"
)

func TestStoreAddSkipsRepeats(t *testing.T) {
	s := NewStore(10, 4)
	if !s.Add(Event{Matches: []int{7}}) {
		t.Fatal("first event should be recorded")
	}
	if s.Add(Event{Matches: []int{7}}) {
		t.Error("repeated matches should be skipped")
	}
	if !s.Add(Event{Matches: []int{3, 7}}) {
		t.Error("different matches should be recorded")
	}
	if got := len(s.Recent(0)); got != 2 {
		t.Errorf("Recent(0) has %d events, want 2", got)
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(3, 4)
	for i := 0; i < 10; i++ {
		s.Add(Event{Matches: []int{i}})
	}
	got := s.Recent(0)
	if len(got) != 3 || got[0].Matches[0] != 7 || got[2].Matches[0] != 9 {
		t.Errorf("Recent = %+v, want ids 7..9", got)
	}
	if got := s.Recent(1); len(got) != 1 || got[0].Matches[0] != 9 {
		t.Errorf("Recent(1) = %+v", got)
	}
}

func TestStoreSince(t *testing.T) {
	s := NewStore(10, 4)
	s.Add(Event{Time: time.Now().Add(-5 * time.Minute), Matches: []int{1}})
	s.Add(Event{Matches: []int{2}})
	got := s.Since(time.Minute)
	if len(got) != 1 || got[0].Matches[0] != 2 {
		t.Errorf("Since = %+v", got)
	}
}

func TestSubscribe(t *testing.T) {
	s := NewStore(10, 4)
	ch, cancel := s.Subscribe()

	s.Add(Event{Matches: []int{5}})
	select {
	case e := <-ch:
		if e.Matches[0] != 5 {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	s.Add(Event{Matches: []int{6}})
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := NewStore(10, 1)
	ch, cancel := s.Subscribe()
	s.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	cancel()
}
