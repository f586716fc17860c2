package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sensei-dev/sensei/pkg/recorder"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func makeInteraction(id, session string, offset time.Duration) recorder.Interaction {
	return recorder.Interaction{
		ID:          id,
		SessionID:   session,
		Subject:     "alice",
		Provider:    "ollama",
		UserMessage: "how do I add a webhook?",
		AIResponse:  "Use the Webhook node.",
		CreatedAt:   base.Add(offset),
	}
}

func TestSaveAndList(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	// Saved out of order on purpose.
	s.Save(ctx, makeInteraction("b", "s1", 2*time.Second))
	s.Save(ctx, makeInteraction("a", "s1", time.Second))
	s.Save(ctx, makeInteraction("c", "s2", 3*time.Second))

	got, err := s.ListBySession(ctx, "", "s1", 0)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("got %+v, want [a b]", got)
	}
}

func TestSaveConflict(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.Save(ctx, makeInteraction("x", "s", 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, makeInteraction("x", "s", 0)); !errors.Is(err, recorder.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestListScopedBySubject(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	mine := makeInteraction("1", "shared", 0)
	theirs := makeInteraction("2", "shared", time.Second)
	theirs.Subject = "bob"
	s.Save(ctx, mine)
	s.Save(ctx, theirs)

	got, _ := s.ListBySession(ctx, "alice", "shared", 0)
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("got %+v, want only alice's record", got)
	}
}

func TestListLimitKeepsNewest(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	for i := range 5 {
		s.Save(ctx, makeInteraction(fmt.Sprintf("i%d", i), "s", time.Duration(i)*time.Second))
	}

	got, _ := s.ListBySession(ctx, "", "s", 2)
	if len(got) != 2 || got[0].ID != "i3" || got[1].ID != "i4" {
		t.Errorf("got %+v, want [i3 i4]", got)
	}
}

func TestEvictsEarliestSaved(t *testing.T) {
	s := New(3)
	ctx := context.Background()
	for i := range 5 {
		s.Save(ctx, makeInteraction(fmt.Sprintf("i%d", i), "s", time.Duration(i)*time.Second))
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	got, _ := s.ListBySession(ctx, "", "s", 0)
	if got[0].ID != "i2" {
		t.Errorf("oldest remaining = %q, want i2", got[0].ID)
	}
}

func TestEmptySession(t *testing.T) {
	got, err := New(0).ListBySession(context.Background(), "", "nope", 0)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("got %v, %v; want empty non-nil slice", got, err)
	}
}

func TestEvictionAcrossSessions(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	s.Save(ctx, makeInteraction("a1", "a", 0))
	s.Save(ctx, makeInteraction("b1", "b", time.Second))
	s.Save(ctx, makeInteraction("b2", "b", 2*time.Second))

	if got, _ := s.ListBySession(ctx, "", "a", 0); len(got) != 0 {
		t.Errorf("session a = %+v, want evicted", got)
	}
	got, _ := s.ListBySession(ctx, "", "b", 0)
	if len(got) != 2 || got[0].ID != "b1" || got[1].ID != "b2" {
		t.Errorf("session b = %+v", got)
	}

	// Saving after eviction keeps the bound.
	s.Save(ctx, makeInteraction("a2", "a", 3*time.Second))
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if got, _ := s.ListBySession(ctx, "", "b", 0); len(got) != 1 || got[0].ID != "b2" {
		t.Errorf("session b after second eviction = %+v", got)
	}
}

func TestSameTimestampOrderedByID(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		s.Save(ctx, makeInteraction(id, "s", 0))
	}
	got, _ := s.ListBySession(ctx, "", "s", 0)
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("got %+v, want a b c", got)
	}
}
