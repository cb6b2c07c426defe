package store

import (
	"testing"

	"github.com/daybreak-hq/daybreak/internal/planner"
)

func TestCreateAndLookupUser(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := s.CreateUser("Sam@Example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Email != "sam@example.com" {
		t.Fatalf("email not normalized: %q", rec.Email)
	}
	if _, err := s.CreateUser("sam@example.com", "other"); err == nil {
		t.Fatal("duplicate email should be rejected")
	}
	got, err := s.UserByEmail("SAM@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID {
		t.Fatalf("lookup returned %q, want %q", got.ID, rec.ID)
	}
	if _, err := s.UserByEmail("nobody@example.com"); err != ErrNotFound {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestUserDataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := s.CreateUser("a@b.c", "hash")
	if err != nil {
		t.Fatal(err)
	}
	snap := &planner.Snapshot{Tasks: []planner.Task{{ID: "t1", Name: "laundry", Status: planner.StatusPending}}}
	if err := s.SaveUserData(rec.ID, snap); err != nil {
		t.Fatal(err)
	}

	// reopen to make sure it survived the process
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.GetUserData(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Name != "laundry" {
		t.Fatalf("reloaded data wrong: %+v", got)
	}
	if _, err := s2.UserByEmail("a@b.c"); err != nil {
		t.Fatalf("email index not rebuilt on reopen: %v", err)
	}
}

func TestEnsureCalendarTokenStable(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := s.CreateUser("a@b.c", "hash")
	if err != nil {
		t.Fatal(err)
	}
	tok, err := s.EnsureCalendarToken(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if tok == "" {
		t.Fatal("empty token")
	}
	again, err := s.EnsureCalendarToken(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again != tok {
		t.Fatalf("token changed between calls: %q vs %q", tok, again)
	}
}
