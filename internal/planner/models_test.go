package planner

import "testing"

func TestNormalizeTime(t *testing.T) {
	cases := map[string]string{
		"18:00":   "18:00",
		"6pm":     "18:00",
		"6:30 PM": "18:30",
		"9:05am":  "09:05",
		"18":      "18:00",
		"":        "",
	}
	for in, want := range cases {
		got, err := NormalizeTime(in)
		if err != nil {
			t.Fatalf("NormalizeTime(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeTime(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := NormalizeTime("half past six"); err == nil {
		t.Fatalf("expected error for prose time")
	}
}

func TestNormalizeDate(t *testing.T) {
	got, err := NormalizeDate("2026/09/01")
	if err != nil || got != "2026-09-01" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := NormalizeDate("next tuesday"); err == nil {
		t.Fatalf("expected error for relative date")
	}
}

func TestBlocksOverlap(t *testing.T) {
	if !BlocksOverlap("09:00", "10:00", "09:30", "11:00") {
		t.Fatalf("expected overlap")
	}
	if BlocksOverlap("09:00", "10:00", "10:00", "11:00") {
		t.Fatalf("touching blocks must not overlap")
	}
	if !BlocksOverlap("09:00", "10:00", "bad", "11:00") {
		t.Fatalf("malformed times must count as overlapping")
	}
}

func TestBuildSnapshotCapsAndIsolation(t *testing.T) {
	src := &Snapshot{}
	for i := 0; i < maxSnapshotTasks+10; i++ {
		src.Tasks = append(src.Tasks, Task{ID: "t", Name: "task", Status: StatusPending})
	}
	snap := BuildSnapshot(src)
	if len(snap.Tasks) != maxSnapshotTasks {
		t.Fatalf("expected %d tasks, got %d", maxSnapshotTasks, len(snap.Tasks))
	}
	snap.Tasks[0].Name = "mutated"
	if src.Tasks[10].Name == "mutated" {
		t.Fatalf("snapshot must not alias source storage")
	}
}

func TestUnfinishedTasks(t *testing.T) {
	s := &Snapshot{Tasks: []Task{
		{ID: "a", Status: StatusPending},
		{ID: "b", Status: StatusCompleted},
		{ID: "c", Status: StatusPending},
	}}
	got := s.UnfinishedTasks()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected unfinished set: %+v", got)
	}
}
