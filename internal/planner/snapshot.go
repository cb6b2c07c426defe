package planner

// Caps applied when projecting state into prompt context. The model never
// needs more than this, and oversized snapshots blow the token budget.
const (
	maxSnapshotTasks  = 120
	maxSnapshotGoals  = 40
	maxSnapshotHabits = 40
	maxSnapshotBlocks = 200
)

// BuildSnapshot clones a stored snapshot into the bounded projection handed
// to the model. The copy is deep enough that tool mutations during a turn
// never leak into what the planning prompt already rendered.
func BuildSnapshot(src *Snapshot) *Snapshot {
	if src == nil {
		return &Snapshot{}
	}
	out := &Snapshot{Profile: src.Profile}
	out.Tasks = append(out.Tasks, src.Tasks...)
	if len(out.Tasks) > maxSnapshotTasks {
		out.Tasks = out.Tasks[len(out.Tasks)-maxSnapshotTasks:]
	}
	out.Goals = append(out.Goals, src.Goals...)
	if len(out.Goals) > maxSnapshotGoals {
		out.Goals = out.Goals[len(out.Goals)-maxSnapshotGoals:]
	}
	out.Habits = append(out.Habits, src.Habits...)
	if len(out.Habits) > maxSnapshotHabits {
		out.Habits = out.Habits[len(out.Habits)-maxSnapshotHabits:]
	}
	out.Schedule = append(out.Schedule, src.Schedule...)
	if len(out.Schedule) > maxSnapshotBlocks {
		out.Schedule = out.Schedule[len(out.Schedule)-maxSnapshotBlocks:]
	}
	out.FixedBlocks = append(out.FixedBlocks, src.FixedBlocks...)
	return out
}

// UnfinishedTasks returns tasks still pending, used by schedule rebalancing.
func (s *Snapshot) UnfinishedTasks() []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.Status != StatusCompleted {
			out = append(out, t)
		}
	}
	return out
}
