package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
)

// AddHabitTool appends a recurring habit to the snapshot.
func AddHabitTool() Definition {
	return Definition{
		Name:        "add_habit",
		Description: "Add a recurring habit. Provide habit_name; optionally a frequency (daily or weekly) and a time of day.",
		Schema: schema.Object(map[string]*schema.Schema{
			"habit_name":      schema.String(),
			"habit_frequency": schema.String("daily", "weekly"),
			"habit_time":      schema.String(),
		}, "habit_name"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			name, _ := strArg(args, "habit_name")
			habit := planner.Habit{ID: uuid.NewString(), Name: name, Frequency: "daily"}
			if freq, ok := strArg(args, "habit_frequency"); ok && freq != "" {
				habit.Frequency = freq
			}
			if at, ok := strArg(args, "habit_time"); ok && at != "" {
				normalized, err := planner.NormalizeTime(at)
				if err != nil {
					return nil, fmt.Errorf("habit_time: %w", err)
				}
				habit.TimeOfDay = normalized
			}
			env.Snapshot.Habits = append(env.Snapshot.Habits, habit)
			return habit, nil
		},
	}
}

// DeleteHabitTool removes a habit by explicit id.
func DeleteHabitTool() Definition {
	return Definition{
		Name:        "delete_habit",
		Description: "Delete the habit with the given id. The id must come from the data snapshot; never guess one.",
		Schema:      schema.Object(map[string]*schema.Schema{"id": schema.String()}, "id"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			id, _ := strArg(args, "id")
			for i := range env.Snapshot.Habits {
				if env.Snapshot.Habits[i].ID == id {
					removed := env.Snapshot.Habits[i]
					env.Snapshot.Habits = append(env.Snapshot.Habits[:i], env.Snapshot.Habits[i+1:]...)
					return map[string]interface{}{"deleted": removed.Name}, nil
				}
			}
			return nil, fmt.Errorf("habit %q not found", id)
		},
	}
}
