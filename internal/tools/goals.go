package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
)

func goalFieldSchemas() map[string]*schema.Schema {
	return map[string]*schema.Schema{
		"goal_name":        schema.String(),
		"goal_description": schema.String(),
		"goal_category":    schema.String(),
		"goal_target_date": schema.String(),
	}
}

// CreateGoalTool appends a new goal to the snapshot.
func CreateGoalTool() Definition {
	return Definition{
		Name:        "create_goal",
		Description: "Create a new goal. Provide goal_name; optionally a description, category and target date (YYYY-MM-DD).",
		Schema:      schema.Object(goalFieldSchemas(), "goal_name"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			name, _ := strArg(args, "goal_name")
			goal := planner.Goal{
				ID:     uuid.NewString(),
				Name:   name,
				Status: planner.StatusPending,
			}
			if err := applyGoalFields(&goal, args); err != nil {
				return nil, err
			}
			env.Snapshot.Goals = append(env.Snapshot.Goals, goal)
			return goal, nil
		},
	}
}

// UpdateGoalTool applies a field-level patch to an existing goal.
func UpdateGoalTool() Definition {
	props := goalFieldSchemas()
	props["id"] = schema.String()
	props["status"] = schema.String(planner.StatusPending, planner.StatusCompleted)
	return Definition{
		Name:        "update_goal",
		Description: "Update fields of an existing goal identified by id. Only the provided fields change.",
		Schema:      schema.Object(props, "id"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			id, _ := strArg(args, "id")
			goal := env.Snapshot.FindGoal(id)
			if goal == nil {
				return nil, fmt.Errorf("goal %q not found", id)
			}
			patched := *goal
			if err := applyGoalFields(&patched, args); err != nil {
				return nil, err
			}
			if status, ok := strArg(args, "status"); ok {
				patched.Status = status
			}
			*goal = patched
			return *goal, nil
		},
	}
}

// DeleteGoalTool removes a goal by explicit id.
func DeleteGoalTool() Definition {
	return Definition{
		Name:        "delete_goal",
		Description: "Delete the goal with the given id. The id must come from the data snapshot; never guess one.",
		Schema:      schema.Object(map[string]*schema.Schema{"id": schema.String()}, "id"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			id, _ := strArg(args, "id")
			for i := range env.Snapshot.Goals {
				if env.Snapshot.Goals[i].ID == id {
					removed := env.Snapshot.Goals[i]
					env.Snapshot.Goals = append(env.Snapshot.Goals[:i], env.Snapshot.Goals[i+1:]...)
					return map[string]interface{}{"deleted": removed.Name}, nil
				}
			}
			return nil, fmt.Errorf("goal %q not found", id)
		},
	}
}

func applyGoalFields(goal *planner.Goal, args map[string]interface{}) error {
	if name, ok := strArg(args, "goal_name"); ok && name != "" {
		goal.Name = name
	}
	if desc, ok := strArg(args, "goal_description"); ok {
		goal.Description = desc
	}
	if cat, ok := strArg(args, "goal_category"); ok {
		goal.Category = cat
	}
	if target, ok := strArg(args, "goal_target_date"); ok {
		normalized, err := planner.NormalizeDate(target)
		if err != nil {
			return fmt.Errorf("goal_target_date: %w", err)
		}
		goal.TargetDate = normalized
	}
	return nil
}
