package tools

import (
	"context"
	"fmt"

	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
)

// GetSnapshotTool returns the caller's full planner snapshot.
func GetSnapshotTool() Definition {
	return Definition{
		Name:        "get_snapshot",
		Description: "Return the user's full planner data: tasks, goals, habits, schedule, fixed commitments and profile.",
		Schema:      schema.Object(map[string]*schema.Schema{}),
		ReadOnly:    true,
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			return env.Snapshot, nil
		},
	}
}

// ListTasksTool lists tasks, optionally filtered by status.
func ListTasksTool() Definition {
	return Definition{
		Name:        "list_tasks",
		Description: "List the user's tasks. Optionally filter by status (pending or completed).",
		Schema: schema.Object(map[string]*schema.Schema{
			"status": schema.String(planner.StatusPending, planner.StatusCompleted),
		}),
		ReadOnly: true,
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			status, _ := strArg(args, "status")
			if status == "" {
				return env.Snapshot.Tasks, nil
			}
			out := make([]planner.Task, 0, len(env.Snapshot.Tasks))
			for _, t := range env.Snapshot.Tasks {
				if t.Status == status {
					out = append(out, t)
				}
			}
			return out, nil
		},
	}
}

// GetCalendarLinksTool relays the external calendar-feed links for the user.
func GetCalendarLinksTool() Definition {
	return Definition{
		Name:        "get_calendar_links",
		Description: "Return the user's calendar subscription links so their schedule can be added to an external calendar app.",
		Schema:      schema.Object(map[string]*schema.Schema{}),
		ReadOnly:    true,
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			if env.Calendar == nil {
				return nil, fmt.Errorf("calendar links unavailable")
			}
			links, err := env.Calendar.Links(ctx, env.UserID)
			if err != nil {
				return nil, fmt.Errorf("fetch calendar links: %w", err)
			}
			return links, nil
		},
	}
}

// DefaultRegistry builds the full fixed tool set the agent plans against.
func DefaultRegistry() *Registry {
	return NewRegistry(
		CreateTaskTool(),
		UpdateTaskTool(),
		DeleteTaskTool(),
		CreateGoalTool(),
		UpdateGoalTool(),
		DeleteGoalTool(),
		AddHabitTool(),
		DeleteHabitTool(),
		RebalanceScheduleTool(),
		GetCalendarLinksTool(),
		GetSnapshotTool(),
		ListTasksTool(),
	)
}
