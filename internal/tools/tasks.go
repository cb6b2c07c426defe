package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
)

func taskFieldSchemas() map[string]*schema.Schema {
	return map[string]*schema.Schema{
		"task_name":           schema.String(),
		"task_category":       schema.String(),
		"task_deadline":       schema.String(),
		"task_deadline_time":  schema.String(),
		"task_duration_hours": schema.Number(),
	}
}

// CreateTaskTool appends a new task to the snapshot.
func CreateTaskTool() Definition {
	return Definition{
		Name:        "create_task",
		Description: "Create a new task. Provide task_name; optionally a category, a deadline date (YYYY-MM-DD), a deadline time and an estimated duration in hours.",
		Schema:      schema.Object(taskFieldSchemas(), "task_name"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			name, _ := strArg(args, "task_name")
			task := planner.Task{
				ID:        uuid.NewString(),
				Name:      name,
				Status:    planner.StatusPending,
				CreatedAt: env.Now.Format("2006-01-02T15:04:05Z07:00"),
			}
			if err := applyTaskFields(&task, args); err != nil {
				return nil, err
			}
			env.Snapshot.Tasks = append(env.Snapshot.Tasks, task)
			return task, nil
		},
	}
}

// UpdateTaskTool applies a field-level patch to an existing task.
func UpdateTaskTool() Definition {
	props := taskFieldSchemas()
	props["id"] = schema.String()
	props["status"] = schema.String(planner.StatusPending, planner.StatusCompleted)
	return Definition{
		Name:        "update_task",
		Description: "Update fields of an existing task identified by id. Only the provided fields change; status may be set to pending or completed.",
		Schema:      schema.Object(props, "id"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			id, _ := strArg(args, "id")
			task := env.Snapshot.FindTask(id)
			if task == nil {
				return nil, fmt.Errorf("task %q not found", id)
			}
			patched := *task
			if err := applyTaskFields(&patched, args); err != nil {
				return nil, err
			}
			if status, ok := strArg(args, "status"); ok {
				patched.Status = status
			}
			*task = patched
			return *task, nil
		},
	}
}

// DeleteTaskTool removes a task by explicit id. Deletion targets are never
// inferred.
func DeleteTaskTool() Definition {
	return Definition{
		Name:        "delete_task",
		Description: "Delete the task with the given id. The id must come from the data snapshot; never guess one.",
		Schema:      schema.Object(map[string]*schema.Schema{"id": schema.String()}, "id"),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			id, _ := strArg(args, "id")
			for i := range env.Snapshot.Tasks {
				if env.Snapshot.Tasks[i].ID == id {
					removed := env.Snapshot.Tasks[i]
					env.Snapshot.Tasks = append(env.Snapshot.Tasks[:i], env.Snapshot.Tasks[i+1:]...)
					dropScheduleForTask(env.Snapshot, id)
					return map[string]interface{}{"deleted": removed.Name}, nil
				}
			}
			return nil, fmt.Errorf("task %q not found", id)
		},
	}
}

// applyTaskFields patches only the task fields present in args,
// normalizing dates and times on the way in.
func applyTaskFields(task *planner.Task, args map[string]interface{}) error {
	if name, ok := strArg(args, "task_name"); ok && name != "" {
		task.Name = name
	}
	if cat, ok := strArg(args, "task_category"); ok {
		task.Category = cat
	}
	if deadline, ok := strArg(args, "task_deadline"); ok {
		normalized, err := planner.NormalizeDate(deadline)
		if err != nil {
			return fmt.Errorf("task_deadline: %w", err)
		}
		task.Deadline = normalized
	}
	if deadlineTime, ok := strArg(args, "task_deadline_time"); ok {
		normalized, err := planner.NormalizeTime(deadlineTime)
		if err != nil {
			return fmt.Errorf("task_deadline_time: %w", err)
		}
		task.DeadlineTime = normalized
	}
	if hours, ok := numArg(args, "task_duration_hours"); ok {
		task.DurationHours = planner.ClampDurationHours(hours)
	}
	return nil
}

func dropScheduleForTask(snap *planner.Snapshot, taskID string) {
	kept := snap.Schedule[:0]
	for _, b := range snap.Schedule {
		if b.TaskID != taskID {
			kept = append(kept, b)
		}
	}
	snap.Schedule = kept
}
