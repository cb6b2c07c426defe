package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/planner"
)

type cannedProvider struct {
	reply string
	err   error
	calls int
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) Complete(ctx context.Context, system, user string, opts llm.Options) (string, error) {
	p.calls++
	return p.reply, p.err
}

func (p *cannedProvider) Stream(ctx context.Context, system, user string, opts llm.Options, onToken func(string)) (string, error) {
	return p.Complete(ctx, system, user, opts)
}

func testEnv(snap *planner.Snapshot) *Env {
	if snap == nil {
		snap = &planner.Snapshot{}
	}
	return &Env{
		UserID:   "u1",
		Snapshot: snap,
		Now:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateTaskNormalizesFields(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(nil)
	res := reg.Execute(context.Background(), env, Call{
		Name: "create_task",
		Arguments: map[string]interface{}{
			"task_name":           "read chapter 3",
			"task_deadline":       "2026-03-15",
			"task_deadline_time":  "6pm",
			"task_duration_hours": float64(2),
		},
	})
	if !res.OK {
		t.Fatalf("create_task failed: %s", res.Error)
	}
	if len(env.Snapshot.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(env.Snapshot.Tasks))
	}
	task := env.Snapshot.Tasks[0]
	if task.DeadlineTime != "18:00" {
		t.Errorf("deadline time = %q, want 18:00", task.DeadlineTime)
	}
	if task.DurationHours != 2 {
		t.Errorf("duration = %v, want 2", task.DurationHours)
	}
	if task.Status != planner.StatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.ID == "" {
		t.Error("task id not assigned")
	}
}

func TestUnknownToolDoesNotAbortBatch(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(nil)
	calls := []Call{
		{Name: "summon_demon", Arguments: map[string]interface{}{}},
		{Name: "create_task", Arguments: map[string]interface{}{"task_name": "laundry"}},
	}
	var results []Result
	for _, c := range calls {
		results = append(results, reg.Execute(context.Background(), env, c))
	}
	if results[0].OK || results[0].Error == "" {
		t.Fatalf("unknown tool should produce an error result, got %+v", results[0])
	}
	if !results[1].OK {
		t.Fatalf("sibling call should still succeed: %s", results[1].Error)
	}
	if len(env.Snapshot.Tasks) != 1 {
		t.Fatalf("expected 1 task after batch, got %d", len(env.Snapshot.Tasks))
	}
}

func TestInvalidArgumentsRejectedBeforeHandler(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(nil)
	res := reg.Execute(context.Background(), env, Call{Name: "create_task", Arguments: map[string]interface{}{}})
	if res.OK {
		t.Fatal("create_task without task_name should fail validation")
	}
	if len(env.Snapshot.Tasks) != 0 {
		t.Fatal("failed call must not mutate the snapshot")
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(&planner.Snapshot{Tasks: []planner.Task{{ID: "t1", Name: "a", Status: planner.StatusPending}}})
	res := reg.Execute(context.Background(), env, Call{
		Name:      "update_task",
		Arguments: map[string]interface{}{"id": "nope", "status": planner.StatusCompleted},
	})
	if res.OK {
		t.Fatal("update of missing task should error")
	}
	if env.Snapshot.Tasks[0].Status != planner.StatusPending {
		t.Fatal("unrelated task must be untouched")
	}
}

func TestUpdateTaskBadDateLeavesTaskUntouched(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(&planner.Snapshot{Tasks: []planner.Task{{ID: "t1", Name: "a", Deadline: "2026-03-20", Status: planner.StatusPending}}})
	res := reg.Execute(context.Background(), env, Call{
		Name:      "update_task",
		Arguments: map[string]interface{}{"id": "t1", "task_deadline": "whenever"},
	})
	if res.OK {
		t.Fatal("unparseable deadline should error")
	}
	if env.Snapshot.Tasks[0].Deadline != "2026-03-20" {
		t.Fatalf("deadline changed to %q on failed patch", env.Snapshot.Tasks[0].Deadline)
	}
}

func TestDeleteTaskDropsItsScheduleBlocks(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(&planner.Snapshot{
		Tasks: []planner.Task{{ID: "t1", Name: "a"}, {ID: "t2", Name: "b"}},
		Schedule: []planner.ScheduleBlock{
			{TaskID: "t1", Date: "2026-03-15", Start: "09:00", End: "10:00"},
			{TaskID: "t2", Date: "2026-03-15", Start: "10:00", End: "11:00"},
		},
	})
	res := reg.Execute(context.Background(), env, Call{Name: "delete_task", Arguments: map[string]interface{}{"id": "t1"}})
	if !res.OK {
		t.Fatalf("delete_task failed: %s", res.Error)
	}
	if len(env.Snapshot.Tasks) != 1 || env.Snapshot.Tasks[0].ID != "t2" {
		t.Fatalf("unexpected tasks after delete: %+v", env.Snapshot.Tasks)
	}
	if len(env.Snapshot.Schedule) != 1 || env.Snapshot.Schedule[0].TaskID != "t2" {
		t.Fatalf("schedule blocks for deleted task not dropped: %+v", env.Snapshot.Schedule)
	}
}

func TestGoalAndHabitLifecycle(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(nil)
	ctx := context.Background()

	if res := reg.Execute(ctx, env, Call{Name: "create_goal", Arguments: map[string]interface{}{"goal_name": "run a marathon", "goal_target_date": "2026-10-01"}}); !res.OK {
		t.Fatalf("create_goal: %s", res.Error)
	}
	if res := reg.Execute(ctx, env, Call{Name: "add_habit", Arguments: map[string]interface{}{"habit_name": "stretch", "habit_time": "7am"}}); !res.OK {
		t.Fatalf("add_habit: %s", res.Error)
	}
	if env.Snapshot.Habits[0].TimeOfDay != "07:00" {
		t.Fatalf("habit time = %q, want 07:00", env.Snapshot.Habits[0].TimeOfDay)
	}

	goalID := env.Snapshot.Goals[0].ID
	if res := reg.Execute(ctx, env, Call{Name: "update_goal", Arguments: map[string]interface{}{"id": goalID, "goal_category": "health"}}); !res.OK {
		t.Fatalf("update_goal: %s", res.Error)
	}
	if env.Snapshot.Goals[0].Category != "health" {
		t.Fatalf("goal category = %q", env.Snapshot.Goals[0].Category)
	}

	habitID := env.Snapshot.Habits[0].ID
	if res := reg.Execute(ctx, env, Call{Name: "delete_habit", Arguments: map[string]interface{}{"id": habitID}}); !res.OK {
		t.Fatalf("delete_habit: %s", res.Error)
	}
	if res := reg.Execute(ctx, env, Call{Name: "delete_goal", Arguments: map[string]interface{}{"id": goalID}}); !res.OK {
		t.Fatalf("delete_goal: %s", res.Error)
	}
	if len(env.Snapshot.Goals) != 0 || len(env.Snapshot.Habits) != 0 {
		t.Fatalf("expected empty goals/habits, got %d/%d", len(env.Snapshot.Goals), len(env.Snapshot.Habits))
	}
}

func TestListTasksStatusFilter(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(&planner.Snapshot{Tasks: []planner.Task{
		{ID: "t1", Name: "a", Status: planner.StatusPending},
		{ID: "t2", Name: "b", Status: planner.StatusCompleted},
	}})
	res := reg.Execute(context.Background(), env, Call{Name: "list_tasks", Arguments: map[string]interface{}{"status": planner.StatusPending}})
	if !res.OK {
		t.Fatalf("list_tasks: %s", res.Error)
	}
	tasks, ok := res.Value.([]planner.Task)
	if !ok {
		t.Fatalf("unexpected value type %T", res.Value)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("filter returned %+v", tasks)
	}
}

func TestCalendarLinksRelay(t *testing.T) {
	reg := DefaultRegistry()
	env := testEnv(nil)
	env.Calendar = calendarFunc(func(ctx context.Context, userID string) (CalendarLinks, error) {
		if userID != "u1" {
			return CalendarLinks{}, fmt.Errorf("wrong user %q", userID)
		}
		return CalendarLinks{Token: "tok", SubscribeURL: "https://x/cal/tok.ics", WebcalURL: "webcal://x/cal/tok.ics"}, nil
	})
	res := reg.Execute(context.Background(), env, Call{Name: "get_calendar_links"})
	if !res.OK {
		t.Fatalf("get_calendar_links: %s", res.Error)
	}
	links := res.Value.(CalendarLinks)
	if links.Token != "tok" {
		t.Fatalf("unexpected links %+v", links)
	}
}

type calendarFunc func(ctx context.Context, userID string) (CalendarLinks, error)

func (f calendarFunc) Links(ctx context.Context, userID string) (CalendarLinks, error) {
	return f(ctx, userID)
}

func TestReadOnlyAllowlist(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"get_snapshot", "list_tasks", "get_calendar_links"} {
		if !reg.IsReadOnly(name) {
			t.Errorf("%s should be read-only", name)
		}
	}
	for _, name := range []string{"create_task", "delete_goal", "rebalance_schedule"} {
		if reg.IsReadOnly(name) {
			t.Errorf("%s should be mutating", name)
		}
	}
}

func rebalanceEnv(reply string) *Env {
	env := testEnv(&planner.Snapshot{
		Tasks: []planner.Task{
			{ID: "t1", Name: "write report", Status: planner.StatusPending},
			{ID: "done", Name: "old", Status: planner.StatusCompleted},
		},
		FixedBlocks: []planner.FixedBlock{{Name: "standup", Start: "09:00", End: "10:00"}},
		Schedule:    []planner.ScheduleBlock{{TaskID: "t1", Date: "2026-03-10", Start: "13:00", End: "14:00"}},
	})
	env.Provider = &cannedProvider{reply: reply}
	return env
}

func TestRebalanceAcceptsValidBlocks(t *testing.T) {
	env := rebalanceEnv(`{"blocks": [
		{"task_id": "t1", "date": "2026-03-15", "start": "10:30", "end": "12:00"},
		{"task_id": "t1", "date": "2026-03-15", "start": "09:30", "end": "10:30"},
		{"task_id": "t1", "date": "2026-03-15", "start": "11:00", "end": "12:00"}
	]}`)
	reg := DefaultRegistry()
	res := reg.Execute(context.Background(), env, Call{Name: "rebalance_schedule"})
	if !res.OK {
		t.Fatalf("rebalance failed: %s", res.Error)
	}
	// second block hits the standup, third overlaps the accepted first
	if len(env.Snapshot.Schedule) != 1 {
		t.Fatalf("expected 1 accepted block, got %+v", env.Snapshot.Schedule)
	}
	b := env.Snapshot.Schedule[0]
	if b.Start != "10:30" || b.End != "12:00" {
		t.Fatalf("wrong block survived: %+v", b)
	}
}

func TestRebalanceAllBlocksInvalidLeavesScheduleUntouched(t *testing.T) {
	env := rebalanceEnv(`{"blocks": [
		{"task_id": "ghost", "date": "2026-03-15", "start": "10:30", "end": "12:00"},
		{"task_id": "t1", "date": "2026-03-15", "start": "09:15", "end": "09:45"},
		{"task_id": "t1", "date": "2026-03-15", "start": "12:00", "end": "11:00"}
	]}`)
	reg := DefaultRegistry()
	res := reg.Execute(context.Background(), env, Call{Name: "rebalance_schedule"})
	if res.OK {
		t.Fatal("rebalance with zero valid blocks should error")
	}
	if len(env.Snapshot.Schedule) != 1 || env.Snapshot.Schedule[0].Date != "2026-03-10" {
		t.Fatalf("existing schedule must survive a failed rebalance: %+v", env.Snapshot.Schedule)
	}
}

func TestRebalancePerDayCap(t *testing.T) {
	env := rebalanceEnv(`{"blocks": [
		{"task_id": "t1", "date": "2026-03-15", "start": "10:00", "end": "19:00"},
		{"task_id": "t1", "date": "2026-03-15", "start": "19:00", "end": "21:00"},
		{"task_id": "t1", "date": "2026-03-16", "start": "10:00", "end": "12:00"}
	]}`)
	reg := DefaultRegistry()
	res := reg.Execute(context.Background(), env, Call{Name: "rebalance_schedule"})
	if !res.OK {
		t.Fatalf("rebalance failed: %s", res.Error)
	}
	// 9h accepted on the 15th, the extra 2h there breaches the daily cap,
	// the block on the 16th is fine
	if len(env.Snapshot.Schedule) != 2 {
		t.Fatalf("expected 2 blocks, got %+v", env.Snapshot.Schedule)
	}
	if env.Snapshot.Schedule[1].Date != "2026-03-16" {
		t.Fatalf("wrong blocks accepted: %+v", env.Snapshot.Schedule)
	}
}

func TestRebalanceNoUnfinishedTasks(t *testing.T) {
	env := testEnv(&planner.Snapshot{Tasks: []planner.Task{{ID: "t1", Status: planner.StatusCompleted}}})
	env.Provider = &cannedProvider{reply: `{"blocks": []}`}
	reg := DefaultRegistry()
	res := reg.Execute(context.Background(), env, Call{Name: "rebalance_schedule"})
	if res.OK {
		t.Fatal("rebalance with nothing to schedule should error")
	}
}
