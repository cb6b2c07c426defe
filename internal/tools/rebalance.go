package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
)

// maxScheduleHoursPerDay caps the total planned work per calendar day.
const maxScheduleHoursPerDay = 10.0

const rebalanceSystemPrompt = `You are a scheduling assistant. Given a user's unfinished tasks, fixed commitments and working hours, propose focused work blocks for the coming days. Respond with a JSON object {"blocks": [{"task_id": "...", "date": "YYYY-MM-DD", "start": "HH:MM", "end": "HH:MM"}]}. Blocks must reference the given task ids, must not overlap each other or the fixed commitments, and must fall inside the user's working hours.`

func rebalanceSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"blocks": schema.Array(schema.Object(map[string]*schema.Schema{
			"task_id": schema.String(),
			"date":    schema.String(),
			"start":   schema.String(),
			"end":     schema.String(),
		}, "task_id", "date", "start", "end")),
	}, "blocks")
}

// RebalanceScheduleTool regenerates the schedule for unfinished tasks. It is
// the one tool that itself calls the model: the proposed blocks go through
// the repair pipeline, then each block is validated against the snapshot
// (known unfinished task, end after start, per-day cap, no overlap with
// fixed blocks or accepted siblings). Invalid blocks are dropped; if none
// survive the whole call errors and the existing schedule stays untouched.
func RebalanceScheduleTool() Definition {
	return Definition{
		Name:        "rebalance_schedule",
		Description: "Regenerate the work schedule for all unfinished tasks around fixed commitments. Takes no arguments.",
		Schema:      schema.Object(map[string]*schema.Schema{}),
		Handler: func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error) {
			if env.Provider == nil {
				return nil, fmt.Errorf("no language model available for scheduling")
			}
			unfinished := env.Snapshot.UnfinishedTasks()
			if len(unfinished) == 0 {
				return nil, fmt.Errorf("no unfinished tasks to schedule")
			}

			prompt, err := rebalancePrompt(env, unfinished)
			if err != nil {
				return nil, err
			}
			raw, err := env.Provider.Complete(ctx, rebalanceSystemPrompt, prompt, llm.Options{Temperature: 0.2, MaxTokens: 4096, JSONMode: true})
			if err != nil {
				return nil, fmt.Errorf("scheduling call failed: %w", err)
			}
			parsed, err := llm.ExtractAndValidate(ctx, raw, rebalanceSchema(), env.Provider)
			if err != nil {
				return nil, fmt.Errorf("scheduling reply unusable: %w", err)
			}

			proposed := decodeBlocks(parsed)
			accepted, dropped := filterBlocks(env.Snapshot, unfinished, proposed)
			if len(accepted) == 0 {
				return nil, fmt.Errorf("no valid schedule blocks produced (%d proposed, all rejected)", len(proposed))
			}
			if dropped > 0 && env.Logger != nil {
				env.Logger.Printf("[tools] rebalance dropped %d/%d invalid blocks", dropped, len(proposed))
			}
			env.Snapshot.Schedule = accepted
			return map[string]interface{}{"blocks": accepted, "dropped": dropped}, nil
		},
	}
}

func rebalancePrompt(env *Env, unfinished []planner.Task) (string, error) {
	ctxDoc := map[string]interface{}{
		"today":        env.Now.Format("2006-01-02"),
		"tasks":        unfinished,
		"fixed_blocks": env.Snapshot.FixedBlocks,
		"profile":      env.Snapshot.Profile,
	}
	b, err := json.Marshal(ctxDoc)
	if err != nil {
		return "", fmt.Errorf("marshal scheduling context: %w", err)
	}
	return string(b), nil
}

func decodeBlocks(parsed map[string]interface{}) []planner.ScheduleBlock {
	items, _ := parsed["blocks"].([]interface{})
	out := make([]planner.ScheduleBlock, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var b planner.ScheduleBlock
		b.TaskID, _ = m["task_id"].(string)
		b.Date, _ = m["date"].(string)
		b.Start, _ = m["start"].(string)
		b.End, _ = m["end"].(string)
		out = append(out, b)
	}
	return out
}

// filterBlocks keeps only blocks that pass every validation rule, in
// proposal order. Acceptance is greedy: a block that collides with an
// already accepted one is the one dropped.
func filterBlocks(snap *planner.Snapshot, unfinished []planner.Task, proposed []planner.ScheduleBlock) ([]planner.ScheduleBlock, int) {
	known := make(map[string]bool, len(unfinished))
	for _, t := range unfinished {
		known[t.ID] = true
	}
	var accepted []planner.ScheduleBlock
	dayMinutes := map[string]int{}
	dropped := 0
	for _, b := range proposed {
		if !blockValid(snap, known, accepted, dayMinutes, b) {
			dropped++
			continue
		}
		start, _ := planner.TimeToMinutes(b.Start)
		end, _ := planner.TimeToMinutes(b.End)
		dayMinutes[b.Date] += end - start
		accepted = append(accepted, b)
	}
	return accepted, dropped
}

func blockValid(snap *planner.Snapshot, known map[string]bool, accepted []planner.ScheduleBlock, dayMinutes map[string]int, b planner.ScheduleBlock) bool {
	if !known[b.TaskID] {
		return false
	}
	if _, err := planner.NormalizeDate(b.Date); err != nil || b.Date == "" {
		return false
	}
	start, err := planner.TimeToMinutes(b.Start)
	if err != nil {
		return false
	}
	end, err := planner.TimeToMinutes(b.End)
	if err != nil || end <= start {
		return false
	}
	if float64(dayMinutes[b.Date]+end-start)/60 > maxScheduleHoursPerDay {
		return false
	}
	for _, fixed := range snap.FixedBlocks {
		if fixed.Date != "" && fixed.Date != b.Date {
			continue
		}
		if planner.BlocksOverlap(b.Start, b.End, fixed.Start, fixed.End) {
			return false
		}
	}
	for _, other := range accepted {
		if other.Date == b.Date && planner.BlocksOverlap(b.Start, b.End, other.Start, other.End) {
			return false
		}
	}
	return true
}
