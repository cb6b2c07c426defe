package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daybreak-hq/daybreak/internal/history"
	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
	"github.com/daybreak-hq/daybreak/internal/tools"
)

const planningSystemPrompt = `You are Daybreak, a personal day-planning assistant. You help the user manage tasks, goals, habits and their daily schedule.

You respond with STRICT JSON: {"assistant_reply": string, "tool_calls": [{"name": string, "arguments": object}]}.
- assistant_reply is what you would say if no tools were needed. Keep it short and friendly.
- tool_calls lists the operations to perform now, in order. Use only tools from the catalog, with arguments matching each tool's input schema.
- Ids in arguments must be copied from the USER DATA snapshot. Never invent an id.
- When the user asks a question that the snapshot already answers, reply directly with an empty tool_calls list.`

const respondingSystemPrompt = `You are Daybreak, a personal day-planning assistant. Tools have just been executed on the user's behalf. Write the final reply in Markdown: confirm what was done using the tool results, mention anything that failed and why, and keep it brief. Do not output JSON.`

// planSchema is the contract the planning reply must satisfy.
func planSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"assistant_reply": schema.String(),
		"tool_calls": schema.Array(schema.Object(map[string]*schema.Schema{
			"name":      schema.String(),
			"arguments": schema.Object(map[string]*schema.Schema{}),
		}, "name")),
	}, "assistant_reply")
}

// buildPlanningPrompt assembles the user-side planning message: recent
// conversation, the data snapshot, the tool catalog serialized verbatim,
// then the new message.
func buildPlanningPrompt(entries []history.Entry, snap *planner.Snapshot, catalog []tools.CatalogEntry, today, message string) (string, error) {
	snapJSON, err := json.Marshal(planner.BuildSnapshot(snap))
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	catJSON, err := json.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("marshal tool catalog: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "TODAY: %s\n\n", today)
	fmt.Fprintf(&b, "TOOL CATALOG:\n%s\n\n", catJSON)
	fmt.Fprintf(&b, "USER DATA:\n%s\n\n", snapJSON)
	if len(entries) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "USER MESSAGE:\n%s", message)
	return b.String(), nil
}

// buildResponsePrompt assembles the second-stage message asking for the
// final reply after tools ran.
func buildResponsePrompt(entries []history.Entry, message string, results []tools.Result) (string, error) {
	resJSON, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal tool results: %w", err)
	}
	var b strings.Builder
	if len(entries) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "USER MESSAGE:\n%s\n\n", message)
	fmt.Fprintf(&b, "TOOL RESULTS:\n%s", resJSON)
	return b.String(), nil
}
