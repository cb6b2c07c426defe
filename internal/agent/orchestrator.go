// Package agent drives the plan, act, respond loop that turns one user
// message into tool executions and a final reply.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/daybreak-hq/daybreak/internal/history"
	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/telemetry"
	"github.com/daybreak-hq/daybreak/internal/tools"
)

// MaxToolCalls bounds how many planned calls one turn may execute. Calls
// past the cap are ignored, not errored.
const MaxToolCalls = 6

// Orchestrator runs assistant turns against a fixed tool registry.
type Orchestrator struct {
	Tools    *tools.Registry
	History  history.Store
	Metrics  *telemetry.Metrics
	Logger   *log.Logger
	ContextN int // history entries fed to the planning prompt
}

// Request is one user turn's input. Provider must already be resolved;
// Snapshot is mutated in place by tool execution.
type Request struct {
	UserID   string
	Message  string
	Provider llm.Provider
	Snapshot *planner.Snapshot
	Calendar tools.CalendarService
	Now      time.Time
}

// Outcome is the finished turn. Dirty reports whether any mutating tool
// succeeded, meaning the snapshot needs persisting.
type Outcome struct {
	Reply       string            `json:"reply"`
	ToolCalls   []tools.Call      `json:"toolCalls,omitempty"`
	ToolResults []tools.Result    `json:"toolResults,omitempty"`
	Dirty       bool              `json:"-"`
	Snapshot    *planner.Snapshot `json:"data"`
}

// countingRepairer meters corrective reformat calls without the pipeline
// knowing about metrics.
type countingRepairer struct {
	llm.Provider
	metrics *telemetry.Metrics
}

func (c countingRepairer) Complete(ctx context.Context, system, user string, opts llm.Options) (string, error) {
	c.metrics.RepairCall()
	return c.Provider.Complete(ctx, system, user, opts)
}

// Run executes one turn. When emit is non-nil every stream frame of the
// turn goes through it, in order, ending with a result frame and either a
// done or an error frame; the final reply is then token-streamed. With a
// nil emit the turn runs silently and only the Outcome is returned.
//
// A turn cancelled before the final reply completes appends nothing to
// history.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit func(StreamEvent)) (*Outcome, error) {
	if emit == nil {
		emit = func(StreamEvent) {}
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	emit(StreamEvent{Kind: EventMeta, Data: map[string]string{"provider": req.Provider.Name()}})

	outcome, err := o.run(ctx, req, emit)
	if err != nil {
		o.Metrics.TurnDone(req.Provider.Name(), turnOutcomeLabel(err))
		emit(StreamEvent{Kind: EventError, Data: UserMessage(err)})
		return nil, err
	}
	o.Metrics.TurnDone(req.Provider.Name(), "ok")
	emit(StreamEvent{Kind: EventResult, Data: outcome})
	emit(StreamEvent{Kind: EventDone})
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, emit func(StreamEvent)) (*Outcome, error) {
	// PLANNING
	emit(StreamEvent{Kind: EventStatus, Data: StatusPlanning})
	contextN := o.ContextN
	if contextN <= 0 {
		contextN = history.DefaultContext
	}
	entries, err := o.History.Recent(ctx, req.UserID, contextN)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	plan, err := o.plan(ctx, req, entries)
	if err != nil {
		return nil, err
	}

	calls := plan.ToolCalls
	if len(calls) > MaxToolCalls {
		if o.Logger != nil {
			o.Logger.Printf("ignoring %d tool calls past the cap", len(calls)-MaxToolCalls)
		}
		calls = calls[:MaxToolCalls]
	}

	// ACTING
	outcome := &Outcome{ToolCalls: calls, Snapshot: req.Snapshot}
	if len(calls) > 0 {
		emit(StreamEvent{Kind: EventStatus, Data: StatusActing})
		env := &tools.Env{
			UserID:   req.UserID,
			Snapshot: req.Snapshot,
			Provider: req.Provider,
			Calendar: req.Calendar,
			Logger:   o.Logger,
			Now:      req.Now,
		}
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return nil, llm.ErrCancelled
			}
			emit(StreamEvent{Kind: EventStatus, Data: map[string]string{"stage": StatusToolStart, "tool": call.Name}})
			res := o.Tools.Execute(ctx, env, call)
			o.Metrics.ToolDone(call.Name, res.OK)
			if res.OK && !o.Tools.IsReadOnly(call.Name) {
				outcome.Dirty = true
			}
			if !res.OK && o.Logger != nil {
				o.Logger.Printf("tool %s failed: %s", call.Name, res.Error)
			}
			outcome.ToolResults = append(outcome.ToolResults, res)
			emit(StreamEvent{Kind: EventStatus, Data: map[string]string{"stage": StatusToolDone, "tool": call.Name}})
		}
	}

	// RESPONDING
	if len(calls) == 0 {
		outcome.Reply = plan.AssistantReply
	} else {
		emit(StreamEvent{Kind: EventStatus, Data: StatusResponding})
		reply, err := o.respond(ctx, req, entries, outcome.ToolResults, emit)
		if err != nil {
			return nil, err
		}
		outcome.Reply = reply
	}

	// DONE
	err = o.History.Append(ctx, req.UserID,
		history.Entry{Role: history.RoleUser, Content: req.Message, Timestamp: req.Now},
		history.Entry{Role: history.RoleAssistant, Content: outcome.Reply, Timestamp: req.Now},
	)
	if err != nil && o.Logger != nil {
		o.Logger.Printf("history append failed: %v", err)
	}
	return outcome, nil
}

// planReply is the decoded planning-stage object.
type planReply struct {
	AssistantReply string       `json:"assistant_reply"`
	ToolCalls      []tools.Call `json:"tool_calls"`
}

func (o *Orchestrator) plan(ctx context.Context, req Request, entries []history.Entry) (*planReply, error) {
	prompt, err := buildPlanningPrompt(entries, req.Snapshot, o.Tools.Catalog(), req.Now.Format("2006-01-02"), req.Message)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	raw, err := req.Provider.Complete(ctx, planningSystemPrompt, prompt, llm.Options{Temperature: 0.3, MaxTokens: 4096, JSONMode: true})
	o.Metrics.ObserveLLM(req.Provider.Name(), "plan", time.Since(started).Seconds())
	if err != nil {
		return nil, fmt.Errorf("planning call: %w", err)
	}
	repairer := llm.Provider(countingRepairer{Provider: req.Provider, metrics: o.Metrics})
	parsed, err := llm.ExtractAndValidate(ctx, raw, planSchema(), repairer)
	if err != nil {
		return nil, fmt.Errorf("planning reply: %w", err)
	}
	// round-trip through JSON to decode into the typed plan
	b, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("re-encode plan: %w", err)
	}
	var plan planReply
	if err := json.Unmarshal(b, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidStructure, err)
	}
	return &plan, nil
}

func (o *Orchestrator) respond(ctx context.Context, req Request, entries []history.Entry, results []tools.Result, emit func(StreamEvent)) (string, error) {
	prompt, err := buildResponsePrompt(entries, req.Message, results)
	if err != nil {
		return "", err
	}
	opts := llm.Options{Temperature: 0.7, MaxTokens: 2048}
	started := time.Now()
	reply, err := req.Provider.Stream(ctx, respondingSystemPrompt, prompt, opts, func(token string) {
		o.Metrics.Token()
		emit(StreamEvent{Kind: EventToken, Data: token})
	})
	o.Metrics.ObserveLLM(req.Provider.Name(), "respond", time.Since(started).Seconds())
	if err != nil {
		return "", fmt.Errorf("responding call: %w", err)
	}
	return reply, nil
}

func turnOutcomeLabel(err error) string {
	switch {
	case errors.Is(err, llm.ErrCancelled):
		return "cancelled"
	case errors.Is(err, llm.ErrInvalidStructure):
		return "invalid_structure"
	default:
		return "error"
	}
}

// UserMessage maps internal failures to the stable messages clients see;
// upstream detail stays in logs.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, llm.ErrCancelled):
		return "request cancelled"
	case errors.Is(err, llm.ErrInvalidStructure):
		return "assistant returned an invalid response"
	case errors.Is(err, llm.ErrNotConfigured):
		return "assistant backend is not configured"
	case errors.Is(err, llm.ErrSafetyBlocked):
		return "assistant declined to answer this request"
	default:
		return "assistant request failed"
	}
}
