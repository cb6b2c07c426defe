// Package tools defines the fixed, capability-scoped operations the agent
// may invoke against a user's planner state, and the executor that runs
// them with isolated failure handling.
package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/planner"
	"github.com/daybreak-hq/daybreak/internal/schema"
)

// Call is one tool invocation produced by the model. Arguments stay
// untyped until validated against the matching definition's schema.
type Call struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Result is the outcome of one executed Call. Exactly one of Value or
// Error is meaningful; a failed call never aborts its siblings.
type Result struct {
	Name  string      `json:"name"`
	OK    bool        `json:"ok"`
	Value interface{} `json:"value,omitempty"`
	Error string      `json:"error,omitempty"`
}

// CalendarLinks is the relay payload of the get_calendar_links tool.
type CalendarLinks struct {
	Token        string `json:"token"`
	SubscribeURL string `json:"subscribeUrl"`
	WebcalURL    string `json:"webcalUrl"`
}

// CalendarService is the external get-or-create calendar token
// collaborator.
type CalendarService interface {
	Links(ctx context.Context, userID string) (CalendarLinks, error)
}

// Env carries the per-turn state handlers operate on. Snapshot is mutated
// in place; persisting it afterwards is the caller's concern.
type Env struct {
	UserID   string
	Snapshot *planner.Snapshot
	Provider llm.Provider
	Calendar CalendarService
	Logger   *log.Logger
	Now      time.Time
}

// Handler applies one tool's transform against the shared snapshot.
type Handler func(ctx context.Context, env *Env, args map[string]interface{}) (interface{}, error)

// Definition binds a tool name to its input schema and handler. ReadOnly
// tools never flag the snapshot as dirty.
type Definition struct {
	Name        string
	Description string
	Schema      *schema.Schema
	ReadOnly    bool
	Handler     Handler
}

// CatalogEntry is the serialized form embedded verbatim in the planning
// prompt so the model knows what it may call.
type CatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema *schema.Schema `json:"inputSchema"`
}

// Registry is the fixed named set of tools, built once at startup.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds the registry from definitions, preserving order for
// catalog rendering.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.Name]; dup {
			panic(fmt.Sprintf("duplicate tool %q", d.Name))
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Catalog returns the serializable tool catalog in registration order.
func (r *Registry) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name]
		out = append(out, CatalogEntry{Name: d.Name, Description: d.Description, InputSchema: d.Schema})
	}
	return out
}

// IsReadOnly reports whether a tool is on the read-only allowlist.
// Unknown names count as read-only; they never executed anything.
func (r *Registry) IsReadOnly(name string) bool {
	d, ok := r.defs[name]
	if !ok {
		return true
	}
	return d.ReadOnly
}

// Execute runs one call. Unknown tools, schema-invalid arguments and
// handler failures all land in the Result; nothing here panics or aborts
// the batch.
func (r *Registry) Execute(ctx context.Context, env *Env, call Call) Result {
	def, ok := r.defs[call.Name]
	if !ok {
		return Result{Name: call.Name, Error: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := def.Schema.Validate(args); err != nil {
		return Result{Name: call.Name, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	value, err := def.Handler(ctx, env, args)
	if err != nil {
		return Result{Name: call.Name, Error: err.Error()}
	}
	return Result{Name: call.Name, OK: true, Value: value}
}
