// Package tools implements the fixed browser-control tool catalog the agent
// exposes to the model. Each tool wraps one Page operation, translates the
// model's arguments, and reports results as plain text suitable for a chat
// transcript. Execution failures are returned as errors for the caller to
// fold into the transcript; a failing tool never aborts the surrounding
// task.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/vango-go/voicenav/pkg/browser"
	"github.com/vango-go/voicenav/pkg/core"
	"github.com/vango-go/voicenav/pkg/core/types"
)

// Result is the outcome of one tool call.
type Result struct {
	// Content is the text handed back to the model as the tool result.
	Content string

	// Label is a short human-readable description of the action taken,
	// e.g. `clicked link "Courses"`. Read-only tools leave it empty.
	Label string
}

// Executor is a single callable tool.
type Executor interface {
	// Name returns the tool's wire name.
	Name() string

	// Definition returns the tool schema advertised to the model.
	Definition() types.Tool

	// Execute runs the tool against the decoded call arguments.
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// Registry holds the tool catalog and dispatches calls by name.
type Registry struct {
	byName map[string]Executor
	order  []string
}

// NewRegistry builds a registry from the given executors. Later executors
// with a duplicate name replace earlier ones.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{byName: make(map[string]Executor, len(executors))}
	for _, e := range executors {
		if _, seen := r.byName[e.Name()]; !seen {
			r.order = append(r.order, e.Name())
		}
		r.byName[e.Name()] = e
	}
	return r
}

// NewBrowserRegistry builds the full fixed catalog over one shared page.
func NewBrowserRegistry(page browser.Page) *Registry {
	return NewRegistry(
		NewPageContext(page),
		NewFindElements(page),
		NewClick(page),
		NewTypeText(page),
		NewPressKey(page),
		NewScroll(page),
		NewNavigate(page),
		NewReadPage(page),
		NewSelectOption(page),
	)
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool schemas in registration order, ready to
// attach to a completion request.
func (r *Registry) Definitions() []types.Tool {
	defs := make([]types.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// Execute dispatches one call. An unknown tool name and any executor
// failure are reported as tool execution errors.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (*Result, error) {
	e, ok := r.byName[name]
	if !ok {
		return nil, core.NewToolExecutionError(fmt.Sprintf("unknown tool %q", name))
	}
	res, err := e.Execute(ctx, input)
	if err != nil {
		if _, typed := core.TypeOf(err); typed {
			return nil, err
		}
		return nil, core.NewToolExecutionError(fmt.Sprintf("%s: %v", name, err))
	}
	return res, nil
}

// stringArg reads a string argument, tolerating absent keys.
func stringArg(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}
