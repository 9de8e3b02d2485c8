// Package agent executes spoken commands against the browser. A Loop runs
// a bounded tool-calling conversation with a chat provider over the fixed
// browser tool catalog; History carries the dialogue between tasks; Gate
// holds purchase-like commands until the user explicitly confirms them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/voicenav/pkg/agent/tools"
	"github.com/vango-go/voicenav/pkg/browser"
	"github.com/vango-go/voicenav/pkg/core"
	"github.com/vango-go/voicenav/pkg/core/types"
	"github.com/vango-go/voicenav/pkg/metrics"
)

const (
	// DefaultMaxSteps is the hard ceiling on model requests per run.
	DefaultMaxSteps = 18

	// DefaultSettleDelay is how long the loop waits after executing tools
	// before re-reading the page, giving scripts time to react.
	DefaultSettleDelay = 600 * time.Millisecond

	// DefaultMaxWorkingMessages bounds the in-run message list; beyond it
	// the oldest droppable exchange is pruned before the next request.
	DefaultMaxWorkingMessages = 60
)

// ErrBusy is returned by Run while another run is still in flight.
var ErrBusy = errors.New("a task is already running")

// StopReason says how a run ended.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopMaxSteps  StopReason = "max_steps"
)

// StepFunc observes one completed tool step: the 1-based step index and
// the human-readable labels of the actions it performed.
type StepFunc func(step int, labels []string)

// systemPrompt is the fixed instruction for every run.
const systemPrompt = `You are a voice-controlled browsing assistant. You operate the user's browser with the provided tools and you answer out loud, so keep replies to one or two short sentences.

Rules:
- The page context lists every interactive element with its index and selector. Element indices change whenever the page changes, so only trust the most recent context.
- Prefer the site's own navigation labels over the user's literal words. If the user asks for "business courses" and the navigation lists "Business & Management", click that instead of searching.
- When the user's wording does not appear on the page, use find_elements before clicking.
- After typing into a search field, press Enter to submit it.
- When the task is done, or cannot be done, stop calling tools and tell the user the outcome.`

// Loop drives one command to completion through repeated model requests
// and tool executions. Configure it by setting fields before first use; a
// zero value for any optional field picks the documented default. A Loop
// admits one run at a time.
type Loop struct {
	Provider core.ChatProvider
	Tools    *tools.Registry
	Page     browser.Page
	History  *History

	// Model is the chat model requested from the provider. Empty means the
	// provider's default.
	Model string

	// MaxSteps caps model requests per run. Zero means DefaultMaxSteps.
	MaxSteps int

	// MaxTokens caps completion tokens per request. Zero means no cap.
	MaxTokens int

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration

	// MaxWorkingMessages overrides DefaultMaxWorkingMessages when positive.
	MaxWorkingMessages int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// OnStep, when set, is called after each tool step.
	OnStep StepFunc

	// Sleep replaces the settle wait in tests. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration)

	busy atomic.Bool
}

// Result is the outcome of one completed run.
type Result struct {
	RunID      string
	Command    string
	Answer     string
	Steps      int
	ToolCalls  int
	Actions    []string
	StopReason StopReason
	Duration   time.Duration
}

// Run executes one spoken command to completion. It returns ErrBusy while
// a previous run is still in flight. Exhausting the step ceiling is not an
// error: the result carries StopMaxSteps and an explanatory answer.
func (l *Loop) Run(ctx context.Context, command string) (*Result, error) {
	switch {
	case l.Provider == nil:
		return nil, fmt.Errorf("provider is required")
	case l.Tools == nil:
		return nil, fmt.Errorf("tool registry is required")
	case l.Page == nil:
		return nil, fmt.Errorf("page is required")
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if !l.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer l.busy.Store(false)

	started := time.Now()
	runID := uuid.NewString()
	logger := l.logger().With("run_id", runID)
	logger.Info("run started", "command", command)

	// The working list is the system prompt plus ordered segments. Prior
	// exchanges and finished tool steps are prunable; the command segment
	// and the newest segment never are.
	prior := exchangeSegments(l.historyTurns())
	commandSeg := segment{types.UserMessage(command), l.pageContextMessage(ctx)}
	var steps []segment

	defs := l.Tools.Definitions()
	maxSteps := l.maxSteps()
	result := &Result{RunID: runID, Command: command}

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			l.Metrics.RecordRun("cancelled", result.Steps, time.Since(started))
			return nil, err
		}

		prior, steps = l.prune(prior, commandSeg, steps)

		req := &types.CompletionRequest{
			Model:       l.Model,
			Messages:    flatten(prior, commandSeg, steps),
			Tools:       defs,
			MaxTokens:   l.MaxTokens,
			Temperature: l.Temperature,
		}
		resp, err := l.Provider.CreateCompletion(ctx, req)
		if err != nil {
			l.Metrics.RecordRun(outcomeForError(err), result.Steps, time.Since(started))
			logger.Error("run failed", "step", step, "error", err)
			return nil, err
		}
		result.Steps = step

		if !resp.HasToolCalls() {
			result.Answer = strings.TrimSpace(resp.Content)
			if result.Answer == "" {
				result.Answer = "Done."
			}
			result.StopReason = StopCompleted
			result.Duration = time.Since(started)
			l.recordOutcome(result)
			logger.Info("run completed", "steps", result.Steps, "tool_calls", result.ToolCalls)
			return result, nil
		}

		seg := segment{resp.AssistantMessage()}
		var labels []string
		for _, call := range resp.ToolCalls {
			content, label := l.executeCall(ctx, logger, call)
			seg = append(seg, types.ToolResultMessage(call.ID, call.Name, content))
			if label != "" {
				labels = append(labels, label)
			}
			result.ToolCalls++
		}
		result.Actions = append(result.Actions, labels...)

		l.sleep(ctx, l.settleDelay())
		seg = append(seg, l.pageContextMessage(ctx))
		steps = append(steps, seg)

		if l.OnStep != nil {
			l.OnStep(step, labels)
		}
	}

	result.Answer = l.exhaustedAnswer(result.Actions)
	result.StopReason = StopMaxSteps
	result.Duration = time.Since(started)
	l.recordOutcome(result)
	logger.Warn("run exhausted", "steps", result.Steps, "tool_calls", result.ToolCalls)
	return result, nil
}

// Busy reports whether a run is currently in flight.
func (l *Loop) Busy() bool {
	return l.busy.Load()
}

// executeCall runs one tool call and folds any failure into the transcript
// instead of aborting the run.
func (l *Loop) executeCall(ctx context.Context, logger *slog.Logger, call types.ToolCall) (content, label string) {
	res, err := l.Tools.Execute(ctx, call.Name, call.ArgumentsMap())
	if err != nil {
		l.Metrics.RecordToolCall(call.Name, "error")
		logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return "Error: " + err.Error(), ""
	}
	l.Metrics.RecordToolCall(call.Name, "ok")
	logger.Debug("tool call", "tool", call.Name, "label", res.Label)
	return res.Content, res.Label
}

// pageContextMessage captures a fresh snapshot as a user-role context
// block. Capture failures degrade to an explanatory block so the model can
// recover by navigating.
func (l *Loop) pageContextMessage(ctx context.Context) types.Message {
	snap, err := l.Page.Snapshot(ctx)
	if err != nil {
		return types.UserMessage("[page context]\nPage context unavailable: " + err.Error())
	}
	return types.UserMessage("[page context]\n" + snap.Describe())
}

// prune drops the oldest droppable segment until the working list fits.
// Prior exchanges go first, then finished tool steps; the most recent
// segment and the command segment are never dropped.
func (l *Loop) prune(prior []segment, commandSeg segment, steps []segment) ([]segment, []segment) {
	limit := l.maxWorkingMessages()
	for messageCount(prior, commandSeg, steps) > limit {
		switch {
		case len(prior) > 0:
			prior = prior[1:]
		case len(steps) > 1:
			steps = steps[1:]
		default:
			return prior, steps
		}
	}
	return prior, steps
}

func (l *Loop) exhaustedAnswer(actions []string) string {
	if len(actions) == 0 {
		return "I reached the step limit before I could finish that task."
	}
	n := len(actions)
	if n > 3 {
		actions = actions[n-3:]
	}
	return fmt.Sprintf("I reached the step limit before finishing. So far I %s.", strings.Join(actions, ", then "))
}

func (l *Loop) recordOutcome(result *Result) {
	l.Metrics.RecordRun(string(result.StopReason), result.Steps, result.Duration)
	if l.History != nil {
		l.History.Append(types.UserMessage(result.Command), types.AssistantMessage(result.Answer))
	}
}

func (l *Loop) historyTurns() []types.Message {
	if l.History == nil {
		return nil
	}
	return l.History.Turns()
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	if l.Sleep != nil {
		l.Sleep(ctx, d)
		return
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Loop) maxSteps() int {
	if l.MaxSteps > 0 {
		return l.MaxSteps
	}
	return DefaultMaxSteps
}

func (l *Loop) settleDelay() time.Duration {
	if l.SettleDelay > 0 {
		return l.SettleDelay
	}
	return DefaultSettleDelay
}

func (l *Loop) maxWorkingMessages() int {
	if l.MaxWorkingMessages > 0 {
		return l.MaxWorkingMessages
	}
	return DefaultMaxWorkingMessages
}

// segment is a contiguous run of messages pruned as a unit, so an
// assistant turn never separates from its tool results.
type segment []types.Message

// exchangeSegments groups prior dialogue turns into one segment per
// exchange.
func exchangeSegments(turns []types.Message) []segment {
	var segs []segment
	for _, t := range turns {
		if t.IsExchangeStart() || len(segs) == 0 {
			segs = append(segs, segment{t})
			continue
		}
		segs[len(segs)-1] = append(segs[len(segs)-1], t)
	}
	return segs
}

func messageCount(prior []segment, commandSeg segment, steps []segment) int {
	n := 1 + len(commandSeg)
	for _, s := range prior {
		n += len(s)
	}
	for _, s := range steps {
		n += len(s)
	}
	return n
}

func flatten(prior []segment, commandSeg segment, steps []segment) []types.Message {
	msgs := make([]types.Message, 0, messageCount(prior, commandSeg, steps))
	msgs = append(msgs, types.SystemMessage(systemPrompt))
	for _, s := range prior {
		msgs = append(msgs, s...)
	}
	msgs = append(msgs, commandSeg...)
	for _, s := range steps {
		msgs = append(msgs, s...)
	}
	return msgs
}

func outcomeForError(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}
