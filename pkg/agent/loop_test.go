package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/voicenav/pkg/agent/tools"
	"github.com/vango-go/voicenav/pkg/browser"
	"github.com/vango-go/voicenav/pkg/core/types"
)

// scriptedProvider returns canned responses in order, repeating the last
// one forever, and records every request it serves.
type scriptedProvider struct {
	responses []*types.CompletionResponse
	err       error
	requests  []*types.CompletionRequest

	// block, when set, is received from before each response is returned.
	block chan struct{}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) CreateCompletion(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	i := len(p.requests) - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

func textResponse(text string) *types.CompletionResponse {
	return &types.CompletionResponse{Content: text, FinishReason: types.FinishStop}
}

func toolCallResponse(id, name, args string) *types.CompletionResponse {
	return &types.CompletionResponse{
		ToolCalls:    []types.ToolCall{{ID: id, Name: name, Arguments: args}},
		FinishReason: types.FinishToolCalls,
	}
}

// loopPage is a static page whose snapshots come from the pure capture
// engine.
type loopPage struct {
	html  string
	calls []string
}

const loopPageHTML = `<html><head><title>Shop</title></head><body>
<nav><a href="/courses">Business &amp; Management</a></nav>
<input type="text" placeholder="Search">
<button>Sign In</button>
</body></html>`

func (p *loopPage) Snapshot(ctx context.Context) (*browser.Snapshot, error) {
	return browser.Capture(p.html)
}

func (p *loopPage) Navigate(ctx context.Context, url string) error {
	p.calls = append(p.calls, "navigate "+url)
	return nil
}

func (p *loopPage) Click(ctx context.Context, target string) (*browser.Element, error) {
	p.calls = append(p.calls, "click "+target)
	snap, err := browser.Capture(p.html)
	if err != nil {
		return nil, err
	}
	return snap.Resolve(target)
}

func (p *loopPage) TypeText(ctx context.Context, target, text string) (*browser.Element, error) {
	p.calls = append(p.calls, fmt.Sprintf("type %q", text))
	snap, err := browser.Capture(p.html)
	if err != nil {
		return nil, err
	}
	return snap.ResolveInput(target)
}

func (p *loopPage) PressKey(ctx context.Context, key string) error {
	p.calls = append(p.calls, "press "+key)
	return nil
}

func (p *loopPage) Scroll(ctx context.Context, direction string) error {
	p.calls = append(p.calls, "scroll "+direction)
	return nil
}

func (p *loopPage) ReadPage(ctx context.Context) (string, error) {
	return "Shop front page.", nil
}

func (p *loopPage) SelectOption(ctx context.Context, target, option string) (*browser.Element, error) {
	return nil, fmt.Errorf("no dropdowns")
}

func (p *loopPage) Location(ctx context.Context) (string, error) {
	return "https://shop.test/", nil
}

func newTestLoop(p *scriptedProvider, page *loopPage) *Loop {
	return &Loop{
		Provider: p,
		Tools:    tools.NewBrowserRegistry(page),
		Page:     page,
		History:  NewHistory(0),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep:    func(context.Context, time.Duration) {},
	}
}

func TestLoop_DirectAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*types.CompletionResponse{textResponse("It is a shop.")}}
	page := &loopPage{html: loopPageHTML}
	l := newTestLoop(provider, page)

	res, err := l.Run(context.Background(), "what is this site")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != StopCompleted || res.Answer != "It is a shop." || res.Steps != 1 {
		t.Errorf("result = %+v", res)
	}

	req := provider.requests[0]
	if req.Messages[0].Role != types.RoleSystem {
		t.Errorf("first message role = %q, want system", req.Messages[0].Role)
	}
	if !strings.Contains(req.Messages[0].Content, "navigation labels") {
		t.Error("system prompt does not state the navigation-vocabulary policy")
	}
	if req.Messages[1].Content != "what is this site" {
		t.Errorf("command message = %q", req.Messages[1].Content)
	}
	if !strings.Contains(req.Messages[2].Content, "Business & Management") {
		t.Errorf("page context missing nav item:\n%s", req.Messages[2].Content)
	}
	if len(req.Tools) != 9 {
		t.Errorf("request carries %d tools, want 9", len(req.Tools))
	}

	// The exchange lands in history.
	if got := l.History.Exchanges(); got != 1 {
		t.Errorf("history exchanges = %d, want 1", got)
	}
}

func TestLoop_ToolStepThenAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*types.CompletionResponse{
		toolCallResponse("call_1", "click_element", `{"target":"sign in"}`),
		textResponse("Signed you in."),
	}}
	page := &loopPage{html: loopPageHTML}
	l := newTestLoop(provider, page)

	var slept []time.Duration
	l.Sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	var steps [][]string
	l.OnStep = func(step int, labels []string) { steps = append(steps, labels) }

	res, err := l.Run(context.Background(), "sign me in")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Steps != 2 || res.ToolCalls != 1 || res.StopReason != StopCompleted {
		t.Errorf("result = %+v", res)
	}
	if len(res.Actions) != 1 || res.Actions[0] != `clicked button "Sign In"` {
		t.Errorf("Actions = %v", res.Actions)
	}
	if len(page.calls) != 1 || page.calls[0] != "click sign in" {
		t.Errorf("page calls = %v", page.calls)
	}

	// The settle delay runs between tool execution and the re-snapshot.
	if len(slept) != 1 || slept[0] != DefaultSettleDelay {
		t.Errorf("slept = %v, want one default settle delay", slept)
	}
	if len(steps) != 1 || len(steps[0]) != 1 {
		t.Errorf("step callbacks = %v", steps)
	}

	// The second request replays the tool exchange and a fresh context.
	second := provider.requests[1].Messages
	var sawCall, sawResult, sawContext bool
	for _, m := range second {
		switch {
		case m.Role == types.RoleAssistant && len(m.ToolCalls) == 1 && m.ToolCalls[0].ID == "call_1":
			sawCall = true
		case m.Role == types.RoleTool && m.ToolCallID == "call_1" && strings.Contains(m.Content, "Clicked"):
			sawResult = true
		case m.Role == types.RoleUser && strings.Contains(m.Content, "[page context]") && sawResult:
			sawContext = true
		}
	}
	if !sawCall || !sawResult || !sawContext {
		t.Errorf("second request missing call/result/context: %v %v %v", sawCall, sawResult, sawContext)
	}
}

func TestLoop_StepCeiling(t *testing.T) {
	// A model that never stops calling tools gets cut off after the
	// ceiling, with no further requests issued.
	provider := &scriptedProvider{responses: []*types.CompletionResponse{
		toolCallResponse("call_x", "click_element", `{"target":"sign in"}`),
	}}
	page := &loopPage{html: loopPageHTML}
	l := newTestLoop(provider, page)

	res, err := l.Run(context.Background(), "keep clicking forever")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(provider.requests) != DefaultMaxSteps {
		t.Errorf("issued %d requests, want exactly %d", len(provider.requests), DefaultMaxSteps)
	}
	if res.StopReason != StopMaxSteps {
		t.Errorf("StopReason = %q, want %q", res.StopReason, StopMaxSteps)
	}
	if res.Steps != DefaultMaxSteps {
		t.Errorf("Steps = %d, want %d", res.Steps, DefaultMaxSteps)
	}
	if strings.TrimSpace(res.Answer) == "" {
		t.Error("exhausted run must still produce an answer")
	}
	if !strings.Contains(res.Answer, "step limit") {
		t.Errorf("Answer = %q, want it to explain the step limit", res.Answer)
	}
}

func TestLoop_ToolFailureContinues(t *testing.T) {
	provider := &scriptedProvider{responses: []*types.CompletionResponse{
		toolCallResponse("call_1", "click_element", `{"target":"the 40th link"}`),
		textResponse("I could not find that link."),
	}}
	page := &loopPage{html: loopPageHTML}
	l := newTestLoop(provider, page)

	res, err := l.Run(context.Background(), "click the 40th link")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StopReason != StopCompleted {
		t.Errorf("StopReason = %q", res.StopReason)
	}

	var errorResult string
	for _, m := range provider.requests[1].Messages {
		if m.Role == types.RoleTool && m.ToolCallID == "call_1" {
			errorResult = m.Content
		}
	}
	if !strings.HasPrefix(errorResult, "Error:") {
		t.Errorf("tool failure result = %q, want an Error: transcript entry", errorResult)
	}
	// A failed resolution produces no action label.
	if len(res.Actions) != 0 {
		t.Errorf("Actions = %v, want none", res.Actions)
	}
}

func TestLoop_BusyRejectsConcurrentRun(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*types.CompletionResponse{textResponse("done")},
		block:     make(chan struct{}),
	}
	page := &loopPage{html: loopPageHTML}
	l := newTestLoop(provider, page)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Run(context.Background(), "first task")
		errCh <- err
	}()

	// Wait for the first run to take the busy flag.
	deadline := time.After(2 * time.Second)
	for !l.Busy() {
		select {
		case <-deadline:
			t.Fatal("first run never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := l.Run(context.Background(), "second task"); !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent Run error = %v, want ErrBusy", err)
	}

	close(provider.block)
	if err := <-errCh; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := l.Run(context.Background(), "third task"); err != nil {
		t.Errorf("run after release: %v", err)
	}
}

func TestLoop_PrunesOldestExchangeFirst(t *testing.T) {
	provider := &scriptedProvider{responses: []*types.CompletionResponse{textResponse("ok")}}
	page := &loopPage{html: loopPageHTML}
	l := newTestLoop(provider, page)
	l.MaxWorkingMessages = 6

	// System, command, and context take three slots, so of the three prior
	// exchanges only the newest fits under the cap.
	l.History.Append(exchange("oldest", "a")...)
	l.History.Append(exchange("middle", "b")...)
	l.History.Append(exchange("newest", "c")...)

	if _, err := l.Run(context.Background(), "final command"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := provider.requests[0].Messages
	if len(msgs) > 6 {
		t.Errorf("request has %d messages, want at most 6", len(msgs))
	}
	if msgs[0].Role != types.RoleSystem {
		t.Fatalf("first message role = %q, want system", msgs[0].Role)
	}
	var kept []string
	for _, m := range msgs[1:] {
		kept = append(kept, m.Content)
	}
	joined := strings.Join(kept, "\n")
	if strings.Contains(joined, "oldest") || strings.Contains(joined, "middle") {
		t.Errorf("pruning kept an old exchange:\n%s", joined)
	}
	if !strings.Contains(joined, "newest") {
		t.Errorf("pruning dropped the most recent exchange:\n%s", joined)
	}
	if !strings.Contains(joined, "final command") {
		t.Errorf("pruning dropped the command itself:\n%s", joined)
	}
}

func TestLoop_RejectsEmptyCommand(t *testing.T) {
	provider := &scriptedProvider{responses: []*types.CompletionResponse{textResponse("ok")}}
	l := newTestLoop(provider, &loopPage{html: loopPageHTML})

	if _, err := l.Run(context.Background(), "   "); err == nil {
		t.Error("expected error for empty command")
	}
	if len(provider.requests) != 0 {
		t.Errorf("empty command issued %d requests", len(provider.requests))
	}
}

func TestLoop_CancelledContext(t *testing.T) {
	provider := &scriptedProvider{responses: []*types.CompletionResponse{textResponse("ok")}}
	l := newTestLoop(provider, &loopPage{html: loopPageHTML})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Run(ctx, "do something"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context = %v, want context.Canceled", err)
	}
	if len(provider.requests) != 0 {
		t.Errorf("cancelled run issued %d requests", len(provider.requests))
	}
}

func TestLoop_ProviderErrorPropagates(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}
	l := newTestLoop(provider, &loopPage{html: loopPageHTML})

	_, err := l.Run(context.Background(), "do something")
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("Run error = %v", err)
	}
	// Failed runs leave no partial exchange in history.
	if got := l.History.Len(); got != 0 {
		t.Errorf("history has %d turns after a failed run", got)
	}
}
