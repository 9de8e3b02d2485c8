package browser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/vango-go/voicenav/pkg/core"
)

const defaultActionTimeout = 15 * time.Second

// ChromeOptions configures the managed Chrome instance.
type ChromeOptions struct {
	// Headful disables headless mode for local debugging.
	Headful bool
	// NoSandbox is required when running as root inside a container.
	NoSandbox bool
	// ExecPath overrides the browser binary discovered on PATH.
	ExecPath string
	// ActionTimeout bounds each individual page action.
	ActionTimeout time.Duration
	// Logger receives action-level debug logging. Defaults to slog.Default.
	Logger *slog.Logger
}

// Chrome drives a dedicated Chrome tab through the DevTools protocol and
// implements Page. All actions re-snapshot before resolving their target.
type Chrome struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once

	actionTimeout time.Duration
	logger        *slog.Logger
}

// NewChrome launches a browser and opens the tab the agent will operate on.
// The context governs the browser's lifetime; cancelling it is equivalent to
// Close.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.Headful {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, chromedp.EmulateViewport(1280, 720)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}

	return &Chrome{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		actionTimeout: timeout,
		logger:        logger,
	}, nil
}

// Close shuts the browser down. Safe to call more than once.
func (c *Chrome) Close() {
	c.closeOnce.Do(func() {
		c.browserCancel()
		c.allocCancel()
	})
}

// markHiddenScript stamps computed-style-hidden elements before the DOM is
// serialized, since the detached tree handed to the snapshot engine only
// carries inline styles.
const markHiddenScript = `(() => {
	for (const el of document.querySelectorAll("[data-voicenav-hidden]")) {
		el.removeAttribute("data-voicenav-hidden");
	}
	let marked = 0;
	for (const el of document.querySelectorAll("a, button, input, select, textarea, [role]")) {
		let hidden;
		if (el.checkVisibility) {
			hidden = !el.checkVisibility({checkOpacity: true, checkVisibilityCSS: true});
		} else {
			const cs = getComputedStyle(el);
			hidden = cs.display === "none" || cs.visibility === "hidden" || cs.opacity === "0";
		}
		if (hidden) {
			el.setAttribute("data-voicenav-hidden", "1");
			marked++;
		}
	}
	return marked;
})()`

// Snapshot serializes the live DOM and runs the snapshot engine over it.
func (c *Chrome) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		marked     int
		loc, title string
		src        string
	)
	err := c.run(ctx,
		chromedp.Evaluate(markHiddenScript, &marked),
		chromedp.Location(&loc),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &src, chromedp.ByQuery),
	)
	if err != nil {
		return nil, core.NewToolExecutionError(fmt.Sprintf("capture page: %v", err))
	}

	snap, err := Capture(src)
	if err != nil {
		return nil, err
	}
	snap.URL = loc
	snap.Title = title
	c.logger.Debug("captured snapshot",
		"url", loc, "elements", len(snap.Elements), "hidden_marked", marked)
	return snap, nil
}

// Navigate loads the URL and waits for the document body. A bare host like
// "example.com" gets an https scheme.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return core.NewToolExecutionError("empty navigation url")
	}
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	if err := c.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return core.NewToolExecutionError(fmt.Sprintf("navigate to %s: %v", url, err))
	}
	c.logger.Debug("navigated", "url", url)
	return nil
}

// Click resolves the target against a fresh snapshot and clicks it.
func (c *Chrome) Click(ctx context.Context, target string) (*Element, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	el, err := snap.Resolve(target)
	if err != nil {
		return nil, err
	}
	if err := c.click(ctx, el.Selector); err != nil {
		return nil, err
	}
	c.logger.Debug("clicked", "selector", el.Selector, "element", el.Label())
	return el, nil
}

const clickScript = `(() => {
	const el = %s;
	if (!el) return "not-found";
	el.scrollIntoView({block: "center"});
	el.click();
	return "ok";
})()`

func (c *Chrome) click(ctx context.Context, sel string) error {
	if isPlainCSS(sel) {
		err := c.run(ctx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
		)
		if err != nil {
			return core.NewToolExecutionError(fmt.Sprintf("click %s: %v", sel, err))
		}
		return nil
	}
	var result string
	js := fmt.Sprintf(clickScript, elementJS(sel))
	if err := c.run(ctx, chromedp.Evaluate(js, &result)); err != nil {
		return core.NewToolExecutionError(fmt.Sprintf("click %s: %v", sel, err))
	}
	if result != "ok" {
		return core.NewToolExecutionError(fmt.Sprintf("element %s disappeared before click", sel))
	}
	return nil
}

const setValueScript = `(() => {
	const el = %s;
	if (!el) return "not-found";
	el.focus();
	el.value = %s;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return "ok";
})()`

// TypeText resolves the target field against a fresh snapshot, clears it,
// and types the text.
func (c *Chrome) TypeText(ctx context.Context, target, text string) (*Element, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	el, err := snap.ResolveInput(target)
	if err != nil {
		return nil, err
	}

	sel := el.Selector
	if isPlainCSS(sel) {
		err = c.run(ctx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.SetValue(sel, "", chromedp.ByQuery),
			chromedp.SendKeys(sel, text, chromedp.ByQuery),
		)
		if err != nil {
			return nil, core.NewToolExecutionError(fmt.Sprintf("type into %s: %v", sel, err))
		}
	} else {
		var result string
		js := fmt.Sprintf(setValueScript, elementJS(sel), strconv.Quote(text))
		if err := c.run(ctx, chromedp.Evaluate(js, &result)); err != nil {
			return nil, core.NewToolExecutionError(fmt.Sprintf("type into %s: %v", sel, err))
		}
		if result != "ok" {
			return nil, core.NewToolExecutionError(fmt.Sprintf("element %s disappeared before typing", sel))
		}
	}
	c.logger.Debug("typed text", "selector", sel, "chars", len(text))
	return el, nil
}

// namedKeys maps spoken key names to DevTools key sequences.
var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"space":      " ",
	"arrowup":    kb.ArrowUp,
	"up":         kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"down":       kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"left":       kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"right":      kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
}

// PressKey sends a named key to the focused element.
func (c *Chrome) PressKey(ctx context.Context, key string) error {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", ""))
	seq, ok := namedKeys[normalized]
	if !ok {
		if r := []rune(normalized); len(r) == 1 {
			seq = string(r)
		} else {
			return core.NewToolExecutionError(fmt.Sprintf("unknown key %q", key))
		}
	}
	if err := c.run(ctx, chromedp.KeyEvent(seq)); err != nil {
		return core.NewToolExecutionError(fmt.Sprintf("press %s: %v", key, err))
	}
	c.logger.Debug("pressed key", "key", key)
	return nil
}

var scrollScripts = map[string]string{
	ScrollUp:     `window.scrollBy({top: -window.innerHeight * 0.8, behavior: "instant"})`,
	ScrollDown:   `window.scrollBy({top: window.innerHeight * 0.8, behavior: "instant"})`,
	ScrollTop:    `window.scrollTo({top: 0, behavior: "instant"})`,
	ScrollBottom: `window.scrollTo({top: document.body.scrollHeight, behavior: "instant"})`,
}

// Scroll moves the viewport.
func (c *Chrome) Scroll(ctx context.Context, direction string) error {
	js, ok := scrollScripts[strings.ToLower(strings.TrimSpace(direction))]
	if !ok {
		return core.NewToolExecutionError(fmt.Sprintf("unknown scroll direction %q", direction))
	}
	if err := c.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return core.NewToolExecutionError(fmt.Sprintf("scroll %s: %v", direction, err))
	}
	return nil
}

// ReadPage serializes the DOM and extracts its readable text.
func (c *Chrome) ReadPage(ctx context.Context) (string, error) {
	var src string
	if err := c.run(ctx, chromedp.OuterHTML("html", &src, chromedp.ByQuery)); err != nil {
		return "", core.NewToolExecutionError(fmt.Sprintf("read page: %v", err))
	}
	return ReadableText(src)
}

const selectOptionScript = `(() => {
	const el = %s;
	if (!el) return "not-found";
	if (el.tagName !== "SELECT") return "not-a-select";
	const want = %s.trim().toLowerCase();
	for (let i = 0; i < el.options.length; i++) {
		const o = el.options[i];
		if (o.value.toLowerCase() === want ||
			o.label.trim().toLowerCase() === want ||
			o.text.trim().toLowerCase() === want) {
			el.selectedIndex = i;
			el.dispatchEvent(new Event("input", {bubbles: true}));
			el.dispatchEvent(new Event("change", {bubbles: true}));
			return "ok";
		}
	}
	return "no-option";
})()`

// SelectOption resolves the target dropdown against a fresh snapshot and
// selects the option whose value or label matches.
func (c *Chrome) SelectOption(ctx context.Context, target, option string) (*Element, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	el, err := snap.ResolveSelect(target)
	if err != nil {
		return nil, err
	}

	var result string
	js := fmt.Sprintf(selectOptionScript, elementJS(el.Selector), strconv.Quote(option))
	if err := c.run(ctx, chromedp.Evaluate(js, &result)); err != nil {
		return nil, core.NewToolExecutionError(fmt.Sprintf("select in %s: %v", el.Selector, err))
	}
	switch result {
	case "ok":
	case "no-option":
		return nil, core.NewToolExecutionError(fmt.Sprintf("dropdown %s has no option %q", el.Selector, option))
	default:
		return nil, core.NewToolExecutionError(fmt.Sprintf("element %s is not a usable dropdown", el.Selector))
	}
	c.logger.Debug("selected option", "selector", el.Selector, "option", option)
	return el, nil
}

// Location returns the tab's current URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", core.NewToolExecutionError(fmt.Sprintf("read location: %v", err))
	}
	return loc, nil
}

// run executes actions on the tab with the per-action timeout, honoring the
// caller's cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(c.browserCtx, c.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

const textVisitScript = `(() => {
	const want = %s.trim().replace(/\s+/g, " ");
	for (const el of document.querySelectorAll("a, button, [role], summary")) {
		if (el.textContent.trim().replace(/\s+/g, " ") === want) return el;
	}
	return null;
})()`

// elementJS returns a JavaScript expression evaluating to the element the
// resolver expression names, covering the two non-CSS mini-forms.
func elementJS(sel string) string {
	if text, ok := strings.CutPrefix(sel, "text="); ok {
		return fmt.Sprintf(textVisitScript, strconv.Quote(text))
	}
	if css, n, ok := splitPositional(sel); ok {
		return fmt.Sprintf("document.querySelectorAll(%s)[%d]", strconv.Quote(css), n)
	}
	return fmt.Sprintf("document.querySelector(%s)", strconv.Quote(sel))
}

var positionalPattern = regexp.MustCompile(`^(.+)@(\d+)$`)

// splitPositional parses the "<css>@<n>" mini-form. Generated attribute
// selectors always end in a bracket, so the suffix is unambiguous.
func splitPositional(sel string) (string, int, bool) {
	m := positionalPattern.FindStringSubmatch(sel)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

func isPlainCSS(sel string) bool {
	if strings.HasPrefix(sel, "text=") {
		return false
	}
	_, _, positional := splitPositional(sel)
	return !positional
}
