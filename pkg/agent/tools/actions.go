package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vango-go/voicenav/pkg/browser"
	"github.com/vango-go/voicenav/pkg/core/types"
)

// targetSchema is the shared schema for arguments that name an element:
// either a selector from an earlier snapshot or a spoken-style description.
func targetSchema(hint string) map[string]any {
	return map[string]any{
		"type": "string",
		"description": "The element to act on: a selector from the page context, an " +
			"ordinal like \"the 2nd link\", or a description of its label. " + hint,
	}
}

// Click resolves a target and clicks it.
type Click struct {
	page browser.Page
}

func NewClick(page browser.Page) *Click {
	return &Click{page: page}
}

func (t *Click) Name() string { return "click_element" }

func (t *Click) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Click a link, button, or other interactive element. Prefer the " +
			"site's own navigation labels over the user's literal words when they differ.",
		Parameters: types.ObjectSchema(map[string]any{
			"target": targetSchema("Example: \"Business & Management\"."),
		}, "target"),
	}
}

func (t *Click) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	target := strings.TrimSpace(stringArg(input, "target"))
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}
	el, err := t.page.Click(ctx, target)
	if err != nil {
		return nil, err
	}
	return &Result{
		Content: fmt.Sprintf("Clicked %s.", el.Label()),
		Label:   fmt.Sprintf("clicked %s", el.Label()),
	}, nil
}

// TypeText replaces a text field's value.
type TypeText struct {
	page browser.Page
}

func NewTypeText(page browser.Page) *TypeText {
	return &TypeText{page: page}
}

func (t *TypeText) Name() string { return "type_text" }

func (t *TypeText) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Type text into an input field, replacing its current value. " +
			"Leave target empty to use the first text field on the page.",
		Parameters: types.ObjectSchema(map[string]any{
			"target": targetSchema("Leave empty for the first text field."),
			"text": map[string]any{
				"type":        "string",
				"description": "The text to type.",
			},
		}, "text"),
	}
}

func (t *TypeText) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	text := stringArg(input, "text")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	el, err := t.page.TypeText(ctx, strings.TrimSpace(stringArg(input, "target")), text)
	if err != nil {
		return nil, err
	}
	return &Result{
		Content: fmt.Sprintf("Typed %q into %s.", text, el.Label()),
		Label:   fmt.Sprintf("typed %q into %s", text, el.Label()),
	}, nil
}

// PressKey sends a named key to the focused element.
type PressKey struct {
	page browser.Page
}

func NewPressKey(page browser.Page) *PressKey {
	return &PressKey{page: page}
}

func (t *PressKey) Name() string { return "press_key" }

func (t *PressKey) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Press a keyboard key on the focused element. Use Enter to submit " +
			"a form after typing into it.",
		Parameters: types.ObjectSchema(map[string]any{
			"key": map[string]any{
				"type":        "string",
				"description": "Key name: Enter, Tab, Escape, Backspace, ArrowDown, ArrowUp, PageDown, PageUp.",
			},
		}, "key"),
	}
}

func (t *PressKey) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	key := strings.TrimSpace(stringArg(input, "key"))
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if err := t.page.PressKey(ctx, key); err != nil {
		return nil, err
	}
	return &Result{
		Content: fmt.Sprintf("Pressed %s.", key),
		Label:   fmt.Sprintf("pressed %s", key),
	}, nil
}

// Scroll moves the viewport.
type Scroll struct {
	page browser.Page
}

func NewScroll(page browser.Page) *Scroll {
	return &Scroll{page: page}
}

func (t *Scroll) Name() string { return "scroll_page" }

func (t *Scroll) Definition() types.Tool {
	return types.Tool{
		Name:        t.Name(),
		Description: "Scroll the page to bring more content into view.",
		Parameters: types.ObjectSchema(map[string]any{
			"direction": map[string]any{
				"type":        "string",
				"enum":        []string{browser.ScrollUp, browser.ScrollDown, browser.ScrollTop, browser.ScrollBottom},
				"description": "Direction to scroll. Defaults to down.",
			},
		}),
	}
}

func (t *Scroll) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	direction := strings.TrimSpace(stringArg(input, "direction"))
	if direction == "" {
		direction = browser.ScrollDown
	}
	switch direction {
	case browser.ScrollUp, browser.ScrollDown, browser.ScrollTop, browser.ScrollBottom:
	default:
		return nil, fmt.Errorf("unknown scroll direction %q", direction)
	}
	if err := t.page.Scroll(ctx, direction); err != nil {
		return nil, err
	}
	return &Result{
		Content: fmt.Sprintf("Scrolled %s.", direction),
		Label:   fmt.Sprintf("scrolled %s", direction),
	}, nil
}

// Navigate loads a URL in the tab.
type Navigate struct {
	page browser.Page
}

func NewNavigate(page browser.Page) *Navigate {
	return &Navigate{page: page}
}

func (t *Navigate) Name() string { return "navigate_to" }

func (t *Navigate) Definition() types.Tool {
	return types.Tool{
		Name:        t.Name(),
		Description: "Navigate the browser to a URL and wait for the page to load.",
		Parameters: types.ObjectSchema(map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute URL to open, e.g. https://example.com.",
			},
		}, "url"),
	}
}

func (t *Navigate) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	url := strings.TrimSpace(stringArg(input, "url"))
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	if err := t.page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return &Result{
		Content: fmt.Sprintf("Opened %s.", url),
		Label:   fmt.Sprintf("opened %s", url),
	}, nil
}

// SelectOption picks an option in a dropdown.
type SelectOption struct {
	page browser.Page
}

func NewSelectOption(page browser.Page) *SelectOption {
	return &SelectOption{page: page}
}

func (t *SelectOption) Name() string { return "select_option" }

func (t *SelectOption) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Select an option in a dropdown by its visible label or value. " +
			"Leave target empty when the page has a single dropdown.",
		Parameters: types.ObjectSchema(map[string]any{
			"target": targetSchema("Leave empty when the page has one dropdown."),
			"option": map[string]any{
				"type":        "string",
				"description": "The option's visible label or value.",
			},
		}, "option"),
	}
}

func (t *SelectOption) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	option := strings.TrimSpace(stringArg(input, "option"))
	if option == "" {
		return nil, fmt.Errorf("option is required")
	}
	el, err := t.page.SelectOption(ctx, strings.TrimSpace(stringArg(input, "target")), option)
	if err != nil {
		return nil, err
	}
	return &Result{
		Content: fmt.Sprintf("Selected %q in %s.", option, el.Label()),
		Label:   fmt.Sprintf("selected %q in %s", option, el.Label()),
	}, nil
}
