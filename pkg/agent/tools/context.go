package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vango-go/voicenav/pkg/browser"
	"github.com/vango-go/voicenav/pkg/core/types"
)

// PageContext reports the current page's interactive elements and
// navigation vocabulary.
type PageContext struct {
	page browser.Page
}

func NewPageContext(page browser.Page) *PageContext {
	return &PageContext{page: page}
}

func (t *PageContext) Name() string { return "get_page_context" }

func (t *PageContext) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Get the current page state: URL, title, every interactive element " +
			"with its index and selector, and the site's navigation labels. Use this " +
			"whenever you are unsure what is on the page.",
		Parameters: types.ObjectSchema(map[string]any{}),
	}
}

func (t *PageContext) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	snap, err := t.page.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Content: snap.Describe()}, nil
}

// FindElements searches the page for elements matching a free-text
// description and returns the ranked candidates.
type FindElements struct {
	page browser.Page
}

func NewFindElements(page browser.Page) *FindElements {
	return &FindElements{page: page}
}

func (t *FindElements) Name() string { return "find_elements" }

func (t *FindElements) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Search the page for interactive elements matching a description " +
			"and return the closest matches, best first. Use this before clicking when " +
			"the user's wording does not appear verbatim on the page.",
		Parameters: types.ObjectSchema(map[string]any{
			"description": map[string]any{
				"type":        "string",
				"description": "What to look for, e.g. \"sign in button\" or \"search box\".",
			},
		}, "description"),
	}
}

func (t *FindElements) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	desc := strings.TrimSpace(stringArg(input, "description"))
	if desc == "" {
		return nil, fmt.Errorf("description is required")
	}
	snap, err := t.page.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	matches := snap.FindByDescription(desc)
	if len(matches) == 0 {
		return &Result{Content: fmt.Sprintf("No elements match %q.", desc)}, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d element(s) matching %q:\n", len(matches), desc)
	for i := range matches {
		b.WriteString(matches[i].String())
		b.WriteByte('\n')
	}
	return &Result{Content: b.String()}, nil
}

// ReadPage extracts the page's readable text for summarizing or answering
// questions about its content.
type ReadPage struct {
	page browser.Page
}

func NewReadPage(page browser.Page) *ReadPage {
	return &ReadPage{page: page}
}

func (t *ReadPage) Name() string { return "read_page" }

func (t *ReadPage) Definition() types.Tool {
	return types.Tool{
		Name: t.Name(),
		Description: "Read the page's visible text content. Use this to summarize the " +
			"page or answer questions about what it says.",
		Parameters: types.ObjectSchema(map[string]any{}),
	}
}

func (t *ReadPage) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	text, err := t.page.ReadPage(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return &Result{Content: "The page has no readable text."}, nil
	}
	return &Result{Content: text}, nil
}
