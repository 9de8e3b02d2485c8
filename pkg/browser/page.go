// Package browser captures interactive-element snapshots of web pages,
// resolves spoken references against them, and drives a Chrome tab through
// the resulting selectors.
//
// The snapshot and resolution engine is pure: it operates on serialized HTML
// and has no browser dependency, so reference resolution is testable without
// a running Chrome. The Chrome-backed Page implementation serializes the
// live DOM, hands it to the engine, and executes the resolved selector
// through the DevTools protocol.
package browser

import "context"

// Scroll directions accepted by Page.Scroll.
const (
	ScrollUp     = "up"
	ScrollDown   = "down"
	ScrollTop    = "top"
	ScrollBottom = "bottom"
)

// Page is the browser tab the agent operates on. Action methods that take a
// target accept either a resolver expression from an earlier snapshot or a
// free-text description; each action re-snapshots the page before resolving,
// since indices and selectors from a prior snapshot may have been
// invalidated by DOM mutation. The resolved element is returned so callers
// can build human-readable action labels.
type Page interface {
	// Snapshot enumerates the page's interactive elements.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Navigate loads the URL and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error

	// Click resolves the target and clicks it.
	Click(ctx context.Context, target string) (*Element, error)

	// TypeText resolves the target text field (the first field on the page
	// when target is empty), replaces its value, and fires input events.
	TypeText(ctx context.Context, target, text string) (*Element, error)

	// PressKey sends a named key such as "Enter" or "ArrowDown" to the
	// focused element.
	PressKey(ctx context.Context, key string) error

	// Scroll moves the viewport one step in the given direction, or to the
	// extreme for ScrollTop and ScrollBottom.
	Scroll(ctx context.Context, direction string) error

	// ReadPage extracts the page's readable text content.
	ReadPage(ctx context.Context) (string, error)

	// SelectOption resolves the target dropdown and selects the option whose
	// value or label matches.
	SelectOption(ctx context.Context, target, option string) (*Element, error)

	// Location returns the tab's current URL.
	Location(ctx context.Context) (string, error)
}
