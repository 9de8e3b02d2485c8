package browser

import (
	"fmt"
	"strings"
)

// Element is one interactive element enumerated by a page snapshot. Index is
// the element's zero-based position among all elements that passed the
// snapshot filter, counted strictly top to bottom in document order; ordinal
// references ("the 3rd link") resolve through it. Indices are valid only
// until the next snapshot: any DOM mutation may reassign them.
type Element struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Role        string `json:"role"`
	Text        string `json:"text,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Value       string `json:"value,omitempty"`
	Title       string `json:"title,omitempty"`
	Alt         string `json:"alt,omitempty"`
	Href        string `json:"href,omitempty"`

	// Selector is the generated resolver expression. Most forms are plain
	// CSS; two mini-forms extend it: "text=<exact leaf text>" and
	// "<css>@<n>" (the nth match of <css> in document order).
	Selector string `json:"selector"`

	// Description is the best human label derivable for the element. An
	// element with no derivable description is dropped from the snapshot.
	Description string `json:"description"`
}

// describe picks the first non-empty human label in preference order.
func (e *Element) describe() string {
	for _, s := range []string{e.Text, e.AriaLabel, e.Placeholder, e.Name, e.Value, e.Title, e.Alt} {
		if s != "" {
			return s
		}
	}
	return ""
}

// searchable returns the element's combined searchable text, lowercased, for
// the broad find-by-description scoring.
func (e *Element) searchable() string {
	parts := []string{
		e.Description, e.Text, e.AriaLabel, e.Placeholder,
		e.Name, e.Type, e.Value, e.Title, e.Alt,
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Label renders the element the way action labels and tool results refer to
// it, e.g. `link "Courses"`.
func (e *Element) Label() string {
	if e.Description == "" {
		return e.Role
	}
	return fmt.Sprintf("%s %q", e.Role, e.Description)
}

// String renders the element as one line of the snapshot listing shown to
// the model.
func (e *Element) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s %q", e.Index, e.Role, e.Description)
	if e.Type != "" && e.Tag == "input" {
		fmt.Fprintf(&b, " type=%s", e.Type)
	}
	if e.Href != "" {
		fmt.Fprintf(&b, " href=%s", e.Href)
	}
	fmt.Fprintf(&b, " -> %s", e.Selector)
	return b.String()
}
