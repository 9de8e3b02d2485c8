package browser

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-go/voicenav/pkg/core"
)

const (
	// maxSnapshotElements bounds the snapshot payload handed to the model.
	maxSnapshotElements = 100
	// maxNavLabels bounds the navigation vocabulary extracted per snapshot.
	maxNavLabels = 40

	// ownUIAttr marks the assistant's own injected UI. Its whole subtree is
	// excluded from snapshots so the agent never operates on itself.
	ownUIAttr = "data-voicenav"
	// ownUIIDPrefix is the id namespace reserved for injected UI nodes.
	ownUIIDPrefix = "voicenav-"
	// hiddenMarkerAttr is stamped onto computed-style-hidden elements by the
	// live page before serialization, since a detached HTML tree only carries
	// inline styles.
	hiddenMarkerAttr = "data-voicenav-hidden"
)

// Snapshot is a point-in-time enumeration of a page's interactive elements.
// It is rebuilt from scratch on every capture and never mutated in place;
// element indices from an older snapshot must not be trusted after the DOM
// may have changed.
type Snapshot struct {
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Elements   []Element `json:"elements"`
	NavLabels  []string  `json:"nav_labels,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// interactiveTags are the element types enumerated directly.
var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
}

// interactiveRoles are the ARIA roles that make any other element
// snapshot-worthy.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"checkbox":         true,
	"radio":            true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"tab":              true,
	"combobox":         true,
	"listbox":          true,
	"textbox":          true,
	"searchbox":        true,
	"switch":           true,
	"option":           true,
	"slider":           true,
	"spinbutton":       true,
}

// buttonInputTypes are input types that act as buttons rather than fields.
var buttonInputTypes = map[string]bool{
	"button": true,
	"submit": true,
	"reset":  true,
	"image":  true,
}

// Capture parses serialized page HTML and enumerates its interactive
// elements in document order. Skipped entirely: the assistant's own UI
// subtree, hidden elements (inline display/visibility/opacity, the hidden
// and aria-hidden attributes, or the computed-style marker stamped by the
// live page), and elements with no derivable human description. Surviving
// elements get zero-based sequential indices and a generated resolver
// expression, capped at maxSnapshotElements.
func Capture(src string) (*Snapshot, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, core.NewToolExecutionError(fmt.Sprintf("parse page: %v", err))
	}

	ids := collectIDs(doc)
	snap := &Snapshot{CapturedAt: time.Now()}

	var traverse func(n *html.Node, inNav bool)
	traverse = func(n *html.Node, inNav bool) {
		if n.Type == html.ElementNode {
			if isOwnUI(n) || isHidden(n) {
				return
			}
			switch {
			case n.Data == "nav" || attrValue(n, "role") == "navigation":
				inNav = true
			case n.Data == "title" && snap.Title == "":
				snap.Title = normalizeSpace(textContent(n))
			}
			if isInteractive(n) && len(snap.Elements) < maxSnapshotElements {
				if el, ok := newElement(n, doc, ids, len(snap.Elements)); ok {
					snap.Elements = append(snap.Elements, el)
					if inNav && len(snap.NavLabels) < maxNavLabels {
						snap.NavLabels = append(snap.NavLabels, el.Description)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c, inNav)
		}
	}
	traverse(doc, false)

	return snap, nil
}

// Describe renders the snapshot as the compact listing included in agent
// prompts and page-context tool results.
func (s *Snapshot) Describe() string {
	var b strings.Builder
	if s.Title != "" || s.URL != "" {
		fmt.Fprintf(&b, "Page: %s (%s)\n", s.Title, s.URL)
	}
	fmt.Fprintf(&b, "Interactive elements (%d):\n", len(s.Elements))
	for i := range s.Elements {
		b.WriteString(s.Elements[i].String())
		b.WriteByte('\n')
	}
	if len(s.NavLabels) > 0 {
		fmt.Fprintf(&b, "Navigation items: %s\n", strings.Join(s.NavLabels, " | "))
	}
	return b.String()
}

func isInteractive(n *html.Node) bool {
	if interactiveTags[n.Data] {
		return true
	}
	return interactiveRoles[strings.ToLower(attrValue(n, "role"))]
}

func isOwnUI(n *html.Node) bool {
	if hasAttr(n, ownUIAttr) {
		return true
	}
	return strings.HasPrefix(attrValue(n, "id"), ownUIIDPrefix)
}

func isHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") || hasAttr(n, hiddenMarkerAttr) {
		return true
	}
	if strings.EqualFold(attrValue(n, "aria-hidden"), "true") {
		return true
	}
	if n.Data == "input" && strings.EqualFold(attrValue(n, "type"), "hidden") {
		return true
	}
	return styleHides(attrValue(n, "style"))
}

// styleHides reports whether an inline style declaration hides the element.
func styleHides(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(val))
		switch prop {
		case "display":
			if val == "none" {
				return true
			}
		case "visibility":
			if val == "hidden" {
				return true
			}
		case "opacity":
			if val == "0" || val == "0.0" || val == "0%" {
				return true
			}
		}
	}
	return false
}

func newElement(n *html.Node, doc *html.Node, ids map[string]int, index int) (Element, bool) {
	el := Element{
		Index:       index,
		Tag:         n.Data,
		Role:        roleFor(n),
		Text:        elementText(n),
		AriaLabel:   attrValue(n, "aria-label"),
		Placeholder: attrValue(n, "placeholder"),
		Name:        attrValue(n, "name"),
		Type:        strings.ToLower(attrValue(n, "type")),
		Value:       attrValue(n, "value"),
		Title:       attrValue(n, "title"),
		Alt:         altText(n),
		Href:        normalizeHref(attrValue(n, "href")),
	}
	el.Description = el.describe()
	if el.Description == "" {
		return Element{}, false
	}
	el.Selector = buildSelector(n, doc, ids, &el)
	return el, true
}

// roleFor maps an element to its effective role, preferring an explicit
// interactive ARIA role over the tag's implicit one.
func roleFor(n *html.Node) string {
	if r := strings.ToLower(attrValue(n, "role")); interactiveRoles[r] {
		return r
	}
	switch n.Data {
	case "a":
		return "link"
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "input":
		typ := strings.ToLower(attrValue(n, "type"))
		switch {
		case buttonInputTypes[typ]:
			return "button"
		case typ == "checkbox":
			return "checkbox"
		case typ == "radio":
			return "radio"
		case typ == "search":
			return "searchbox"
		default:
			return "textbox"
		}
	}
	return "generic"
}

const maxElementText = 120

// elementText returns the element's own visible text, whitespace-normalized
// and truncated.
func elementText(n *html.Node) string {
	text := normalizeSpace(textContent(n))
	if len(text) > maxElementText {
		text = text[:maxElementText]
	}
	return text
}

// textContent concatenates all descendant text nodes.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// altText returns the element's own alt attribute, or the first descendant
// image's. Image-only links and buttons derive their description from it.
func altText(n *html.Node) string {
	if alt := attrValue(n, "alt"); alt != "" {
		return alt
	}
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "img" || n.Data == "svg") {
			if alt := attrValue(n, "alt"); alt != "" {
				found = alt
				return
			}
			if lbl := attrValue(n, "aria-label"); lbl != "" {
				found = lbl
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return found
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// collectIDs counts id attribute occurrences so selector generation can tell
// unique ids from reused ones.
func collectIDs(doc *html.Node) map[string]int {
	ids := make(map[string]int)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attrValue(n, "id"); id != "" {
				ids[id]++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ids
}
