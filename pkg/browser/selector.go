package browser

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// testIDAttrs are the stable test-identifier attributes checked in order.
var testIDAttrs = []string{"data-testid", "data-test-id", "data-test", "data-cy", "data-qa"}

// formControlTags may be addressed by their name attribute.
var formControlTags = map[string]bool{
	"input":    true,
	"select":   true,
	"textarea": true,
}

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// buildSelector generates the element's resolver expression. The preference
// order is fixed: unique id, test-identifier attribute, aria-label, name
// (form controls only), placeholder, normalized href (links), exact leaf
// text, and finally class with position among same-class siblings. Changing
// this order silently changes what ordinal and structural references resolve
// to, so treat it as frozen.
func buildSelector(n *html.Node, doc *html.Node, ids map[string]int, el *Element) string {
	if id := attrValue(n, "id"); id != "" && ids[id] == 1 && identPattern.MatchString(id) {
		return "#" + id
	}
	for _, key := range testIDAttrs {
		if v := attrValue(n, key); v != "" {
			return fmt.Sprintf("[%s=%q]", key, v)
		}
	}
	if el.AriaLabel != "" {
		return fmt.Sprintf("%s[aria-label=%q]", el.Tag, el.AriaLabel)
	}
	if el.Name != "" && formControlTags[el.Tag] {
		return fmt.Sprintf("%s[name=%q]", el.Tag, el.Name)
	}
	if el.Placeholder != "" {
		return fmt.Sprintf("%s[placeholder=%q]", el.Tag, el.Placeholder)
	}
	if el.Tag == "a" && el.Href != "" {
		if raw := attrValue(n, "href"); raw == el.Href {
			return fmt.Sprintf("a[href=%q]", el.Href)
		}
		// Normalization changed the href, so match it as a prefix.
		return fmt.Sprintf("a[href^=%q]", el.Href)
	}
	if el.Text != "" && isLeafText(n) {
		return "text=" + el.Text
	}
	return classPositionSelector(n, doc)
}

// normalizeHref strips the fragment and rejects non-navigating hrefs.
func normalizeHref(href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return href
}

// isLeafText reports whether the element's text comes only from direct text
// children, making an exact-text path unambiguous.
func isLeafText(n *html.Node) bool {
	sawText := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				sawText = true
			}
		case html.ElementNode:
			return false
		}
	}
	return sawText
}

// classPositionSelector is the last-resort form: the element's tag and
// classes, disambiguated by position among all nodes matching the same
// tag-and-class combination in document order.
func classPositionSelector(n *html.Node, doc *html.Node) string {
	classes := safeClasses(n)
	css := n.Data
	if len(classes) > 0 {
		css += "." + strings.Join(classes, ".")
	}

	pos := 0
	found := false
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if found {
			return
		}
		if cur.Type == html.ElementNode && cur.Data == n.Data && hasClasses(cur, classes) {
			if cur == n {
				found = true
				return
			}
			pos++
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return fmt.Sprintf("%s@%d", css, pos)
}

func safeClasses(n *html.Node) []string {
	var out []string
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if identPattern.MatchString(c) {
			out = append(out, c)
		}
	}
	return out
}

func hasClasses(n *html.Node, classes []string) bool {
	if len(classes) == 0 {
		return true
	}
	have := make(map[string]bool)
	for _, c := range strings.Fields(attrValue(n, "class")) {
		have[c] = true
	}
	for _, c := range classes {
		if !have[c] {
			return false
		}
	}
	return true
}
