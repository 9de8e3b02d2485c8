package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-go/voicenav/pkg/core"
)

// maxReadableLength bounds the read-page tool result so a long article does
// not crowd the rest of the agent transcript out of the context window.
const maxReadableLength = 5000

// skippedReadElements contribute nothing to readable text.
var skippedReadElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
	"head":     true,
}

// blockElements force a line break around their text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true,
	"ul": true,
}

// ReadableText extracts the page's visible text from serialized HTML. Block
// elements become line breaks, hidden subtrees and the assistant's own UI
// are skipped, and the result is truncated to maxReadableLength.
func ReadableText(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", core.NewToolExecutionError(fmt.Sprintf("parse page: %v", err))
	}

	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedReadElements[n.Data] || isOwnUI(n) || isHidden(n) {
				return
			}
			if blockElements[n.Data] {
				b.WriteByte('\n')
			}
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(normalizeSpace(text))
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	traverse(doc)

	return collapseBlankLines(b.String()), nil
}

// collapseBlankLines squeezes runs of blank lines down to one and applies
// the length cap.
func collapseBlankLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	text := strings.Join(out, "\n")
	if len(text) > maxReadableLength {
		text = text[:maxReadableLength] + "\n[content truncated]"
	}
	return text
}
