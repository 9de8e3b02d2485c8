package browser

import (
	"fmt"
	"strings"
	"testing"
)

// coursePage exercises every selector-generation rule and every snapshot
// filter in one document.
const coursePage = `<!DOCTYPE html>
<html>
<head><title>Acme Academy</title></head>
<body>
  <header>
    <a href="/#top"><img src="/logo.png" alt="Acme Academy logo"></a>
    <nav>
      <a href="/courses">Courses</a>
      <a href="/courses/business">Business &amp; Management</a>
      <a href="/pricing">Pricing</a>
    </nav>
    <input type="search" placeholder="Search courses...">
  </header>
  <main>
    <div>Plain copy, nothing interactive here.</div>
    <button data-testid="signup">Sign up</button>
    <button aria-label="Close dialog"></button>
    <input name="email" type="email">
    <button>Get started</button>
    <button class="card"><span>Buy</span> <span>Now</span></button>
    <button class="card"><span>Try</span> <span>Free</span></button>
    <select id="language"><option value="en">English</option><option value="sv">Swedish</option></select>
    <div role="button" class="fancy">Toggle theme</div>
  </main>
  <footer>
    <a href="/promo" style="display:none">Promo</a>
    <a href="/secret" hidden>Secret</a>
    <button style="visibility: hidden">Ghost</button>
    <button style="opacity: 0">Invisible</button>
    <input type="hidden" name="csrf" value="tok">
    <a href="/decor" aria-hidden="true">Decor</a>
    <div data-voicenav="panel"><button>Stop listening</button></div>
    <div id="voicenav-overlay"><a href="/help">Help</a></div>
    <span role="button"></span>
  </footer>
</body>
</html>`

func TestCapture_EnumeratesInDocumentOrder(t *testing.T) {
	snap, err := Capture(coursePage)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	want := []struct {
		role        string
		description string
		selector    string
	}{
		{"link", "Acme Academy logo", `a[href^="/"]`},
		{"link", "Courses", `a[href="/courses"]`},
		{"link", "Business & Management", `a[href="/courses/business"]`},
		{"link", "Pricing", `a[href="/pricing"]`},
		{"searchbox", "Search courses...", `input[placeholder="Search courses..."]`},
		{"button", "Sign up", `[data-testid="signup"]`},
		{"button", "Close dialog", `button[aria-label="Close dialog"]`},
		{"textbox", "email", `input[name="email"]`},
		{"button", "Get started", "text=Get started"},
		{"button", "Buy Now", "button.card@0"},
		{"button", "Try Free", "button.card@1"},
		{"combobox", "English Swedish", "#language"},
		{"button", "Toggle theme", "text=Toggle theme"},
	}
	if len(snap.Elements) != len(want) {
		for _, el := range snap.Elements {
			t.Logf("got: %s", el.String())
		}
		t.Fatalf("got %d elements, want %d", len(snap.Elements), len(want))
	}
	for i, w := range want {
		el := snap.Elements[i]
		if el.Index != i {
			t.Errorf("element %d: index = %d, indices must be sequential", i, el.Index)
		}
		if el.Role != w.role {
			t.Errorf("element %d: role = %q, want %q", i, el.Role, w.role)
		}
		if el.Description != w.description {
			t.Errorf("element %d: description = %q, want %q", i, el.Description, w.description)
		}
		if el.Selector != w.selector {
			t.Errorf("element %d: selector = %q, want %q", i, el.Selector, w.selector)
		}
	}

	if snap.Title != "Acme Academy" {
		t.Errorf("title = %q, want %q", snap.Title, "Acme Academy")
	}
}

func TestCapture_NavigationLabels(t *testing.T) {
	snap, err := Capture(coursePage)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	want := []string{"Courses", "Business & Management", "Pricing"}
	if len(snap.NavLabels) != len(want) {
		t.Fatalf("nav labels = %v, want %v", snap.NavLabels, want)
	}
	for i, w := range want {
		if snap.NavLabels[i] != w {
			t.Errorf("nav label %d = %q, want %q", i, snap.NavLabels[i], w)
		}
	}
}

func TestCapture_SkipsHiddenAndOwnUI(t *testing.T) {
	snap, err := Capture(coursePage)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	excluded := []string{
		"Promo", "Secret", "Ghost", "Invisible", "csrf", "Decor",
		"Stop listening", "Help",
	}
	for _, el := range snap.Elements {
		for _, desc := range excluded {
			if el.Description == desc {
				t.Errorf("hidden or own-UI element %q leaked into the snapshot", desc)
			}
		}
	}
}

func TestCapture_CapsEnumeration(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, `<a href="/item-%d">Item %d</a>`, i, i)
	}
	b.WriteString("</body></html>")

	snap, err := Capture(b.String())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(snap.Elements) != maxSnapshotElements {
		t.Fatalf("got %d elements, want cap of %d", len(snap.Elements), maxSnapshotElements)
	}
	last := snap.Elements[len(snap.Elements)-1]
	if last.Description != "Item 99" {
		t.Errorf("last element = %q, want the 100th in document order", last.Description)
	}
}

func TestStyleHides(t *testing.T) {
	tests := []struct {
		style string
		want  bool
	}{
		{"display:none", true},
		{"display: none ;", true},
		{"color: red; display: none", true},
		{"visibility:hidden", true},
		{"visibility: hidden", true},
		{"opacity:0", true},
		{"opacity: 0%", true},
		{"opacity: 0.0", true},
		{"opacity: 0.5", false},
		{"display:block", false},
		{"color: red", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := styleHides(tt.style); got != tt.want {
			t.Errorf("styleHides(%q) = %v, want %v", tt.style, got, tt.want)
		}
	}
}

func TestNormalizeHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/courses", "/courses"},
		{"/courses#syllabus", "/courses"},
		{"#", ""},
		{"#top", ""},
		{"", ""},
		{"javascript:void(0)", ""},
		{"https://example.com/p?q=1", "https://example.com/p?q=1"},
	}
	for _, tt := range tests {
		if got := normalizeHref(tt.href); got != tt.want {
			t.Errorf("normalizeHref(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestSnapshot_Describe(t *testing.T) {
	snap, err := Capture(coursePage)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	snap.URL = "https://academy.example.com"

	out := snap.Describe()
	for _, want := range []string{
		"Page: Acme Academy (https://academy.example.com)",
		`[1] link "Courses" href=/courses -> a[href="/courses"]`,
		"Navigation items: Courses | Business & Management | Pricing",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Describe() missing %q:\n%s", want, out)
		}
	}
}

func TestReadableText(t *testing.T) {
	const page = `<html>
<head><title>Doc</title><style>p{color:red}</style><script>var x = 1;</script></head>
<body>
  <h1>Heading</h1>
  <p>First paragraph.</p>
  <div style="display:none">Hidden text</div>
  <div data-voicenav="ui">Assistant panel</div>
  <p>Second <b>paragraph</b>.</p>
</body>
</html>`

	text, err := ReadableText(page)
	if err != nil {
		t.Fatalf("ReadableText: %v", err)
	}
	for _, want := range []string{"Heading", "First paragraph.", "Second paragraph ."} {
		if !strings.Contains(text, want) {
			t.Errorf("readable text missing %q:\n%s", want, text)
		}
	}
	for _, banned := range []string{"Hidden text", "Assistant panel", "var x", "color:red", "Doc"} {
		if strings.Contains(text, banned) {
			t.Errorf("readable text leaked %q:\n%s", banned, text)
		}
	}
}

func TestReadableText_Truncates(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("lorem ipsum dolor ", 600) + "</p></body></html>"
	text, err := ReadableText(page)
	if err != nil {
		t.Fatalf("ReadableText: %v", err)
	}
	if !strings.HasSuffix(text, "[content truncated]") {
		t.Fatalf("long page not truncated, got %d chars", len(text))
	}
	if len(text) > maxReadableLength+len("\n[content truncated]") {
		t.Fatalf("truncated text still %d chars", len(text))
	}
}
