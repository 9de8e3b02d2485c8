package browser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vango-go/voicenav/pkg/core"
)

// Free-text match scores. An exact text match beats substring containment,
// which beats the element's text appearing inside the query, which beats
// per-word overlap. Candidates below minResolveScore never resolve.
const (
	scoreExact      = 100
	scoreSubstring  = 80
	scoreReverse    = 60
	scorePerWord    = 15
	minResolveScore = 15

	maxFindResults = 15
)

// clickableRoles bounds the free-text fallback so a click reference never
// resolves to a text field.
var clickableRoles = map[string]bool{
	"link":             true,
	"button":           true,
	"checkbox":         true,
	"radio":            true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"tab":              true,
	"switch":           true,
	"option":           true,
}

// typeableRoles are the roles a type-text action may target.
var typeableRoles = map[string]bool{
	"textbox":   true,
	"searchbox": true,
	"combobox":  true,
}

var selectRoles = map[string]bool{
	"combobox": true,
	"listbox":  true,
}

// Resolve maps a resolver expression or free-text description to one element
// of the snapshot. Strategies run in order: exact resolver-expression or
// bracketed-index match, ordinal reference ("the 2nd link" counts filtered
// elements top to bottom), aria-label exact then partial, and finally the
// scored free-text search over clickable elements. Failure is reported as a
// tool execution error so the agent loop can fall back to the broader search
// tool.
func (s *Snapshot) Resolve(target string) (*Element, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, core.NewToolExecutionError("empty element reference")
	}
	if el := s.bySelector(target); el != nil {
		return el, nil
	}
	if el := s.byOrdinal(target); el != nil {
		return el, nil
	}
	if el := s.byAriaLabel(target); el != nil {
		return el, nil
	}
	if el := s.byTextScore(target); el != nil {
		return el, nil
	}
	return nil, core.NewToolExecutionError(fmt.Sprintf("no element found for %q", target))
}

// ResolveInput picks the field a type-text action should target. An empty
// target means the first text field on the page.
func (s *Snapshot) ResolveInput(target string) (*Element, error) {
	return s.resolveRoleSet(target, typeableRoles, "input field")
}

// ResolveSelect picks the dropdown a select action should target.
func (s *Snapshot) ResolveSelect(target string) (*Element, error) {
	return s.resolveRoleSet(target, selectRoles, "dropdown")
}

func (s *Snapshot) resolveRoleSet(target string, roles map[string]bool, noun string) (*Element, error) {
	var fields []int
	for i := range s.Elements {
		if roles[s.Elements[i].Role] {
			fields = append(fields, i)
		}
	}
	if len(fields) == 0 {
		return nil, core.NewToolExecutionError(fmt.Sprintf("no %s found on the page", noun))
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return s.copyOf(fields[0]), nil
	}
	if el := s.bySelector(target); el != nil && roles[el.Role] {
		return el, nil
	}
	best, bestScore := -1, 0
	for _, i := range fields {
		if sc := textScore(target, s.Elements[i].searchable()); sc > bestScore {
			best, bestScore = i, sc
		}
	}
	if best >= 0 && bestScore >= minResolveScore {
		return s.copyOf(best), nil
	}
	if len(fields) == 1 {
		return s.copyOf(fields[0]), nil
	}
	return nil, core.NewToolExecutionError(fmt.Sprintf("no %s matches %q", noun, target))
}

// FindByDescription scores every snapshot element by how many of the
// description's words occur in its combined searchable text and returns the
// top matches by score then document order, deduplicated by resolver
// expression. It is the broad recovery tool for when Resolve fails.
func (s *Snapshot) FindByDescription(desc string) []Element {
	words := queryWords(desc)
	if len(words) == 0 {
		return nil
	}
	type scored struct {
		el    Element
		score int
	}
	var matches []scored
	for i := range s.Elements {
		hay := s.Elements[i].searchable()
		score := 0
		for _, w := range words {
			if strings.Contains(hay, w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{s.Elements[i], score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	seen := make(map[string]bool)
	var out []Element
	for _, m := range matches {
		if seen[m.el.Selector] {
			continue
		}
		seen[m.el.Selector] = true
		out = append(out, m.el)
		if len(out) == maxFindResults {
			break
		}
	}
	return out
}

var indexRefPattern = regexp.MustCompile(`^\[(\d+)\]$`)

func (s *Snapshot) bySelector(target string) *Element {
	for i := range s.Elements {
		if s.Elements[i].Selector == target {
			return s.copyOf(i)
		}
	}
	if m := indexRefPattern.FindStringSubmatch(target); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n < len(s.Elements) {
			return s.copyOf(n)
		}
	}
	return nil
}

var ordinalPattern = regexp.MustCompile(`(?i)\b(?:(\d+)(?:st|nd|rd|th)|(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|last))\s+(link|button|checkbox|radio|tab|input|field|box|option|item|element|result)s?\b`)

var wordOrdinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

// ordinalRoleFamilies maps the noun of an ordinal reference to the roles it
// counts. A nil family counts every snapshot element.
var ordinalRoleFamilies = map[string][]string{
	"link":     {"link"},
	"button":   {"button"},
	"checkbox": {"checkbox"},
	"radio":    {"radio"},
	"tab":      {"tab"},
	"input":    {"textbox", "searchbox", "combobox"},
	"field":    {"textbox", "searchbox", "combobox"},
	"box":      {"textbox", "searchbox", "combobox"},
	"option":   {"option"},
	"item":     nil,
	"element":  nil,
	"result":   nil,
}

// byOrdinal resolves references like "the 2nd link" by counting elements of
// the named role top to bottom in snapshot order. It runs before any text
// scoring so the ordinal word itself is never matched against element text.
func (s *Snapshot) byOrdinal(target string) *Element {
	m := ordinalPattern.FindStringSubmatch(target)
	if m == nil {
		return nil
	}
	n, last := 0, false
	switch {
	case m[1] != "":
		n, _ = strconv.Atoi(m[1])
	case strings.EqualFold(m[2], "last"):
		last = true
	default:
		n = wordOrdinals[strings.ToLower(m[2])]
	}
	if n == 0 && !last {
		return nil
	}

	roles := ordinalRoleFamilies[strings.ToLower(m[3])]
	var candidates []int
	for i := range s.Elements {
		if roles == nil || roleIn(s.Elements[i].Role, roles) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if last {
		return s.copyOf(candidates[len(candidates)-1])
	}
	if n > len(candidates) {
		return nil
	}
	return s.copyOf(candidates[n-1])
}

func (s *Snapshot) byAriaLabel(target string) *Element {
	for i := range s.Elements {
		if label := s.Elements[i].AriaLabel; label != "" && strings.EqualFold(label, target) {
			return s.copyOf(i)
		}
	}
	lower := strings.ToLower(target)
	for i := range s.Elements {
		if label := strings.ToLower(s.Elements[i].AriaLabel); label != "" && strings.Contains(label, lower) {
			return s.copyOf(i)
		}
	}
	return nil
}

func (s *Snapshot) byTextScore(target string) *Element {
	best, bestScore := -1, 0
	for i := range s.Elements {
		if !clickableRoles[s.Elements[i].Role] {
			continue
		}
		if sc := textScore(target, s.Elements[i].Description); sc > bestScore {
			best, bestScore = i, sc
		}
	}
	if best < 0 || bestScore < minResolveScore {
		return nil
	}
	return s.copyOf(best)
}

func (s *Snapshot) copyOf(i int) *Element {
	el := s.Elements[i]
	return &el
}

// textScore rates how well a free-text query matches an element's text.
func textScore(query, text string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(text))
	if q == "" || t == "" {
		return 0
	}
	if t == q {
		return scoreExact
	}
	if strings.Contains(t, q) {
		return scoreSubstring
	}
	if len(t) > 3 && strings.Contains(q, t) {
		return scoreReverse
	}
	score := 0
	for _, w := range queryWords(q) {
		if hasWord(t, w) {
			score += scorePerWord
		}
	}
	return score
}

const wordTrimCutset = `.,;:!?()[]{}"'&/\`

func queryWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, wordTrimCutset)
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

func hasWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, wordTrimCutset) == word {
			return true
		}
	}
	return false
}

func roleIn(role string, roles []string) bool {
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}
