package agent

import (
	"fmt"
	"strings"
	"sync"
)

// Decision is the safety gate's verdict on one utterance.
type Decision string

const (
	// DecisionRun executes the command immediately.
	DecisionRun Decision = "run"
	// DecisionHold stores the command and asks the user to confirm.
	DecisionHold Decision = "hold"
	// DecisionConfirm re-submits the previously held command.
	DecisionConfirm Decision = "confirm"
	// DecisionCancel discards the previously held command without running
	// anything.
	DecisionCancel Decision = "cancel"
)

// Outcome is the result of one gate check. Command is the text to execute
// for run and confirm decisions; for hold and cancel it is the held
// command. Prompt is the spoken confirmation question for hold decisions.
type Outcome struct {
	Decision Decision
	Command  string
	Prompt   string
}

// sensitivePhrases flag commands that commit money before they run. A
// phrase matches only on word boundaries, so "buyer's guide" does not trip
// on "buy".
var sensitivePhrases = []string{
	"buy",
	"purchase",
	"checkout",
	"check out",
	"pay",
	"payment",
	"place the order",
	"place my order",
	"place order",
	"complete the order",
	"complete my order",
	"submit the order",
	"submit my order",
	"add to cart",
	"add to basket",
	"subscribe",
}

// confirmationWords are the only utterances that release a held command.
// The whole utterance must match: "yes, but wait" cancels.
var confirmationWords = map[string]bool{
	"yes":      true,
	"confirm":  true,
	"go ahead": true,
	"do it":    true,
	"proceed":  true,
	"sure":     true,
}

// Gate guards sensitive commands behind an explicit confirmation step. It
// holds at most one pending command: a new sensitive command overwrites the
// previous one rather than stacking.
type Gate struct {
	mu      sync.Mutex
	pending string
}

func NewGate() *Gate {
	return &Gate{}
}

// Check classifies one utterance. With no command pending, sensitive
// commands are held and everything else runs. With a command pending, a
// confirmation word releases it and any other utterance cancels it; a new
// sensitive command replaces it with a fresh hold.
func (g *Gate) Check(command string) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	normalized := normalizeUtterance(command)

	if g.pending != "" {
		held := g.pending
		if confirmationWords[normalized] {
			g.pending = ""
			return Outcome{Decision: DecisionConfirm, Command: held}
		}
		if IsSensitive(command) {
			g.pending = command
			return Outcome{Decision: DecisionHold, Command: command, Prompt: confirmationPrompt(command)}
		}
		g.pending = ""
		return Outcome{Decision: DecisionCancel, Command: held}
	}

	if IsSensitive(command) {
		g.pending = command
		return Outcome{Decision: DecisionHold, Command: command, Prompt: confirmationPrompt(command)}
	}
	return Outcome{Decision: DecisionRun, Command: command}
}

// Pending returns the held command, if any.
func (g *Gate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != ""
}

// Clear drops any held command. Callers invoke it on mode switches so a
// stale confirmation cannot fire later.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = ""
}

// IsSensitive reports whether the command contains purchase or payment
// vocabulary.
func IsSensitive(command string) bool {
	text := " " + normalizeUtterance(command) + " "
	for _, phrase := range sensitivePhrases {
		if strings.Contains(text, " "+phrase+" ") {
			return true
		}
	}
	return false
}

func confirmationPrompt(command string) string {
	return fmt.Sprintf("This sounds like a purchase: %q. Say yes or confirm to proceed, or anything else to cancel.", command)
}

// normalizeUtterance lowercases, maps punctuation to spaces, and collapses
// whitespace so spoken transcripts compare predictably.
func normalizeUtterance(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
