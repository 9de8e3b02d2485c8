package agent

import (
	"encoding/json"
	"sync"

	"github.com/vango-go/voicenav/pkg/core/types"
)

// DefaultMaxExchanges bounds how many exchanges History retains. An
// exchange is a user turn plus everything up to the next user turn.
const DefaultMaxExchanges = 20

// History is the running dialogue carried across tasks. It is append-only
// within a task and bounded: once the cap is exceeded the oldest exchange
// is dropped whole, so the list never starts mid-exchange.
type History struct {
	mu    sync.Mutex
	turns []types.Message
	max   int
}

// NewHistory returns a History bounded to max exchanges, or
// DefaultMaxExchanges when max is not positive.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxExchanges
	}
	return &History{max: max}
}

// Append adds turns to the dialogue and trims to the exchange cap.
func (h *History) Append(turns ...types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
	h.trimLocked()
}

// Turns returns a copy of the retained dialogue in order.
func (h *History) Turns() []types.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Replace swaps in a previously persisted dialogue, trimming to the cap.
func (h *History) Replace(turns []types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = make([]types.Message, len(turns))
	copy(h.turns, turns)
	h.trimLocked()
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Exchanges returns the number of retained exchanges.
func (h *History) Exchanges() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return countExchanges(h.turns)
}

func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Turns())
}

func (h *History) UnmarshalJSON(data []byte) error {
	var turns []types.Message
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	if h.max <= 0 {
		h.max = DefaultMaxExchanges
	}
	h.Replace(turns)
	return nil
}

func (h *History) trimLocked() {
	for countExchanges(h.turns) > h.max {
		h.turns = h.turns[nextExchangeStart(h.turns):]
	}
}

func countExchanges(turns []types.Message) int {
	n := 0
	for _, t := range turns {
		if t.IsExchangeStart() {
			n++
		}
	}
	return n
}

// nextExchangeStart returns the index of the second exchange's first turn.
// Any turns before the first user turn belong to the first exchange.
func nextExchangeStart(turns []types.Message) int {
	seenStart := false
	for i, t := range turns {
		if t.IsExchangeStart() {
			if seenStart {
				return i
			}
			seenStart = true
		}
	}
	return len(turns)
}
