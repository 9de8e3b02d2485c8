package agent

import (
	"encoding/json"
	"testing"

	"github.com/vango-go/voicenav/pkg/core/types"
)

func exchange(user, assistant string) []types.Message {
	return []types.Message{types.UserMessage(user), types.AssistantMessage(assistant)}
}

func TestHistory_AppendAndTurns(t *testing.T) {
	h := NewHistory(5)
	h.Append(exchange("open the site", "Opened it.")...)
	h.Append(exchange("click login", "Clicked login.")...)

	if got := h.Exchanges(); got != 2 {
		t.Errorf("Exchanges() = %d, want 2", got)
	}
	turns := h.Turns()
	if len(turns) != 4 {
		t.Fatalf("Turns() has %d entries, want 4", len(turns))
	}
	if turns[0].Content != "open the site" || turns[3].Content != "Clicked login." {
		t.Errorf("unexpected order: %q ... %q", turns[0].Content, turns[3].Content)
	}

	// Mutating the copy must not affect the history.
	turns[0].Content = "mutated"
	if h.Turns()[0].Content != "open the site" {
		t.Error("Turns() returned a shared slice")
	}
}

func TestHistory_DropsOldestExchangeWhole(t *testing.T) {
	h := NewHistory(2)
	h.Append(types.UserMessage("first"),
		types.AssistantMessage("calling a tool"),
		types.ToolResultMessage("call_1", "read_page", "page text"),
		types.AssistantMessage("done with first"))
	h.Append(exchange("second", "ok second")...)
	h.Append(exchange("third", "ok third")...)

	if got := h.Exchanges(); got != 2 {
		t.Fatalf("Exchanges() = %d, want 2", got)
	}
	turns := h.Turns()
	if turns[0].Content != "second" {
		t.Errorf("oldest retained turn = %q, want the second exchange", turns[0].Content)
	}
	for _, turn := range turns {
		if turn.Content == "calling a tool" || turn.ToolCallID == "call_1" {
			t.Errorf("first exchange was not dropped whole: %+v", turn)
		}
	}
}

func TestHistory_ReplaceTrims(t *testing.T) {
	h := NewHistory(1)
	h.Replace(append(exchange("one", "a"), exchange("two", "b")...))

	if got := h.Exchanges(); got != 1 {
		t.Fatalf("Exchanges() = %d, want 1", got)
	}
	if h.Turns()[0].Content != "two" {
		t.Errorf("retained turn = %q, want the newest exchange", h.Turns()[0].Content)
	}
}

func TestHistory_JSONRoundTrip(t *testing.T) {
	h := NewHistory(10)
	h.Append(types.UserMessage("find the 2nd link"))
	h.Append(types.Message{
		Role:    types.RoleAssistant,
		Content: "Clicking it.",
		ToolCalls: []types.ToolCall{
			{ID: "call_9", Name: "click_element", Arguments: `{"target":"the 2nd link"}`},
		},
	})
	h.Append(types.ToolResultMessage("call_9", "click_element", `Clicked link "About".`))

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	restored := NewHistory(10)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, want := restored.Turns(), h.Turns()
	if len(got) != len(want) {
		t.Fatalf("restored %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content ||
			got[i].ToolCallID != want[i].ToolCallID || len(got[i].ToolCalls) != len(want[i].ToolCalls) {
			t.Errorf("turn %d differs:\n got %+v\nwant %+v", i, got[i], want[i])
		}
	}
}
