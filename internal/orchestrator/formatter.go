package orchestrator

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"agentcore/internal/core"
)

// formatter owns the two history-shaping responsibilities SPEC_FULL §4.7
// step 1 delegates away from the loop itself: estimating the token cost of
// the current message list, and trimming history down to a budget while
// always preserving the system prompt. Per Design Note (b) (spec.md §9)
// token counting is advisory: the loop only compares this estimate against
// the configured budget, it never recomputes or second-guesses it.
type formatter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// newFormatter builds a formatter using cl100k_base, the encoding the
// reference repository's tiktoken-go usage defaults to for OpenAI-style
// chat models.
func newFormatter() *formatter {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &formatter{enc: enc}
}

// estimateTokens sums a rough per-message token count: the encoded length
// of the text content plus a small fixed overhead per message for role and
// framing, mirroring the reference repository's
// ports.Context.EstimateTokens contract this package replaces.
func (f *formatter) estimateTokens(messages []core.Message) int {
	const perMessageOverhead = 4
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += f.countText(m.Text)
		for _, b := range m.Blocks {
			total += f.countText(b.Text)
			total += f.countText(b.ToolResultText)
		}
	}
	return total
}

func (f *formatter) countText(text string) int {
	if text == "" {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enc == nil {
		// Fall back to a conservative byte/4 approximation if the encoder
		// failed to load (e.g. no network access to fetch its vocabulary
		// file); this only ever degrades the estimate's precision, never
		// the budget comparison's direction of failure.
		return len(text)/4 + 1
	}
	return len(f.enc.Encode(text, nil, nil))
}

// trim keeps the system prompt (the first message if its Role is
// RoleSystem) plus the most recent keepRecent non-system messages,
// dropping everything in between, per spec.md §4.7 step 1's "keep the most
// recent N messages; the system prompt is always preserved".
func trim(messages []core.Message, keepRecent int) []core.Message {
	if keepRecent <= 0 || len(messages) <= keepRecent {
		return messages
	}

	var system *core.Message
	rest := messages
	if len(messages) > 0 && messages[0].Role == core.RoleSystem {
		system = &messages[0]
		rest = messages[1:]
	}

	if len(rest) > keepRecent {
		rest = rest[len(rest)-keepRecent:]
	}

	if system == nil {
		return append([]core.Message(nil), rest...)
	}
	out := make([]core.Message, 0, len(rest)+1)
	out = append(out, *system)
	out = append(out, rest...)
	return out
}
