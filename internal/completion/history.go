package completion

import "github.com/personachat/personachat/internal/adapter"

// perMessageOverhead approximates the role and framing tokens each message
// costs on top of its content.
const perMessageOverhead = 4

// BuildMessages returns the provider message array: the system prompt,
// then the non-transient history in order. When MaxHistoryTokens is set
// the oldest turns are dropped until everything fits, but the newest turn
// is always kept. A system prompt larger than half the budget is cut down
// to that half so it cannot crowd out the conversation.
func (c *Client) BuildMessages(req Request) []adapter.Message {
	system := req.SystemPrompt
	if c.cfg.MaxHistoryTokens > 0 {
		system = c.capSystem(system)
	}

	var turns []adapter.Message
	for _, t := range req.History {
		if t.Transient {
			continue
		}
		turns = append(turns, adapter.Message{Role: t.Role, Content: t.Content})
	}

	if c.cfg.MaxHistoryTokens > 0 && len(turns) > 0 {
		turns = c.fit(system, turns)
	}

	out := make([]adapter.Message, 0, len(turns)+1)
	out = append(out, adapter.Message{Role: adapter.RoleSystem, Content: system})
	return append(out, turns...)
}

func (c *Client) capSystem(system string) string {
	limit := c.cfg.MaxHistoryTokens / 2
	if c.counter.Count(system) <= limit {
		return system
	}
	c.log.Warn("system prompt exceeds half the token budget, truncating", "limit", limit)
	return c.counter.Truncate(system, limit)
}

func (c *Client) fit(system string, turns []adapter.Message) []adapter.Message {
	remaining := c.cfg.MaxHistoryTokens - c.counter.Count(system) - perMessageOverhead

	start := len(turns) - 1
	remaining -= c.counter.Count(turns[start].Content) + perMessageOverhead
	for start > 0 {
		cost := c.counter.Count(turns[start-1].Content) + perMessageOverhead
		if cost > remaining {
			break
		}
		remaining -= cost
		start--
	}
	if start == 0 {
		return turns
	}

	kept := turns[start:]
	// A trimmed history should open with a user turn.
	for len(kept) > 1 && kept[0].Role == adapter.RoleAssistant {
		kept = kept[1:]
	}
	c.log.Debug("trimmed history to fit token budget", "dropped", len(turns)-len(kept), "kept", len(kept))
	return kept
}
