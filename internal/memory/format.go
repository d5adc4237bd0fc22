package memory

import "strings"

// FormatContext renders the memory block appended to system prompts. The
// user's name comes first, then facts the user asked to keep, then
// everything detected automatically. No facts yields "".
func FormatContext(facts []Fact) string {
	if len(facts) == 0 {
		return ""
	}

	var (
		name      string
		requested []string
		detected  []string
	)
	for _, f := range facts {
		text := stripPrefix(f.Text, f.Category)
		if text == "" {
			continue
		}
		switch {
		case f.Category == CategoryName:
			if name == "" {
				name = text
			}
		case f.Category.UserRequested():
			requested = append(requested, text)
		default:
			detected = append(detected, text)
		}
	}

	var sb strings.Builder
	sb.WriteString("\n\nThings you remember about this user:")
	if name != "" {
		sb.WriteString("\n\nUSER'S NAME: " + name + " (use this name when talking to them)")
	}
	if len(requested) > 0 {
		sb.WriteString("\n\nEXPLICIT MEMORIES (they specifically asked you to remember these):")
		for _, t := range requested {
			sb.WriteString("\n- " + t)
		}
	}
	if len(detected) > 0 {
		sb.WriteString("\n\nAUTO-DETECTED INFO:")
		for _, t := range detected {
			sb.WriteString("\n- " + t)
		}
	}
	return sb.String()
}
