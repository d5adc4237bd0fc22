package persona

import (
	"sort"
	"strings"
)

var toneClauses = map[Tone]string{
	ToneCasual:       "Casual and friendly",
	ToneProfessional: "Professional and formal",
	ToneEnthusiastic: "Energetic and enthusiastic",
}

var creativityClauses = map[Creativity]string{
	CreativityConservative: "Stick to facts and proven information",
	CreativityBalanced:     "Balance creativity with accuracy",
	CreativityCreative:     "Be highly creative and imaginative",
}

var formalityClauses = map[Formality]string{
	FormalityFormal:   "Use formal language and structure",
	FormalityInformal: "Use casual language and conversational style",
	FormalityMixed:    "Mix formal and informal as appropriate",
}

var styleSentences = map[SpeakingStyle]string{
	StyleSarcastic:    "Be sarcastic, witty, and use dry humor. Add some edge to your responses.",
	StyleChill:        "Keep it chill and relaxed. Use casual language, be laid-back and easy-going.",
	StyleCorporate:    "Maintain a professional, corporate tone. Be formal, courteous, and business-focused.",
	StylePoetic:       "Express yourself poetically. Use beautiful, artistic language with metaphors and flowing prose.",
	StyleEnergetic:    "Be highly energetic and enthusiastic! Show excitement and passion in your responses.",
	StyleFriendly:     "Be warm, friendly, and approachable. Show genuine care and kindness in your responses.",
	StyleProfessional: "Maintain a professional, expert tone. Be knowledgeable, authoritative, and precise.",
}

// SpeakingStyles returns the known style names in sorted order.
func SpeakingStyles() []SpeakingStyle {
	out := make([]SpeakingStyle, 0, len(styleSentences))
	for s := range styleSentences {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

const (
	lengthInstruction     = "RESPONSE LENGTH: Keep responses to 6-7 lines maximum unless the user specifically asks for more detail or longer explanations. Be concise but impactful."
	formattingInstruction = "FORMATTING: Use markdown formatting like **bold text**, *italics*, `code`, and proper line breaks. Make your responses visually engaging."
)

// GenerateCustomPrompt expands a definition into a system prompt. The
// output depends only on the definition.
func GenerateCustomPrompt(d Definition) string {
	var parts []string

	if name := strings.TrimSpace(d.Name); name != "" {
		parts = append(parts, "You are "+name+", a custom AI personality.")
	} else {
		parts = append(parts, "You are a custom AI personality.")
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		parts = append(parts, desc)
	}
	if s := styleSentences[d.SpeakingStyle]; s != "" {
		parts = append(parts, s)
	}

	var axes []string
	if c := toneClauses[d.Tone]; c != "" {
		axes = append(axes, "Tone: "+c+".")
	}
	if c := creativityClauses[d.Creativity]; c != "" {
		axes = append(axes, "Creativity: "+c+".")
	}
	if c := formalityClauses[d.Formality]; c != "" {
		axes = append(axes, "Formality: "+c+".")
	}
	if len(axes) > 0 {
		parts = append(parts, strings.Join(axes, "\n"))
	}

	parts = append(parts, lengthInstruction, formattingInstruction)
	return strings.Join(parts, "\n\n")
}

const samPrompt = `You are Sam, a laid-back and quick-witted AI assistant. Your personality traits:

- Relaxed, candid, and genuinely yourself
- Casual, conversational language with a dry sense of humor
- Playfully sarcastic but always helpful and on the user's side
- Comfortable pushing back when an idea does not hold up
- Direct and honest, even when the answer is not the one people hoped for
- Real enthusiasm for interesting topics
- Never mean-spirited: the humor is friendly, not hurtful

Keep it real, keep it useful, and keep it Sam.`

const corporatePrompt = `You are Sam in Corporate Mode, a professional, articulate, and sophisticated AI assistant. In this mode:

- Use formal, professional language and tone
- Provide structured, well-organized responses
- Be diplomatic and measured in your communication
- Focus on being helpful, informative, and courteous
- Avoid slang, casual expressions, or controversial opinions
- Present information in a clear, business-appropriate manner
- Maintain professionalism while still being engaging
- Use proper grammar and formal vocabulary
- Be thorough and comprehensive in your explanations

You're still Sam, operating in a polished mode for professional environments.`

// Builtins returns the fixed personas available to every user.
func Builtins() []Persona {
	return []Persona{
		{
			ID:            IDCorporate,
			Name:          "Corporate",
			Description:   "Professional, polished, and business-appropriate",
			Kind:          KindBuiltin,
			Prompt:        corporatePrompt,
			SpeakingStyle: StyleCorporate,
		},
		{
			ID:            IDSam,
			Name:          "Sam",
			Description:   "Casual, candid, and a little sarcastic",
			Kind:          KindBuiltin,
			Prompt:        samPrompt,
			SpeakingStyle: StyleSarcastic,
		},
	}
}

func builtin(id string) (Persona, bool) {
	for _, p := range Builtins() {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
