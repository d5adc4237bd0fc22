package proactive

import "math/rand/v2"

// Template pools keyed by persona id. Any other persona uses poolGeneral.
var pools = map[string][]string{
	"sam": {
		"Yo, bored rn. You up?",
		"Check this idea I came up with.",
		"What if we built this?",
		"You good? Haven't heard from you today.",
		"Where you at? It's been quiet.",
		"Wassup, got something on my mind.",
		"Bruv, you gotta see this.",
		"Yo, random thought just hit me.",
		"Bhai, we need to talk about something.",
		"Heyy, miss our convos ngl.",
	},
	"corporate": {
		"Good morning! How may I assist you today?",
		"I hope you're having a productive day.",
		"Would you like to review our recent conversations?",
		"I'm here if you need any assistance.",
		"How can I help optimize your workflow today?",
		"I noticed you haven't been active recently. Everything alright?",
		"Ready to tackle some new challenges together?",
		"Is there anything I can help you accomplish today?",
	},
}

var poolGeneral = []string{
	"Hey there! What's on your mind?",
	"Ready for our next conversation?",
	"I've been thinking about our last chat.",
	"Hope you're doing well!",
	"Anything interesting happening today?",
	"Feel like chatting?",
	"What's new in your world?",
	"How's your day going?",
}

// Templates returns the message pool used for personaID.
func Templates(personaID string) []string {
	if p, ok := pools[personaID]; ok {
		return p
	}
	return poolGeneral
}

func pick(personaID string, rnd *rand.Rand) string {
	pool := Templates(personaID)
	return pool[rnd.IntN(len(pool))]
}
