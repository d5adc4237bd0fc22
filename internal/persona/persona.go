// Package persona holds the built-in and user-defined personas and composes
// system prompts from a persona plus remembered facts.
package persona

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/personachat/personachat/internal/memory"
)

// Kind tells built-in personas apart from user-authored ones.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindCustom  Kind = "custom"
)

// Built-in persona ids.
const (
	IDSam       = "sam"
	IDCorporate = "corporate"

	// DefaultID is used whenever a persona id does not resolve.
	DefaultID = IDCorporate
)

var (
	ErrNotFound = errors.New("persona: not found")
	ErrBuiltin  = errors.New("persona: built-in personas cannot be changed")
	ErrInvalid  = errors.New("persona: invalid definition")
)

type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneEnthusiastic Tone = "enthusiastic"
)

type Creativity string

const (
	CreativityConservative Creativity = "conservative"
	CreativityBalanced     Creativity = "balanced"
	CreativityCreative     Creativity = "creative"
)

type Formality string

const (
	FormalityFormal   Formality = "formal"
	FormalityInformal Formality = "informal"
	FormalityMixed    Formality = "mixed"
)

type SpeakingStyle string

const (
	StyleSarcastic    SpeakingStyle = "sarcastic"
	StyleChill        SpeakingStyle = "chill"
	StyleCorporate    SpeakingStyle = "corporate"
	StylePoetic       SpeakingStyle = "poetic"
	StyleEnergetic    SpeakingStyle = "energetic"
	StyleFriendly     SpeakingStyle = "friendly"
	StyleProfessional SpeakingStyle = "professional"
)

// Persona is a named system-prompt profile.
type Persona struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Kind          Kind          `json:"kind"`
	Prompt        string        `json:"prompt"`
	Tone          Tone          `json:"tone,omitempty"`
	Creativity    Creativity    `json:"creativity,omitempty"`
	Formality     Formality     `json:"formality,omitempty"`
	SpeakingStyle SpeakingStyle `json:"speaking_style,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Definition is the user-supplied description of a custom persona. When
// SystemPrompt is empty the prompt is generated from the other fields.
type Definition struct {
	Name          string        `toml:"name" json:"name"`
	Description   string        `toml:"description" json:"description"`
	SystemPrompt  string        `toml:"system_prompt" json:"system_prompt,omitempty"`
	Tone          Tone          `toml:"tone" json:"tone"`
	Creativity    Creativity    `toml:"creativity" json:"creativity"`
	Formality     Formality     `toml:"formality" json:"formality"`
	SpeakingStyle SpeakingStyle `toml:"speaking_style" json:"speaking_style,omitempty"`
}

// Validate checks the enumerated fields. Empty values are allowed and
// simply leave that axis out of a generated prompt.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if d.Tone != "" && toneClauses[d.Tone] == "" {
		return fmt.Errorf("%w: tone %q (valid: casual, professional, enthusiastic)", ErrInvalid, d.Tone)
	}
	if d.Creativity != "" && creativityClauses[d.Creativity] == "" {
		return fmt.Errorf("%w: creativity %q (valid: conservative, balanced, creative)", ErrInvalid, d.Creativity)
	}
	if d.Formality != "" && formalityClauses[d.Formality] == "" {
		return fmt.Errorf("%w: formality %q (valid: formal, informal, mixed)", ErrInvalid, d.Formality)
	}
	if d.SpeakingStyle != "" && styleSentences[d.SpeakingStyle] == "" {
		return fmt.Errorf("%w: speaking style %q", ErrInvalid, d.SpeakingStyle)
	}
	return nil
}

// build turns a validated definition into a custom persona.
func (d Definition) build(id string, now time.Time) Persona {
	prompt := strings.TrimSpace(d.SystemPrompt)
	if prompt == "" {
		prompt = GenerateCustomPrompt(d)
	}
	return Persona{
		ID:            id,
		Name:          strings.TrimSpace(d.Name),
		Description:   strings.TrimSpace(d.Description),
		Kind:          KindCustom,
		Prompt:        prompt,
		Tone:          d.Tone,
		Creativity:    d.Creativity,
		Formality:     d.Formality,
		SpeakingStyle: d.SpeakingStyle,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ComposePrompt appends the memory block for facts to the persona prompt.
func ComposePrompt(p Persona, facts []memory.Fact) string {
	return p.Prompt + memory.FormatContext(facts)
}
