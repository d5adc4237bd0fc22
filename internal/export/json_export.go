package export

import (
	"encoding/json"
	"time"
)

// JSONExporter renders a transcript as structured JSON.
type JSONExporter struct{}

type jsonOutput struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Persona      jsonPersona   `json:"persona"`
	CreatedAt    time.Time     `json:"created_at"`
	LastModified time.Time     `json:"last_modified"`
	Messages     []jsonMessage `json:"messages"`
	Facts        []jsonFact    `json:"facts,omitempty"`
}

type jsonPersona struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type jsonMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type jsonFact struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (e *JSONExporter) Export(data ExportData) (string, error) {
	s := data.Session

	out := jsonOutput{
		ID:           s.ID,
		Title:        s.Title,
		Persona:      jsonPersona{ID: s.PersonaID, Name: data.PersonaName},
		CreatedAt:    s.CreatedAt.UTC(),
		LastModified: s.LastModified.UTC(),
		Messages:     []jsonMessage{},
	}
	for _, m := range visible(s.Messages) {
		out.Messages = append(out.Messages, jsonMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			State:     string(m.State),
			CreatedAt: m.CreatedAt.UTC(),
		})
	}
	for _, f := range data.Facts {
		out.Facts = append(out.Facts, jsonFact{Text: f.Text, Category: string(f.Category)})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
