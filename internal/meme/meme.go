package meme

import (
	"time"

	"github.com/google/uuid"
)

// Meme is the basic unit of information: an identity-bearing wrapper around
// one typed content payload, with a fitness score and weighted links to other
// memes.
type Meme struct {
	ID          uuid.UUID
	Kind        ContentKind
	Content     interface{}
	Metadata    map[string]interface{}
	Fitness     float64
	Connections map[uuid.UUID]float64
}

// New constructs a meme, validating the payload against its declared kind.
// A mismatched payload rejects the construction; it is never coerced.
func New(kind ContentKind, content interface{}, metadata map[string]interface{}) (*Meme, error) {
	if err := validateContent(kind, content); err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = map[string]interface{}{
			"created": time.Now().UTC().Format(time.RFC3339Nano),
		}
	}
	return &Meme{
		ID:          uuid.New(),
		Kind:        kind,
		Content:     content,
		Metadata:    metadata,
		Connections: make(map[uuid.UUID]float64),
	}, nil
}

// Execute runs the payload against an opaque environment. Interpretation of
// env is fully owned by the content kind.
func (m *Meme) Execute(env interface{}) interface{} {
	return executeContent(m.Kind, m.Content, env)
}

// Mutate perturbs the payload in place according to its kind.
func (m *Meme) Mutate() {
	m.Content = mutateContent(m.Kind, m.Content)
}

// Connect records a weighted directed link to another meme. No symmetry is
// enforced.
func (m *Meme) Connect(target uuid.UUID, weight float64) {
	m.Connections[target] = weight
}

// Replicate produces a new meme with a fresh identity and a structurally
// independent copy of the payload. Connections and metadata are copied by
// value; fitness starts over at zero.
func (m *Meme) Replicate() *Meme {
	clone := &Meme{
		ID:          uuid.New(),
		Kind:        m.Kind,
		Content:     cloneContent(m.Kind, m.Content),
		Metadata:    make(map[string]interface{}, len(m.Metadata)),
		Connections: make(map[uuid.UUID]float64, len(m.Connections)),
	}
	for k, v := range m.Metadata {
		clone.Metadata[k] = deepCopyValue(v)
	}
	for k, v := range m.Connections {
		clone.Connections[k] = v
	}
	return clone
}

// Snapshot returns the externally visible projection of the meme, used for
// comparison and printing. The payload itself is not serialized here.
func (m *Meme) Snapshot() map[string]interface{} {
	conns := make(map[string]float64, len(m.Connections))
	for k, v := range m.Connections {
		conns[k.String()] = v
	}
	return map[string]interface{}{
		"id":           m.ID.String(),
		"content_type": string(m.Kind),
		"metadata":     m.Metadata,
		"fitness":      m.Fitness,
		"connections":  conns,
	}
}

// RenderText returns a best-effort textual rendering of the payload for
// indexing. Only text and data memes render; other kinds return "".
func (m *Meme) RenderText() string {
	switch m.Kind {
	case KindText:
		s, _ := m.Content.(string)
		return s
	case KindData:
		data, ok := m.Content.(map[string]interface{})
		if !ok {
			return ""
		}
		out := ""
		for k, v := range data {
			if out != "" {
				out += " "
			}
			out += k
			if s, ok := v.(string); ok {
				out += " " + s
			}
		}
		return out
	}
	return ""
}
