package vectorstore

import (
	"context"
	"fmt"

	"github.com/memetic-os/memos/internal/embedding"
	"github.com/memetic-os/memos/internal/meme"
	"go.uber.org/zap"
)

const memeCollection = "memes"

// MemeIndex keeps an embedding per text-representable meme so the population
// can be searched by semantic similarity. Memes without a text rendering are
// skipped, not errors.
type MemeIndex struct {
	client   *Client
	embedder embedding.Provider
	logger   *zap.Logger
}

// NewMemeIndex ensures the meme collection exists and returns the index.
func NewMemeIndex(ctx context.Context, client *Client, embedder embedding.Provider, logger *zap.Logger) (*MemeIndex, error) {
	dim := embedder.Dimension()
	if dim <= 0 {
		return nil, fmt.Errorf("meme index: embedder reports dimension %d", dim)
	}
	if err := client.EnsureCollection(ctx, memeCollection, uint64(dim)); err != nil {
		return nil, fmt.Errorf("meme index: %w", err)
	}
	return &MemeIndex{client: client, embedder: embedder, logger: logger}, nil
}

// Index embeds and upserts one meme. Returns false when the meme has no text
// rendering to embed.
func (mi *MemeIndex) Index(ctx context.Context, m *meme.Meme) (bool, error) {
	text := m.RenderText()
	if text == "" {
		return false, nil
	}

	vectors, err := mi.embedder.Embed(ctx, []string{text})
	if err != nil {
		return false, fmt.Errorf("embed meme %s: %w", m.ID, err)
	}
	if len(vectors) == 0 {
		return false, fmt.Errorf("embed meme %s: no vector returned", m.ID)
	}

	payload := map[string]string{
		"kind": string(m.Kind),
		"text": text,
	}
	if err := mi.client.Upsert(ctx, memeCollection, m.ID.String(), vectors[0], payload); err != nil {
		return false, fmt.Errorf("index meme %s: %w", m.ID, err)
	}
	mi.logger.Debug("meme indexed", zap.String("id", m.ID.String()))
	return true, nil
}

// IndexPopulation indexes every text-representable meme and returns how many
// were indexed.
func (mi *MemeIndex) IndexPopulation(ctx context.Context, p *meme.Population) (int, error) {
	indexed := 0
	for _, m := range p.List() {
		ok, err := mi.Index(ctx, m)
		if err != nil {
			return indexed, err
		}
		if ok {
			indexed++
		}
	}
	return indexed, nil
}

// Remove drops a meme from the index. Unknown ids are not an error.
func (mi *MemeIndex) Remove(ctx context.Context, id string) error {
	return mi.client.Delete(ctx, memeCollection, id)
}

// Similar embeds the query text and returns the closest indexed memes.
func (mi *MemeIndex) Similar(ctx context.Context, query string, topK uint64) ([]*SearchResult, error) {
	vectors, err := mi.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}
	return mi.client.Search(ctx, memeCollection, vectors[0], topK)
}
