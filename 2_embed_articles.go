package geonarrative

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/spf13/cobra"
)

var EmbedArticlesCmd = &cobra.Command{
	Use:   "embed-articles",
	Short: "Generate embeddings for articles that have none",
	Run: func(cmd *cobra.Command, args []string) {
		settings := LoadSettings(Config.SettingsPath)
		if err := embedArticles(cmd.Context(), settings.Embedding); err != nil {
			log.Printf("Failed to embed articles: %v", err)
			return
		}
		log.Println("Article embedding complete.")
	},
}

// Embedder turns texts into vectors, one per text and in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL uses the OpenAI API.
func NewOpenAIEmbedder(apiKey, baseURL string, s EmbeddingSettings) (*OpenAIEmbedder, error) {
	if s.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      s.Model,
		dimensions: s.Dimensions,
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("API returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("API returned embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func embedArticles(ctx context.Context, s EmbeddingSettings) error {
	if Config.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := OpenStore(Config.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	embedder, err := NewOpenAIEmbedder(Config.OpenAIAPIKey, Config.OpenAIBaseURL, s)
	if err != nil {
		return err
	}

	n, err := embedMissing(ctx, store, embedder, s.BatchSize, s.Model)
	if err != nil {
		return err
	}
	log.Printf("Generated %d embeddings", n)
	return nil
}

// embedMissing embeds every stored article lacking an embedding in batches
// and returns how many were saved.
func embedMissing(ctx context.Context, store *Store, embedder Embedder, batchSize int, model string) (int, error) {
	articles, err := store.ArticlesMissingEmbeddings()
	if err != nil {
		return 0, fmt.Errorf("failed to list articles: %w", err)
	}
	if len(articles) == 0 {
		log.Println("All articles already have embeddings")
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = len(articles)
	}

	saved := 0
	for start := 0; start < len(articles); start += batchSize {
		batch := articles[start:min(start+batchSize, len(articles))]
		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = a.Text
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return saved, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return saved, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, a := range batch {
			if err := store.SaveEmbedding(a.ID, vectors[i], model); err != nil {
				return saved, err
			}
			saved++
		}
		log.Printf("Embedded %d/%d articles", saved, len(articles))

		// Small delay to avoid rate limiting
		if start+batchSize < len(articles) {
			select {
			case <-ctx.Done():
				return saved, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
	return saved, nil
}
