package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/genai"
)

// Embedder maps text to a fixed-length vector. The dimensionality is fixed
// for the lifetime of the client; every stored record must share it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	dimensions     int
}

type GeminiOption func(*GeminiClient)

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func WithDimensions(dim int) GeminiOption {
	return func(g *GeminiClient) {
		g.dimensions = dim
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:         client,
		embeddingModel: "gemini-embedding-001",
		dimensions:     768,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Embed generates the embedding vector for the given text. Provider errors
// (including timeouts) are tagged model.TagEmbeddingUnavailable.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(g.dimensions)),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content",
			goerr.V("model", g.embeddingModel),
			goerr.T(model.TagEmbeddingUnavailable))
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("embedding response is empty",
			goerr.V("model", g.embeddingModel),
			goerr.T(model.TagEmbeddingUnavailable))
	}

	return resp.Embeddings[0].Values, nil
}

func (g *GeminiClient) Dimensions() int {
	return g.dimensions
}
