package core

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/reelpick/reelpick/internal/config"
)

const defaultEmbeddingModelName = "text-embedding-004"

// EmbeddingService encodes text into the embedding space shared with the QA
// bank. The bank must have been ingested with the same model; mixing spaces
// is undefined.
type EmbeddingService struct {
	client *genai.Client
}

func NewEmbeddingService(ctx context.Context) (*EmbeddingService, error) {
	if config.AppConfig.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &EmbeddingService{client: client}, nil
}

func (s *EmbeddingService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.WithError(err).Warn("Error closing GenAI client")
		}
	}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received")
	}
	return res.Embedding.Values, nil
}
