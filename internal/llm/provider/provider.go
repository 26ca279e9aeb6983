package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/gemini"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
	"github.com/joseph-ayodele/docextract/internal/llm/vertex"
)

// New builds the Completer named by cfg.Provider. The returned close func releases SDK
// clients and is never nil.
func New(ctx context.Context, cfg common.LLMConfig, storage common.StorageConfig, logger *slog.Logger) (llm.Completer, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }
	logger = logger.With("provider", cfg.Provider)

	switch cfg.Provider {
	case "openai", "":
		c := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxOutputTokens,
			Timeout:     cfg.CallTimeout,
		}, logger)
		return c, noop, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			BaseURL:         cfg.BaseURL,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:       cfg.VertexProjectID,
			Region:          cfg.VertexRegion,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			CredentialsFile: storage.CredentialsFile,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}
