package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/medassist/vha/internal/config"
	"github.com/medassist/vha/internal/guideline"
	"github.com/medassist/vha/internal/intake"
	"github.com/medassist/vha/internal/llm"
	"github.com/medassist/vha/internal/triage"
)

func buildGenerator(ctx context.Context, cfg config.ModelConfig) (llm.Generator, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return intake.NewMockGenerator(), nil
	case config.ProviderGemini:
		return llm.NewGemini(ctx, llm.GeminiConfig{
			Model:     cfg.Name,
			APIKeyEnv: cfg.APIKeyEnv,
			Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func guidelineIndex() (*guideline.Index, error) {
	index, err := guideline.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("load guideline corpus: %w", err)
	}
	return index, nil
}

func triageEngine(cfg config.PipelineConfig) Analyzer {
	return triage.NewEngine(cfg.MaxReasons)
}
