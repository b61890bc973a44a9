package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"dublin-rag/internal/config"
)

const localToken = "local"

// NewLLM creates the language model client for the configured provider
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Msg("Creating LLM client")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
		if key == "" {
			key = localToken
		}
		opts := []openai.Option{
			openai.WithModel(llmConfig.Model),
			openai.WithToken(key),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
}

// CallOptions returns the per call options derived from the config
func CallOptions(llmConfig *config.LLMConfig) []llms.CallOption {
	var opts []llms.CallOption
	if llmConfig.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*llmConfig.Temperature))
	}
	return opts
}

// GenerateContent sends prompt as a single, non streaming completion and
// returns the text of the first choice unmodified.
func GenerateContent(ctx context.Context, llm llms.Model, prompt string, opts ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("llm call failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return res.Choices[0].Content, nil
}
