package llm

import (
	"fmt"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/logging"
)

// New creates the Generator selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *logging.Logger) (Generator, error) {
	opts := OptionsFromConfig(cfg)
	if logger != nil {
		logger = logger.Named("llm")
	}

	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(opts, logger), nil
	case "anthropic":
		return NewAnthropicClient(opts, logger), nil
	case "langchain":
		return NewLangChainClient(opts, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
