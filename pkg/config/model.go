package config

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewModel builds the language-model client from the planner settings.
// Returns (nil, nil) when the collaborator is disabled so callers can pass
// the result straight into the planner.
func (s *Settings) NewModel() (llms.Model, error) {
	if !s.Planner.Enabled {
		return nil, nil
	}

	opts := []openai.Option{}
	if s.Planner.Model != "" {
		opts = append(opts, openai.WithModel(s.Planner.Model))
	}
	if s.Planner.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(s.Planner.BaseURL))
	}
	if s.Planner.APIKeyEnv != "" {
		key := os.Getenv(s.Planner.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("planner enabled but %s is not set", s.Planner.APIKeyEnv)
		}
		opts = append(opts, openai.WithToken(key))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return model, nil
}
