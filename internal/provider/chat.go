package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
)

const chatSystemPrompt = "You translate short lines of game dialogue and correct obvious recognition typos. " +
	"Reply with the translation only, wrapped in ``` ```. If there is nothing to translate reply with ``` ```."

// ChatConfig configures an OpenAI-compatible chat completions translator.
type ChatConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Chat translates with a chat completions endpoint.
type Chat struct {
	cfg    ChatConfig
	client *http.Client
}

func NewChat(cfg ChatConfig) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "cloud translator: api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &Chat{cfg: cfg, client: httpClient(cfg.Timeout)}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Chat) Translate(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []chatMessage{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: TranslationPrompt(text, lang)},
		},
		"max_tokens": c.cfg.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var resp chatResponse
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	if err := postJSON(ctx, c.client, url, headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.CodeProviderFailure, "translator returned no choices")
	}
	return StripFences(resp.Choices[0].Message.Content), nil
}
