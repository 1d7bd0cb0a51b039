package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatOracle calls any OpenAI-compatible /v1/chat/completions endpoint
// that supports function calling. Works with vLLM, LiteLLM, OpenRouter,
// self-hosted models, etc.
type OpenAICompatOracle struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatOracle builds an OpenAI-compatible Oracle.
// baseURL should include the /v1 prefix, e.g. "http://localhost:8000/v1".
// apiKey can be empty for local models that do not require authentication.
func NewOpenAICompatOracle(baseURL, apiKey, model string) *OpenAICompatOracle {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &OpenAICompatOracle{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Complete implements Oracle using the OpenAI chat completions API.
func (o *OpenAICompatOracle) Complete(ctx context.Context, messages []Message, tools []Tool) (Completion, error) {
	if o.model == "" {
		return Completion{}, fmt.Errorf("openai-compat model required")
	}

	reqBody := oaiChatRequest{
		Model:    o.model,
		Messages: messages,
		Tools:    tools,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, err
	}

	url := o.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return Completion{}, fmt.Errorf("openai-compat api error: %s", errResp.Error.Message)
		}
		return Completion{}, fmt.Errorf("openai-compat api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Completion{}, fmt.Errorf("openai-compat decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return Completion{}, fmt.Errorf("empty response from openai-compat api")
	}
	msg := chatResp.Choices[0].Message
	if len(msg.ToolCalls) == 0 && strings.TrimSpace(msg.Content) == "" {
		return Completion{}, fmt.Errorf("empty response from openai-compat api")
	}
	return Completion{
		Content:   strings.TrimSpace(msg.Content),
		ToolCalls: msg.ToolCalls,
	}, nil
}

// OpenAI-compatible request/response types.

type oaiChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
