package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOpenAIURL is the chat completions endpoint of the OpenAI API
const DefaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI implements the Scanner interface using an OpenAI compatible chat completions endpoint
type OpenAI struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewOpenAI creates a new OpenAI Scanner instance.
// A zero timeout leaves the call bounded only by the transport defaults.
func NewOpenAI(url, apiKey, modelName string, timeout time.Duration) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if url == "" {
		url = DefaultOpenAIURL
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	return &OpenAI{
		url:    url,
		apiKey: apiKey,
		model:  modelName,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Scan sends one chat completion request and interprets the reply
func (o *OpenAI) Scan(ctx context.Context, prompt string, encodedImage string) (Fields, error) {
	jsonData, err := json.Marshal(BuildChatRequest(o.model, prompt, encodedImage))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling openai API: %v", ErrService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrService, err)
	}

	text, err := ReplyText(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	fields, err := parseReply(text)
	if err != nil {
		return nil, fmt.Errorf("%w (body: %s)", err, string(body))
	}
	return fields, nil
}

// Close closes the OpenAI client (no-op for HTTP client)
func (o *OpenAI) Close() error {
	return nil
}
