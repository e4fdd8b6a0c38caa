package scanning

// DefaultOpenAIModel is the vision capable chat model used when none is configured
const DefaultOpenAIModel = "gpt-4o"

// ChatRequest represents the request body for a chat completions endpoint
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a chat message with multi-part content
type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// ResponseFormat asks the model for a specific reply format
type ResponseFormat struct {
	Type string `json:"type"`
}

// BuildChatRequest creates the payload for a single user message carrying the prompt and the image
func BuildChatRequest(model, prompt, encodedImage string) ChatRequest {
	if model == "" {
		model = DefaultOpenAIModel
	}

	return ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: DataURL(encodedImage)}},
				},
			},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
}

// DataURL wraps a base64 JPEG in a data URL
func DataURL(encodedImage string) string {
	return "data:image/jpeg;base64," + encodedImage
}
