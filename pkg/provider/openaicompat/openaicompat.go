package openaicompat

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	// ChatPath is appended to the endpoint base URL for chat requests.
	ChatPath = "/v1/chat/completions"

	// ProbePath lists models and doubles as the reachability check.
	ProbePath = "/v1/models"

	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// Request is the body of POST /v1/chat/completions. Streaming is never
// requested.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the non-streaming completion.
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion.
type Choice struct {
	Index        int          `json:"index"`
	Message      ReplyMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// ReplyMessage is the assistant turn of a Choice. Content is a pointer so
// a null reply is told apart from an empty one.
type ReplyMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// Usage is the token accounting of a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}

// ModelList is the reply of GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model is one entry of a ModelList.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// EncodeChat builds a two-turn request: the system prompt, then the user
// prompt.
func EncodeChat(model, systemPrompt, prompt string) ([]byte, error) {
	return json.Marshal(Request{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
}

// DecodeChat extracts choices[0].message.content.
func DecodeChat(body []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	if c := resp.Choices[0].Message.Content; c != nil {
		return *c, nil
	}
	return "", errors.New("choices[0].message.content is missing")
}

// Authorize sets the bearer token when a key is configured.
func Authorize(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

// ExtractErrorMessage returns error.message from an error body.
func ExtractErrorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	return errResp.Error.Message
}
