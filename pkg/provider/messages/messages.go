// Package messages is the provider-native messages dialect (Anthropic
// Messages API). The endpoint base URL carries the version prefix, so the
// chat path is just "/messages".
package messages

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	// ChatPath is appended to the endpoint base URL for chat requests.
	ChatPath = "/messages"

	// ProbePath lists models available to the key.
	ProbePath = "/models"

	// Version is sent in the anthropic-version header.
	Version = "2023-06-01"

	defaultMaxTokens = 1000
)

// Request is the body of POST /messages.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the non-streaming reply.
type Response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// ContentBlock is one block of the reply content.
type ContentBlock struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// ErrorResponse is the error envelope of the messages API.
type ErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// EncodeChat builds a single-turn request with a top-level system prompt.
func EncodeChat(model, systemPrompt, prompt string) ([]byte, error) {
	return json.Marshal(Request{
		Model:     model,
		MaxTokens: defaultMaxTokens,
		System:    systemPrompt,
		Messages:  []Message{{Role: "user", Content: prompt}},
	})
}

// DecodeChat extracts content[0].text.
func DecodeChat(body []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", errors.New("response has no content blocks")
	}
	if resp.Content[0].Text == nil {
		return "", errors.New("content[0].text is missing")
	}
	return *resp.Content[0].Text, nil
}

// Authorize sets the key and version headers.
func Authorize(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
	h.Set("anthropic-version", Version)
}

// ExtractErrorMessage returns error.message from an error body.
func ExtractErrorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	return errResp.Error.Message
}
