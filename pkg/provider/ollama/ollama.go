// Package ollama is the Ollama-style generate dialect used by the local
// llama and ollama backends. The system prompt is folded into a single
// transcript-shaped prompt because /api/generate has no message list.
package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// ChatPath is appended to the endpoint base URL for generation.
	ChatPath = "/api/generate"

	// ProbePath lists locally pulled models.
	ProbePath = "/api/tags"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// Options carries sampling parameters.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// GenerateResponse is the non-streaming reply of /api/generate.
type GenerateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// ErrorResponse is the error body Ollama returns on failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TagsResponse is the reply of GET /api/tags.
type TagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// BuildPrompt renders the system and user prompts as one transcript.
func BuildPrompt(systemPrompt, prompt string) string {
	return fmt.Sprintf("System: %s\n\nUser: %s\n\nAssistant:", systemPrompt, prompt)
}

// EncodeChat builds a non-streaming generate request.
func EncodeChat(model, systemPrompt, prompt string) ([]byte, error) {
	return json.Marshal(GenerateRequest{
		Model:   model,
		Prompt:  BuildPrompt(systemPrompt, prompt),
		Stream:  false,
		Options: &Options{Temperature: 0.7, TopP: 0.9},
	})
}

// DecodeChat extracts the "response" field.
func DecodeChat(body []byte) (string, error) {
	var resp GenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", errors.New(`response field is missing`)
	}
	return *resp.Response, nil
}

// ExtractErrorMessage returns the "error" field of an error body.
func ExtractErrorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	return errResp.Error
}
