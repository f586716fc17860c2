package openaicompat

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestEncodeChat(t *testing.T) {
	body, err := EncodeChat("gpt-4", "be helpful", "hello")
	if err != nil {
		t.Fatalf("EncodeChat failed: %v", err)
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if req.Model != "gpt-4" {
		t.Errorf("model = %q, want %q", req.Model, "gpt-4")
	}
	if req.Stream {
		t.Error("stream should be false")
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != "be helpful" {
		t.Errorf("messages[0] = %+v, want system prompt", req.Messages[0])
	}
	if req.Messages[1].Role != "user" || req.Messages[1].Content != "hello" {
		t.Errorf("messages[1] = %+v, want user prompt", req.Messages[1])
	}
	if req.MaxTokens != 1000 || req.Temperature != 0.7 {
		t.Errorf("max_tokens = %d, temperature = %v", req.MaxTokens, req.Temperature)
	}
}

func TestDecodeChat(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"text", `{"choices":[{"index":0,"message":{"role":"assistant","content":"Hi!"}}]}`, "Hi!", false},
		{"empty content", `{"choices":[{"message":{"role":"assistant","content":""}}]}`, "", false},
		{"null content", `{"choices":[{"message":{"role":"assistant","content":null}}]}`, "", true},
		{"no choices", `{"choices":[]}`, "", true},
		{"not json", `<html>`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeChat([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	h := http.Header{}
	Authorize(h, "")
	if h.Get("Authorization") != "" {
		t.Error("no header expected without a key")
	}

	Authorize(h, "sk-test")
	if got := h.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer sk-test")
	}
}

func TestExtractErrorMessage(t *testing.T) {
	if got := ExtractErrorMessage([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)); got != "quota exceeded" {
		t.Errorf("got %q, want %q", got, "quota exceeded")
	}
	if got := ExtractErrorMessage([]byte(`plain text`)); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if got := ExtractErrorMessage(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
