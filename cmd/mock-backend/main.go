// Command mock-backend runs deterministic stand-ins for every upstream the
// gateway talks to: an Ollama-style server, an OpenAI-compatible server, a
// messages-API server and the automation engine REST surface. Point all
// provider base URLs and the engine URL at it for local development and
// integration testing.
//
// Replies are derived from the prompt. A workflow generation prompt gets a
// small valid workflow; any prompt containing "mock-error" gets a 503.
//
// Configuration:
//
//	MOCK_PORT    - Listen port (default: 9090)
//	MOCK_API_KEY - Engine API key to require (default: none)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sensei-dev/sensei/pkg/provider/messages"
	"github.com/sensei-dev/sensei/pkg/provider/ollama"
	"github.com/sensei-dev/sensei/pkg/provider/openaicompat"
	"github.com/sensei-dev/sensei/pkg/workflow/enginetest"
)

const (
	failMarker  = "mock-error"
	draftMarker = "Generate a complete N8N workflow"

	mockModel = "mock-model"
)

const draftReply = `Here is your workflow:
{
  "name": "Mock Workflow",
  "nodes": [
    {"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "typeVersion": 1, "position": [250, 300], "parameters": {}},
    {"id": "2", "name": "Set", "type": "n8n-nodes-base.set", "typeVersion": 1, "position": [450, 300], "parameters": {"values": {}}}
  ],
  "connections": {"Start": {"main": [[{"node": "Set", "type": "main", "index": 0}]]}},
  "active": false,
  "settings": {}
}`

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{Addr: ":" + port, Handler: newMux(os.Getenv("MOCK_API_KEY"))}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func newMux(engineKey string) *http.ServeMux {
	engine := enginetest.New()
	engine.APIKey = engineKey

	mux := http.NewServeMux()
	mux.Handle("/rest/", engine.Handler())

	mux.HandleFunc("GET "+ollama.ProbePath, handleOllamaTags)
	mux.HandleFunc("POST "+ollama.ChatPath, handleOllamaGenerate)
	mux.HandleFunc("GET "+openaicompat.ProbePath, handleOpenAIModels)
	mux.HandleFunc("POST "+openaicompat.ChatPath, handleOpenAIChat)
	mux.HandleFunc("GET "+messages.ProbePath, handleMessagesModels)
	mux.HandleFunc("POST "+messages.ChatPath, handleMessages)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// reply returns the canned answer for prompt and whether the call should fail.
func reply(prompt string) (string, bool) {
	switch {
	case strings.Contains(prompt, failMarker):
		return "", false
	case strings.Contains(prompt, draftMarker):
		return draftReply, true
	}
	return fmt.Sprintf("Mock reply to: %s", lastLine(prompt)), true
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Ollama ---

func handleOllamaTags(w http.ResponseWriter, _ *http.Request) {
	var tags ollama.TagsResponse
	tags.Models = append(tags.Models, struct {
		Name string `json:"name"`
	}{Name: mockModel})
	writeJSON(w, http.StatusOK, tags)
}

func handleOllamaGenerate(w http.ResponseWriter, r *http.Request) {
	var req ollama.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ollama.ErrorResponse{Error: "invalid request"})
		return
	}
	// The transcript ends with "Assistant:", the user turn precedes it.
	prompt := strings.TrimSuffix(strings.TrimSpace(req.Prompt), "Assistant:")
	if i := strings.LastIndex(prompt, "User: "); i >= 0 {
		prompt = prompt[i+len("User: "):]
	}
	text, ok := reply(prompt)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, ollama.ErrorResponse{Error: "mock backend failure"})
		return
	}
	writeJSON(w, http.StatusOK, ollama.GenerateResponse{Model: req.Model, Response: &text, Done: true})
}

// --- OpenAI-compatible ---

func handleOpenAIModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openaicompat.ModelList{
		Object: "list",
		Data:   []openaicompat.Model{{ID: mockModel, Object: "model", OwnedBy: "mock"}},
	})
}

func handleOpenAIChat(w http.ResponseWriter, r *http.Request) {
	var req openaicompat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeOpenAIError(w, http.StatusBadRequest, "invalid request", "invalid_request_error")
		return
	}
	text, ok := reply(req.Messages[len(req.Messages)-1].Content)
	if !ok {
		writeOpenAIError(w, http.StatusServiceUnavailable, "mock backend failure", "server_error")
		return
	}

	choice := openaicompat.Choice{
		Message:      openaicompat.ReplyMessage{Role: "assistant", Content: &text},
		FinishReason: "stop",
	}
	writeJSON(w, http.StatusOK, openaicompat.Response{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Model:   req.Model,
		Choices: []openaicompat.Choice{choice},
	})
}

func writeOpenAIError(w http.ResponseWriter, status int, msg, typ string) {
	var body openaicompat.ErrorResponse
	body.Error.Message = msg
	body.Error.Type = typ
	writeJSON(w, status, body)
}

// --- Messages API ---

func handleMessagesModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []map[string]string{{"id": mockModel, "type": "model"}},
	})
}

func handleMessages(w http.ResponseWriter, r *http.Request) {
	var req messages.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeMessagesError(w, http.StatusBadRequest, "invalid request", "invalid_request_error")
		return
	}
	text, ok := reply(req.Messages[len(req.Messages)-1].Content)
	if !ok {
		writeMessagesError(w, http.StatusServiceUnavailable, "mock backend failure", "overloaded_error")
		return
	}
	writeJSON(w, http.StatusOK, messages.Response{
		ID:         "msg_" + uuid.NewString(),
		Model:      req.Model,
		Content:    []messages.ContentBlock{{Type: "text", Text: &text}},
		StopReason: "end_turn",
	})
}

func writeMessagesError(w http.ResponseWriter, status int, msg, typ string) {
	var body messages.ErrorResponse
	body.Type = "error"
	body.Error.Type = typ
	body.Error.Message = msg
	writeJSON(w, status, body)
}
