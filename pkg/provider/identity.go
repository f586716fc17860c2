package provider

import (
	"fmt"

	"github.com/sensei-dev/sensei/pkg/api"
)

// Identity names one configured AI backend.
type Identity string

const (
	Llama      Identity = "llama"      // local Ollama-style server (LLama Docker Desktop)
	LMStudio   Identity = "lm_studio"  // local OpenAI-compatible server
	Ollama     Identity = "ollama"     // local Ollama server
	OpenAI     Identity = "openai"     // cloud
	Anthropic  Identity = "anthropic"  // cloud, provider-native messages dialect
	OpenRouter Identity = "openrouter" // cloud, OpenAI-compatible
)

// allIdentities is the fixed probe and recommendation order.
var allIdentities = []Identity{Llama, LMStudio, Ollama, OpenAI, Anthropic, OpenRouter}

// AllIdentities returns every known identity in a stable order.
func AllIdentities() []Identity {
	out := make([]Identity, len(allIdentities))
	copy(out, allIdentities)
	return out
}

// ParseIdentity converts a string into an Identity. Unknown names fail with
// api.ErrUnsupportedProvider.
func ParseIdentity(s string) (Identity, error) {
	id := Identity(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", api.ErrUnsupportedProvider, s)
	}
	return id, nil
}

// Valid reports whether id is one of the known identities.
func (id Identity) Valid() bool {
	switch id {
	case Llama, LMStudio, Ollama, OpenAI, Anthropic, OpenRouter:
		return true
	}
	return false
}

// IsCloud reports whether the provider is a hosted API that needs an API key.
func (id Identity) IsCloud() bool {
	switch id {
	case OpenAI, Anthropic, OpenRouter:
		return true
	}
	return false
}

func (id Identity) String() string { return string(id) }

// Dialect selects the wire format spoken by a backend.
type Dialect int

const (
	DialectOllama   Dialect = iota // GET /api/tags, POST /api/generate
	DialectOpenAI                  // GET /v1/models, POST /v1/chat/completions
	DialectMessages                // GET /models, POST /messages
)

func (d Dialect) String() string {
	switch d {
	case DialectOllama:
		return "ollama"
	case DialectOpenAI:
		return "openai"
	case DialectMessages:
		return "messages"
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// DefaultDialect returns the dialect each identity speaks.
func DefaultDialect(id Identity) (Dialect, error) {
	switch id {
	case Llama, Ollama:
		return DialectOllama, nil
	case LMStudio, OpenAI, OpenRouter:
		return DialectOpenAI, nil
	case Anthropic:
		return DialectMessages, nil
	}
	return 0, fmt.Errorf("%w: %q", api.ErrUnsupportedProvider, string(id))
}

// Endpoint is the immutable connection description for one provider.
type Endpoint struct {
	// BaseURL is the backend root, e.g. "http://localhost:11434" or
	// "https://api.anthropic.com/v1". Dialect paths are appended to it.
	BaseURL string

	// Model is the model identifier sent with every chat request.
	Model string

	// APIKey is optional for local servers and required for cloud identities.
	APIKey string

	Dialect Dialect
}
