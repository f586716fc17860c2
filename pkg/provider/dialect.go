package provider

import (
	"net/http"

	"github.com/sensei-dev/sensei/pkg/provider/messages"
	"github.com/sensei-dev/sensei/pkg/provider/ollama"
	"github.com/sensei-dev/sensei/pkg/provider/openaicompat"
)

// adapter bundles the per-dialect wire knowledge used by HTTPClient.
type adapter struct {
	chatPath     string
	probePath    string
	encode       func(model, systemPrompt, prompt string) ([]byte, error)
	decode       func(body []byte) (string, error)
	authorize    func(h http.Header, apiKey string)
	errorMessage func(body []byte) string
}

func adapterFor(d Dialect) (adapter, bool) {
	switch d {
	case DialectOllama:
		return adapter{
			chatPath:     ollama.ChatPath,
			probePath:    ollama.ProbePath,
			encode:       ollama.EncodeChat,
			decode:       ollama.DecodeChat,
			authorize:    bearer,
			errorMessage: ollama.ExtractErrorMessage,
		}, true
	case DialectOpenAI:
		return adapter{
			chatPath:     openaicompat.ChatPath,
			probePath:    openaicompat.ProbePath,
			encode:       openaicompat.EncodeChat,
			decode:       openaicompat.DecodeChat,
			authorize:    openaicompat.Authorize,
			errorMessage: openaicompat.ExtractErrorMessage,
		}, true
	case DialectMessages:
		return adapter{
			chatPath:     messages.ChatPath,
			probePath:    messages.ProbePath,
			encode:       messages.EncodeChat,
			decode:       messages.DecodeChat,
			authorize:    messages.Authorize,
			errorMessage: messages.ExtractErrorMessage,
		}, true
	}
	return adapter{}, false
}

// bearer is used by local Ollama servers sitting behind an auth proxy.
func bearer(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}
