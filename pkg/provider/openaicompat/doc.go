// Package openaicompat is the OpenAI-compatible Chat Completions dialect,
// spoken by LM Studio, OpenAI and OpenRouter. It only builds request bodies
// and extracts text from responses; the HTTP exchange is done by
// provider.HTTPClient.
package openaicompat
