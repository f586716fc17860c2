// Package provider is the registry of AI backends. Each backend is a closed
// [Identity] bound to an immutable [Endpoint] and one of three wire
// dialects. Per-dialect knowledge (request path, payload envelope and
// response extraction) lives in the ollama, openaicompat and messages
// sub-packages as pure encode/decode functions; [HTTPClient] performs the
// single outbound call and classifies failures into the api error taxonomy.
// Everything outside this package treats providers uniformly through [Client].
package provider
