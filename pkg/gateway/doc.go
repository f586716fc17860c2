// Package gateway is the single entry point for talking to AI providers.
// It injects the assistant's system prompt, enforces the AI rate budget,
// probes every provider concurrently and turns provider failures into
// conversational text. Workflow-aware operations (generation, optimization,
// explanation) combine it with a workflow.Bridge.
package gateway
