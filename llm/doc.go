// Package llm is the model-transport layer for sidekick. It wraps the gollm
// library (github.com/teilomillet/gollm) behind a small provider-agnostic
// Client interface so the agent loop never touches provider SDKs directly.
//
// A Complete call takes the serialized conversation plus tool schema
// declarations and returns either terminal assistant text or a set of tool
// call requests, together with token usage. Transport failures are collapsed
// into a single *TransportError category whose Retryable flag tells the
// caller whether retrying could help; retries themselves happen here (see
// Retry), never in the agent loop.
//
// The built-in model catalog maps model identifiers and aliases to provider,
// context window, and per-million-token pricing, which drives the session's
// cost accounting.
package llm
