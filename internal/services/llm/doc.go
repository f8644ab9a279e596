// Package llm talks to the text models used by the fix and summarize steps.
//
// # Backends
//
// Backend is a single completion call: system prompt plus user text in,
// model text out. Implementations are selected by name through New:
//
//   - deepseek, openai: OpenAI-compatible chat completions via openai-go
//   - claude: the Anthropic Messages API over plain HTTP
//   - gemini: Google Gemini via the genai SDK
//
// Backends never retry on their own. Empty completions are reported as
// errors so the caller can retry them like any other failure.
//
// # Retry Behaviour
//
// Caller wraps a Backend with 1 + MaxRetries attempts and sleeps
// BackoffBase * 2^attempt between them (attempt is 0-based). The last error
// is surfaced as an ai-call-failed error carrying a *CallError. A missing API
// key fails immediately without touching the backend.
package llm
