// Package llm provides an OpenRouter-compatible chat client used to turn raw
// transcripts into structured sessions.
//
// The client sends system/user prompts with a JSON-only response format and
// returns the raw payload; callers decode it with DecodeLLMJSON, which copes
// with code fences and prose wrapped around the object.
//
// # Retry Behaviour
//
// Transport errors (HTTP 408/429/5xx, network timeouts) are retried with
// exponential backoff inside the client. Validation of the decoded payload is
// the caller's concern; a payload that decodes but fails validation is
// surfaced unchanged so the stage retry policy can repeat the call.
package llm
