// Package llm is the language model collaborator.
//
// Callers pick a Task and the Generator routes it to the model configured for
// that task. Providers speak the OpenAI-compatible chat completions API, the
// Anthropic Messages API, or go through langchaingo. All HTTP providers share
// the same rate limiting and bounded exponential backoff: 429, 5xx and
// network failures are retried, everything else fails fast.
//
// Errors:
//
//   - ErrMissingCredential: no API key configured. Never retried.
//   - *GenerationError: the provider returned no usable content after
//     retries. Wraps the last underlying error; errors.Is(err,
//     ErrEmptyResponse) holds when the provider answered with nothing.
package llm
