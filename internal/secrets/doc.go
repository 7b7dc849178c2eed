// Package secrets redacts credentials that founders paste into a
// conversation before the text reaches a model, a transcript, or an event.
//
// Detection combines the gitleaks default ruleset with a small set of local
// rules for model-provider keys. An optional TOML allowlist exempts content
// patterns from both.
package secrets
