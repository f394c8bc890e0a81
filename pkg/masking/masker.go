// Package masking scrubs provider credentials from text before it is
// logged, traced, or stored on a session.
package masking

import (
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/synod-ai/synod/pkg/config"
)

const replacement = "***MASKED***"

// builtinPatterns cover common credential shapes found in provider
// error text. Names exist for logging only.
var builtinPatterns = []struct {
	name    string
	pattern string
	repl    string
}{
	{"bearer_token", `(?i)bearer\s+[A-Za-z0-9._\-]{8,}`, "Bearer " + replacement},
	{"api_key_field", `(?i)(api[-_]?key["':=\s]+)[A-Za-z0-9._\-]{8,}`, "${1}" + replacement},
	{"openai_key", `sk-[A-Za-z0-9_\-]{16,}`, replacement},
	{"basic_auth_url", `(://[^:/\s]+:)[^@/\s]+@`, "${1}" + replacement + "@"},
}

type compiledPattern struct {
	name  string
	regex *regexp.Regexp
	repl  string
}

// Masker replaces known secret values and credential-shaped substrings.
// Created once at startup; thread-safe and stateless aside from the
// compiled patterns. A nil masker passes text through unchanged.
type Masker struct {
	secrets  []string
	patterns []compiledPattern
}

// NewMasker compiles the built-in patterns and registers literal secret
// values to replace. Empty and very short values are skipped so masking
// never eats ordinary words. Invalid patterns are logged and skipped.
func NewMasker(secrets ...string) *Masker {
	m := &Masker{}
	for _, s := range secrets {
		if len(strings.TrimSpace(s)) >= 6 {
			m.secrets = append(m.secrets, s)
		}
	}

	for _, p := range builtinPatterns {
		compiled, err := regexp.Compile(p.pattern)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping",
				"pattern", p.name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, compiledPattern{name: p.name, regex: compiled, repl: p.repl})
	}
	return m
}

// FromModelRegistry builds a masker seeded with the API key of every
// registered model, read from the environment variables the model
// configs name.
func FromModelRegistry(registry *config.ModelRegistry) *Masker {
	var secrets []string
	if registry != nil {
		seen := map[string]bool{}
		for _, modelCfg := range registry.GetAll() {
			if modelCfg.APIKeyEnv == "" || seen[modelCfg.APIKeyEnv] {
				continue
			}
			seen[modelCfg.APIKeyEnv] = true
			if v := os.Getenv(modelCfg.APIKeyEnv); v != "" {
				secrets = append(secrets, v)
			}
		}
	}
	return NewMasker(secrets...)
}

// Mask replaces registered secrets and credential-shaped substrings.
func (m *Masker) Mask(text string) string {
	if m == nil || text == "" {
		return text
	}

	for _, secret := range m.secrets {
		text = strings.ReplaceAll(text, secret, replacement)
	}
	for _, p := range m.patterns {
		text = p.regex.ReplaceAllString(text, p.repl)
	}
	return text
}

// MaskError is a convenience for error text; nil errors yield "".
func (m *Masker) MaskError(err error) string {
	if err == nil {
		return ""
	}
	return m.Mask(err.Error())
}
