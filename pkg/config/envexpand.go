package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go
// template syntax: {{.SYNOD_API_KEY}} becomes the value of SYNOD_API_KEY.
// The {{.VAR}} form keeps literal $ characters intact, which matter in
// regex planning rules and DSN passwords.
//
// Missing variables expand to the empty string; validation catches
// required fields left empty. Malformed templates pass the content
// through unchanged so the YAML parser can report the real problem.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := environMap()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}

// environMap snapshots the process environment as a template data map.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}
