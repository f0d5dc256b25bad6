package domain

import (
	"errors"
	"testing"

	"github.com/animus-labs/flowlab/internal/platform/envsubst"
)

func lookupFrom(values map[string]string) envsubst.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestConnectionResolveRequired(t *testing.T) {
	conn := Connection{
		Name: "aoai",
		Type: "AzureOpenAIConnection",
		Properties: map[string]string{
			"api_base": "https://example.openai.azure.com",
			"api_key":  "${api_key}",
		},
	}

	resolved, err := conn.Resolve(envsubst.New(lookupFrom(map[string]string{"AOAI_API_KEY": "k"})))
	if err != nil {
		t.Fatalf("Resolve() err=%v", err)
	}
	if resolved.Properties["api_key"] != "k" {
		t.Fatalf("api_key=%q, want k", resolved.Properties["api_key"])
	}
	if resolved.Properties["api_base"] != "https://example.openai.azure.com" {
		t.Fatalf("api_base changed: %q", resolved.Properties["api_base"])
	}
	if conn.Properties["api_key"] != "${api_key}" {
		t.Fatalf("Resolve mutated the source connection")
	}

	_, err = conn.Resolve(envsubst.New(lookupFrom(nil)))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestConnectionResolveCustomPassThrough(t *testing.T) {
	conn := Connection{
		Name:       "search",
		Type:       "customconnection",
		Properties: map[string]string{"endpoint": "${endpoint}"},
		Configs:    map[string]string{"index": "${index}"},
		Secrets:    map[string]string{"key": "${key}"},
	}
	if !conn.IsCustom() {
		t.Fatalf("expected custom connection")
	}

	resolved, err := conn.Resolve(envsubst.New(lookupFrom(map[string]string{"SEARCH_KEY": "secret"})))
	if err != nil {
		t.Fatalf("Resolve() err=%v", err)
	}
	if resolved.Properties["endpoint"] != "${endpoint}" {
		t.Fatalf("endpoint=%q, want literal", resolved.Properties["endpoint"])
	}
	if resolved.Configs["index"] != "${index}" {
		t.Fatalf("index=%q, want literal", resolved.Configs["index"])
	}
	if resolved.Secrets["key"] != "secret" {
		t.Fatalf("key=%q, want secret", resolved.Secrets["key"])
	}
}
