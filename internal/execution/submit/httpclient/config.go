package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/animus-labs/flowlab/internal/platform/env"
)

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("FLOWLAB_SUBMIT_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL:      strings.TrimSpace(env.String("FLOWLAB_SUBMIT_URL", "")),
		TokenURL:     strings.TrimSpace(env.String("FLOWLAB_SUBMIT_TOKEN_URL", "")),
		ClientID:     strings.TrimSpace(env.String("FLOWLAB_SUBMIT_CLIENT_ID", "")),
		ClientSecret: env.String("FLOWLAB_SUBMIT_CLIENT_SECRET", ""),
		Scopes:       env.Strings("FLOWLAB_SUBMIT_SCOPES", nil),
		Timeout:      timeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate requires a base URL. Token settings are all-or-nothing; without
// them requests are sent unauthenticated.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("FLOWLAB_SUBMIT_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FLOWLAB_SUBMIT_URL must be an absolute url: %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("FLOWLAB_SUBMIT_TIMEOUT must be positive")
	}
	if c.TokenURL != "" || c.ClientID != "" || c.ClientSecret != "" {
		if c.TokenURL == "" || c.ClientID == "" || c.ClientSecret == "" {
			return errors.New("FLOWLAB_SUBMIT_TOKEN_URL, FLOWLAB_SUBMIT_CLIENT_ID and FLOWLAB_SUBMIT_CLIENT_SECRET must be set together")
		}
	}
	return nil
}

func (c Config) authenticated() bool {
	return c.TokenURL != ""
}
