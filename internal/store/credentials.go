package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
)

// Credentials are the secrets of one broker environment plus the shared
// model and Redis settings.
type Credentials struct {
	AlpacaKeyID     string
	AlpacaSecretKey string
	KiteAPIKey      string
	KiteAccessToken string
	OpenAIKey       string
	ClaudeKey       string
	ClaudeEndpoint  string
	RedisURL        string
}

// Env resolves variables from a credential file first and the process
// environment second.
type Env struct {
	file map[string]string
}

// ReadEnv reads a dotenv file without exporting it. A missing file yields
// an Env backed by the process environment only.
func ReadEnv(path string) (Env, error) {
	if path == "" {
		return Env{}, nil
	}
	vals, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Env{}, nil
	}
	if err != nil {
		return Env{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Env{file: vals}, nil
}

func (e Env) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(e.file[k]); v != "" {
			return v
		}
	}
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Credentials loads the secrets for env from its configured file.
func (c *Config) Credentials(env broker.Environment) (Credentials, error) {
	e, err := ReadEnv(c.Broker.EnvFiles[env])
	if err != nil {
		return Credentials{}, err
	}
	return credentialsFrom(e, env), nil
}

func credentialsFrom(e Env, env broker.Environment) Credentials {
	alpacaKey := []string{"ALPACA_API_KEY_ID"}
	alpacaSecret := []string{"ALPACA_API_SECRET_KEY"}
	if env == broker.Paper {
		alpacaKey = append([]string{"ALPACA_API_KEY_ID_PAPER"}, alpacaKey...)
		alpacaSecret = append([]string{"ALPACA_API_SECRET_KEY_PAPER"}, alpacaSecret...)
	}
	return Credentials{
		AlpacaKeyID:     e.Get(alpacaKey...),
		AlpacaSecretKey: e.Get(alpacaSecret...),
		KiteAPIKey:      e.Get("KITE_API_KEY"),
		KiteAccessToken: e.Get("KITE_ACCESS_TOKEN"),
		OpenAIKey:       e.Get("OPENAI_API_KEY"),
		ClaudeKey:       e.Get("CLAUDE_API_KEY"),
		ClaudeEndpoint:  e.Get("CLAUDE_API_ENDPOINT"),
		RedisURL:        e.Get("REDIS_URL"),
	}
}
