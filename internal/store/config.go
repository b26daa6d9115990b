package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/agent"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/strategy"
)

const (
	ModeLive   = "LIVE"
	ModeDryRun = broker.ModeDryRun

	ProviderAlpaca = "alpaca"
	ProviderKite   = "kite"
	ProviderSim    = "sim"

	LLMOpenAI = "openai"
	LLMClaude = "claude"
)

type Config struct {
	// Mode LIVE sends orders to the broker; DRY_RUN reads from it and
	// simulates every write.
	Mode string `yaml:"mode"`

	Broker struct {
		Provider    string             `yaml:"provider"`
		Environment broker.Environment `yaml:"environment"`
		Exchange    string             `yaml:"exchange"`
		// EnvFiles holds per-environment credential files, read without
		// touching the process environment.
		EnvFiles map[broker.Environment]string `yaml:"env_files"`
		Sim      struct {
			Cash   float64            `yaml:"cash"`
			Prices map[string]float64 `yaml:"prices"`
		} `yaml:"sim"`
	} `yaml:"broker"`

	LLM struct {
		Provider      string        `yaml:"provider"`
		Model         string        `yaml:"model"`
		MaxTokens     int           `yaml:"max_tokens"`
		Temperature   float32       `yaml:"temperature"`
		MaxToolRounds int           `yaml:"max_tool_rounds"`
		SessionDepth  int           `yaml:"session_depth"`
		Timeout       time.Duration `yaml:"timeout"`
		System        string        `yaml:"system"`
	} `yaml:"llm"`

	Pipeline struct {
		// UseConvertToBoolAgent asks a second agent for a strict yes/no
		// before coercing boolean answers.
		UseConvertToBoolAgent bool `yaml:"use_convert_to_bool_agent"`
	} `yaml:"pipeline"`

	Run struct {
		Interval time.Duration `yaml:"interval"`
		MaxRuns  int           `yaml:"max_runs"`
		Lock     struct {
			Enabled bool          `yaml:"enabled"`
			Key     string        `yaml:"key"`
			TTL     time.Duration `yaml:"ttl"`
		} `yaml:"lock"`
	} `yaml:"run"`

	Strategy strategy.LadderConfig `yaml:"strategy"`

	News struct {
		Enabled  bool          `yaml:"enabled"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"news"`

	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`

	Status struct {
		// Addr of the /metrics and /healthz server. Empty disables it.
		Addr string `yaml:"addr"`
	} `yaml:"status"`

	MCP struct {
		Transport string `yaml:"transport"`
		Addr      string `yaml:"addr"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"mcp"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	c := base()
	c.applyDefaults()
	return c
}

// base holds the defaults whose zero value is meaningful, so they are set
// before decoding and only an explicit key overrides them.
func base() *Config {
	c := &Config{Strategy: strategy.DefaultLadderConfig()}
	c.LLM.SessionDepth = agent.DefaultSessionDepth
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLive
	}
	c.Mode = strings.ToUpper(c.Mode)

	if c.Broker.Provider == "" {
		c.Broker.Provider = ProviderSim
	}
	c.Broker.Provider = strings.ToLower(c.Broker.Provider)
	if c.Broker.Environment == "" {
		c.Broker.Environment = broker.Paper
	}
	c.Broker.Environment = broker.Environment(strings.ToLower(string(c.Broker.Environment)))
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "NSE"
	}
	if c.Broker.EnvFiles == nil {
		c.Broker.EnvFiles = map[broker.Environment]string{
			broker.Paper: ".env.paper",
			broker.Live:  ".env.live",
		}
	}
	if c.Broker.Sim.Cash == 0 {
		c.Broker.Sim.Cash = 100000
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = LLMOpenAI
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.MaxToolRounds == 0 {
		c.LLM.MaxToolRounds = 8
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}

	if c.Run.Interval == 0 {
		c.Run.Interval = time.Hour
	}
	if c.Run.Lock.Key == "" {
		c.Run.Lock.Key = "run"
	}
	if c.Run.Lock.TTL == 0 {
		c.Run.Lock.TTL = 30 * time.Minute
	}

	def := strategy.DefaultLadderConfig()
	if c.Strategy.Symbol == "" {
		c.Strategy.Symbol = def.Symbol
	}
	if c.Strategy.Qty == 0 {
		c.Strategy.Qty = def.Qty
	}
	if c.Strategy.TakeProfit == 0 {
		c.Strategy.TakeProfit = def.TakeProfit
	}
	if c.Strategy.BuyAt == 0 {
		c.Strategy.BuyAt = def.BuyAt
	}
	if c.Strategy.RepriceBelow == 0 {
		c.Strategy.RepriceBelow = def.RepriceBelow
	}
	if c.Strategy.Style == "" {
		c.Strategy.Style = def.Style
	}

	if c.News.Timeout == 0 {
		c.News.Timeout = 15 * time.Second
	}
	if c.News.CacheTTL == 0 {
		c.News.CacheTTL = 15 * time.Minute
	}

	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = "stdio"
	}
	if c.MCP.Addr == "" {
		c.MCP.Addr = ":8081"
	}
	if c.MCP.BaseURL == "" {
		c.MCP.BaseURL = "http://localhost" + c.MCP.Addr
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeLive && c.Mode != ModeDryRun {
		return fmt.Errorf("invalid mode '%s': must be '%s' or '%s'", c.Mode, ModeLive, ModeDryRun)
	}
	switch c.Broker.Provider {
	case ProviderAlpaca, ProviderKite, ProviderSim:
	default:
		return fmt.Errorf("broker.provider must be '%s', '%s' or '%s', got '%s'",
			ProviderAlpaca, ProviderKite, ProviderSim, c.Broker.Provider)
	}
	if _, err := broker.ParseEnvironment(string(c.Broker.Environment)); err != nil {
		return fmt.Errorf("broker.environment: %w", err)
	}
	if c.Broker.Sim.Cash < 0 {
		return fmt.Errorf("broker.sim.cash must be >= 0, got %.2f", c.Broker.Sim.Cash)
	}
	switch c.LLM.Provider {
	case LLMOpenAI, LLMClaude:
	default:
		return fmt.Errorf("llm.provider must be '%s' or '%s', got '%s'", LLMOpenAI, LLMClaude, c.LLM.Provider)
	}
	if c.LLM.MaxToolRounds < 0 || c.LLM.SessionDepth < 0 {
		return errors.New("llm.max_tool_rounds and llm.session_depth must be >= 0")
	}
	if c.Run.Interval <= 0 {
		return fmt.Errorf("run.interval must be positive, got %s", c.Run.Interval)
	}
	if c.Run.MaxRuns < 0 {
		return fmt.Errorf("run.max_runs must be >= 0, got %d", c.Run.MaxRuns)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Journal.RetentionDays < 0 {
		return fmt.Errorf("journal.retention_days must be >= 0, got %d", c.Journal.RetentionDays)
	}
	if c.MCP.Transport != "stdio" && c.MCP.Transport != "sse" {
		return fmt.Errorf("mcp.transport must be 'stdio' or 'sse', got '%s'", c.MCP.Transport)
	}
	return nil
}

// Parse decodes YAML, fills defaults and validates. Unknown keys are
// rejected so a misspelled option cannot silently keep its default.
func Parse(b []byte) (*Config, error) {
	c := base()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
