package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/agent"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/agent/agentobs"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker/alpaca"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker/brokerobs"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker/kite"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker/sim"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm/claude"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm/llmobs"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm/openai"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/news"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/pipeline"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/runloop"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/store"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/strategy"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tools"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tradelog"
)

// app holds what lives for the whole process. Everything scoped to one
// run (broker session, agent, pipeline) is built by iteration.
type app struct {
	cfg     *store.Config
	metrics *metrics.Metrics
	journal *tradelog.Journal
	news    interfaces.NewsSource
	factory broker.Factory
}

// loadConfig reads the config file. A missing default file falls back to
// the built-in defaults.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*store.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := store.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		logger.Warn(ctx, "No config file, using defaults", "path", path)
		return store.Default(), nil
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *store.Config) *app {
	a := &app{
		cfg:     cfg,
		metrics: metrics.New(),
		journal: tradelog.New(cfg.Journal.Dir),
		factory: brokerFactory(ctx, cfg),
	}
	if cfg.News.Enabled {
		a.news = news.NewService(news.NewScraper(cfg.News.Timeout), news.ServiceConfig{CacheDuration: cfg.News.CacheTTL})
	}
	return a
}

func (a *app) session() *broker.Session {
	return broker.NewSession(a.factory, a.cfg.Broker.Environment)
}

func (a *app) toolbox(s *broker.Session) *tools.Registry {
	return tools.Catalogue(tools.Deps{
		Session: s,
		News:    a.news,
		Metrics: a.metrics,
		Journal: a.journal,
	})
}

// compressOldLogs gzips journal files past the retention window.
func (a *app) compressOldLogs(ctx context.Context) {
	if err := a.journal.CompressOlder(a.cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// brokerFactory builds backends for the configured provider. Simulated
// accounts are kept for the life of the process so runs see each other's
// orders.
func brokerFactory(ctx context.Context, cfg *store.Config) broker.Factory {
	var (
		mu   sync.Mutex
		sims = make(map[broker.Environment]*sim.Broker)
	)

	if cfg.Mode == store.ModeDryRun {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	return func(env broker.Environment) (broker.Client, error) {
		var client broker.Client
		switch cfg.Broker.Provider {
		case store.ProviderSim:
			mu.Lock()
			b, ok := sims[env]
			if !ok {
				b = newSim(cfg, env)
				sims[env] = b
			}
			mu.Unlock()
			client = b

		case store.ProviderAlpaca:
			creds, err := cfg.Credentials(env)
			if err != nil {
				return nil, err
			}
			c, err := alpaca.New(alpaca.Params{
				Environment: env,
				APIKey:      creds.AlpacaKeyID,
				APISecret:   creds.AlpacaSecretKey,
			})
			if err != nil {
				return nil, err
			}
			client = c
			if cfg.Mode == store.ModeDryRun {
				client = broker.NewDryRun(client)
			}

		case store.ProviderKite:
			creds, err := cfg.Credentials(env)
			if err != nil {
				return nil, err
			}
			c, err := kite.New(kite.Params{
				Environment: env,
				APIKey:      creds.KiteAPIKey,
				AccessToken: creds.KiteAccessToken,
				Exchange:    cfg.Broker.Exchange,
			})
			if err != nil {
				return nil, err
			}
			client = c
			// Paper Kite clients already simulate their writes.
			if cfg.Mode == store.ModeDryRun && env == broker.Live {
				client = broker.NewDryRun(client)
			}

		default:
			return nil, fmt.Errorf("unknown broker provider %q", cfg.Broker.Provider)
		}

		logger.Info(ctx, "Broker client ready", "provider", cfg.Broker.Provider, "env", string(env), "mode", cfg.Mode)
		return brokerobs.Wrap(client, env), nil
	}
}

func newSim(cfg *store.Config, env broker.Environment) *sim.Broker {
	prices := cfg.Broker.Sim.Prices
	if len(prices) == 0 {
		prices = map[string]float64{strings.ToUpper(cfg.Strategy.Symbol): 100}
	}
	return sim.New(sim.Params{
		Environment: env,
		Cash:        decimal.NewFromFloat(cfg.Broker.Sim.Cash),
		Prices:      prices,
	})
}

func (a *app) model() (interfaces.Model, error) {
	creds, err := a.cfg.Credentials(a.cfg.Broker.Environment)
	if err != nil {
		return nil, err
	}
	llmCfg := a.cfg.LLM
	switch llmCfg.Provider {
	case store.LLMOpenAI:
		m, err := openai.New(openai.Config{APIKey: creds.OpenAIKey, Model: llmCfg.Model, Timeout: llmCfg.Timeout})
		if err != nil {
			return nil, err
		}
		return llmobs.Wrap(m, store.LLMOpenAI), nil
	case store.LLMClaude:
		m, err := claude.New(claude.Config{
			APIKey:   creds.ClaudeKey,
			Model:    llmCfg.Model,
			Endpoint: creds.ClaudeEndpoint,
			Timeout:  llmCfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return llmobs.Wrap(m, store.LLMClaude), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", llmCfg.Provider)
}

func (a *app) agentConfig() agent.Config {
	return agent.Config{
		System:        a.cfg.LLM.System,
		MaxTokens:     a.cfg.LLM.MaxTokens,
		Temperature:   a.cfg.LLM.Temperature,
		MaxToolRounds: a.cfg.LLM.MaxToolRounds,
		SessionDepth:  a.cfg.LLM.SessionDepth,
	}
}

// pipeline builds a fresh agent over toolbox and a pipeline around it.
func (a *app) pipeline(toolbox agent.Toolbox) (*pipeline.Pipeline, error) {
	model, err := a.model()
	if err != nil {
		return nil, err
	}
	return a.newPipeline(model, toolbox)
}

func (a *app) newPipeline(model interfaces.Model, toolbox agent.Toolbox) (*pipeline.Pipeline, error) {
	investor, err := agent.New(model, toolbox, a.agentConfig())
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	if a.cfg.Pipeline.UseConvertToBoolAgent {
		converter, err := agent.New(model, nil, agent.Config{MaxTokens: 16, SessionDepth: 1})
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithBoolConverter(agentobs.Wrap(converter, "bool-converter")))
	}
	return pipeline.New(agentobs.Wrap(investor, "investor"), opts...), nil
}

// iteration is one run of the strategy on a fresh session, agent and
// pipeline.
func (a *app) iteration(ladder *strategy.Ladder) runloop.Iteration {
	return func(ctx context.Context, run int) (runloop.Report, error) {
		s := a.session()
		p, err := a.pipeline(a.toolbox(s))
		if err != nil {
			return runloop.Report{}, fmt.Errorf("build pipeline: %w", err)
		}
		out, err := ladder.Run(ctx, p)
		if out.Summary != "" {
			logger.Info(ctx, "Run summary", "run", run, "summary", out.Summary)
		}
		return runloop.Report{Steps: out.Steps, Summary: out.Summary}, err
	}
}

// health checks that the configured account answers.
func (a *app) health(ctx context.Context) error {
	_, err := a.session().Account(ctx)
	return err
}
