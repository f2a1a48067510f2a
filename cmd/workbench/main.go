package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/workbench/internal/agent"
	"github.com/rahul/workbench/internal/gateway"
	"github.com/rahul/workbench/internal/governance"
	"github.com/rahul/workbench/internal/observability"
	"github.com/rahul/workbench/internal/store"
	"github.com/rahul/workbench/internal/tools"
	"github.com/rahul/workbench/pkg/config"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to a .json, .yaml or .toml config file")
	flag.Parse()

	observability.PrintBanner()

	// Route all log output through the terminal mutex so it never
	// interleaves with the live status line.
	log.SetOutput(observability.NewTermWriter())

	var cfg *config.Config
	if _, err := os.Stat(*configPath); err == nil {
		cfg = config.LoadConfig(*configPath)
	} else {
		log.Printf("No config at %s, running with defaults", *configPath)
		cfg = &config.Config{}
		cfg.ApplyEnv(os.LookupEnv)
		cfg.ApplyDefaults()
	}

	registry := tools.NewCatalog(cfg)

	var plans agent.PlanStore
	switch cfg.Memory.Type {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Memory.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer s.Close()
		plans = s
	default:
		plans = store.NewMemoryStore()
	}

	gov, err := governance.FromConfig(cfg.Policy)
	if err != nil {
		log.Fatalf("invalid policy config: %v", err)
	}

	logger := observability.NewLogger()

	executor := agent.NewExecutor(registry, plans, logger)
	executor.Policy = gov
	executor.Status = observability.Global()
	if cfg.Review.Mode == "manual" {
		executor.ReviewMode = agent.ReviewManual
	}

	// The LLM only writes the final summary; without a provider the count
	// summary is used.
	if pName, pCfg := cfg.GetDefaultProvider(); pName != "" {
		switch pName {
		case "openai", "openrouter":
			opts := []openai.Option{
				openai.WithToken(pCfg.APIKey),
				openai.WithModel(pCfg.Model),
			}
			if pCfg.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
			}
			llm, err := openai.New(opts...)
			if err != nil {
				log.Fatal(err)
			}
			executor.Summarizer = agent.NewLLMSummarizer(llm, agent.NewPromptManager("./prompts"), logger)
		default:
			log.Printf("Provider %s not supported, using count summaries", pName)
		}
	}

	manager := agent.NewManager(executor)
	manager.ReviewTimeout = cfg.ReviewTimeout()
	manager.TimeoutPolicy = cfg.Review.TimeoutPolicy
	manager.ReviewerRoles = cfg.Review.ReviewerRoles

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var messengers []gateway.Messenger
	if tgCfg, ok := cfg.GetGatewayConfig("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, tgCfg.ChatID, commands(manager, tgCfg.Users, cfg))
		if err != nil {
			log.Fatal(err)
		}
		executor.Notifiers = append(executor.Notifiers, tg)
		messengers = append(messengers, tg)
	}
	if dcCfg, ok := cfg.GetGatewayConfig("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, dcCfg.ChatID, commands(manager, dcCfg.Users, cfg))
		if err != nil {
			log.Fatal(err)
		}
		executor.Notifiers = append(executor.Notifiers, dc)
		messengers = append(messengers, dc)
	}

	for _, m := range messengers {
		go func(m gateway.Messenger) {
			if err := m.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY ERROR: %v\033[0m", err)
			}
		}(m)
	}

	if executor.ReviewMode == agent.ReviewManual {
		go agent.NewSweeper(manager).Start(ctx)
	}

	// Live status line (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	srv := gateway.NewServer(manager, cfg, logger)
	if err := srv.ListenAndServe(ctx, cfg.App.Listen); err != nil {
		log.Printf("\033[91m[ FAIL ] HTTP SERVER ERROR: %v\033[0m", err)
		stop()
	}

	for _, m := range messengers {
		m.Stop()
	}

	log.Println("\033[95m[ EXIT ] WORKBENCH STOPPED.\033[0m")
}

func commands(manager *agent.Manager, users map[string]string, cfg *config.Config) *gateway.Commands {
	c := gateway.NewCommands(manager, users)
	c.Roles = cfg.Roles()
	return c
}
