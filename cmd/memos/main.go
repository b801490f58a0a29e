package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/memetic-os/memos/internal/agent"
	"github.com/memetic-os/memos/internal/api"
	"github.com/memetic-os/memos/internal/bridge"
	"github.com/memetic-os/memos/internal/config"
	"github.com/memetic-os/memos/internal/embedding"
	"github.com/memetic-os/memos/internal/gateway"
	"github.com/memetic-os/memos/internal/graph"
	"github.com/memetic-os/memos/internal/meme"
	"github.com/memetic-os/memos/internal/persist"
	"github.com/memetic-os/memos/internal/provider"
	"github.com/memetic-os/memos/internal/queue"
	msgrouter "github.com/memetic-os/memos/internal/router"
	"github.com/memetic-os/memos/internal/sim"
	"github.com/memetic-os/memos/internal/strategy"
	"github.com/memetic-os/memos/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Memetic OS...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/memos.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	// Initialize persistence: PostgreSQL when configured, JSON files otherwise
	var store persist.Store
	var pgStore *persist.PostgresStore
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := persist.NewPostgresStore(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, falling back to file persistence", zap.Error(pgErr))
		} else if schemaErr := ps.EnsureSchema(context.Background()); schemaErr != nil {
			logger.Fatal("schema setup failed", zap.Error(schemaErr))
		} else {
			pgStore = ps
			store = ps
		}
	}
	if store == nil {
		store = persist.NewFileStore(cfg.Agent.SnapshotPath, cfg.Agent.StatsPath, logger)
	}

	// Initialize thinking agent
	thinker, err := agent.New(context.Background(), store, logger)
	if err != nil {
		logger.Fatal("agent init failed", zap.Error(err))
	}
	thinker.SetStrategies(loadStrategies(cfg.Agent.StrategiesPath, logger))

	reflector := agent.NewReflector(thinker, cfg.Agent.ReflectionEvery(), logger)

	// Initialize meme population
	population := meme.NewPopulation(nil, logger)
	if cfg.Population.MaxSize > 0 {
		population.SetMaxSize(cfg.Population.MaxSize)
	}

	// Initialize meme graph (Neo4j)
	var memeGraph *graph.MemeGraph
	if cfg.Database.Neo4j.URI != "" {
		mg, gErr := graph.NewMemeGraph(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User,
			cfg.Database.Neo4j.Password, cfg.Database.Neo4j.Decay, logger)
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without meme graph", zap.Error(gErr))
		} else if pingErr := mg.Ping(context.Background()); pingErr != nil {
			logger.Warn("Neo4j unavailable, running without meme graph", zap.Error(pingErr))
		} else {
			memeGraph = mg
		}
	}

	// Initialize thought queue (Redis)
	var thoughts *queue.ThoughtQueue
	if cfg.Database.Redis.URL != "" {
		tq, qErr := queue.NewThoughtQueue(cfg.Database.Redis.URL, logger)
		if qErr != nil {
			logger.Warn("Redis unavailable, running without thought queue", zap.Error(qErr))
		} else {
			thoughts = tq
		}
	}

	// Initialize vector index (Qdrant)
	var memeIndex *vectorstore.MemeIndex
	if cfg.Database.Qdrant.Host != "" {
		qc, qErr := vectorstore.NewClient(vectorstore.QdrantConfig{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qErr != nil {
			logger.Warn("Qdrant unavailable, running without similarity search", zap.Error(qErr))
		} else {
			embedder := embedding.NewProvider(embedding.Config{
				Provider:  cfg.Embedding.Provider,
				Endpoint:  cfg.Embedding.Endpoint,
				Model:     cfg.Embedding.Model,
				APIKey:    cfg.Embedding.APIKey,
				Dimension: cfg.Embedding.Dimension,
			})
			mi, miErr := vectorstore.NewMemeIndex(context.Background(), qc, embedder, logger)
			if miErr != nil {
				logger.Warn("Qdrant unavailable, running without similarity search", zap.Error(miErr))
			} else {
				memeIndex = mi
			}
		}
	}

	// LLM dialog environment needs at least one provider
	var env *bridge.Environment
	if len(router.ListProviders()) > 0 {
		adapter := bridge.NewAdapter(thinker, logger)
		env = bridge.NewEnvironment(adapter, router, population, logger)
		logger.Info("Dialog environment initialized", zap.Int("providers", len(router.ListProviders())))
	} else {
		logger.Warn("no LLM providers configured, chat answers with raw decisions")
	}

	// Initialize gateway
	gw := gateway.NewGateway(logger)

	// Wire message router BEFORE registering adapters (Register captures handler)
	msgRouter := msgrouter.New(thinker, env, gw, logger)
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)

	var persona *gateway.Persona
	if cfg.Gateway.Persona.Name != "" {
		persona = &gateway.Persona{
			Name:    cfg.Gateway.Persona.Name,
			IconURL: cfg.Gateway.Persona.IconURL,
			Emoji:   cfg.Gateway.Persona.Emoji,
		}
	}

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		slackAdapter := gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger)
		if persona != nil {
			slackAdapter.SetPersona(persona)
		}
		gw.Register(slackAdapter)
	}

	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger)
		if persona != nil {
			discordAdapter.SetPersona(persona)
		}
		gw.Register(discordAdapter)
	}

	broadcaster := gateway.NewBroadcaster(gw, logger)

	gwCtx := context.Background()
	if err := gw.ConnectAll(gwCtx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Drain queued thoughts into the agent
	consumeCtx, stopConsume := context.WithCancel(context.Background())
	defer stopConsume()
	if thoughts != nil {
		go func() {
			for th := range thoughts.Consume(consumeCtx) {
				if _, thinkErr := thinker.Think(consumeCtx, th.Text); thinkErr != nil {
					logger.Warn("queued thought failed",
						zap.String("source", th.Source), zap.Error(thinkErr))
				}
			}
		}()
	}

	// Simulation clock drives evolution and graph decay
	clock := sim.NewClock(1*time.Second, 1.0, logger)
	driver := sim.NewGenerationDriver(population, thinker,
		cfg.Population.EvolveEveryTicks, cfg.Population.StrategyEveryTicks, logger)
	if memeIndex != nil {
		driver.SetIndex(memeIndex)
	}
	driver.SetAnnouncer(broadcaster)
	clock.AddListener(driver)
	if memeGraph != nil {
		clock.AddListener(memeGraph)
	}
	clock.Start()
	logger.Info("Simulation clock started")

	reflector.Start(context.Background())

	// Build HTTP handler
	handler := api.NewHandler(population, thinker, reflector, env, memeGraph, memeIndex, broadcaster, restAdapter, clock, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Memetic OS listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Memetic OS...")
	clock.Stop()
	reflector.Stop()
	stopConsume()
	ctx := context.Background()
	srv.Shutdown(ctx)
	if memeGraph != nil {
		memeGraph.Close(ctx)
	}
	if thoughts != nil {
		thoughts.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
	gw.Close()
}

// loadStrategies reads the strategy hierarchy from a JSON file. A missing or
// unreadable file yields the built-in default set.
func loadStrategies(path string, logger *zap.Logger) []*strategy.Strategy {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var list []*strategy.Strategy
			if jsonErr := json.Unmarshal(data, &list); jsonErr != nil {
				logger.Warn("strategies file invalid, using defaults",
					zap.String("path", path), zap.Error(jsonErr))
			} else {
				logger.Info("Strategies loaded", zap.String("path", path), zap.Int("count", len(list)))
				return list
			}
		} else if !os.IsNotExist(err) {
			logger.Warn("strategies file unreadable, using defaults",
				zap.String("path", path), zap.Error(err))
		}
	}
	return defaultStrategies()
}

func defaultStrategies() []*strategy.Strategy {
	return []*strategy.Strategy{
		{
			Name:          "Базовый анализ",
			Level:         1,
			TriggerTopics: []string{"почему", "как", "что"},
			ActionPlan:    "разобрать вопрос на составные части",
		},
		{
			Name:          "Поиск противоречий",
			Level:         1,
			TriggerTopics: []string{"противоречие", "конфликт", "ошибка"},
			ActionPlan:    "выделить несовместимые утверждения",
			Conditions: strategy.Conditions{
				Goals: []string{"устранение противоречий"},
			},
		},
		{
			Name:          "Глубокая рефлексия",
			Level:         2,
			TriggerTopics: []string{"смысл", "цель", "рефлексия"},
			ActionPlan:    "пересмотреть собственные допущения",
			Conditions: strategy.Conditions{
				Emotions: []string{"спокойствие"},
			},
		},
		{
			Name:          "Снижение тревоги",
			Level:         2,
			TriggerTopics: []string{"тревога", "страх", "неопределенность"},
			ActionPlan:    "сформулировать источник беспокойства явно",
			Conditions: strategy.Conditions{
				Emotions: []string{"тревога"},
			},
		},
	}
}
