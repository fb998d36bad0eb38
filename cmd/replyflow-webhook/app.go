package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/replyflow/replyflow/pkg/decision"
	"github.com/replyflow/replyflow/pkg/eventbus"
	"github.com/replyflow/replyflow/pkg/generation"
	"github.com/replyflow/replyflow/pkg/idempotency"
	"github.com/replyflow/replyflow/pkg/ingress"
	"github.com/replyflow/replyflow/pkg/knowledge"
	"github.com/replyflow/replyflow/pkg/log"
	"github.com/replyflow/replyflow/pkg/otelhelper"
	"github.com/replyflow/replyflow/pkg/persistence"
	"github.com/replyflow/replyflow/pkg/persistence/postgres"
	"github.com/replyflow/replyflow/pkg/platform"
	"github.com/replyflow/replyflow/pkg/ratelimit"
	"github.com/replyflow/replyflow/pkg/risk"
	"github.com/replyflow/replyflow/pkg/settings"
	"github.com/replyflow/replyflow/pkg/web"
	"github.com/replyflow/replyflow/pkg/workflow"
)

func run(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("webhook")

	logger.InfoContext(ctx, "initializing webhook server")

	var redisClient redis.UniversalClient

	if url := command.String("redis-url"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}

		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var (
		store persistence.Store
		db    *postgres.Store
	)

	if url := command.String("database-url"); url != "" {
		var err error

		db, err = postgres.NewStore(ctx, logger, url)
		if err != nil {
			return err
		}

		store = db
	} else {
		logger.WarnContext(ctx, "no database configured, using in-memory store")

		store = persistence.NewMemoryStore()
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to close persistence", "error", err)
		}
	}()

	var (
		ledger  idempotency.Ledger
		limiter ratelimit.Limiter

		memoryLedger  *idempotency.MemoryLedger
		memoryLimiter *ratelimit.MemoryLimiter
	)

	if redisClient != nil {
		ledger = idempotency.NewRedisLedger(redisClient, logger)
		limiter = ratelimit.NewRedisLimiter(redisClient, ratelimit.Config{}, logger)
	} else {
		memoryLedger = idempotency.NewMemoryLedger()
		memoryLimiter = ratelimit.NewMemoryLimiter(ratelimit.Config{})
		ledger = memoryLedger
		limiter = memoryLimiter
	}

	var index knowledge.Index

	if db != nil {
		index = knowledge.NewPostgresIndex(db.DB(), logger)
	} else {
		index = knowledge.NewMemoryIndex()
	}

	cache := settings.NewCachedProvider(store, redisClient, logger)

	bus, err := newBus(command, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close event bus", "error", err)
		}
	}()

	dryRun := command.Bool("dry-run")

	var gen generation.Client

	if key := command.String("openai-api-key"); key != "" {
		gen, err = generation.NewOpenAIClient(key, command.String("openai-base-url"), logger)
		if err != nil {
			return err
		}
	} else if dryRun {
		gen = staticGen{}
	} else {
		return errors.New("openai-api-key is required outside dry-run mode")
	}

	deps := ingress.Deps{
		Logger:    logger,
		Ledger:    ledger,
		Limiter:   limiter,
		Screener:  risk.NewScreener(),
		Guardrail: risk.NewGuardrail(),
		Knowledge: index,
		Engine:    decision.NewEngine(decision.DefaultWeights()),
		Generator: gen,
		Settings:  cache,
		Store:     store,
		Executor:  workflow.NewExecutor(logger, gen, store, bus),
		Bus:       bus,
		MasterKey: []byte(command.String("master-key")),
		NewSender: func(token string) platform.Sender {
			return platform.NewClient(token, command.String("platform-endpoint"), logger)
		},
		DefaultRoute: defaultRoute(command, logger),
		DryRun:       dryRun,
	}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "replyflow-webhook")
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}

		deps.Tracer = tracer
	}

	janitor := cron.New()

	if _, err := janitor.AddFunc("@every 1m", func() {
		cache.Sweep()

		if memoryLedger != nil {
			memoryLedger.Sweep()
		}

		if memoryLimiter != nil {
			memoryLimiter.Sweep()
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}

	janitor.Start()
	defer janitor.Stop()

	app := web.NewHandlers(logger, ingress.NewController(deps), store).App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(command.Int("port")))
	}()

	logger.InfoContext(ctx, "webhook server started", "port", command.Int("port"), "dry_run", dryRun)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down webhook server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	}
}

func newBus(command *cli.Command, logger *slog.Logger) (*eventbus.WatermillBus, error) {
	switch command.String("event-bus") {
	case "kafka":
		return eventbus.NewKafkaBus(watermill.NewSlogLogger(logger), command.String("kafka-brokers"), "replyflow-webhook")
	case "", "gochannel":
		return eventbus.NewGoChannelBus(watermill.NewSlogLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown event bus type '%s'", command.String("event-bus"))
	}
}

func defaultRoute(command *cli.Command, logger *slog.Logger) *ingress.Route {
	secret := command.String("channel-secret")
	if secret == "" {
		return nil
	}

	return &ingress.Route{
		BotID:         command.String("bot-id"),
		MerchantID:    command.String("merchant-id"),
		ChannelSecret: secret,
		Sender:        platform.NewClient(command.String("channel-access-token"), command.String("platform-endpoint"), logger),
	}
}

// staticGen keeps dry runs offline: branch logic executes against a
// canned completion without touching the provider.
type staticGen struct{}

func (staticGen) Complete(context.Context, generation.Request) (string, error) {
	return "这是一条测试回复。", nil
}

func (staticGen) Sentiment(context.Context, string, string) (string, error) {
	return "neutral", nil
}

func (staticGen) Intent(context.Context, string, string) (string, error) {
	return "question", nil
}

func (staticGen) Language(context.Context, string, string) (string, error) {
	return "zh", nil
}
