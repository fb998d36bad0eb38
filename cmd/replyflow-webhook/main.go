// Package main runs the webhook server: the inbound HTTP surface plus
// the full message pipeline behind it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/replyflow/replyflow/pkg/log"
)

const defaultPort = 8080

func main() {
	cmd := &cli.Command{
		Name:                  "replyflow-webhook",
		Usage:                 "Receive chat-platform webhooks and auto-reply to customers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the webhook server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection URL; empty runs on the in-memory store",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for dedupe, rate limiting and the settings cache; empty runs in-process",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Side-effect bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list, required for event-bus=kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key for the text-generation provider",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Override the text-generation API base URL",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "platform-endpoint",
				Usage:   "Override the chat-platform messaging API endpoint",
				Sources: cli.EnvVars("PLATFORM_API_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "merchant-id",
				Usage:   "Merchant served by the single-tenant /webhook endpoint",
				Sources: cli.EnvVars("MERCHANT_ID"),
			},
			&cli.StringFlag{
				Name:    "bot-id",
				Usage:   "Bot id reported for the single-tenant /webhook endpoint",
				Value:   "default",
				Sources: cli.EnvVars("BOT_ID"),
			},
			&cli.StringFlag{
				Name:    "channel-secret",
				Usage:   "Webhook signature secret for the single-tenant /webhook endpoint",
				Sources: cli.EnvVars("CHANNEL_SECRET"),
			},
			&cli.StringFlag{
				Name:    "channel-access-token",
				Usage:   "Messaging API token for the single-tenant /webhook endpoint",
				Sources: cli.EnvVars("CHANNEL_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "master-key",
				Usage:   "16/24/32-byte key that decrypts stored bot credentials on the multi-tenant route",
				Sources: cli.EnvVars("CREDENTIALS_MASTER_KEY"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Run the pipeline without outbound sends or persistence writes",
				Sources: cli.EnvVars("DRY_RUN"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			return run(ctx, command)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.WithModule("webhook").Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
