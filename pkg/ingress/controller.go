// Package ingress orchestrates the message pipeline: signature gate,
// audit persistence, per-event dedupe, rate limiting, risk screening,
// workflow attempt, knowledge lookup, decision engine and outbound
// dispatch. It owns the guarantee that one inbound event produces at
// most one externally visible side effect across redeliveries.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/replyflow/replyflow/pkg/decision"
	"github.com/replyflow/replyflow/pkg/generation"
	"github.com/replyflow/replyflow/pkg/idempotency"
	"github.com/replyflow/replyflow/pkg/knowledge"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
	"github.com/replyflow/replyflow/pkg/platform"
	"github.com/replyflow/replyflow/pkg/ratelimit"
	"github.com/replyflow/replyflow/pkg/risk"
	"github.com/replyflow/replyflow/pkg/settings"
	"github.com/replyflow/replyflow/pkg/workflow"
)

// Route is the resolved owner of one inbound webhook request.
type Route struct {
	BotID         string
	MerchantID    string
	ChannelSecret string
	Sender        platform.Sender
}

// Deps wires the controller. Logger, Ledger, Limiter, Screener,
// Guardrail, Knowledge, Engine, Generator, Settings, Store and Executor
// are required; the rest are optional.
type Deps struct {
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Ledger    idempotency.Ledger
	Limiter   ratelimit.Limiter
	Screener  *risk.Screener
	Guardrail *risk.Guardrail
	Knowledge knowledge.Index
	Engine    *decision.Engine
	Generator generation.Client
	Settings  settings.Provider
	Store     persistence.Store
	Executor  *workflow.Executor
	Bus       workflow.Publisher

	// MasterKey decrypts stored bot credentials on the multi-tenant
	// route.
	MasterKey []byte

	// NewSender builds a per-bot outbound client from a decrypted
	// access token.
	NewSender func(accessToken string) platform.Sender

	// DefaultRoute serves the single-tenant /webhook endpoint.
	DefaultRoute *Route

	// Now is injectable for business-hours tests.
	Now func() time.Time

	// DryRun skips outbound sends and persistence writes while branch
	// logic still runs.
	DryRun bool

	LedgerTTL time.Duration
}

type Controller struct {
	deps Deps
}

func NewController(deps Deps) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	if deps.LedgerTTL <= 0 {
		deps.LedgerTTL = idempotency.DefaultTTL
	}

	deps.Logger = deps.Logger.With("module", "ingress")

	return &Controller{deps: deps}
}

// DefaultRoute returns the single-tenant route, or nil when the process
// runs multi-tenant only.
func (c *Controller) DefaultRoute() *Route {
	return c.deps.DefaultRoute
}

// ResolveRoute loads and verifies the multi-tenant route for
// /webhook/:botID/:webhookKey. The webhook key is compared by hash
// before any credential is decrypted.
func (c *Controller) ResolveRoute(ctx context.Context, botID, webhookKey string) (*Route, error) {
	creds, err := c.deps.Store.BotCredentials(ctx, botID)
	if err != nil {
		if persistence.IsBotNotFound(err) {
			return nil, ErrRouteNotFound
		}

		return nil, fmt.Errorf("failed to load bot credentials: %w", err)
	}

	if !platform.VerifyWebhookKey(webhookKey, creds.WebhookKeyHash) {
		return nil, ErrRouteNotFound
	}

	secret, err := platform.DecryptCredential(c.deps.MasterKey, creds.ChannelSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt channel secret: %w", err)
	}

	token, err := platform.DecryptCredential(c.deps.MasterKey, creds.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	return &Route{
		BotID:         creds.BotID,
		MerchantID:    creds.MerchantID,
		ChannelSecret: secret,
		Sender:        c.deps.NewSender(token),
	}, nil
}

// HandleWebhook processes one webhook request. The signature is
// verified over the raw bytes before anything else; the raw payload is
// audit-persisted before per-event work; each event then runs on its
// own goroutine with an independent outcome. Per-event failures do not
// surface as request errors.
func (c *Controller) HandleWebhook(ctx context.Context, raw []byte, signature string, route *Route) error {
	if !platform.VerifySignature(route.ChannelSecret, raw, signature) {
		return ErrInvalidSignature
	}

	var batch models.WebhookBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	record := &models.IngestionRecord{
		ID:         uuid.NewString(),
		BotID:      route.BotID,
		Payload:    raw,
		Status:     models.IngestionPending,
		ReceivedAt: c.deps.Now().UTC(),
	}
	if err := c.deps.Store.SaveIngestion(ctx, record); err != nil {
		return fmt.Errorf("failed to persist ingestion record: %w", err)
	}

	cfg, err := c.deps.Settings.Get(ctx, route.MerchantID)
	if persistence.IsSettingsNotFound(err) {
		// A merchant that has not configured anything yet still gets the
		// pipeline with its built-in defaults. A hard error here would
		// turn every delivery into a redelivery.
		c.deps.Logger.InfoContext(ctx, "merchant has no stored settings, using defaults",
			"merchant_id", route.MerchantID)

		cfg = &models.MerchantSettings{MerchantID: route.MerchantID}
	} else if err != nil {
		return fmt.Errorf("failed to load merchant settings: %w", err)
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)

	for _, event := range batch.Events {
		wg.Add(1)

		go func(event *models.InboundEvent) {
			defer wg.Done()

			if err := c.handleEvent(ctx, route, cfg, event); err != nil {
				failed.Add(1)
			}
		}(event)
	}

	wg.Wait()

	status := models.IngestionProcessed
	if failed.Load() > 0 {
		status = models.IngestionFailed
	}

	if err := c.deps.Store.UpdateIngestionStatus(ctx, record.ID, status); err != nil {
		c.deps.Logger.ErrorContext(ctx, "failed to update ingestion status",
			"ingestion_id", record.ID, "error", err)
	}

	return nil
}
