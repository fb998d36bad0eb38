package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replyflow/replyflow/pkg/decision"
	"github.com/replyflow/replyflow/pkg/generation"
	"github.com/replyflow/replyflow/pkg/idempotency"
	"github.com/replyflow/replyflow/pkg/ingress"
	"github.com/replyflow/replyflow/pkg/knowledge"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
	"github.com/replyflow/replyflow/pkg/platform"
	"github.com/replyflow/replyflow/pkg/ratelimit"
	"github.com/replyflow/replyflow/pkg/risk"
	"github.com/replyflow/replyflow/pkg/settings"
	"github.com/replyflow/replyflow/pkg/web"
	"github.com/replyflow/replyflow/pkg/workflow"
)

const (
	testSecret   = "channel-secret"
	testMerchant = "m-1"
	testBot      = "bot-1"
	testHookKey  = "hook-key"
)

var masterKey = []byte("0123456789abcdef0123456789abcdef")

type nullSender struct{}

func (nullSender) Reply(context.Context, string, []platform.Message) error { return nil }
func (nullSender) Push(context.Context, string, []platform.Message) error  { return nil }

type nullGen struct{}

func (nullGen) Complete(context.Context, generation.Request) (string, error) {
	return "好的，已经为您处理。", nil
}
func (nullGen) Sentiment(context.Context, string, string) (string, error) { return "neutral", nil }
func (nullGen) Intent(context.Context, string, string) (string, error)    { return "question", nil }
func (nullGen) Language(context.Context, string, string) (string, error)  { return "zh", nil }

type brokenStore struct {
	*persistence.MemoryStore
}

func (brokenStore) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}

func setupApp(t *testing.T, store persistence.Store) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	controller := ingress.NewController(ingress.Deps{
		Logger:    logger,
		Ledger:    idempotency.NewMemoryLedger(),
		Limiter:   ratelimit.NewMemoryLimiter(ratelimit.Config{Window: time.Minute, Limit: 20}),
		Screener:  risk.NewScreener(),
		Guardrail: risk.NewGuardrail(),
		Knowledge: knowledge.NewMemoryIndex(),
		Engine:    decision.NewEngine(decision.DefaultWeights()),
		Generator: nullGen{},
		Settings:  settings.NewCachedProvider(store, nil, logger),
		Store:     store,
		Executor:  workflow.NewExecutor(logger, nullGen{}, store, nil),
		MasterKey: masterKey,
		NewSender: func(string) platform.Sender { return nullSender{} },
		DefaultRoute: &ingress.Route{
			BotID:         testBot,
			MerchantID:    testMerchant,
			ChannelSecret: testSecret,
			Sender:        nullSender{},
		},
	})

	return web.NewHandlers(logger, controller, store).App()
}

func seededStore(t *testing.T) *persistence.MemoryStore {
	t.Helper()

	store := persistence.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveMerchantSettings(ctx, &models.MerchantSettings{
		MerchantID:          testMerchant,
		ConfidenceThreshold: 0.6,
	}))

	secret, err := platform.EncryptCredential(masterKey, testSecret)
	require.NoError(t, err)

	token, err := platform.EncryptCredential(masterKey, "access-token")
	require.NoError(t, err)

	require.NoError(t, store.SaveBotCredentials(ctx, &models.BotCredentials{
		BotID:          testBot,
		MerchantID:     testMerchant,
		WebhookKeyHash: platform.HashWebhookKey(testHookKey),
		ChannelSecret:  secret,
		AccessToken:    token,
	}))

	return store
}

func webhookBody(t *testing.T) []byte {
	t.Helper()

	raw, err := json.Marshal(models.WebhookBatch{
		Destination: testBot,
		Events: []*models.InboundEvent{{
			DeliveryID: "d-1",
			ReplyToken: "rt-1",
			SenderID:   "U-1",
			Text:       "你好",
			Timestamp:  time.Now(),
			Type:       models.EventTypeMessage,
		}},
	})
	require.NoError(t, err)

	return raw
}

func TestWebhook_ValidSignatureReturnsOK(t *testing.T) {
	app := setupApp(t, seededStore(t))

	body := webhookBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", platform.Sign(testSecret, body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}

func TestWebhook_MissingSignatureIsUnauthorized(t *testing.T) {
	app := setupApp(t, seededStore(t))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(webhookBody(t)))

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_MalformedBodyIsBadRequest(t *testing.T) {
	app := setupApp(t, seededStore(t))

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", platform.Sign(testSecret, body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTenantWebhook_ResolvesBotByHashedKey(t *testing.T) {
	app := setupApp(t, seededStore(t))

	body := webhookBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+testBot+"/"+testHookKey, bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", platform.Sign(testSecret, body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTenantWebhook_WrongKeyIsNotFound(t *testing.T) {
	app := setupApp(t, seededStore(t))

	body := webhookBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+testBot+"/wrong-key", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", platform.Sign(testSecret, body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app := setupApp(t, seededStore(t))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("persistence down", func(t *testing.T) {
		app := setupApp(t, brokenStore{seededStore(t)})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
