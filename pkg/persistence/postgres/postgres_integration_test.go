//go:build integration
// +build integration

package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/replyflow/replyflow/pkg/knowledge"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
)

var container *pgcontainer.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if container != nil {
		_ = container.Terminate(context.Background())
	}

	os.Exit(code)
}

func setupStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	ctx := context.Background()

	if container == nil || !container.IsRunning() {
		var err error

		container, err = pgcontainer.Run(ctx,
			"postgres:16-alpine",
			pgcontainer.WithDatabase("replyflow_test"),
			pgcontainer.WithUsername("replyflow"),
			pgcontainer.WithPassword("replyflow"),
			pgcontainer.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewStore(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		for _, table := range []string{"conversation_messages", "knowledge_entries", "contacts", "ingestion_records", "workflows", "merchant_settings", "bots"} {
			_, err := store.DB().ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
			require.NoError(t, err)
		}
	})

	return store, ctx
}

func TestGetOrCreateContact_Idempotent(t *testing.T) {
	store, ctx := setupStore(t)

	first, err := store.GetOrCreateContact(ctx, "U-1", "m-1")
	require.NoError(t, err)

	second, err := store.GetOrCreateContact(ctx, "U-1", "m-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	other, err := store.GetOrCreateContact(ctx, "U-1", "m-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMessages_InsertRecentCount(t *testing.T) {
	store, ctx := setupStore(t)

	contact, err := store.GetOrCreateContact(ctx, "U-1", "m-1")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i, text := range []string{"第一条", "第二条", "第三条"} {
		require.NoError(t, store.InsertMessage(ctx, &models.ConversationMessage{
			ID:        uuid.NewString(),
			ContactID: contact.ID,
			Role:      models.RoleUser,
			Text:      text,
			Status:    models.StatusAIHandled,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	count, err := store.CountMessages(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	recent, err := store.RecentMessages(ctx, contact.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Oldest-first within the returned window.
	assert.Equal(t, "第二条", recent[0].Text)
	assert.Equal(t, "第三条", recent[1].Text)
}

func TestMergeContactTags_SetUnion(t *testing.T) {
	store, ctx := setupStore(t)

	contact, err := store.GetOrCreateContact(ctx, "U-1", "m-1")
	require.NoError(t, err)

	require.NoError(t, store.MergeContactTags(ctx, contact.ID, []string{"vip", "refund"}))
	require.NoError(t, store.MergeContactTags(ctx, contact.ID, []string{"refund", "priority"}))

	reloaded, err := store.GetOrCreateContact(ctx, "U-1", "m-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vip", "refund", "priority"}, reloaded.Tags)
}

func TestIngestionLifecycle(t *testing.T) {
	store, ctx := setupStore(t)

	rec := &models.IngestionRecord{
		ID:         uuid.NewString(),
		BotID:      "bot-1",
		Payload:    []byte(`{"events":[]}`),
		Status:     models.IngestionPending,
		ReceivedAt: time.Now(),
	}
	require.NoError(t, store.SaveIngestion(ctx, rec))
	require.NoError(t, store.UpdateIngestionStatus(ctx, rec.ID, models.IngestionProcessed))

	err := store.UpdateIngestionStatus(ctx, uuid.NewString(), models.IngestionFailed)
	assert.ErrorIs(t, err, persistence.ErrIngestionNotFound)
}

func TestWorkflowDefinitionRoundTrip(t *testing.T) {
	store, ctx := setupStore(t)

	wf := &models.WorkflowGraph{
		ID: uuid.NewString(), MerchantID: "m-1", Name: "refund helper", Active: true,
		Nodes: []*models.WorkflowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Data: map[string]any{"sub_type": "keywords", "keywords": []any{"退款"}}},
			{ID: "a1", Type: models.NodeTypeAction, Data: map[string]any{"sub_type": "send_message", "message": "收到"}},
		},
		Edges:     []*models.WorkflowEdge{{ID: "e-1", Source: "t1", Target: "a1"}},
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.SaveWorkflow(ctx, wf))

	loaded, err := store.ActiveWorkflows(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, wf.Name, loaded[0].Name)
	require.Len(t, loaded[0].Nodes, 2)
	assert.Equal(t, models.NodeTypeTrigger, loaded[0].Nodes[0].Type)
}

func TestSettingsAndCredentials(t *testing.T) {
	store, ctx := setupStore(t)

	_, err := store.MerchantSettings(ctx, "m-missing")
	assert.ErrorIs(t, err, persistence.ErrSettingsNotFound)

	require.NoError(t, store.SaveMerchantSettings(ctx, &models.MerchantSettings{
		MerchantID:          "m-1",
		ConfidenceThreshold: 0.7,
		SensitiveWords:      []string{"代理"},
	}))

	cfg, err := store.MerchantSettings(ctx, "m-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, []string{"代理"}, cfg.SensitiveWords)

	_, err = store.BotCredentials(ctx, "bot-missing")
	assert.ErrorIs(t, err, persistence.ErrBotNotFound)

	require.NoError(t, store.SaveBotCredentials(ctx, &models.BotCredentials{
		BotID:          "bot-1",
		MerchantID:     "m-1",
		WebhookKeyHash: "hash",
		ChannelSecret:  []byte("sealed-secret"),
		AccessToken:    []byte("sealed-token"),
	}))

	creds, err := store.BotCredentials(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", creds.MerchantID)
}

func TestPostgresKnowledgeIndex(t *testing.T) {
	store, ctx := setupStore(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	index := knowledge.NewPostgresIndex(store.DB(), logger)

	for _, entry := range []struct{ id, title, content string }{
		{"k-1", "运费说明", "本店运费规则：满99元包邮，不满收取10元运费。"},
		{"k-2", "退货流程", "七天无理由退货，请先联系客服。"},
		{"k-3", "发票说明", "支持开具电子发票。"},
	} {
		_, err := store.DB().ExecContext(ctx, `
			INSERT INTO knowledge_entries (id, merchant_id, title, category, content)
			VALUES ($1, $2, $3, $4, $5)`,
			entry.id, "m-1", entry.title, "faq", entry.content)
		require.NoError(t, err)
	}

	result, err := index.Search(ctx, "m-1", "运费怎么算", 3, 2000)
	require.NoError(t, err)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "运费说明", result.Sources[0].Title)
	assert.Contains(t, result.Text, "运费规则")

	empty, err := index.Search(ctx, "m-2", "运费", 3, 2000)
	require.NoError(t, err)
	assert.Empty(t, empty.Sources)
}
