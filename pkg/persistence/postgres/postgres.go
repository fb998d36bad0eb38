// Package postgres provides the PostgreSQL Store implementation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
)

// Store implements persistence.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:     database,
		logger: logger.With("module", "postgres_store"),
	}

	migrationManager := NewMigrationManager(store.logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// DB exposes the underlying handle for collaborators that share the
// connection pool, e.g. the knowledge index.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.ConversationMessage) error {
	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages
			(id, contact_id, role, text, status, resolved_by, confidence, ab_test_id, ab_variant, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, msg.ContactID, msg.Role, msg.Text, msg.Status,
		nullString(msg.ResolvedBy), msg.Confidence,
		nullString(msg.ABTestID), nullString(msg.ABVariant), createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert message for contact %s: %w", msg.ContactID, err)
	}

	return nil
}

func (s *Store) RecentMessages(ctx context.Context, contactID string, limit int) ([]*models.ConversationMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_id, role, text, status, COALESCE(resolved_by, ''), confidence,
		       COALESCE(ab_test_id, ''), COALESCE(ab_variant, ''), created_at
		FROM conversation_messages
		WHERE contact_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for contact %s: %w", contactID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var messages []*models.ConversationMessage

	for rows.Next() {
		var msg models.ConversationMessage

		err := rows.Scan(&msg.ID, &msg.ContactID, &msg.Role, &msg.Text, &msg.Status,
			&msg.ResolvedBy, &msg.Confidence, &msg.ABTestID, &msg.ABVariant, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	// Oldest first, matching the order generation prompts expect.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *Store) CountMessages(ctx context.Context, contactID string) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_messages WHERE contact_id = $1`, contactID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for contact %s: %w", contactID, err)
	}

	return count, nil
}

func (s *Store) GetOrCreateContact(ctx context.Context, senderID, merchantID string) (*models.Contact, error) {
	contact := &models.Contact{}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, sender_id, merchant_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (sender_id, merchant_id) DO UPDATE SET sender_id = EXCLUDED.sender_id
		RETURNING id, sender_id, merchant_id, COALESCE(display_name, ''), tags, created_at`,
		uuid.New().String(), senderID, merchantID).
		Scan(&contact.ID, &contact.SenderID, &contact.MerchantID,
			&contact.DisplayName, pq.Array(&contact.Tags), &contact.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create contact %s: %w", senderID, err)
	}

	return contact, nil
}

func (s *Store) MergeContactTags(ctx context.Context, contactID string, tags []string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET tags = (
			SELECT ARRAY(SELECT DISTINCT unnest(tags || $2::text[]))
		)
		WHERE id = $1`, contactID, pq.Array(tags))
	if err != nil {
		return fmt.Errorf("failed to merge tags for contact %s: %w", contactID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check tag merge result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrContactNotFound
	}

	return nil
}

func (s *Store) SaveIngestion(ctx context.Context, rec *models.IngestionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_records (id, bot_id, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.BotID, rec.Payload, rec.Status, receivedAt)
	if err != nil {
		return fmt.Errorf("failed to save ingestion record: %w", err)
	}

	return nil
}

func (s *Store) UpdateIngestionStatus(ctx context.Context, id string, status models.IngestionStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_records SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update ingestion record %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ingestion update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrIngestionNotFound
	}

	return nil
}

func (s *Store) ActiveWorkflows(ctx context.Context, merchantID string) ([]*models.WorkflowGraph, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_id, name, active, definition, updated_at
		FROM workflows
		WHERE merchant_id = $1 AND active`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows for merchant %s: %w", merchantID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var workflows []*models.WorkflowGraph

	for rows.Next() {
		var (
			wf         models.WorkflowGraph
			definition []byte
		)

		err := rows.Scan(&wf.ID, &wf.MerchantID, &wf.Name, &wf.Active, &definition, &wf.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}

		var body struct {
			Nodes []*models.WorkflowNode `json:"nodes"`
			Edges []*models.WorkflowEdge `json:"edges"`
		}

		if err := json.Unmarshal(definition, &body); err != nil {
			return nil, fmt.Errorf("failed to decode workflow %s definition: %w", wf.ID, err)
		}

		wf.Nodes = body.Nodes
		wf.Edges = body.Edges
		workflows = append(workflows, &wf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow rows: %w", err)
	}

	return workflows, nil
}

// SaveWorkflow upserts a graph definition. The dashboard owns editing;
// the pipeline only reads, so this mainly serves seeding and tests.
func (s *Store) SaveWorkflow(ctx context.Context, wf *models.WorkflowGraph) error {
	definition, err := json.Marshal(struct {
		Nodes []*models.WorkflowNode `json:"nodes"`
		Edges []*models.WorkflowEdge `json:"edges"`
	}{Nodes: wf.Nodes, Edges: wf.Edges})
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s definition: %w", wf.ID, err)
	}

	updatedAt := wf.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, merchant_id, name, active, definition, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at`,
		wf.ID, wf.MerchantID, wf.Name, wf.Active, definition, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", wf.ID, err)
	}

	return nil
}

// SaveMerchantSettings upserts the merchant configuration blob.
func (s *Store) SaveMerchantSettings(ctx context.Context, cfg *models.MerchantSettings) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings for merchant %s: %w", cfg.MerchantID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merchant_settings (merchant_id, settings)
		VALUES ($1, $2)
		ON CONFLICT (merchant_id) DO UPDATE SET settings = EXCLUDED.settings`,
		cfg.MerchantID, payload)
	if err != nil {
		return fmt.Errorf("failed to save settings for merchant %s: %w", cfg.MerchantID, err)
	}

	return nil
}

// SaveBotCredentials upserts the sealed per-bot channel credentials.
func (s *Store) SaveBotCredentials(ctx context.Context, bot *models.BotCredentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bots (bot_id, merchant_id, webhook_key_hash, channel_secret, access_token)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bot_id) DO UPDATE SET
			merchant_id = EXCLUDED.merchant_id,
			webhook_key_hash = EXCLUDED.webhook_key_hash,
			channel_secret = EXCLUDED.channel_secret,
			access_token = EXCLUDED.access_token`,
		bot.BotID, bot.MerchantID, bot.WebhookKeyHash, bot.ChannelSecret, bot.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to save bot %s: %w", bot.BotID, err)
	}

	return nil
}

func (s *Store) MerchantSettings(ctx context.Context, merchantID string) (*models.MerchantSettings, error) {
	var payload []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT settings FROM merchant_settings WHERE merchant_id = $1`, merchantID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrSettingsNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query settings for merchant %s: %w", merchantID, err)
	}

	settings := &models.MerchantSettings{MerchantID: merchantID}
	if err := json.Unmarshal(payload, settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for merchant %s: %w", merchantID, err)
	}

	settings.MerchantID = merchantID

	return settings, nil
}

func (s *Store) BotCredentials(ctx context.Context, botID string) (*models.BotCredentials, error) {
	bot := &models.BotCredentials{}

	err := s.db.QueryRowContext(ctx, `
		SELECT bot_id, merchant_id, webhook_key_hash, channel_secret, access_token
		FROM bots WHERE bot_id = $1`, botID).
		Scan(&bot.BotID, &bot.MerchantID, &bot.WebhookKeyHash, &bot.ChannelSecret, &bot.AccessToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrBotNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query bot %s: %w", botID, err)
	}

	return bot, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}

	return v
}
