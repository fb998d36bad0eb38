package postgres

// migrations returns the ordered schema statements applied on startup.
func migrations() map[int]string {
	return map[int]string{
		1: `
		CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY,
			sender_id TEXT NOT NULL,
			merchant_id TEXT NOT NULL,
			display_name TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (sender_id, merchant_id)
		);

		CREATE TABLE IF NOT EXISTS conversation_messages (
			id UUID PRIMARY KEY,
			contact_id UUID NOT NULL REFERENCES contacts(id),
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ai_handled',
			resolved_by TEXT,
			confidence DOUBLE PRECISION,
			ab_test_id TEXT,
			ab_variant TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_messages_contact_created
			ON conversation_messages (contact_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS ingestion_records (
			id UUID PRIMARY KEY,
			bot_id TEXT NOT NULL,
			payload BYTEA NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			received_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS workflows (
			id UUID PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			definition JSONB NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_workflows_merchant_active
			ON workflows (merchant_id) WHERE active;

		CREATE TABLE IF NOT EXISTS merchant_settings (
			merchant_id TEXT PRIMARY KEY,
			settings JSONB NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS bots (
			bot_id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			webhook_key_hash TEXT NOT NULL,
			channel_secret BYTEA NOT NULL,
			access_token BYTEA NOT NULL
		);
		`,
		2: `
		CREATE TABLE IF NOT EXISTS knowledge_entries (
			id UUID PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			title TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'general',
			content TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_knowledge_merchant
			ON knowledge_entries (merchant_id);
		`,
	}
}
