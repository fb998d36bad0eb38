package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
)

// PostgresIndex ranks knowledge_entries rows by keyword overlap. It
// shares the connection pool of the Postgres store.
type PostgresIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresIndex(db *sql.DB, logger *slog.Logger) *PostgresIndex {
	return &PostgresIndex{
		db:     db,
		logger: logger.With("module", "knowledge_index"),
	}
}

func (i *PostgresIndex) Search(ctx context.Context, merchantID, query string, limit, maxChars int) (*Result, error) {
	if limit <= 0 {
		limit = 3
	}

	if maxChars <= 0 {
		maxChars = 2000
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return &Result{}, nil
	}

	// Score = number of query terms appearing in title or content.
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, title, category, content,
		       (SELECT COUNT(*) FROM unnest($2::text[]) AS term
		        WHERE title ILIKE '%' || term || '%'
		           OR content ILIKE '%' || term || '%') AS score
		FROM knowledge_entries
		WHERE merchant_id = $1
		ORDER BY score DESC
		LIMIT $3`,
		merchantID, termArray(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge for merchant %s: %w", merchantID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	result := &Result{}

	var b strings.Builder

	for rows.Next() {
		var (
			source  Source
			content string
			score   int
		)

		if err := rows.Scan(&source.ID, &source.Title, &source.Category, &content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge row: %w", err)
		}

		if score == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}

		remaining := maxChars - b.Len()
		if remaining <= 0 {
			break
		}

		b.WriteString(truncate(content, remaining))
		result.Sources = append(result.Sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge rows: %w", err)
	}

	result.Text = b.String()

	return result, nil
}

func termArray(terms []string) any {
	return pq.Array(terms)
}
