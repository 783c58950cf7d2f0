package documents

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// PostgresCollection stores one named collection in the secure_documents
// table.
type PostgresCollection struct {
	db   dbx.DBTX
	name string
}

func NewPostgresCollection(db dbx.DBTX, name string) *PostgresCollection {
	return &PostgresCollection{db: db, name: name}
}

func (c *PostgresCollection) Put(ctx context.Context, doc models.SecureDocument) error {
	query := `
		INSERT INTO secure_documents (collection, id, content, salt, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id) DO UPDATE
		SET content = EXCLUDED.content, salt = EXCLUDED.salt, created_at = EXCLUDED.created_at
	`
	_, err := c.db.ExecContext(ctx, query, c.name, doc.ID, doc.Envelope.Content, doc.Envelope.Salt,
		doc.Envelope.CreatedAtEpochMillis)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (c *PostgresCollection) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM secure_documents WHERE collection = $1 AND id = $2`, c.name, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (c *PostgresCollection) List(ctx context.Context) ([]models.SecureDocument, error) {
	query := `
		SELECT id, content, salt, created_at FROM secure_documents
		WHERE collection = $1
		ORDER BY created_at, id
	`
	rows, err := c.db.QueryContext(ctx, query, c.name)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SecureDocument
	for rows.Next() {
		var d models.SecureDocument
		if err := rows.Scan(&d.ID, &d.Envelope.Content, &d.Envelope.Salt, &d.Envelope.CreatedAtEpochMillis); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
