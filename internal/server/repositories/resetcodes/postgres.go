package resetcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

const codeColumns = `id, code, target_email, issued_by, issued_at, expires_at, used, used_at, used_by,
		company_id, sector_id, user_level`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func scanCode(row rowScanner) (*models.ResetCode, error) {
	var c models.ResetCode
	var target, usedBy, companyID, sectorID sql.NullString
	var usedAt sql.NullTime

	err := row.Scan(&c.ID, &c.Code, &target, &c.IssuedBy, &c.IssuedAt, &c.ExpiresAt, &c.Used,
		&usedAt, &usedBy, &companyID, &sectorID, &c.UserLevel)
	if err != nil {
		return nil, err
	}
	c.TargetEmail = nullable(target)
	c.UsedBy = nullable(usedBy)
	c.CompanyID = nullable(companyID)
	c.SectorID = nullable(sectorID)
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	return &c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, code *models.ResetCode) error {
	query := `
		INSERT INTO reset_codes (id, code, target_email, issued_by, issued_at, expires_at, used,
			company_id, sector_id, user_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query, code.ID, code.Code, code.TargetEmail, code.IssuedBy,
		code.IssuedAt, code.ExpiresAt, code.Used, code.CompanyID, code.SectorID, code.UserLevel)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByCode returns the most recently issued record carrying code.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*models.ResetCode, error) {
	query := `SELECT ` + codeColumns + ` FROM reset_codes WHERE code = $1 ORDER BY issued_at DESC LIMIT 1`

	c, err := scanCode(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id, usedBy string, usedAt time.Time) error {
	query := `
		UPDATE reset_codes SET used = TRUE, used_at = $2, used_by = $3
		WHERE id = $1 AND used = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, usedAt, usedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var used bool
	err = r.db.QueryRowContext(ctx, `SELECT used FROM reset_codes WHERE id = $1`, id).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return common.ErrConflict
}

func (r *PostgresRepository) ListUnused(ctx context.Context) ([]*models.ResetCode, error) {
	query := `SELECT ` + codeColumns + ` FROM reset_codes WHERE used = FALSE ORDER BY issued_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ResetCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_codes WHERE id = $1`, id)
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

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
