package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

const userColumns = `id, username, email, name, company_id, company_name, sector_id, sector_name,
		role, level, active, force_first_access, credential_version, password_hash, password_salt,
		password_changed_at, secret_question, secret_answer_hash, secret_answer_salt,
		legacy_password, fast_path_password, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		changedAt  sql.NullTime
		question   string
		answerHash string
		answerSalt string
		legacy     sql.NullString
		fastPath   sql.NullString
	)

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.CompanyID, &u.CompanyName,
		&u.SectorID, &u.SectorName, &u.Role, &u.Level, &u.Active, &u.ForceFirstAccess,
		&u.Credential.Version, &u.Credential.Hash, &u.Credential.Salt, &changedAt,
		&question, &answerHash, &answerSalt, &legacy, &fastPath, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if changedAt.Valid {
		u.Credential.LastChangedAt = changedAt.Time
	}
	if question != "" || answerHash != "" {
		u.Challenge = &models.SecretChallenge{Question: question, AnswerHash: answerHash, AnswerSalt: answerSalt}
	}
	if legacy.Valid {
		u.LegacyPlaintext = &legacy.String
	}
	if fastPath.Valid {
		u.FastPathSecret = &fastPath.String
	}
	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, name, company_id, sector_id, role, level, active,
			force_first_access, credential_version, password_hash, password_salt, password_changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.Name, user.CompanyID, user.SectorID, user.Role, user.Level,
		user.Active, user.ForceFirstAccess, user.Credential.Version, user.Credential.Hash,
		user.Credential.Salt, user.Credential.LastChangedAt).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByUsername expects an already normalized username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update writes only the fields set in patch. Columns are assigned in a
// fixed order so the generated statement is stable.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.UserPatch) error {
	if patch.Empty() {
		return nil
	}

	b := sq.Update("users").PlaceholderFormat(sq.Dollar)

	if c := patch.Credential; c != nil {
		b = b.Set("credential_version", c.Version).
			Set("password_hash", c.Hash).
			Set("password_salt", c.Salt).
			Set("password_changed_at", c.LastChangedAt)
	}
	if c := patch.Challenge; c != nil {
		b = b.Set("secret_question", c.Question).
			Set("secret_answer_hash", c.AnswerHash).
			Set("secret_answer_salt", c.AnswerSalt)
	}
	if patch.ForceFirstAccess != nil {
		b = b.Set("force_first_access", *patch.ForceFirstAccess)
	}
	if patch.ClearLegacyPlaintext {
		b = b.Set("legacy_password", nil)
	}
	switch {
	case patch.ClearFastPath:
		b = b.Set("fast_path_password", nil)
	case patch.FastPathSecret != nil:
		b = b.Set("fast_path_password", *patch.FastPathSecret)
	}

	query, args, err := b.Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
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
