package resetcodes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issued  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expires = issued.Add(24 * time.Hour)
	columns = []string{"id", "code", "target_email", "issued_by", "issued_at", "expires_at", "used",
		"used_at", "used_by", "company_id", "sector_id", "user_level"}
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	email := "ana@example.com"
	c := &models.ResetCode{
		ID: "id-1", Code: "ABC-DEF-123", TargetEmail: &email, IssuedBy: "admin-1",
		IssuedAt: issued, ExpiresAt: expires, UserLevel: "usuario",
	}

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+reset_codes.*VALUES\s*\(\$1,.*\$10\)`).
		WithArgs("id-1", "ABC-DEF-123", "ana@example.com", "admin-1", issued, expires, false, nil, nil, "usuario").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+reset_codes`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.ResetCode{ID: "id-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestFindByCode(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).AddRow("id-1", "ABC-DEF-123", nil, "admin-1", issued, expires,
		true, issued, "ana@example.com", "c1", nil, "usuario")
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*code,.*FROM\s+reset_codes\s+WHERE\s+code\s*=\s*\$1\s+ORDER\s+BY\s+issued_at\s+DESC\s+LIMIT\s+1$`).
		WithArgs("ABC-DEF-123").
		WillReturnRows(rows)

	c, err := repo.FindByCode(context.Background(), "ABC-DEF-123")
	require.NoError(t, err)

	assert.Nil(t, c.TargetEmail)
	assert.True(t, c.Used)
	require.NotNil(t, c.UsedAt)
	assert.Equal(t, issued, *c.UsedAt)
	require.NotNil(t, c.UsedBy)
	assert.Equal(t, "ana@example.com", *c.UsedBy)
	require.NotNil(t, c.CompanyID)
	assert.Nil(t, c.SectorID)
}

func TestFindByCode_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+reset_codes\s+WHERE\s+code`).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCode(context.Background(), "XXX-XXX-XXX")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkUsed_Wins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+reset_codes\s+SET\s+used\s*=\s*TRUE.*WHERE\s+id\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE`).
		WithArgs("id-1", issued, "ana@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkUsed(context.Background(), "id-1", "ana@example.com", issued))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkUsed_AlreadyUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+reset_codes`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT\s+used\s+FROM\s+reset_codes\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"used"}).AddRow(true))

	err := repo.MarkUsed(context.Background(), "id-1", "x@example.com", issued)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestMarkUsed_Missing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+reset_codes`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT\s+used\s+FROM\s+reset_codes`).WillReturnError(sql.ErrNoRows)

	err := repo.MarkUsed(context.Background(), "id-404", "x@example.com", issued)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListUnused(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("id-2", "BBB-BBB-BBB", nil, "admin", issued.Add(time.Hour), expires, false, nil, nil, nil, nil, "usuario").
		AddRow("id-1", "AAA-AAA-AAA", nil, "admin", issued, expires, false, nil, nil, nil, nil, "admin")
	mock.ExpectQuery(`(?s)FROM\s+reset_codes\s+WHERE\s+used\s*=\s*FALSE\s+ORDER\s+BY\s+issued_at\s+DESC`).
		WillReturnRows(rows)

	got, err := repo.ListUnused(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id-2", got[0].ID)
	assert.Nil(t, got[1].UsedAt)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+reset_codes\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+reset_codes\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "id-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "id-1"), common.ErrorNotFound)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+reset_codes\s+WHERE\s+expires_at\s*<\s*\$1`).
		WithArgs(issued).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), issued)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
