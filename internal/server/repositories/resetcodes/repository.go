// Package resetcodes stores admin-issued one-time reset codes.
package resetcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository persists reset codes. MarkUsed is a compare-and-swap on the
// used flag: it returns common.ErrConflict when the code was already
// consumed and common.ErrorNotFound when it does not exist.
type Repository interface {
	Create(ctx context.Context, code *models.ResetCode) error
	FindByCode(ctx context.Context, code string) (*models.ResetCode, error)
	MarkUsed(ctx context.Context, id, usedBy string, usedAt time.Time) error
	ListUnused(ctx context.Context) ([]*models.ResetCode, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
