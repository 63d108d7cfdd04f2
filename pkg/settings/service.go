package settings

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/uptrace/bun"
)

// Well-known keys. The namespace is open: callers may store any key.
const (
	KeyAutoLockMinutes = "lock.auto_lock_minutes"
	KeyPasscodeHash    = "lock.passcode_hash"
	KeyFailedAttempts  = "lock.failed_attempts"
	KeyLockedUntil     = "lock.locked_until"
)

type Service struct {
	db bun.IDB
}

func NewService(db bun.IDB) *Service {
	return &Service{db: db}
}

// Get returns the value stored under key, or nil when nothing is stored.
func (svc *Service) Get(ctx context.Context, key string) (*string, error) {
	setting := &models.Setting{}
	err := svc.db.NewSelect().
		Model(setting).
		Where("st.key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return &setting.Value, nil
}

// Put stores value under key, replacing any previous value.
func (svc *Service) Put(ctx context.Context, key, value string) error {
	now := time.Now()
	setting := &models.Setting{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		Value:     value,
	}

	_, err := svc.db.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return errors.WithStack(err)
}

// Delete removes key. Removing a key that isn't set is not an error.
func (svc *Service) Delete(ctx context.Context, key string) error {
	_, err := svc.db.NewDelete().
		Model((*models.Setting)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	return errors.WithStack(err)
}

// GetInt reads an integer setting, returning fallback when it's unset or
// unparsable.
func (svc *Service) GetInt(ctx context.Context, key string, fallback int) (int, error) {
	v, err := svc.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return fallback, nil
	}
	n, err := strconv.Atoi(*v)
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

func (svc *Service) PutInt(ctx context.Context, key string, value int) error {
	return svc.Put(ctx, key, strconv.Itoa(value))
}
