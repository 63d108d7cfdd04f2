// Package lock is the library's screen lock. Locking hides the library
// behind a passcode but keeps everything loaded; nothing is evicted.
package lock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/settings"
	"golang.org/x/crypto/bcrypt"
)

const minPasscodeLength = 4

type Service struct {
	settings    *settings.Service
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time

	mu           sync.Mutex
	locked       bool
	lastActivity time.Time
}

func NewService(s *settings.Service, maxAttempts int, lockout time.Duration) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		settings:     s,
		maxAttempts:  maxAttempts,
		lockout:      lockout,
		now:          time.Now,
		lastActivity: time.Now(),
	}
}

// Status is the lock state shown to the user.
type Status struct {
	Locked          bool       `json:"locked"`
	HasPasscode     bool       `json:"has_passcode"`
	AutoLockMinutes int        `json:"auto_lock_minutes"`
	FailedAttempts  int        `json:"failed_attempts"`
	LockedOutUntil  *time.Time `json:"locked_out_until,omitempty"`
}

// Init starts the library locked when a passcode is set.
func (svc *Service) Init(ctx context.Context) error {
	has, err := svc.HasPasscode(ctx)
	if err != nil {
		return err
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.locked = has
	svc.lastActivity = svc.now()
	return nil
}

func (svc *Service) HasPasscode(ctx context.Context) (bool, error) {
	hash, err := svc.settings.Get(ctx, settings.KeyPasscodeHash)
	if err != nil {
		return false, err
	}
	return hash != nil && *hash != "", nil
}

// SetPasscode replaces the passcode. When one is already set, current must
// match it. An empty passcode removes the lock entirely.
func (svc *Service) SetPasscode(ctx context.Context, current, passcode string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	hash, err := svc.settings.Get(ctx, settings.KeyPasscodeHash)
	if err != nil {
		return err
	}
	if hash != nil && *hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(current)); err != nil {
			return errors.WithStack(errcodes.InvalidPasscode())
		}
	}

	if passcode == "" {
		svc.locked = false
		return svc.settings.Delete(ctx, settings.KeyPasscodeHash)
	}
	if len(passcode) < minPasscodeLength {
		return errcodes.ValidationError("The passcode must be at least " + strconv.Itoa(minPasscodeLength) + " characters.")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return errors.WithStack(err)
	}
	return svc.settings.Put(ctx, settings.KeyPasscodeHash, string(newHash))
}

// Lock locks the library now. It needs a passcode to unlock with.
func (svc *Service) Lock(ctx context.Context) error {
	has, err := svc.HasPasscode(ctx)
	if err != nil {
		return err
	}
	if !has {
		return errcodes.ValidationError("Set a passcode before locking the library.")
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.locked = true
	return nil
}

// Unlock checks passcode. After too many wrong passcodes in a row, every
// attempt is refused until the lockout expires.
func (svc *Service) Unlock(ctx context.Context, passcode string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	log := logger.FromContext(ctx)

	now := svc.now()
	until, err := svc.settings.GetInt(ctx, settings.KeyLockedUntil, 0)
	if err != nil {
		return err
	}
	if until > 0 && now.UnixMilli() < int64(until) {
		return errors.WithStack(errcodes.TooManyAttempts())
	}

	hash, err := svc.settings.Get(ctx, settings.KeyPasscodeHash)
	if err != nil {
		return err
	}
	if hash == nil || *hash == "" {
		svc.locked = false
		svc.lastActivity = now
		return nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(passcode)); err != nil {
		attempts, err := svc.settings.GetInt(ctx, settings.KeyFailedAttempts, 0)
		if err != nil {
			return err
		}
		attempts++
		if attempts >= svc.maxAttempts {
			log.Warn("too many failed unlock attempts", logger.Data{"attempts": attempts})
			if err := svc.settings.PutInt(ctx, settings.KeyFailedAttempts, 0); err != nil {
				return err
			}
			if err := svc.settings.Put(ctx, settings.KeyLockedUntil, strconv.FormatInt(now.Add(svc.lockout).UnixMilli(), 10)); err != nil {
				return err
			}
			return errors.WithStack(errcodes.TooManyAttempts())
		}
		if err := svc.settings.PutInt(ctx, settings.KeyFailedAttempts, attempts); err != nil {
			return err
		}
		return errors.WithStack(errcodes.InvalidPasscode())
	}

	if err := svc.settings.PutInt(ctx, settings.KeyFailedAttempts, 0); err != nil {
		return err
	}
	if err := svc.settings.Delete(ctx, settings.KeyLockedUntil); err != nil {
		return err
	}
	svc.locked = false
	svc.lastActivity = now
	return nil
}

// IsLocked reports whether the library is locked, locking it first when it
// has been idle longer than the auto-lock setting.
func (svc *Service) IsLocked(ctx context.Context) (bool, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.locked {
		return true, nil
	}

	minutes, err := svc.settings.GetInt(ctx, settings.KeyAutoLockMinutes, 0)
	if err != nil {
		return false, err
	}
	if minutes <= 0 {
		return false, nil
	}
	if svc.now().Sub(svc.lastActivity) < time.Duration(minutes)*time.Minute {
		return false, nil
	}

	hash, err := svc.settings.Get(ctx, settings.KeyPasscodeHash)
	if err != nil {
		return false, err
	}
	if hash == nil || *hash == "" {
		return false, nil
	}
	logger.FromContext(ctx).Info("auto-locking idle library", logger.Data{"idle_minutes": minutes})
	svc.locked = true
	return true, nil
}

// Touch records activity for the auto-lock timer.
func (svc *Service) Touch() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.lastActivity = svc.now()
}

func (svc *Service) SetAutoLockMinutes(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return errcodes.ValidationError("Auto-lock minutes can't be negative.")
	}
	return svc.settings.PutInt(ctx, settings.KeyAutoLockMinutes, minutes)
}

func (svc *Service) Status(ctx context.Context) (*Status, error) {
	locked, err := svc.IsLocked(ctx)
	if err != nil {
		return nil, err
	}
	has, err := svc.HasPasscode(ctx)
	if err != nil {
		return nil, err
	}
	minutes, err := svc.settings.GetInt(ctx, settings.KeyAutoLockMinutes, 0)
	if err != nil {
		return nil, err
	}
	attempts, err := svc.settings.GetInt(ctx, settings.KeyFailedAttempts, 0)
	if err != nil {
		return nil, err
	}
	until, err := svc.settings.GetInt(ctx, settings.KeyLockedUntil, 0)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Locked:          locked,
		HasPasscode:     has,
		AutoLockMinutes: minutes,
		FailedAttempts:  attempts,
	}
	if until > 0 && svc.now().UnixMilli() < int64(until) {
		t := time.UnixMilli(int64(until))
		status.LockedOutUntil = &t
	}
	return status, nil
}
