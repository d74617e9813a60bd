package bot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxAuthAttempts is the number of wrong passwords before a permanent ban.
const maxAuthAttempts = 3

// Subscriber is a Telegram user who passed authentication and receives
// notifications.
type Subscriber struct {
	TelegramID int64  `gorm:"primaryKey"`
	Username   string `gorm:"size:64"`
	CreatedAt  time.Time
}

// BanRecord tracks failed authentication attempts per Telegram user. Once
// Attempts reaches maxAuthAttempts the user is banned for good.
type BanRecord struct {
	TelegramID int64 `gorm:"primaryKey"`
	Attempts   int
	UpdatedAt  time.Time
}

// Registry is the sqlite-backed store of subscribers and bans.
type Registry struct {
	db *gorm.DB
}

// OpenRegistry opens (creating if needed) the registry database at path.
func OpenRegistry(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := db.AutoMigrate(&Subscriber{}, &BanRecord{}); err != nil {
		return nil, fmt.Errorf("migrate registry: %w", err)
	}
	return &Registry{db: db}, nil
}

// Subscribe registers a Telegram user for notifications. Idempotent.
func (r *Registry) Subscribe(telegramID int64, username string) error {
	sub := Subscriber{TelegramID: telegramID, Username: username}
	err := r.db.Save(&sub).Error
	if err != nil {
		return fmt.Errorf("save subscriber: %w", err)
	}
	return nil
}

// Unsubscribe removes a user from the notification list.
func (r *Registry) Unsubscribe(telegramID int64) error {
	return r.db.Delete(&Subscriber{}, "telegram_id = ?", telegramID).Error
}

// IsSubscribed reports whether the user passed authentication earlier.
func (r *Registry) IsSubscribed(telegramID int64) (bool, error) {
	var sub Subscriber
	err := r.db.First(&sub, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Subscribers returns the Telegram ids of everyone receiving notifications.
func (r *Registry) Subscribers() ([]int64, error) {
	var ids []int64
	err := r.db.Model(&Subscriber{}).Order("telegram_id").Pluck("telegram_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return ids, nil
}

// RecordFailedAttempt bumps the failed-auth counter for a user and reports
// the new count and whether the user is now banned.
func (r *Registry) RecordFailedAttempt(telegramID int64) (int, bool, error) {
	var rec BanRecord
	err := r.db.First(&rec, "telegram_id = ?", telegramID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}

	rec.TelegramID = telegramID
	rec.Attempts++
	if err := r.db.Save(&rec).Error; err != nil {
		return 0, false, fmt.Errorf("save ban record: %w", err)
	}
	return rec.Attempts, rec.Attempts >= maxAuthAttempts, nil
}

// ClearFailedAttempts resets the counter after a successful authentication.
func (r *Registry) ClearFailedAttempts(telegramID int64) error {
	return r.db.Delete(&BanRecord{}, "telegram_id = ?", telegramID).Error
}

// IsBanned reports whether the user exhausted their password attempts.
func (r *Registry) IsBanned(telegramID int64) (bool, error) {
	var rec BanRecord
	err := r.db.First(&rec, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Attempts >= maxAuthAttempts, nil
}
