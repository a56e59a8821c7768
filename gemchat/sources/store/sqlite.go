package store

import (
	"context"
	"errors"
	"time"

	"gemchat/gemchat/sources/store/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// SQLiteBackend is the primary store: an embedded, indexed, transactional
// database file.
type SQLiteBackend struct {
	db *gorm.DB
}

var _ Backend = &SQLiteBackend{}

func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Session{}, &models.Message{}); err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) CreateSession(ctx context.Context, sess *models.Session) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateSession
		}
		return tx.Create(sess).Error
	})
}

func (b *SQLiteBackend) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := b.db.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (b *SQLiteBackend) ListSessions(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	err := b.db.WithContext(ctx).
		Order("updated_at DESC, created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (b *SQLiteBackend) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	var msgs []*models.Message
	err := b.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (b *SQLiteBackend) AppendMessage(ctx context.Context, msg *models.Message) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.First(&sess, "id = ?", msg.SessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return bumpUpdatedAt(tx, &sess, msg.CreatedAt, nil)
	})
}

func (b *SQLiteBackend) SetTitle(ctx context.Context, id, title string, at time.Time) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.First(&sess, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // best-effort caller may race a delete
			}
			return err
		}
		return bumpUpdatedAt(tx, &sess, at, map[string]interface{}{"title": title})
	})
}

func (b *SQLiteBackend) Touch(ctx context.Context, id string, at time.Time) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.First(&sess, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return bumpUpdatedAt(tx, &sess, at, nil)
	})
}

// bumpUpdatedAt applies extra column updates plus a monotonic UpdatedAt.
// UpdateColumns bypasses gorm's automatic timestamp tracking so the value
// stays under our control.
func bumpUpdatedAt(tx *gorm.DB, sess *models.Session, at time.Time, extra map[string]interface{}) error {
	if at.Before(sess.UpdatedAt) {
		at = sess.UpdatedAt
	}
	updates := map[string]interface{}{"updated_at": at}
	for k, v := range extra {
		updates[k] = v
	}
	return tx.Model(&models.Session{}).Where("id = ?", sess.ID).UpdateColumns(updates).Error
}

func (b *SQLiteBackend) DeleteSession(ctx context.Context, id string) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Session{}).Error
	})
}

func (b *SQLiteBackend) DeleteAllSessions(ctx context.Context) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Session{}).Error
	})
}

func (b *SQLiteBackend) DeleteSessionsWithoutTitle(ctx context.Context, excludeID string) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&models.Session{}).
			Where("title = ? AND id <> ?", "", excludeID).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("session_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Session{}).Error
	})
}

func (b *SQLiteBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
