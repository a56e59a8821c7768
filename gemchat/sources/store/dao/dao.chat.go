package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"gemchat/gemchat/config"
	"gemchat/gemchat/sources/store"
	"gemchat/gemchat/sources/store/models"
	"gemchat/gemchat/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyContent is returned when persisting a user or model message
// with no content. Messages are append-only, so an empty one would stay
// empty forever.
var ErrEmptyContent = errors.New("message content is empty")

// ConversationDAO is the single facade the rest of the system talks to.
// The backend is chosen once when the DAO is opened and kept for the
// process lifetime.
type ConversationDAO struct {
	backend store.Backend
}

func NewConversationDAO(backend store.Backend) *ConversationDAO {
	return &ConversationDAO{backend: backend}
}

// Open probes the sqlite store once. Any open failure permanently
// switches the process to the flat file store; there is no per-call
// retry of the primary.
func Open(cfg config.StoreConfig) (*ConversationDAO, error) {
	primary, err := store.OpenSQLite(cfg.DBPath)
	if err == nil {
		return NewConversationDAO(primary), nil
	}
	logging.AppLogger.Warn("primary store unavailable, falling back to file store",
		zap.String("db_path", cfg.DBPath),
		zap.Error(err))
	fallback, ferr := store.OpenFileStore(cfg.FallbackDir)
	if ferr != nil {
		return nil, ferr
	}
	return NewConversationDAO(fallback), nil
}

func (d *ConversationDAO) NewSessionID() string {
	return uuid.New().String()
}

// BackendName identifies which backend the process settled on.
func (d *ConversationDAO) BackendName() string {
	switch d.backend.(type) {
	case *store.SQLiteBackend:
		return "sqlite"
	case *store.FileBackend:
		return "filestore"
	default:
		return "unknown"
	}
}

func (d *ConversationDAO) CreateSession(ctx context.Context, id, model, title string) (*models.Session, error) {
	now := time.Now()
	sess := &models.Session{
		ID:        id,
		Title:     title,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.backend.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (d *ConversationDAO) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return d.backend.GetSession(ctx, id)
}

func (d *ConversationDAO) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return d.backend.ListSessions(ctx)
}

func (d *ConversationDAO) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	return d.backend.ListMessages(ctx, sessionID)
}

func (d *ConversationDAO) AppendMessage(ctx context.Context, sessionID, role, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" && role != models.RoleSystem {
		return nil, ErrEmptyContent
	}
	msg := &models.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := d.backend.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *ConversationDAO) SetTitle(ctx context.Context, id, title string) error {
	return d.backend.SetTitle(ctx, id, title, time.Now())
}

func (d *ConversationDAO) Touch(ctx context.Context, id string) error {
	return d.backend.Touch(ctx, id, time.Now())
}

func (d *ConversationDAO) DeleteSession(ctx context.Context, id string) error {
	return d.backend.DeleteSession(ctx, id)
}

func (d *ConversationDAO) DeleteAllSessions(ctx context.Context) error {
	return d.backend.DeleteAllSessions(ctx)
}

func (d *ConversationDAO) DeleteSessionsWithoutTitle(ctx context.Context, excludeID string) error {
	return d.backend.DeleteSessionsWithoutTitle(ctx, excludeID)
}

func (d *ConversationDAO) Close() error {
	return d.backend.Close()
}
