package store

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gemchat/gemchat/sources/store/models"

	"github.com/patrickmn/go-cache"
)

func init() {
	// go-cache snapshots are gob encoded; the concrete record types must
	// be registered before the first SaveFile/LoadFile.
	gob.Register(&models.Session{})
	gob.Register(&models.Message{})
}

// FileBackend is the fallback store: two flat key-value maps snapshotted
// to disk after every mutation. Atomicity is plain sequential
// read-modify-write under one lock, which is enough for a single process.
type FileBackend struct {
	mu       sync.Mutex
	dir      string
	sessions *cache.Cache
	messages *cache.Cache
	nextID   uint
}

var _ Backend = &FileBackend{}

func OpenFileStore(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	b := &FileBackend{
		dir:      dir,
		sessions: cache.New(cache.NoExpiration, 0),
		messages: cache.New(cache.NoExpiration, 0),
		nextID:   1,
	}
	// Missing snapshot files just mean a fresh store.
	_ = b.sessions.LoadFile(b.sessionsFile())
	_ = b.messages.LoadFile(b.messagesFile())
	for _, item := range b.messages.Items() {
		if msg, ok := item.Object.(*models.Message); ok && msg.ID >= b.nextID {
			b.nextID = msg.ID + 1
		}
	}
	return b, nil
}

func (b *FileBackend) sessionsFile() string { return filepath.Join(b.dir, "sessions.gob") }
func (b *FileBackend) messagesFile() string { return filepath.Join(b.dir, "messages.gob") }

func (b *FileBackend) persist() error {
	if err := b.sessions.SaveFile(b.sessionsFile()); err != nil {
		return err
	}
	return b.messages.SaveFile(b.messagesFile())
}

func (b *FileBackend) getSession(id string) (*models.Session, bool) {
	x, found := b.sessions.Get(id)
	if !found {
		return nil, false
	}
	return x.(*models.Session), true
}

func (b *FileBackend) CreateSession(ctx context.Context, sess *models.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.getSession(sess.ID); found {
		return ErrDuplicateSession
	}
	cp := *sess
	b.sessions.Set(sess.ID, &cp, cache.NoExpiration)
	return b.persist()
}

func (b *FileBackend) GetSession(ctx context.Context, id string) (*models.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, found := b.getSession(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (b *FileBackend) ListSessions(ctx context.Context) ([]*models.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sessions := make([]*models.Session, 0, b.sessions.ItemCount())
	for _, item := range b.sessions.Items() {
		if sess, ok := item.Object.(*models.Session); ok {
			cp := *sess
			sessions = append(sessions, &cp)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (b *FileBackend) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listMessagesLocked(sessionID), nil
}

func (b *FileBackend) listMessagesLocked(sessionID string) []*models.Message {
	msgs := make([]*models.Message, 0)
	for _, item := range b.messages.Items() {
		if msg, ok := item.Object.(*models.Message); ok && msg.SessionID == sessionID {
			cp := *msg
			msgs = append(msgs, &cp)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func (b *FileBackend) AppendMessage(ctx context.Context, msg *models.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, found := b.getSession(msg.SessionID)
	if !found {
		return ErrSessionNotFound
	}
	msg.ID = b.nextID
	b.nextID++
	cp := *msg
	b.messages.Set(messageKey(msg.ID), &cp, cache.NoExpiration)
	b.bumpUpdatedAtLocked(sess, msg.CreatedAt)
	return b.persist()
}

func messageKey(id uint) string {
	// Zero-padded so keys stay unique and readable in the snapshot.
	return "m" + padUint(id)
}

func padUint(v uint) string {
	const digits = 12
	buf := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf)
}

func (b *FileBackend) bumpUpdatedAtLocked(sess *models.Session, at time.Time) {
	if at.After(sess.UpdatedAt) {
		sess.UpdatedAt = at
	}
	b.sessions.Set(sess.ID, sess, cache.NoExpiration)
}

func (b *FileBackend) SetTitle(ctx context.Context, id, title string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, found := b.getSession(id)
	if !found {
		return nil
	}
	sess.Title = title
	b.bumpUpdatedAtLocked(sess, at)
	return b.persist()
}

func (b *FileBackend) Touch(ctx context.Context, id string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, found := b.getSession(id)
	if !found {
		return nil
	}
	b.bumpUpdatedAtLocked(sess, at)
	return b.persist()
}

func (b *FileBackend) DeleteSession(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteSessionLocked(id)
	return b.persist()
}

func (b *FileBackend) deleteSessionLocked(id string) {
	for key, item := range b.messages.Items() {
		if msg, ok := item.Object.(*models.Message); ok && msg.SessionID == id {
			b.messages.Delete(key)
		}
	}
	b.sessions.Delete(id)
}

func (b *FileBackend) DeleteAllSessions(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions.Flush()
	b.messages.Flush()
	b.nextID = 1
	return b.persist()
}

func (b *FileBackend) DeleteSessionsWithoutTitle(ctx context.Context, excludeID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.sessions.Items() {
		sess, ok := item.Object.(*models.Session)
		if !ok {
			continue
		}
		if sess.Title == "" && sess.ID != excludeID {
			b.deleteSessionLocked(sess.ID)
		}
	}
	return b.persist()
}

func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persist()
}
