package store

import (
	"context"
	"testing"
	"time"

	"gemchat/gemchat/sources/store/models"
)

// The file store must survive a process restart: everything written
// before Close is visible after reopening the same directory.
func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sess := newSession("s1", base)
	if err := b.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := b.AppendMessage(ctx, newMessage("s1", models.RoleUser, "Hello", base.Add(time.Second))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.AppendMessage(ctx, newMessage("s1", models.RoleModel, "Hi there", base.Add(2*time.Second))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.SetTitle(ctx, "s1", "Greetings", base.Add(3*time.Second)); err != nil {
		t.Fatalf("set title: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.Title != "Greetings" || got.Model != "test-model" {
		t.Errorf("session not restored: %+v", got)
	}
	msgs, err := reopened.ListMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("list after reload: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "Hello" || msgs[1].Content != "Hi there" {
		t.Fatalf("messages not restored in order: %+v", msgs)
	}

	// The id sequence continues instead of reusing old ids.
	if err := reopened.AppendMessage(ctx, newMessage("s1", models.RoleUser, "again", base.Add(4*time.Second))); err != nil {
		t.Fatalf("append after reload: %v", err)
	}
	msgs, err = reopened.ListMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if msgs[2].ID <= msgs[1].ID {
		t.Errorf("id sequence reused: %d after %d", msgs[2].ID, msgs[1].ID)
	}
}
