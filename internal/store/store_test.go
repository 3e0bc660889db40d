package store

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndLookupUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.LookupUser(ctx, "alice"); err != ErrUserNotFound {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}

	created, err := st.CreateUser(ctx, "alice", "hash123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.Username != "alice" {
		t.Fatalf("got username %q", created.Username)
	}

	found, err := st.LookupUser(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if found.PasswordHash != "hash123" {
		t.Fatalf("got hash %q", found.PasswordHash)
	}
}

func TestCreateUserDuplicateRejected(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "bob", "h1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := st.CreateUser(ctx, "bob", "h2"); err != ErrUserExists {
		t.Fatalf("got %v, want ErrUserExists", err)
	}
}

func TestListChannelsAscendingOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Root", "Gaming", "Music"} {
		if _, err := st.CreateChannel(ctx, name, nil, nil); err != nil {
			t.Fatalf("CreateChannel(%q): %v", name, err)
		}
	}

	chans, err := st.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(chans) != 3 {
		t.Fatalf("got %d channels, want 3", len(chans))
	}
	for i := 1; i < len(chans); i++ {
		if chans[i].ID <= chans[i-1].ID {
			t.Fatalf("channels not in ascending id order: %+v", chans)
		}
	}
}

func TestSaveAndRecentMessagesChronologicalOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second", "third"} {
		if err := st.SaveMessage(ctx, "alice", 0, body); err != nil {
			t.Fatalf("SaveMessage(%q): %v", body, err)
		}
	}

	msgs, err := st.RecentMessages(ctx, 0, 50)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Fatalf("messages not in chronological order: %+v", msgs)
	}
}

func TestRecentMessagesScopedToChannel(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveMessage(ctx, "alice", 0, "in root"); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := st.SaveMessage(ctx, "bob", 1, "in gaming"); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	msgs, err := st.RecentMessages(ctx, 0, 50)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "in root" {
		t.Fatalf("got %+v, want only the root-channel message", msgs)
	}
}
