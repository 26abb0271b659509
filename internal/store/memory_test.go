package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zhouzirui/cipherchat/backend/internal/cryptox"
	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
)

func newMemory(t *testing.T) *store.Memory {
	t.Helper()
	cipher, err := cryptox.New(make([]byte, cryptox.KeySize))
	if err != nil {
		t.Fatalf("cryptox.New err: %v", err)
	}
	return store.NewMemory(cipher)
}

func TestMemoryAppendListOrder(t *testing.T) {
	st := newMemory(t)
	ctx := context.Background()

	contents := []string{"first", "second", "third", "fourth"}
	for i, content := range contents {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		if _, err := st.Append(ctx, "user-a", content, role); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	messages, err := st.List(ctx, "user-a")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(messages))
	}

	for i, msg := range messages {
		if msg.Content != contents[i] {
			t.Fatalf("message %d: got %q want %q", i, msg.Content, contents[i])
		}
		if msg.ID == "" {
			t.Fatalf("message %d has no id", i)
		}
		if i > 0 && messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Fatalf("message %d created before its predecessor", i)
		}
	}
}

func TestMemoryOwnerIsolation(t *testing.T) {
	st := newMemory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := st.Append(ctx, "user-a", fmt.Sprintf("a-%d", i), chat.RoleUser); err != nil {
			t.Fatalf("Append err: %v", err)
		}
		if _, err := st.Append(ctx, "user-b", fmt.Sprintf("b-%d", i), chat.RoleUser); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	messages, err := st.List(ctx, "user-a")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages for user-a, got %d", len(messages))
	}
	for _, msg := range messages {
		if msg.Owner != "user-a" {
			t.Fatalf("user-a list leaked message owned by %q", msg.Owner)
		}
	}

	empty, err := st.List(ctx, "user-c")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty log for unknown owner, got %d", len(empty))
	}
}

func TestMemoryRejectsInvalidRole(t *testing.T) {
	st := newMemory(t)
	ctx := context.Background()

	for _, role := range []chat.Role{chat.RoleSystem, "moderator", ""} {
		if _, err := st.Append(ctx, "user-a", "content", role); !errors.Is(err, store.ErrInvalidRole) {
			t.Fatalf("role %q: expected ErrInvalidRole, got %v", role, err)
		}
	}
}

func TestMemoryCorruptRowDegradesGracefully(t *testing.T) {
	st := newMemory(t)
	ctx := context.Background()

	for _, content := range []string{"intact one", "will corrupt", "intact two"} {
		if _, err := st.Append(ctx, "user-a", content, chat.RoleUser); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	st.Corrupt("user-a", 1)

	messages, err := st.List(ctx, "user-a")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("corrupted row must not shrink the list: got %d", len(messages))
	}

	if messages[0].Content != "intact one" || messages[2].Content != "intact two" {
		t.Fatalf("intact rows damaged: %q, %q", messages[0].Content, messages[2].Content)
	}
	if messages[1].Content != chat.DecryptionFailedSentinel {
		t.Fatalf("corrupt row: got %q want sentinel", messages[1].Content)
	}
}
