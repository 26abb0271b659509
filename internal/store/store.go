// Package store is the durable, append-only per-user message log.
// Content is encrypted before it is written and decrypted on the way
// out; callers never see ciphertext and rows never hold plaintext.
package store

import (
	"context"
	"errors"

	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
)

var (
	// ErrStore wraps persistence failures. An append that fails must
	// surface it; silently dropping a turn would desynchronize the
	// visible conversation from the durable log.
	ErrStore = errors.New("message store failure")

	// ErrInvalidRole rejects roles that may not be persisted.
	ErrInvalidRole = errors.New("role must be user or assistant")
)

// Store records and replays conversation turns. The owner is a mandatory
// parameter on every call: no call shape exists that reads or writes
// another user's log.
type Store interface {
	Append(ctx context.Context, owner, content string, role chat.Role) (string, error)
	List(ctx context.Context, owner string) ([]chat.Message, error)
}
