package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/cipherchat/backend/internal/cryptox"
	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
)

// memoryRow mirrors the persisted layout: content lives encrypted even
// in the in-memory store so both implementations share one read path.
type memoryRow struct {
	id        string
	role      chat.Role
	payload   cryptox.EncryptedPayload
	createdAt time.Time
}

// Memory keeps per-owner logs in process memory. It backs tests and
// deployments without a database configured.
type Memory struct {
	cipher *cryptox.Cipher

	mu   sync.RWMutex
	logs map[string][]memoryRow
}

// NewMemory bootstraps an empty in-memory store.
func NewMemory(cipher *cryptox.Cipher) *Memory {
	return &Memory{
		cipher: cipher,
		logs:   make(map[string][]memoryRow),
	}
}

// Append encrypts content and adds it to the owner's log.
func (m *Memory) Append(_ context.Context, owner, content string, role chat.Role) (string, error) {
	if !role.Storable() {
		return "", ErrInvalidRole
	}

	payload, err := m.cipher.Encrypt(content)
	if err != nil {
		return "", err
	}

	row := memoryRow{
		id:        uuid.NewString(),
		role:      role,
		payload:   payload,
		createdAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.logs[owner] = append(m.logs[owner], row)
	m.mu.Unlock()

	return row.id, nil
}

// List returns the owner's log in insertion order, decrypting each row
// independently. A row that fails to decrypt comes back with the
// sentinel content instead of failing the whole call.
func (m *Memory) List(_ context.Context, owner string) ([]chat.Message, error) {
	m.mu.RLock()
	rows := m.logs[owner]
	copied := make([]memoryRow, len(rows))
	copy(copied, rows)
	m.mu.RUnlock()

	messages := make([]chat.Message, 0, len(copied))
	for _, row := range copied {
		content, err := m.cipher.Decrypt(row.payload)
		if err != nil {
			content = chat.DecryptionFailedSentinel
		}
		messages = append(messages, chat.Message{
			ID:        row.id,
			Owner:     owner,
			Role:      row.role,
			Content:   content,
			CreatedAt: row.createdAt,
		})
	}

	return messages, nil
}

// Corrupt overwrites a stored row's ciphertext, for exercising the
// degraded read path in tests.
func (m *Memory) Corrupt(owner string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rows, ok := m.logs[owner]; ok && index < len(rows) {
		rows[index].payload.Ciphertext = "bm90IHJlYWwgY2lwaGVydGV4dA=="
	}
}
