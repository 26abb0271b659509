package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zhouzirui/cipherchat/backend/internal/cryptox"
	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
)

// MessageRow is the persisted layout of one turn. The seq column breaks
// creation-time ties so insertion order is always recoverable.
type MessageRow struct {
	ID               string         `gorm:"type:uuid;primaryKey"`
	Seq              int64          `gorm:"autoIncrement;uniqueIndex"`
	UserID           string         `gorm:"index;not null"`
	Role             string         `gorm:"not null"`
	EncryptedContent datatypes.JSON `gorm:"not null"`
	CreatedAt        time.Time
}

// TableName keeps the table name stable regardless of struct renames.
func (MessageRow) TableName() string { return "messages" }

// BeforeCreate assigns the row id at insertion.
func (r *MessageRow) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Postgres persists encrypted messages through gorm.
type Postgres struct {
	db     *gorm.DB
	cipher *cryptox.Cipher
}

// NewPostgres wires the store to an open database handle and migrates
// the messages table.
func NewPostgres(db *gorm.DB, cipher *cryptox.Cipher) (*Postgres, error) {
	if err := db.AutoMigrate(&MessageRow{}); err != nil {
		return nil, fmt.Errorf("migrate messages table: %w", err)
	}
	return &Postgres{db: db, cipher: cipher}, nil
}

// Append encrypts content and inserts one row. The insert is a single
// statement, so it either fully succeeds or fully fails.
func (p *Postgres) Append(ctx context.Context, owner, content string, role chat.Role) (string, error) {
	if !role.Storable() {
		return "", ErrInvalidRole
	}

	payload, err := p.cipher.Encrypt(content)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode payload: %v", ErrStore, err)
	}

	row := MessageRow{
		UserID:           owner,
		Role:             string(role),
		EncryptedContent: datatypes.JSON(encoded),
		CreatedAt:        time.Now().UTC(),
	}

	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("%w: insert: %v", ErrStore, err)
	}

	return row.ID, nil
}

// List returns the owner's rows in ascending creation order, decrypting
// each independently.
func (p *Postgres) List(ctx context.Context, owner string) ([]chat.Message, error) {
	var rows []MessageRow
	err := p.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("created_at ASC, seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: select: %v", ErrStore, err)
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, chat.Message{
			ID:        row.ID,
			Owner:     row.UserID,
			Role:      chat.Role(row.Role),
			Content:   p.decryptRow(row),
			CreatedAt: row.CreatedAt,
		})
	}

	return messages, nil
}

func (p *Postgres) decryptRow(row MessageRow) string {
	var payload cryptox.EncryptedPayload
	if err := json.Unmarshal(row.EncryptedContent, &payload); err != nil {
		log.Printf("[store] undecodable payload for message=%s: %v", row.ID, err)
		return chat.DecryptionFailedSentinel
	}

	content, err := p.cipher.Decrypt(payload)
	if err != nil {
		log.Printf("[store] decryption failed for message=%s: %v", row.ID, err)
		return chat.DecryptionFailedSentinel
	}

	return content
}
