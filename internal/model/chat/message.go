package chat

import "time"

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Storable reports whether the role may be persisted. The system role is
// injected per request and never stored.
func (r Role) Storable() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one decrypted turn of a user's conversation log.
type Message struct {
	ID        string    `json:"id"`
	Owner     string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// DecryptionFailedSentinel replaces the content of a row whose payload
// no longer authenticates. One bad row must not hide the rest of the log.
const DecryptionFailedSentinel = "[Decryption failed]"
