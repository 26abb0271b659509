package chat

// Turn is the transient unit handed to the completion provider. It is
// never persisted; the durable form is Message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
