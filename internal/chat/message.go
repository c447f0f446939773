package chat

import (
	"clurb/internal/domain"
	"time"
)

// Message is the confirmed chat row as sent to clients, both in responses
// and in message_inserted events.
type Message struct {
	ID         uint64         `json:"id"`
	DocumentID uint64         `json:"document_id"`
	SenderID   uint64         `json:"sender_id"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	ClientID   string         `json:"client_id,omitempty"`
	Sender     domain.Profile `json:"sender"`
}

func toMessage(m domain.ChatMessage, clientID string) Message {
	return Message{
		ID:         m.ID,
		DocumentID: m.DocumentID,
		SenderID:   m.SenderID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		ClientID:   clientID,
		Sender:     m.Sender.ToProfile(),
	}
}
