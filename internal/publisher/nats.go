package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/velden/playerok-bridge/internal/runner"
)

// SubjectMessageNew is the subject new chat messages are mirrored to.
const SubjectMessageNew = "chats.message.new"

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher mirrors runner events onto the NATS bus for out-of-process
// consumers. Delivery follows the poller's at-least-once semantics, so
// subscribers dedupe by message id.
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// newWithClient is the test constructor.
func newWithClient(nc NATSClient) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// messagePayload is the wire form of a new-message event.
type messagePayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Username  string `json:"username,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
}

// PublishMessageNew publishes a new chat message event.
func (p *NATSPublisher) PublishMessageNew(ctx context.Context, event runner.NewMessageEvent) error {
	msg := event.Message
	payload := messagePayload{
		ChatID:    event.ChatID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Type:      string(msg.Type),
		CreatedAt: msg.CreatedAt,
	}
	if msg.User != nil {
		payload.Username = msg.User.Username
	}
	if msg.File != nil {
		payload.FileURL = msg.File.URL
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(SubjectMessageNew, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
