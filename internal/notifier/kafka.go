package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes cart-update events. Fire-and-forget: delivery
// failures are logged and never surfaced to the mutation path.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "cart-updates",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

type cartUpdateEvent struct {
	UserID    string            `json:"user_id"`
	Lines     []domain.CartLine `json:"lines"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (n *KafkaNotifier) CartUpdated(ctx context.Context, userID string, lines []domain.CartLine) {
	event := cartUpdateEvent{
		UserID:    userID,
		Lines:     lines,
		UpdatedAt: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal cart update event: %v", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(userID), // user_id for ordering
		Value: payload,
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("failed to publish cart update for user %s: %v", userID, err)
	}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
