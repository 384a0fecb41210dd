package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Audit logs every solved and verification event received from sub until ctx is done
func Audit(ctx context.Context, sub message.Subscriber, logger *slog.Logger) error {
	for _, topic := range []string{SolvedTopic, VerificationTopic} {
		messages, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		go consume(topic, messages, logger)
	}
	return nil
}

func consume(topic string, messages <-chan *message.Message, logger *slog.Logger) {
	for msg := range messages {
		var event map[string]any
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			logger.Warn("dropping unreadable event", "topic", topic, "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}

		attrs := []any{"topic", topic, "message_id", msg.UUID}
		for k, v := range event {
			attrs = append(attrs, k, v)
		}
		logger.Info("event", attrs...)
		msg.Ack()
	}
}
