package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"courtbook/internal/infra/broker"
)

// OutcomeHandler feeds payment outcome messages to the dispatcher.
type OutcomeHandler struct {
	Dispatcher broker.OutcomeDispatcher
}

func (h OutcomeHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return h.Dispatcher.Dispatch(ctx, msg.Value, fallbackID(msg))
}

// fallbackID prefers a ce_id header and otherwise names the message by position.
func fallbackID(msg *sarama.ConsumerMessage) string {
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		switch string(h.Key) {
		case "ce_id", "ce-id":
			return string(h.Value)
		}
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

var _ MessageHandler = OutcomeHandler{}
