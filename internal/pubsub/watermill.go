package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillBridge implements the Publisher and Subscriber interfaces using watermill's GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

var (
	_ Publisher  = (*WatermillBridge)(nil)
	_ Subscriber = (*WatermillBridge)(nil)
)

const (
	// Metadata keys used to transfer our Message fields through watermill's message.
	metaKeyConnectionID = "connection_id"
	metaKeyTopic        = "topic"

	defaultOutputBuffer = 256
)

// NewWatermillBridge initializes an in-memory Pub/Sub system. Watermill logs
// through the default slog logger at the time of the call.
// Publish returns once every subscriber has handled the message, which keeps
// events of one publisher in order.
func NewWatermillBridge() *WatermillBridge {
	logger := watermill.NewSlogLogger(slog.Default().With("component", "pubsub"))
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            defaultOutputBuffer,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: logger,
	}
}

// mapToWatermillMessage converts our pubsub.Message to a watermill message.
func mapToWatermillMessage(msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)

	wmMsg.Metadata.Set(metaKeyConnectionID, msg.ConnectionID)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)

	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}

	return wmMsg
}

// mapToPubSubMessage converts a watermill message back to our internal pubsub.Message.
func mapToPubSubMessage(wmMsg *message.Message) Message {
	connectionID := wmMsg.Metadata.Get(metaKeyConnectionID)
	topic := wmMsg.Metadata.Get(metaKeyTopic)

	metadata := make(map[string]string)
	for k, v := range wmMsg.Metadata {
		if k != metaKeyConnectionID && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:        topic,
		ConnectionID: connectionID,
		Payload:      wmMsg.Payload,
		Metadata:     metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(msg))
}

// Subscribe implements the Subscriber interface. Messages are handled on a
// background goroutine, one at a time, in publish order.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := mapToPubSubMessage(wmMsg)

			// GoChannel redelivers nacked messages forever, so failures are logged and acked.
			if err := handler(ctx, msg); err != nil {
				slog.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bridge. Active subscriptions end.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
