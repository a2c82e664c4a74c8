package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mattjoyce/gpiogw/internal/events"
	"github.com/mattjoyce/gpiogw/internal/log"
)

// Publisher is the subset of Client the Forwarder needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Source yields lifecycle events. *events.Hub satisfies it.
type Source interface {
	Subscribe() (<-chan events.Event, func())
}

// Forwarder republishes hub events to MQTT.
type Forwarder struct {
	pub    Publisher
	topics Topics
	qos    byte
	logger *slog.Logger
}

func NewForwarder(pub Publisher, topics Topics, qos byte) *Forwarder {
	return &Forwarder{
		pub:    pub,
		topics: topics,
		qos:    qos,
		logger: log.WithComponent("mqtt"),
	}
}

// Run forwards events until ctx is done or the subscription closes.
// Publish failures are logged and the event is dropped.
func (f *Forwarder) Run(ctx context.Context, src Source) {
	ch, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := f.Forward(ev); err != nil {
				level := slog.LevelWarn
				if errors.Is(err, ErrNotConnected) {
					level = slog.LevelDebug
				}
				f.logger.Log(ctx, level, "event not forwarded", "event_type", ev.Type, "event_id", ev.ID, "error", err)
			}
		}
	}
}

// Forward publishes one event.
func (f *Forwarder) Forward(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.pub.Publish(f.topics.Event(ev.Type), payload, f.qos, false)
}
