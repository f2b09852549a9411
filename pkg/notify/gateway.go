package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/processing"
	"github.com/pulseloop/server/pkg/types"
)

// UserEventNotifier publishes user events to the broker with routing
// metadata in the transport attributes. Single attempt; user events are
// supplementary to the already-durable daily record.
type UserEventNotifier struct {
	Pub        shared.Publisher
	Topic      string
	RoutingKey string
}

func (n *UserEventNotifier) Send(ctx context.Context, event types.UserEvent) error {
	data, err := json.Marshal(event.Body)
	if err != nil {
		return fmt.Errorf("encode user event: %w", err)
	}
	attrs := map[string]string{
		"RoutingKey": n.RoutingKey,
		"Priority":   strconv.Itoa(event.Priority),
	}
	_, err = n.Pub.Publish(ctx, n.Topic, data, attrs)
	return err
}

// systemEventFormat renders a system event for human consumption.
const systemEventFormat = "[%s] at %s: %s"

// SystemEventNotifier publishes operational alerts on the system channel as
// a {default, email} envelope.
type SystemEventNotifier struct {
	Pub   shared.Publisher
	Topic string
}

func (n *SystemEventNotifier) Send(ctx context.Context, event types.SystemEvent) error {
	formatted := fmt.Sprintf(systemEventFormat,
		event.Kind, event.Time.UTC().Format(time.RFC3339), event.Message)
	data, err := json.Marshal(map[string]string{
		"default": formatted,
		"email":   formatted,
	})
	if err != nil {
		return fmt.Errorf("encode system event: %w", err)
	}
	_, err = n.Pub.Publish(ctx, n.Topic, data, nil)
	return err
}

// Gateway couples system-event delivery with its bounded retry and
// dump-on-exhaustion fallback. Delivery failures are strictly isolated: they
// never fail or re-trigger the task that raised the event.
type Gateway struct {
	Users  *UserEventNotifier
	System *SystemEventNotifier
	Dump   shared.DumpStore
	Retry  processing.Policy
	Logger *slog.Logger
}

// NotifySystem delivers a system event with bounded retry; on exhaustion the
// event is written to the failure dump and the error is swallowed.
func (g *Gateway) NotifySystem(ctx context.Context, event types.SystemEvent) {
	err := g.Retry.Run(ctx, func() error {
		return g.System.Send(ctx, event)
	})
	if err == nil {
		return
	}

	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("System event delivery exhausted, dumping", "event_id", event.ID, "error", err)
	if dumpErr := g.Dump.Dump(ctx, event); dumpErr != nil {
		logger.Error("System event dump failed", "event_id", event.ID, "error", dumpErr)
	}
}
