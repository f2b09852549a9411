package errornotifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/bootstrap"
	"github.com/pulseloop/server/pkg/notify"
	"github.com/pulseloop/server/pkg/processing"
	"github.com/pulseloop/server/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("NotifyError", NotifyError)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
	})
	return svc, svcErr
}

// alertPayload is the wire shape of an operational alert request.
type alertPayload struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NotifyError turns an operational alert into a SystemEvent and delivers it
// through the gateway's bounded retry; exhausted deliveries land in the
// failure dump. The invocation itself always succeeds once the payload
// decodes - delivery failures must not re-trigger the task.
func NotifyError(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	logger := bootstrap.NewLogger("error-notifier")

	data := e.Data()
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err == nil && len(msg.Message.Data) > 0 {
		data = msg.Message.Data
	}

	var payload alertPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode alert payload: %w", err)
	}

	eventTime, err := time.Parse(time.RFC3339, payload.Time)
	if err != nil {
		eventTime = time.Now().UTC()
	}
	event := types.SystemEvent{
		ID:      uuid.NewString(),
		Time:    eventTime,
		Kind:    payload.Type,
		Message: payload.Message,
	}

	gateway := &notify.Gateway{
		System: &notify.SystemEventNotifier{Pub: svc.Pub, Topic: shared.TopicSystemEvents},
		Dump:   svc.NotifyDump,
		Retry:  processing.NotificationRetry,
		Logger: logger,
	}
	gateway.NotifySystem(ctx, event)

	logger.Info("System event handled", "event_id", event.ID, "kind", event.Kind)
	return nil
}
