package eventprocessor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/bootstrap"
	"github.com/pulseloop/server/pkg/infrastructure/sentry"
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
	functions.CloudEvent("ProcessEvent", ProcessEvent)
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

// ProcessEvent is the entry point. One invocation consumes exactly one
// ProcessingRequest; at-least-once redelivery is the runtime's concern, so
// every step downstream is idempotent.
func ProcessEvent(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	logger := bootstrap.NewLogger("event-processor")

	env, err := decodeEnvelope(e)
	if err != nil {
		return err
	}
	req := env.Request(time.Now)
	logger = logger.With("user_id", req.UserID, "sequence_id", req.SequenceID)

	gateway := &notify.Gateway{
		Users: &notify.UserEventNotifier{
			Pub:        svc.Pub,
			Topic:      shared.TopicUserEvents,
			RoutingKey: shared.UserEventRoutingKey,
		},
		System: &notify.SystemEventNotifier{Pub: svc.Pub, Topic: shared.TopicSystemEvents},
		Dump:   svc.NotifyDump,
		Retry:  processing.NotificationRetry,
		Logger: logger,
	}

	orch := processing.NewOrchestrator(processing.Deps{
		DB:        svc.DB,
		Scheduler: svc.Sched,
		Notifier:  gateway.Users,
		Blobs:     svc.Store,
		Bucket:    svc.Config.GCSArtifactBucket,
		Logger:    logger,
	})

	res, err := orch.Process(ctx, req)
	if err != nil {
		logger.Error("Processing failed", "error", err)
		sentry.CaptureException(err, map[string]interface{}{"request": env}, logger)
		defer sentry.Flush(2 * time.Second)
		dumpFailedTask(ctx, svc, e, env, err, logger)
		return err
	}

	logger.Info("Processing finished", "state", string(res.State))
	return nil
}

// decodeEnvelope accepts both a Pub/Sub push wrapper and a bare JSON
// envelope (the shape Cloud Tasks redelivers).
func decodeEnvelope(e cloudevents.Event) (types.Envelope, error) {
	data := e.Data()

	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err == nil && len(msg.Message.Data) > 0 {
		data = msg.Message.Data
	}

	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode request envelope: %w", err)
	}
	return env, nil
}

// dumpFailedTask records a terminally failed invocation in the failure dump
// before the error surfaces to the runtime's retry policy.
func dumpFailedTask(ctx context.Context, svc *bootstrap.Service, e cloudevents.Event, env types.Envelope, cause error, logger *slog.Logger) {
	id := e.ID()
	if id == "" {
		id = uuid.NewString()
	}
	t := types.FailedTask{
		ID:   id,
		Name: shared.TaskProcessEvent,
		Args: map[string]interface{}{
			"user_id":              env.UserID,
			"sequence_id":          env.SequenceID,
			"device_type":          env.DeviceType,
			"event_type":           env.EventType,
			"processing_timestamp": env.ProcessingTimestamp,
		},
		Exception: cause.Error(),
	}
	logger.Info("Going to dump failed task", "task_id", t.ID)
	if err := svc.TaskDump.Dump(ctx, t); err != nil {
		logger.Warn("Failed task dump failed", "task_id", t.ID, "error", err)
	}
}
