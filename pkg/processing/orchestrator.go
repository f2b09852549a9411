package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/connectors"
	"github.com/pulseloop/server/pkg/types"
)

// State is a terminal orchestration state.
type State string

const (
	// StateDone: data fetched, persisted and (best-effort) notified.
	StateDone State = "done"
	// StateDelayed: the user's cooldown was still active; the request was
	// consumed as a silent no-op with zero provider calls.
	StateDelayed State = "delayed"
	// StateRetryScheduled: the provider rate-limited us; an identical
	// request was handed to the task runtime for later redelivery.
	StateRetryScheduled State = "retry_scheduled"
	// StateFailed: terminal error, surfaced to the runtime's generic
	// redelivery policy.
	StateFailed State = "failed"
)

// Result describes how a request finished.
type Result struct {
	State      State
	RetryAfter time.Duration
}

// UserNotifier delivers user-facing events. Sends are fire-and-forget:
// the orchestrator logs failures and never retries them.
type UserNotifier interface {
	Send(ctx context.Context, event types.UserEvent) error
}

// ResolveFunc matches connectors.Resolve; injectable for tests.
type ResolveFunc func(device types.Device, eventType string) (connectors.Factory, error)

// Deps are the orchestrator's collaborators, constructed once at process
// startup and passed in explicitly.
type Deps struct {
	DB        shared.Database
	Scheduler shared.Scheduler
	Notifier  UserNotifier
	Blobs     shared.BlobStore // optional raw payload archive
	Bucket    string
	Logger    *slog.Logger
	Now       func() time.Time
	Resolve   ResolveFunc
}

// Orchestrator runs one ProcessingRequest through the pipeline state
// machine: Resolving -> CooldownCheck -> Fetching -> Persisting -> Notifying.
// It never blocks on timers; rate-limit backoff becomes a scheduled
// redelivery and the worker is freed immediately.
type Orchestrator struct {
	deps     Deps
	followUp *FollowUpScheduler
}

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Resolve == nil {
		deps.Resolve = connectors.Resolve
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{
		deps: deps,
		followUp: &FollowUpScheduler{
			DB:        deps.DB,
			Scheduler: deps.Scheduler,
			Logger:    deps.Logger,
			Now:       deps.Now,
		},
	}
}

// Process consumes one request. The request is immutable; a rate-limited
// fetch reschedules it unchanged so the redelivery is referentially
// identical to the original trigger.
func (o *Orchestrator) Process(ctx context.Context, req types.ProcessingRequest) (Result, error) {
	logger := o.deps.Logger.With(
		"user_id", req.UserID,
		"device", req.DeviceType.String(),
		"event_type", req.EventType,
	)

	if err := validate(req); err != nil {
		return Result{State: StateFailed}, err
	}

	// Resolving
	factory, err := o.deps.Resolve(req.DeviceType, req.EventType)
	if err != nil {
		return Result{State: StateFailed}, err
	}
	conn := factory(req)

	if sc, ok := conn.(connectors.SnapshotConnector); ok && sc.NeedsFinalSnapshot() {
		if err := o.followUp.Ensure(ctx, req); err != nil {
			return Result{State: StateFailed}, fmt.Errorf("follow-up scheduling: %w", err)
		}
	}

	// CooldownCheck
	cred, err := o.deps.DB.GetCredential(ctx, req.UserID)
	if err != nil {
		return Result{State: StateFailed}, err
	}
	now := o.deps.Now()
	if cred.CooldownActive(now) {
		logger.Info("Cooldown active, skipping fetch", "cooldown_until", cred.CooldownUntil.Format(time.RFC3339))
		return Result{State: StateDelayed}, nil
	}

	// Fetching
	outcome, err := conn.Fetch(ctx, cred)
	if err != nil {
		return Result{State: StateFailed}, fmt.Errorf("fetch: %w", err)
	}
	if outcome.Status == connectors.StatusRateLimited {
		return o.scheduleRetry(ctx, req, now, outcome.RetryAfter, logger)
	}

	// Persisting
	o.archive(ctx, req, now, outcome.Payload, logger)
	rec := &types.DailyRecord{
		UserID:     req.UserID,
		DeviceType: req.DeviceType,
		EventType:  req.EventType,
		Day:        types.DayOf(now),
		Payload:    outcome.Payload,
		SequenceID: req.SequenceID,
		EventClass: "raw",
	}
	if err := o.deps.DB.UpsertDailyRecord(ctx, rec); err != nil {
		return Result{State: StateFailed}, fmt.Errorf("persist: %w", err)
	}

	// Notifying: best-effort, a delivery hiccup must never undo or
	// re-trigger the already-durable write.
	event := types.UserEvent{
		Body: map[string]interface{}{
			"sequence_id": req.SequenceID,
			"device_type": int(req.DeviceType),
			"event_type":  req.EventType,
		},
		Priority: 1,
	}
	if err := o.deps.Notifier.Send(ctx, event); err != nil {
		logger.Warn("User event delivery failed", "error", err)
	}

	return Result{State: StateDone}, nil
}

// scheduleRetry persists the new cooldown and hands the unchanged request to
// the task runtime for redelivery after the provider's cool-down.
func (o *Orchestrator) scheduleRetry(ctx context.Context, req types.ProcessingRequest, now time.Time, after time.Duration, logger *slog.Logger) (Result, error) {
	until := now.Add(after)
	if err := o.deps.DB.SetCooldown(ctx, req.UserID, until); err != nil {
		return Result{State: StateFailed}, fmt.Errorf("persist cooldown: %w", err)
	}
	if err := o.deps.Scheduler.Schedule(ctx, req, until, ""); err != nil {
		return Result{State: StateFailed}, fmt.Errorf("schedule redelivery: %w", err)
	}
	logger.Info("Rate limited, redelivery scheduled", "retry_after", after.String())
	return Result{State: StateRetryScheduled, RetryAfter: after}, nil
}

// archive writes the raw provider payload to blob storage. Best-effort: the
// relational record is the durable copy.
func (o *Orchestrator) archive(ctx context.Context, req types.ProcessingRequest, now time.Time, payload []byte, logger *slog.Logger) {
	if o.deps.Blobs == nil || o.deps.Bucket == "" {
		return
	}
	object := fmt.Sprintf("raw/%s/%s/%s_%s.json",
		req.UserID, types.DayOf(now).Format("2006-01-02"),
		req.DeviceType.String(), req.EventType)
	if err := o.deps.Blobs.Write(ctx, o.deps.Bucket, object, payload); err != nil {
		logger.Warn("Raw payload archive failed", "object", object, "error", err)
	}
}

func validate(req types.ProcessingRequest) error {
	if req.UserID == "" {
		return errors.New("processing requires non-empty user_id")
	}
	if req.SequenceID == "" {
		return errors.New("processing requires non-empty sequence_id")
	}
	return nil
}
