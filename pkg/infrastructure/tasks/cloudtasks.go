package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cloudtasks "google.golang.org/api/cloudtasks/v2"
	"google.golang.org/api/googleapi"

	"github.com/pulseloop/server/pkg/types"
)

// CloudTasksScheduler submits deferred request redeliveries to a Cloud Tasks
// queue targeting the event-processor's HTTP endpoint. The task ID doubles as
// the runtime's deduplication token.
type CloudTasksScheduler struct {
	svc       *cloudtasks.Service
	queuePath string
	targetURL string
}

func NewCloudTasksScheduler(ctx context.Context, project, location, queue, targetURL string) (*CloudTasksScheduler, error) {
	if project == "" || location == "" || queue == "" || targetURL == "" {
		return nil, errors.New("cloudtasks: project, location, queue and target URL are all required")
	}
	svc, err := cloudtasks.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudtasks init: %w", err)
	}
	return &CloudTasksScheduler{
		svc:       svc,
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", project, location, queue),
		targetURL: targetURL,
	}, nil
}

func (s *CloudTasksScheduler) Schedule(ctx context.Context, req types.ProcessingRequest, eta time.Time, dedupKey string) error {
	body, err := json.Marshal(types.NewEnvelope(req))
	if err != nil {
		return fmt.Errorf("schedule encode: %w", err)
	}

	task := &cloudtasks.Task{
		ScheduleTime: eta.UTC().Format(time.RFC3339),
		HttpRequest: &cloudtasks.HttpRequest{
			Url:        s.targetURL,
			HttpMethod: http.MethodPost,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       base64.StdEncoding.EncodeToString(body),
		},
	}
	if dedupKey != "" {
		task.Name = s.queuePath + "/tasks/" + sanitizeTaskID(dedupKey)
	}

	_, err = s.svc.Projects.Locations.Queues.Tasks.
		Create(s.queuePath, &cloudtasks.CreateTaskRequest{Task: task}).
		Context(ctx).Do()
	if isAlreadyExists(err) {
		// Dedup hit: an identical task is already queued.
		return nil
	}
	return err
}

// isAlreadyExists matches the Cloud Tasks response for a duplicate task name.
func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusConflict
	}
	return false
}

// sanitizeTaskID maps an arbitrary dedup key onto the task-ID alphabet
// [A-Za-z0-9_-].
func sanitizeTaskID(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// LogScheduler is a mock scheduler for local development
type LogScheduler struct{}

func (s *LogScheduler) Schedule(ctx context.Context, req types.ProcessingRequest, eta time.Time, dedupKey string) error {
	slog.Info("[LogScheduler] MOCK SCHEDULE",
		"user_id", req.UserID, "device", req.DeviceType.String(), "event_type", req.EventType,
		"eta", eta.UTC().Format(time.RFC3339), "dedup_key", dedupKey)
	return nil
}
