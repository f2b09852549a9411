package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/types"
)

// followUpHourUTC is when the guaranteed end-of-day re-fetch runs.
const followUpHourUTC = 2

// FollowUpScheduler guarantees a final daily snapshot for providers that may
// stop sending live events before the day ends. If no record exists yet for
// today's key, it submits exactly one deferred request for tomorrow at
// 02:00 UTC; the dedup key keeps concurrent processors from queueing more.
type FollowUpScheduler struct {
	DB        shared.Database
	Scheduler shared.Scheduler
	Logger    *slog.Logger
	Now       func() time.Time
}

func (f *FollowUpScheduler) Ensure(ctx context.Context, req types.ProcessingRequest) error {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	day := types.DayOf(now())

	_, err := f.DB.GetDailyRecord(ctx, req.UserID, req.DeviceType, req.EventType, day)
	if err == nil {
		// Today's snapshot already exists, nothing to guarantee.
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	eta := day.AddDate(0, 0, 1).Add(followUpHourUTC * time.Hour)
	followUp := req
	followUp.ProcessingTime = eta

	key := DedupKey(req.UserID, req.DeviceType, req.EventType, day)
	if f.Logger != nil {
		f.Logger.Info("Scheduling end-of-day follow-up",
			"user_id", req.UserID, "device", req.DeviceType.String(),
			"event_type", req.EventType, "eta", eta.Format(time.RFC3339), "dedup_key", key)
	}
	return f.Scheduler.Schedule(ctx, followUp, eta, key)
}

// DedupKey derives the follow-up idempotency key from the daily-record key.
func DedupKey(userID string, device types.Device, eventType string, day time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, eventType)
	return fmt.Sprintf("%s_%d_%s_%s", userID, int(device), sanitized, day.Format("20060102"))
}
