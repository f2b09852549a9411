package processing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseloop/server/pkg/processing"
	"github.com/pulseloop/server/pkg/testing/mocks"
	"github.com/pulseloop/server/pkg/types"
)

func TestFollowUp_StorageErrorPropagates(t *testing.T) {
	db := &mocks.MockDatabase{
		GetDailyRecordFunc: func(context.Context, string, types.Device, string, time.Time) (*types.DailyRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	f := &processing.FollowUpScheduler{
		DB:        db,
		Scheduler: &mocks.MockScheduler{},
		Now:       func() time.Time { return frozenNow },
	}

	err := f.Ensure(context.Background(), testRequest())
	require.Error(t, err)
}

func TestFollowUp_MonthRollover(t *testing.T) {
	endOfMonth := time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC)
	var eta time.Time
	sched := &mocks.MockScheduler{
		ScheduleFunc: func(_ context.Context, _ types.ProcessingRequest, e time.Time, _ string) error {
			eta = e
			return nil
		},
	}
	f := &processing.FollowUpScheduler{
		DB:        &mocks.MockDatabase{},
		Scheduler: sched,
		Now:       func() time.Time { return endOfMonth },
	}

	require.NoError(t, f.Ensure(context.Background(), testRequest()))
	assert.Equal(t, time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC), eta)
}

func TestDedupKey(t *testing.T) {
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		eventType string
		want      string
	}{
		{"plain", "activities", "u1_1_activities_20260827"},
		{"mixed case preserved", "DataUpload", "u1_1_DataUpload_20260827"},
		{"unsafe runes replaced", "a b/c", "u1_1_a-b-c_20260827"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := processing.DedupKey("u1", types.DeviceFitbit, tt.eventType, day)
			assert.Equal(t, tt.want, got)
		})
	}
}
