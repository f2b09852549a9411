package mocks

import (
	"context"
	"fmt"
	"time"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/connectors"
	"github.com/pulseloop/server/pkg/types"
)

// --- Mock Database ---

type MockDatabase struct {
	GetCredentialFunc     func(ctx context.Context, userID string) (*types.UserCredential, error)
	SetCooldownFunc       func(ctx context.Context, userID string, until time.Time) error
	GetDailyRecordFunc    func(ctx context.Context, userID string, device types.Device, eventType string, day time.Time) (*types.DailyRecord, error)
	UpsertDailyRecordFunc func(ctx context.Context, rec *types.DailyRecord) error
}

func (m *MockDatabase) GetCredential(ctx context.Context, userID string) (*types.UserCredential, error) {
	if m.GetCredentialFunc != nil {
		return m.GetCredentialFunc(ctx, userID)
	}
	return &types.UserCredential{UserID: userID}, nil
}

func (m *MockDatabase) SetCooldown(ctx context.Context, userID string, until time.Time) error {
	if m.SetCooldownFunc != nil {
		return m.SetCooldownFunc(ctx, userID, until)
	}
	return nil
}

func (m *MockDatabase) GetDailyRecord(ctx context.Context, userID string, device types.Device, eventType string, day time.Time) (*types.DailyRecord, error) {
	if m.GetDailyRecordFunc != nil {
		return m.GetDailyRecordFunc(ctx, userID, device, eventType, day)
	}
	return nil, fmt.Errorf("daily record: %w", shared.ErrNotFound)
}

func (m *MockDatabase) UpsertDailyRecord(ctx context.Context, rec *types.DailyRecord) error {
	if m.UpsertDailyRecordFunc != nil {
		return m.UpsertDailyRecordFunc(ctx, rec)
	}
	return nil
}

// --- Mock Publisher ---

type MockPublisher struct {
	PublishFunc func(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data, attrs)
	}
	return "msg-id", nil
}

// --- Mock Scheduler ---

type MockScheduler struct {
	ScheduleFunc func(ctx context.Context, req types.ProcessingRequest, eta time.Time, dedupKey string) error
}

func (m *MockScheduler) Schedule(ctx context.Context, req types.ProcessingRequest, eta time.Time, dedupKey string) error {
	if m.ScheduleFunc != nil {
		return m.ScheduleFunc(ctx, req, eta, dedupKey)
	}
	return nil
}

// --- Mock Dump Store ---

type MockDumpStore struct {
	DumpFunc func(ctx context.Context, obj shared.Dumpable) error
}

func (m *MockDumpStore) Dump(ctx context.Context, obj shared.Dumpable) error {
	if m.DumpFunc != nil {
		return m.DumpFunc(ctx, obj)
	}
	return nil
}

// --- Mock Connector ---

type MockConnector struct {
	FetchFunc        func(ctx context.Context, cred *types.UserCredential) (connectors.Outcome, error)
	FinalSnapshot    bool
	FetchInvocations int
}

func (m *MockConnector) Fetch(ctx context.Context, cred *types.UserCredential) (connectors.Outcome, error) {
	m.FetchInvocations++
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, cred)
	}
	return connectors.Ready([]byte(`{}`)), nil
}

func (m *MockConnector) NeedsFinalSnapshot() bool { return m.FinalSnapshot }

// --- Mock User Notifier ---

type MockUserNotifier struct {
	SendFunc func(ctx context.Context, event types.UserEvent) error
	Sent     []types.UserEvent
}

func (m *MockUserNotifier) Send(ctx context.Context, event types.UserEvent) error {
	m.Sent = append(m.Sent, event)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, event)
	}
	return nil
}

// --- Mock Blob Store ---

type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}
