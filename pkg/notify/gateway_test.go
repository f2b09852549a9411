package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/notify"
	"github.com/pulseloop/server/pkg/processing"
	"github.com/pulseloop/server/pkg/testing/mocks"
	"github.com/pulseloop/server/pkg/types"
)

func TestUserEventNotifier_RoutingMetadata(t *testing.T) {
	var gotTopic string
	var gotAttrs map[string]string
	var gotData []byte
	pub := &mocks.MockPublisher{
		PublishFunc: func(_ context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
			gotTopic, gotData, gotAttrs = topic, data, attrs
			return "id-1", nil
		},
	}
	n := &notify.UserEventNotifier{Pub: pub, Topic: "topic-user-events", RoutingKey: "UserCommunicationMessage"}

	err := n.Send(context.Background(), types.UserEvent{
		Body:     map[string]interface{}{"sequence_id": "seq-9", "device_type": 1},
		Priority: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "topic-user-events", gotTopic)
	assert.Equal(t, "UserCommunicationMessage", gotAttrs["RoutingKey"])
	assert.Equal(t, "1", gotAttrs["Priority"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(gotData, &body))
	assert.Equal(t, "seq-9", body["sequence_id"])
}

func TestSystemEventNotifier_EnvelopeFormat(t *testing.T) {
	var gotData []byte
	pub := &mocks.MockPublisher{
		PublishFunc: func(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
			gotData = data
			return "id-1", nil
		},
	}
	n := &notify.SystemEventNotifier{Pub: pub, Topic: "topic-system-events"}

	event := types.SystemEvent{
		ID:      "evt-1",
		Time:    time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		Kind:    "PersistenceError",
		Message: "constraint violated",
	}
	require.NoError(t, n.Send(context.Background(), event))

	var envelope map[string]string
	require.NoError(t, json.Unmarshal(gotData, &envelope))
	want := "[PersistenceError] at 2026-08-27T12:00:00Z: constraint violated"
	assert.Equal(t, want, envelope["default"])
	assert.Equal(t, want, envelope["email"])
}

func TestGateway_NotifySystemDumpsOnExhaustion(t *testing.T) {
	attempts := 0
	pub := &mocks.MockPublisher{
		PublishFunc: func(context.Context, string, []byte, map[string]string) (string, error) {
			attempts++
			return "", errors.New("publish failed")
		},
	}
	var dumped []shared.Dumpable
	dumpStore := &mocks.MockDumpStore{
		DumpFunc: func(_ context.Context, obj shared.Dumpable) error {
			dumped = append(dumped, obj)
			return nil
		},
	}
	g := &notify.Gateway{
		System: &notify.SystemEventNotifier{Pub: pub, Topic: "topic-system-events"},
		Dump:   dumpStore,
		Retry:  processing.Policy{Attempts: 3, Backoff: 10 * time.Second, Sleep: func(time.Duration) {}},
	}

	event := types.SystemEvent{ID: "evt-7", Time: time.Now(), Kind: "x", Message: "y"}
	g.NotifySystem(context.Background(), event)

	assert.Equal(t, 3, attempts)
	require.Len(t, dumped, 1, "exactly one dump record after exhaustion")
	assert.Equal(t, "evt-7", dumped[0].DumpID())
}

func TestGateway_NotifySystemNoDumpOnSuccess(t *testing.T) {
	attempts := 0
	pub := &mocks.MockPublisher{
		PublishFunc: func(context.Context, string, []byte, map[string]string) (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("flaky")
			}
			return "id", nil
		},
	}
	dumpStore := &mocks.MockDumpStore{
		DumpFunc: func(context.Context, shared.Dumpable) error {
			t.Fatal("dumped a successfully delivered event")
			return nil
		},
	}
	g := &notify.Gateway{
		System: &notify.SystemEventNotifier{Pub: pub, Topic: "topic-system-events"},
		Dump:   dumpStore,
		Retry:  processing.Policy{Attempts: 3, Backoff: 10 * time.Second, Sleep: func(time.Duration) {}},
	}

	g.NotifySystem(context.Background(), types.SystemEvent{ID: "evt-8"})
	assert.Equal(t, 2, attempts)
}
