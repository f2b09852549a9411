package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Device identifies a wearable provider. Values are wire-compatible with the
// integer device_type carried in request envelopes.
type Device int

const (
	DeviceFitbit   Device = 1
	DeviceHumanAPI Device = 3
	DeviceMoves    Device = 6
)

func (d Device) String() string {
	switch d {
	case DeviceFitbit:
		return "fitbit"
	case DeviceHumanAPI:
		return "humanapi"
	case DeviceMoves:
		return "moves"
	default:
		return fmt.Sprintf("device(%d)", int(d))
	}
}

// ProcessingRequest is one unit of work handed to the orchestrator. It is
// immutable once created; redelivery after a rate limit carries the identical
// request so the retried invocation is indistinguishable from the original.
type ProcessingRequest struct {
	UserID         string
	SequenceID     string
	DeviceType     Device
	EventType      string
	ProcessingTime time.Time
}

// Envelope is the JSON shape of a request as delivered by the task runtime.
type Envelope struct {
	UserID              string `json:"user_id"`
	SequenceID          string `json:"sequence_id"`
	DeviceType          int    `json:"device_type"`
	EventType           string `json:"event_type"`
	ProcessingTimestamp string `json:"processing_timestamp,omitempty"`
}

// Request converts the envelope into a ProcessingRequest. An absent or
// unparseable processing_timestamp falls back to now.
func (e Envelope) Request(now func() time.Time) ProcessingRequest {
	t, err := time.Parse(time.RFC3339, e.ProcessingTimestamp)
	if err != nil {
		t = now()
	}
	return ProcessingRequest{
		UserID:         e.UserID,
		SequenceID:     e.SequenceID,
		DeviceType:     Device(e.DeviceType),
		EventType:      e.EventType,
		ProcessingTime: t,
	}
}

// NewEnvelope builds the wire form of a request for redelivery or follow-up
// submission. Fields round-trip unchanged.
func NewEnvelope(req ProcessingRequest) Envelope {
	return Envelope{
		UserID:              req.UserID,
		SequenceID:          req.SequenceID,
		DeviceType:          int(req.DeviceType),
		EventType:           req.EventType,
		ProcessingTimestamp: req.ProcessingTime.UTC().Format(time.RFC3339),
	}
}

// PubSubMessage is the payload of a Pub/Sub event via Cloud Event.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
}

// UserCredential holds provider tokens plus the rate-limit cooldown for one
// user connection. Owned by the credential store; the pipeline only ever
// moves CooldownUntil forward.
type UserCredential struct {
	UserID            string
	AccessToken       string
	AccessTokenSecret string
	OAuthToken        string
	OAuthTokenSecret  string
	CooldownUntil     *time.Time
}

// CooldownActive reports whether the provider may not be called yet.
func (c *UserCredential) CooldownActive(now time.Time) bool {
	return c.CooldownUntil != nil && now.Before(*c.CooldownUntil)
}

// DailyRecord is the single historical snapshot per
// (user, device, event type, UTC day). The payload is overwritten in place on
// repeat events within the day; creation identity is preserved.
type DailyRecord struct {
	ID         int64
	UserID     string
	DeviceType Device
	EventType  string
	Day        time.Time
	Payload    json.RawMessage
	SequenceID string
	EventClass string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// UserEvent is a downstream notification about newly ingested data.
type UserEvent struct {
	Body     map[string]interface{}
	Priority int
}

// SystemEvent is an operational alert.
type SystemEvent struct {
	ID      string
	Time    time.Time
	Kind    string
	Message string
}

// DumpID implements dump.Dumpable.
func (e SystemEvent) DumpID() string { return e.ID }

// DumpFields implements dump.Dumpable.
func (e SystemEvent) DumpFields() map[string]interface{} {
	return map[string]interface{}{
		"id":      e.ID,
		"time":    e.Time.UTC().Format(time.RFC3339),
		"type":    e.Kind,
		"message": e.Message,
	}
}

// FailedTask captures a task invocation that ended in a terminal error, for
// the failure dump.
type FailedTask struct {
	ID        string
	Name      string
	Args      map[string]interface{}
	Exception string
}

func (t FailedTask) DumpID() string { return t.ID }

func (t FailedTask) DumpFields() map[string]interface{} {
	return map[string]interface{}{
		"id":        t.ID,
		"name":      t.Name,
		"args":      t.Args,
		"exception": t.Exception,
	}
}
