package shared

import (
	"context"
	"errors"
	"time"

	"github.com/pulseloop/server/pkg/types"
)

// ErrNotFound is returned by lookups that found no row/document.
var ErrNotFound = errors.New("not found")

// --- Persistence Interfaces ---

type Database interface {
	// GetCredential returns the stored provider connection for a user.
	GetCredential(ctx context.Context, userID string) (*types.UserCredential, error)

	// SetCooldown moves the user's cooldown_until forward to `until`.
	// A value earlier than the stored one is a no-op; cooldowns never move
	// backwards.
	SetCooldown(ctx context.Context, userID string, until time.Time) error

	// GetDailyRecord returns the record for (user, device, eventType, day),
	// or ErrNotFound.
	GetDailyRecord(ctx context.Context, userID string, device types.Device, eventType string, day time.Time) (*types.DailyRecord, error)

	// UpsertDailyRecord atomically inserts the record or overwrites the
	// payload of the existing one for the same key, preserving creation
	// identity. Safe under concurrent writers for the same key.
	UpsertDailyRecord(ctx context.Context, rec *types.DailyRecord) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// --- Task Runtime Interfaces ---

// Scheduler submits a request back to the external task runtime for delivery
// at (or after) eta. dedupKey, when non-empty, is handed to the runtime as its
// deduplication token.
type Scheduler interface {
	Schedule(ctx context.Context, req types.ProcessingRequest, eta time.Time, dedupKey string) error
}

// --- Failure Dump Interfaces ---

// Dumpable is anything the failure dump can persist.
type Dumpable interface {
	DumpID() string
	DumpFields() map[string]interface{}
}

type DumpStore interface {
	Dump(ctx context.Context, obj Dumpable) error
}

// DumpReader enumerates and loads dumped records (ops surface).
type DumpReader interface {
	ListKeys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (map[string]string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}
