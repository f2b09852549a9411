package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pulseloop/server/pkg/types"
)

// defaultRetryAfter is used when a provider rate-limits without saying for
// how long.
const defaultRetryAfter = 60 * time.Second

// Status tags a fetch outcome.
type Status int

const (
	StatusReady Status = iota
	StatusRateLimited
)

// Outcome is the tagged result of a connector fetch. Callers branch on the
// value: Ready carries the raw payload, RateLimited carries the provider's
// cool-down. Provider failures are plain errors alongside.
type Outcome struct {
	Status     Status
	Payload    json.RawMessage
	RetryAfter time.Duration
}

func Ready(payload json.RawMessage) Outcome {
	return Outcome{Status: StatusReady, Payload: payload}
}

func RateLimited(after time.Duration) Outcome {
	return Outcome{Status: StatusRateLimited, RetryAfter: after}
}

// Connector fetches raw event data for one user from one provider.
// Cooldown gating happens in the orchestrator; a connector is never invoked
// while the user's cooldown is active.
type Connector interface {
	Fetch(ctx context.Context, cred *types.UserCredential) (Outcome, error)
}

// SnapshotConnector is an optional interface for connectors whose providers
// stop sending live events before the day ends. The orchestrator schedules a
// guaranteed end-of-day re-fetch for them.
type SnapshotConnector interface {
	Connector
	NeedsFinalSnapshot() bool
}

// Factory builds a connector bound to one processing request.
type Factory func(req types.ProcessingRequest) Connector

// fetchJSON performs a provider GET and maps the transport-level outcome:
// 200 with a JSON body is Ready, 429 is RateLimited, anything else is an
// error.
func fetchJSON(ctx context.Context, client *http.Client, url string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return RateLimited(parseRetryAfter(resp.Header.Get("Retry-After"))), nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outcome{}, fmt.Errorf("provider status %d: %s", resp.StatusCode, string(body))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, err
	}
	if !json.Valid(payload) {
		return Outcome{}, errors.New("provider returned invalid JSON")
	}
	return Ready(payload), nil
}

func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
