package connectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pulseloop/server/pkg/infrastructure/oauth"
	"github.com/pulseloop/server/pkg/types"
)

const fitbitBaseURL = "https://api.fitbit.com"

type fitbitResource string

const (
	fitbitResourceActivities fitbitResource = "1/user/-/activities/date/%s.json"
	fitbitResourceBody       fitbitResource = "1/user/-/bp/date/%s.json"
	fitbitResourceSleep      fitbitResource = "1.2/user/-/sleep/date/%s.json"
)

// FitbitConnector fetches one Fitbit resource (activities, body pressure,
// sleep) for the request's day. Fitbit signals rate limiting with 429 plus a
// Retry-After header; fetchJSON maps that to a RateLimited outcome.
type FitbitConnector struct {
	BaseURL  string
	Client   *http.Client // overrides the credential-derived client when set
	resource fitbitResource
	day      time.Time
}

func fitbitFactory(resource fitbitResource) Factory {
	return func(req types.ProcessingRequest) Connector {
		return &FitbitConnector{
			BaseURL:  fitbitBaseURL,
			resource: resource,
			day:      req.ProcessingTime,
		}
	}
}

func (c *FitbitConnector) Fetch(ctx context.Context, cred *types.UserCredential) (Outcome, error) {
	client := c.Client
	if client == nil {
		client = oauth.NewClient(ctx, cred)
	}
	path := fmt.Sprintf(string(c.resource), c.day.UTC().Format("2006-01-02"))
	return fetchJSON(ctx, client, c.BaseURL+"/"+path)
}
