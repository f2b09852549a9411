package connectors

import (
	"context"
	"net/http"
	"time"

	"github.com/pulseloop/server/pkg/infrastructure/oauth"
	"github.com/pulseloop/server/pkg/types"
)

const humanAPIBaseURL = "https://api.humanapi.co"

// HumanAPIConnector fetches activity summaries updated since the start of
// the request's UTC day.
type HumanAPIConnector struct {
	BaseURL string
	Client  *http.Client
	day     time.Time
}

func NewHumanAPIConnector(req types.ProcessingRequest) Connector {
	return &HumanAPIConnector{
		BaseURL: humanAPIBaseURL,
		day:     req.ProcessingTime,
	}
}

func (c *HumanAPIConnector) Fetch(ctx context.Context, cred *types.UserCredential) (Outcome, error) {
	client := c.Client
	if client == nil {
		client = oauth.NewClient(ctx, cred)
	}
	since := types.DayOf(c.day).Format("20060102T150405Z")
	url := c.BaseURL + "/v1/human/activities/summaries?updated_since=" + since
	return fetchJSON(ctx, client, url)
}
