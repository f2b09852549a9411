package connectors

import (
	"context"
	"net/http"
	"time"

	"github.com/pulseloop/server/pkg/infrastructure/oauth"
	"github.com/pulseloop/server/pkg/types"
)

const movesBaseURL = "https://api.moves-app.com"

// MovesConnector fetches the daily storyline summary for the request's day.
// Moves pushes a DataUpload event only while the app is active, so a day can
// end without a final upload; NeedsFinalSnapshot makes the orchestrator
// schedule the guaranteed end-of-day re-fetch.
type MovesConnector struct {
	BaseURL string
	Client  *http.Client
	day     time.Time
}

func NewMovesConnector(req types.ProcessingRequest) Connector {
	return &MovesConnector{
		BaseURL: movesBaseURL,
		day:     req.ProcessingTime,
	}
}

func (c *MovesConnector) NeedsFinalSnapshot() bool { return true }

func (c *MovesConnector) Fetch(ctx context.Context, cred *types.UserCredential) (Outcome, error) {
	client := c.Client
	if client == nil {
		client = oauth.NewClient(ctx, cred)
	}
	url := c.BaseURL + "/api/1.1/user/summary/daily/" + c.day.UTC().Format("20060102")
	return fetchJSON(ctx, client, url)
}
