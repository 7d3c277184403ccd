package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/learnd/internal/experiment"
	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/reflection"
)

// Client reads learning state from a learnd server.
type Client struct {
	baseURL string
	client  *http.Client
}

// Snapshot is one poll of the learnd API.
type Snapshot struct {
	Insights     []insight.Insight
	Experiments  []experiment.Experiment
	Connections  int
	Concepts     int
	MetaInsights []reflection.MetaInsight
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Snapshot fetches insights, running experiments, knowledge counts and
// meta-insights. Any failed request fails the whole snapshot.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	var insights struct {
		Insights []insight.Insight `json:"insights"`
	}
	if err := c.get(ctx, "/api/v1/insights", url.Values{"active": {"true"}}, &insights); err != nil {
		return Snapshot{}, err
	}
	snap.Insights = insights.Insights

	var experiments struct {
		Experiments []experiment.Experiment `json:"experiments"`
	}
	if err := c.get(ctx, "/api/v1/experiments", url.Values{"active": {"true"}}, &experiments); err != nil {
		return Snapshot{}, err
	}
	snap.Experiments = experiments.Experiments

	var connections struct {
		Connections []knowledge.Connection `json:"connections"`
	}
	if err := c.get(ctx, "/api/v1/knowledge/connections", nil, &connections); err != nil {
		return Snapshot{}, err
	}
	snap.Connections = len(connections.Connections)

	var concepts struct {
		Concepts []knowledge.Concept `json:"concepts"`
	}
	if err := c.get(ctx, "/api/v1/knowledge/concepts", nil, &concepts); err != nil {
		return Snapshot{}, err
	}
	snap.Concepts = len(concepts.Concepts)

	var meta struct {
		Insights []reflection.MetaInsight `json:"insights"`
	}
	if err := c.get(ctx, "/api/v1/reflection/insights", nil, &meta); err != nil {
		return Snapshot{}, err
	}
	snap.MetaInsights = meta.Insights

	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// MeanConfidence averages insight confidence, 0 for none.
func (s Snapshot) MeanConfidence() float64 {
	if len(s.Insights) == 0 {
		return 0
	}
	var sum float64
	for _, in := range s.Insights {
		sum += in.Confidence
	}
	return sum / float64(len(s.Insights))
}

// LevelCounts counts insights per confidence level.
func (s Snapshot) LevelCounts() map[insight.Level]int {
	counts := make(map[insight.Level]int, 5)
	for _, in := range s.Insights {
		counts[in.Level]++
	}
	return counts
}
