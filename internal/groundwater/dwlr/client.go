// Package dwlr provides a client for a Digital Water Level Recorder feed.
package dwlr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "dwlr"

	// DefaultSnapshotWindow is how far back FetchSnapshot reads.
	DefaultSnapshotWindow = 7 * 24 * time.Hour

	// maxPages bounds pagination against a misbehaving feed.
	maxPages = 500
)

// ClientConfig holds configuration for the DWLR client.
type ClientConfig struct {
	// BaseURL is the feed base URL. Required.
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives health reports from the default resilient client.
	Registry *resilience.Registry

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration

	// SnapshotWindow limits how far back FetchSnapshot reads readings.
	SnapshotWindow time.Duration

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a DWLR feed client.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     HTTPDoer
	snapshotWindow time.Duration
	clock          clockwork.Clock
}

// NewClient creates a new DWLR client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	window := cfg.SnapshotWindow
	if window == 0 {
		window = DefaultSnapshotWindow
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		httpClient:     httpClient,
		snapshotWindow: window,
		clock:          clock,
	}
}

// Feed response types.

type pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type stationsResponse struct {
	Pagination pagination    `json:"pagination"`
	Data       []stationData `json:"data"`
}

type stationData struct {
	WLCode   string  `json:"wlcode"`
	SiteName string  `json:"site_name"`
	District string  `json:"district"`
	State    string  `json:"state"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

type readingsResponse struct {
	Pagination pagination    `json:"pagination"`
	Data       []readingData `json:"data"`
}

type readingData struct {
	WLCode     string   `json:"wlcode"`
	WaterLevel *float64 `json:"water_level"`
	MeasuredAt string   `json:"measured_at"`
}

// FetchStations retrieves every station in the feed.
func (c *Client) FetchStations(ctx context.Context) ([]*groundwater.Station, error) {
	now := c.clock.Now()
	var stations []*groundwater.Station

	err := c.paginate(ctx, "stations", nil, func(body *json.Decoder) (int, error) {
		var result stationsResponse
		if err := body.Decode(&result); err != nil {
			return 0, fmt.Errorf("decode stations response: %w", err)
		}
		for _, s := range result.Data {
			if s.WLCode == "" {
				continue
			}
			stations = append(stations, &groundwater.Station{
				ID:        s.WLCode,
				Name:      s.SiteName,
				District:  s.District,
				State:     s.State,
				Lat:       s.Lat,
				Lon:       s.Lon,
				UpdatedAt: now,
			})
		}
		return result.Pagination.LastPage, nil
	})
	if err != nil {
		return nil, err
	}

	return stations, nil
}

// FetchReadings retrieves readings measured at or after since.
// Readings without a level or a parseable timestamp are skipped.
func (c *Client) FetchReadings(ctx context.Context, since time.Time) ([]*groundwater.Reading, error) {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))

	var readings []*groundwater.Reading
	err := c.paginate(ctx, "readings", params, func(body *json.Decoder) (int, error) {
		var result readingsResponse
		if err := body.Decode(&result); err != nil {
			return 0, fmt.Errorf("decode readings response: %w", err)
		}
		for _, r := range result.Data {
			if reading := toReading(&r); reading != nil {
				readings = append(readings, reading)
			}
		}
		return result.Pagination.LastPage, nil
	})
	if err != nil {
		return nil, err
	}

	return readings, nil
}

// FetchSnapshot fetches stations and the readings of the snapshot window.
func (c *Client) FetchSnapshot(ctx context.Context) (*groundwater.Snapshot, error) {
	stations, err := c.FetchStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}

	now := c.clock.Now()
	readings, err := c.FetchReadings(ctx, now.Add(-c.snapshotWindow))
	if err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}

	snapshot := groundwater.NewSnapshot(ProviderName, now)
	for _, s := range stations {
		snapshot.Stations[s.ID] = s
	}
	for _, r := range readings {
		if _, ok := snapshot.Stations[r.StationID]; ok {
			snapshot.AddReading(r)
		}
	}

	return snapshot, nil
}

// paginate requests page 1..last of endpoint, handing each body to decode,
// which returns the last page number reported by the feed.
func (c *Client) paginate(ctx context.Context, endpoint string, params url.Values, decode func(*json.Decoder) (int, error)) error {
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))

		lastPage, err := c.fetchPage(ctx, endpoint, q, decode)
		if err != nil {
			return err
		}
		if page >= lastPage {
			return nil
		}
	}
	return fmt.Errorf("%s: more than %d pages", endpoint, maxPages)
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, q url.Values, decode func(*json.Decoder) (int, error)) (int, error) {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d from %s endpoint", resp.StatusCode, endpoint)
	}

	return decode(json.NewDecoder(resp.Body))
}

// toReading converts feed reading data to a domain Reading.
func toReading(r *readingData) *groundwater.Reading {
	if r.WLCode == "" || r.WaterLevel == nil {
		return nil
	}
	measuredAt, err := time.Parse(time.RFC3339, r.MeasuredAt)
	if err != nil {
		return nil
	}
	return &groundwater.Reading{
		StationID:  r.WLCode,
		Level:      *r.WaterLevel,
		MeasuredAt: measuredAt,
	}
}
