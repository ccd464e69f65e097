package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lox/regionweather/internal/httputil"
	"github.com/lox/regionweather/internal/metrics"
	"github.com/lox/regionweather/internal/models"
)

const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// hourlyTimeLayout is the timestamp format in the provider's hourly.time column.
const hourlyTimeLayout = "2006-01-02T15:04"

// requestTimeout is tighter than the shared default: the caller falls back
// to synthetic data anyway, so there is no point waiting long.
const requestTimeout = 15 * time.Second

// Client fetches hourly series from an Open-Meteo style endpoint. A circuit
// breaker short-circuits calls after repeated failures so the caller falls
// back to synthetic data without waiting on a dead provider. There are no
// automatic retries: one request per Fetch.
type Client struct {
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		baseURL: baseURL,
		client:  httputil.NewClient(requestTimeout),
		circuit: cb,
	}
}

// hourlyResponse is the provider's columnar shape:
// {"hourly": {"time": [...], "<field>": [...], ...}}
type hourlyResponse struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// FetchHourly issues a single GET and transforms the columnar response into
// a row-oriented series.
func (c *Client) FetchHourly(ctx context.Context, p models.QueryParams) (models.Series, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%.4f", p.Latitude))
	values.Set("longitude", fmt.Sprintf("%.4f", p.Longitude))
	values.Set("start_date", p.StartDate)
	values.Set("end_date", p.EndDate)
	values.Set("hourly", strings.Join(p.Fields, ","))
	values.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.WeatherAPICallsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("fetch hourly: %w", err)
		}
		defer resp.Body.Close()

		metrics.WeatherAPICallsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("fetch hourly: status %d: %s", resp.StatusCode, string(b))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	})
	metrics.WeatherAPILatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	return transformHourly(result.([]byte), p.Fields)
}

// transformHourly converts the columnar payload into rows. A payload with no
// hourly block, no time column, or non-numeric field columns is malformed.
// Field columns shorter than the time column yield 0 for the missing tail.
func transformHourly(body []byte, fields []string) (models.Series, error) {
	var payload hourlyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if payload.Hourly == nil {
		return nil, fmt.Errorf("malformed payload: missing hourly block")
	}

	rawTimes, ok := payload.Hourly["time"]
	if !ok {
		return nil, fmt.Errorf("malformed payload: missing hourly.time")
	}
	var times []string
	if err := json.Unmarshal(rawTimes, &times); err != nil {
		return nil, fmt.Errorf("malformed payload: hourly.time: %w", err)
	}

	columns := make(map[string][]float64, len(fields))
	for _, field := range fields {
		raw, ok := payload.Hourly[field]
		if !ok {
			continue
		}
		// Providers emit null for gaps; decode through pointers.
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, fmt.Errorf("malformed payload: hourly.%s: %w", field, err)
		}
		vals := make([]float64, len(col))
		for i, v := range col {
			if v != nil {
				vals[i] = *v
			}
		}
		columns[field] = vals
	}

	series := make(models.Series, 0, len(times))
	for i, tstr := range times {
		ts, err := time.Parse(hourlyTimeLayout, tstr)
		if err != nil {
			// Some deployments return full RFC3339 stamps.
			ts, err = time.Parse(time.RFC3339, tstr)
			if err != nil {
				return nil, fmt.Errorf("malformed payload: time %q: %w", tstr, err)
			}
		}

		sample := models.Sample{Timestamp: ts, Values: make(map[string]float64, len(fields))}
		for _, field := range fields {
			col := columns[field]
			if i < len(col) {
				sample.Values[field] = col[i]
			} else {
				sample.Values[field] = 0
			}
		}
		series = append(series, sample)
	}

	return series, nil
}
