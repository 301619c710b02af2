package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/radar-volume-etl/internal/observability"
)

var errUnavailable = errors.New("station registry unavailable")

// Client looks stations up from an HTTP registry at GET {base}/stations/{id}.
// Repeated failures open a circuit breaker so decoding is not held up by a
// dead registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a registry client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "station-registry",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// Lookup fetches one station.
func (c *Client) Lookup(ctx context.Context, id string) (Station, error) {
	start := time.Now()
	st, err := c.lookup(ctx, id)
	c.metrics.RegistryAPIDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		c.metrics.RegistryRequests.WithLabelValues("success").Inc()
	case IsNotFound(err):
		c.metrics.RegistryRequests.WithLabelValues("not_found").Inc()
	default:
		c.metrics.RegistryRequests.WithLabelValues("error").Inc()
		c.logger.Warn("station registry lookup failed", "station", id, "error", err)
	}
	return st, err
}

func (c *Client) lookup(ctx context.Context, id string) (Station, error) {
	u := fmt.Sprintf("%s/stations/%s", c.baseURL, url.PathEscape(id))
	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("registry request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			// Unknown stations do not trip the breaker.
			return nil, nil
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("registry API error: status %d: %s", resp.StatusCode, body)
		}
		var st Station
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return st, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Station{}, fmt.Errorf("%w: %v", errUnavailable, err)
		}
		return Station{}, err
	}
	st, ok := result.(Station)
	if !ok {
		return Station{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if st.ID == "" {
		st.ID = id
	}
	return st, nil
}

// CheckReadiness reports an error while the circuit breaker is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.circuit.State() == gobreaker.StateOpen {
		return errUnavailable
	}
	return nil
}
