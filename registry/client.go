// Package registry implements a resilient client for a government vehicle
// registry. Given a registration number or a VIN, it authenticates against
// the registry's HTTP API, interprets quota and rate-limit signals, retries
// where that makes sense, and flattens the registry's nested response into a
// vehicle.Info record.
package registry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mkock/autolookup/config"
	"github.com/mkock/autolookup/vehicle"
)

// Defaults applied by New when the corresponding config value is zero.
const (
	defaultTimeout    = 10 * time.Second
	defaultRetries429 = 1
	defaultRetries5xx = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultTimeZone   = "Europe/Copenhagen"
)

// Client performs vehicle lookups against the registry. It owns the
// process-wide quota and throttle state, so a host application should create
// one Client and share it; concurrent lookups through the same Client
// serialize their view of that state.
type Client struct {
	cnf        config.RegistryConfig
	httpClient *http.Client
	clock      Clock
	logger     *log.Logger
	loc        *time.Location

	maxRetries429 int
	maxRetries5xx int
	backoff       time.Duration

	mu    sync.Mutex
	quota quotaState
	rate  rateState
}

// New returns a Client for the registry described by cnf. A nil logger
// silences the client.
func New(cnf config.RegistryConfig, logger *log.Logger) (*Client, error) {
	if cnf.TimeoutSecs == 0 {
		cnf.TimeoutSecs = int(defaultTimeout / time.Second)
	}
	if cnf.MaxRetries429 == 0 {
		cnf.MaxRetries429 = defaultRetries429
	}
	if cnf.MaxRetries5xx == 0 {
		cnf.MaxRetries5xx = defaultRetries5xx
	}
	if cnf.BackoffMillis == 0 {
		cnf.BackoffMillis = int(defaultBackoff / time.Millisecond)
	}
	if cnf.TimeZone == "" {
		cnf.TimeZone = defaultTimeZone
	}
	loc, err := cnf.Location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		cnf:           cnf,
		httpClient:    &http.Client{Timeout: cnf.Timeout()},
		clock:         systemClock{},
		logger:        logger,
		loc:           loc,
		maxRetries429: cnf.MaxRetries429,
		maxRetries5xx: cnf.MaxRetries5xx,
		backoff:       cnf.Backoff(),
	}, nil
}

// LookupRegNr looks up a vehicle based on its registration number. It blocks
// until a record or an error is available; the context bounds the entire
// operation, retries included.
func (c *Client) LookupRegNr(ctx context.Context, regNr string) (vehicle.Info, error) {
	return c.lookup(ctx, lookupKey{kind: regNrKey, value: regNr})
}

// LookupVIN looks up a vehicle based on its VIN.
func (c *Client) LookupVIN(ctx context.Context, vin string) (vehicle.Info, error) {
	return c.lookup(ctx, lookupKey{kind: vinKey, value: vin})
}

func (c *Client) lookup(ctx context.Context, key lookupKey) (vehicle.Info, error) {
	if strings.TrimSpace(key.value) == "" {
		return vehicle.Info{}, newBadRequest(0, "empty lookup value")
	}
	body, apiErr := c.dispatch(ctx, key)
	if apiErr != nil {
		return vehicle.Info{}, apiErr
	}
	raw, apiErr := decodeBody(body, key)
	if apiErr != nil {
		return vehicle.Info{}, apiErr
	}
	inf := normalize(raw)
	inf.MetaData.Source = c.cnf.Host
	inf.MetaData.LastUpdated = c.clock.Now()
	if err := inf.GenHash(); err != nil {
		c.logger.Error("unable to fingerprint vehicle record", "err", err)
	}
	return inf, nil
}

// Status is a point-in-time snapshot of the client's shared state.
type Status struct {
	QuotaExhausted bool       `json:"quotaExhausted"`
	QuotaResetAt   *time.Time `json:"quotaResetAt,omitempty"`
	Throttled      bool       `json:"throttled"`
	ThrottledUntil *time.Time `json:"throttledUntil,omitempty"`
}

// Status reports whether the client is currently quota-exhausted or inside a
// throttle window.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	var st Status
	now := c.clock.Now()
	if c.quota.exhausted && now.Before(c.quota.until) {
		until := c.quota.until
		st.QuotaExhausted = true
		st.QuotaResetAt = &until
	}
	if c.rate.throttled && now.Before(c.rate.until) {
		until := c.rate.until
		st.Throttled = true
		st.ThrottledUntil = &until
	}
	return st
}
