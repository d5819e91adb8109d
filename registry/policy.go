package registry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// quotaState tracks the registry's daily lookup ceiling. Once exhausted, no
// request leaves the process before the reset boundary.
type quotaState struct {
	exhausted bool
	until     time.Time
}

// rateState tracks a server-signalled throttle window. It is set from the
// Retry-After header of a 429 and cleared by the next successful call.
type rateState struct {
	throttled bool
	until     time.Time
	lastDelay time.Duration
}

var midnight = cronexpr.MustParse("0 0 * * *")

// nextMidnight returns the next local-midnight boundary in the given zone.
func nextMidnight(now time.Time, loc *time.Location) time.Time {
	return midnight.Next(now.In(loc))
}

// dispatch runs the quota/rate-limit policy around the request executor: it
// gates on shared state before each attempt, interprets the status code
// afterwards, and owns all retries. The loop is bounded by the two retry
// counters and by the caller's context.
func (c *Client) dispatch(ctx context.Context, key lookupKey) ([]byte, *APIError) {
	var (
		retried429 int
		retried5xx int
		backoff    = c.backoff
	)
	for {
		if apiErr := c.gate(ctx); apiErr != nil {
			return nil, apiErr
		}
		res, apiErr := c.exec(ctx, key)
		if apiErr != nil {
			if ctx.Err() != nil {
				return nil, newNetworkError(fmt.Errorf("lookup abandoned: %s", ctx.Err()))
			}
			return nil, apiErr
		}
		switch {
		case res.status >= 200 && res.status < 300:
			c.clearThrottle()
			return res.body, nil
		case res.status == http.StatusBadRequest:
			return nil, newBadRequest(res.status, "the registry rejected the lookup value")
		case res.status == http.StatusUnprocessableEntity:
			// This registry signals quota exhaustion with a 422, not with the
			// general HTTP meaning of the code. Keep the mapping here so it can
			// be revised if the registry changes its mind.
			resetAt := c.markQuotaExhausted()
			return nil, newQuotaExceeded(res.status, resetAt)
		case res.status == http.StatusTooManyRequests:
			delay := retryAfter(res.header, c.clock.Now())
			c.markThrottled(delay)
			if retried429 >= c.maxRetries429 {
				return nil, newRateLimited(res.status, delay)
			}
			retried429++
			c.logger.Warn("registry throttled the lookup", "delay", delay, "attempt", retried429)
			if err := c.clock.Sleep(ctx, delay); err != nil {
				return nil, newNetworkError(fmt.Errorf("lookup abandoned while throttled: %s", err))
			}
		case res.status >= 500 && res.status <= 599:
			if retried5xx >= c.maxRetries5xx {
				return nil, newServerError(res.status)
			}
			retried5xx++
			c.logger.Warn("registry error, backing off", "status", res.status, "delay", backoff, "attempt", retried5xx)
			if err := c.clock.Sleep(ctx, backoff); err != nil {
				return nil, newNetworkError(fmt.Errorf("lookup abandoned during backoff: %s", err))
			}
			backoff *= 2
		default:
			return nil, newServerError(res.status)
		}
	}
}

// gate enforces the shared quota and throttle state before an attempt. The
// quota check runs first: an exhausted client must not even attempt a
// throttled call. An expired quota window reopens here; the throttle flag is
// only cleared by a subsequent success.
func (c *Client) gate(ctx context.Context) *APIError {
	c.mu.Lock()
	now := c.clock.Now()
	if c.quota.exhausted {
		if now.Before(c.quota.until) {
			until := c.quota.until
			c.mu.Unlock()
			return newQuotaExceeded(0, until)
		}
		c.quota = quotaState{}
	}
	if c.rate.throttled && now.Before(c.rate.until) {
		wait := c.rate.until.Sub(now)
		delay := c.rate.lastDelay
		c.mu.Unlock()
		if !c.cnf.WaitWhenThrottled {
			return newRateLimited(0, delay)
		}
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return newNetworkError(fmt.Errorf("lookup abandoned while throttled: %s", err))
		}
		return nil
	}
	c.mu.Unlock()
	return nil
}

// markQuotaExhausted records that the daily ceiling was hit and returns the
// reset boundary: the next local midnight in the registry's home time zone.
func (c *Client) markQuotaExhausted() time.Time {
	resetAt := nextMidnight(c.clock.Now(), c.loc)
	c.mu.Lock()
	c.quota = quotaState{exhausted: true, until: resetAt}
	c.mu.Unlock()
	c.logger.Warn("registry quota exhausted", "resetAt", resetAt)
	return resetAt
}

// markThrottled opens a throttle window of the given length, protecting every
// other lookup in the process as well.
func (c *Client) markThrottled(delay time.Duration) {
	now := c.clock.Now()
	c.mu.Lock()
	c.rate = rateState{throttled: true, until: now.Add(delay), lastDelay: delay}
	c.mu.Unlock()
}

func (c *Client) clearThrottle() {
	c.mu.Lock()
	c.rate = rateState{}
	c.mu.Unlock()
}

// retryAfter reads the server-supplied delay from a throttle response. Both
// the delta-seconds and the HTTP-date form are accepted; a missing or
// unreadable header falls back to one second.
func retryAfter(header http.Header, now time.Time) time.Duration {
	val := strings.TrimSpace(header.Get("Retry-After"))
	if val == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return time.Second
}
