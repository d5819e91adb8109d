package registry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkock/autolookup/config"
)

const successBody = `{
	"data": [{
		"identity": {"registration": "AB12345", "vin": "WVWZZZ1JZXW000010", "id": 9000123},
		"ownership": {"owner_name": "Jane Doe", "owner_address": "Langgade 1, 8000 Aarhus"},
		"technical_data": {"brand": "Volkswagen", "model": "Golf", "model_year": 2019, "total_weight": 1860, "own_weight": 1320, "fuel_type": "Benzin"},
		"registration": {"first_registration_date": "2019-04-01", "next_inspection_date": "2027-04-01"}
	}]
}`

// step is one canned response from the scripted registry.
type step struct {
	status int
	header http.Header
	body   string
}

// scriptedTransport plays back a fixed sequence of responses and counts the
// requests that reach it. When the script runs out, the last step repeats.
type scriptedTransport struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.calls
	if i >= len(t.steps) {
		i = len(t.steps) - 1
	}
	t.calls++
	s := t.steps[i]
	header := s.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Request:    req,
	}, nil
}

func (t *scriptedTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// fakeClock advances its own time whenever the client sleeps, so retry flows
// run instantly and every computed delay is observable.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func retryHeader(val string) http.Header {
	h := http.Header{}
	h.Set("Retry-After", val)
	return h
}

func newTestClient(t *testing.T, waitWhenThrottled bool, steps ...step) (*Client, *scriptedTransport, *fakeClock) {
	t.Helper()
	cnf := config.RegistryConfig{
		Key:               "token",
		Host:              "registry.test",
		Path:              "api/v2/vehicles",
		Secure:            true,
		TimeZone:          "Europe/Copenhagen",
		BackoffMillis:     500,
		WaitWhenThrottled: waitWhenThrottled,
	}
	c, err := New(cnf, nil)
	require.NoError(t, err)
	transport := &scriptedTransport{steps: steps}
	clock := &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	c.httpClient = &http.Client{Transport: transport}
	c.clock = clock
	return c, transport, clock
}

func TestLookupRegNrSuccess(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 200, body: successBody})
	inf, err := c.LookupRegNr(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.callCount())
	require.NotNil(t, inf.RegNr)
	assert.Equal(t, "AB12345", *inf.RegNr)
	require.NotNil(t, inf.OwnerName)
	assert.Equal(t, "Jane Doe", *inf.OwnerName)
	require.NotNil(t, inf.ModelYear)
	assert.Equal(t, 2019, *inf.ModelYear)
	require.NotNil(t, inf.FirstRegDate)
	assert.Equal(t, "2019-04-01", inf.FirstRegDate.Format("2006-01-02"))
	assert.Nil(t, inf.ErrorMessage)
	assert.NotZero(t, inf.MetaData.Hash)
	assert.Equal(t, "registry.test", inf.MetaData.Source)
}

func TestLookupEmptyValue(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 200, body: successBody})
	_, err := c.LookupRegNr(context.Background(), "  ")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, BadRequest, apiErr.Kind)
	assert.Equal(t, 0, transport.callCount(), "no network call for an empty lookup value")
}

func TestThrottledLookupWaitsAndRetries(t *testing.T) {
	c, transport, clock := newTestClient(t, false,
		step{status: 429, header: retryHeader("5")},
		step{status: 200, body: successBody},
	)
	inf, err := c.LookupVIN(context.Background(), "WVWZZZ1JZXW000010")
	require.NoError(t, err)
	assert.Equal(t, 2, transport.callCount())
	sleeps := clock.slept()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 5*time.Second, "must wait at least the advertised delay")
	require.NotNil(t, inf.VIN)
	assert.Equal(t, "WVWZZZ1JZXW000010", *inf.VIN)
	assert.False(t, c.Status().Throttled, "a success clears the throttle window")
}

func TestRateLimitedAfterBoundedRetries(t *testing.T) {
	c, transport, _ := newTestClient(t, false,
		step{status: 429, header: retryHeader("5")},
		step{status: 429, header: retryHeader("7")},
	)
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, RateLimited, apiErr.Kind)
	assert.Equal(t, 429, apiErr.Status)
	assert.Equal(t, "7", apiErr.Details[DetailRetryAfter], "the last observed delay is reported")
	assert.Equal(t, 2, transport.callCount(), "one automatic retry by default")
	assert.True(t, c.Status().Throttled)
}

func TestThrottleStateFailsFast(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 200, body: successBody})
	c.markThrottled(10 * time.Second)
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, RateLimited, apiErr.Kind)
	assert.Equal(t, 0, transport.callCount(), "no network call inside the throttle window")
}

func TestThrottleStateBlocksWhenConfigured(t *testing.T) {
	c, transport, clock := newTestClient(t, true, step{status: 200, body: successBody})
	c.markThrottled(10 * time.Second)
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.callCount())
	sleeps := clock.slept()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 10*time.Second, sleeps[0])
}

func TestQuotaExhaustedOn422(t *testing.T) {
	c, transport, clock := newTestClient(t, false,
		step{status: 422},
		step{status: 200, body: successBody},
	)
	loc, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)
	wantReset := time.Date(2026, 8, 24, 0, 0, 0, 0, loc)

	_, err = c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, QuotaExceeded, apiErr.Kind)
	assert.Equal(t, 422, apiErr.Status)
	assert.Equal(t, wantReset.Format(time.RFC3339), apiErr.Details[DetailResetAt])
	assert.Equal(t, 1, transport.callCount())

	// Before the boundary: same failure, no network call.
	_, err = c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok = AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, QuotaExceeded, apiErr.Kind)
	assert.Equal(t, 1, transport.callCount())

	// After the boundary the client may reach the network again.
	clock.advance(wantReset.Sub(clock.Now()) + time.Minute)
	_, err = c.LookupRegNr(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Equal(t, 2, transport.callCount())
}

func TestQuotaCheckPrecedesThrottleCheck(t *testing.T) {
	c, transport, _ := newTestClient(t, true, step{status: 200, body: successBody})
	c.markQuotaExhausted()
	c.markThrottled(10 * time.Second)
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, QuotaExceeded, apiErr.Kind, "an exhausted client must not even attempt a throttled call")
	assert.Equal(t, 0, transport.callCount())
}

func TestBadRequestIsNotRetried(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 400})
	_, err := c.LookupRegNr(context.Background(), "??")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, BadRequest, apiErr.Kind)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, 1, transport.callCount())
}

func TestServerErrorBackoff(t *testing.T) {
	c, transport, clock := newTestClient(t, false, step{status: 503})
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, ServerError, apiErr.Kind)
	assert.Equal(t, 503, apiErr.Status)
	assert.Equal(t, 4, transport.callCount(), "initial attempt plus three retries")
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, clock.slept())
}

func TestServerErrorRecovers(t *testing.T) {
	c, transport, _ := newTestClient(t, false,
		step{status: 500},
		step{status: 200, body: successBody},
	)
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Equal(t, 2, transport.callCount())
}

func TestUnexpectedStatus(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 302})
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, ServerError, apiErr.Kind)
	assert.Equal(t, 302, apiErr.Status, "the raw status is preserved")
	assert.Equal(t, 1, transport.callCount())
}

func TestContextExpiryAbandonsRetries(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 503})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.LookupRegNr(ctx, "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, NetworkError, apiErr.Kind)
	assert.LessOrEqual(t, transport.callCount(), 1, "no further retries once the deadline is gone")
}

func TestLookupsAreIndependent(t *testing.T) {
	c, transport, _ := newTestClient(t, false, step{status: 200, body: successBody})
	first, err := c.LookupRegNr(context.Background(), "AB12345")
	require.NoError(t, err)
	second, err := c.LookupRegNr(context.Background(), "AB12345")
	require.NoError(t, err)
	assert.Equal(t, 2, transport.callCount(), "the client caches nothing")
	assert.Equal(t, first.MetaData.Hash, second.MetaData.Hash)
}

func TestMalformedSuccessBody(t *testing.T) {
	c, _, _ := newTestClient(t, false, step{status: 200, body: "certainly not JSON"})
	_, err := c.LookupRegNr(context.Background(), "AB12345")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, DecodeError, apiErr.Kind)
}
