package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// keyKind selects which lookup variant a key represents.
type keyKind int

const (
	regNrKey keyKind = iota
	vinKey
)

// lookupKey is the value a lookup is keyed on: either a registration number
// or a VIN, never both.
type lookupKey struct {
	kind  keyKind
	value string
}

// response is the transport-level result of a single attempt against the registry.
type response struct {
	status int
	header http.Header
	body   []byte
}

// reqURL builds the authenticated registry URL for the given key.
func (c *Client) reqURL(key lookupKey) (string, error) {
	proto := "http"
	if c.cnf.Secure {
		proto = proto + "s" // https
	}
	var raw string
	switch key.kind {
	case vinKey:
		raw = fmt.Sprintf("%s://%s/%s/vin/%s?api_token=%s", proto, c.cnf.Host, c.cnf.Path, url.PathEscape(key.value), url.QueryEscape(c.cnf.Key))
	default:
		raw = fmt.Sprintf("%s://%s/%s/%s?api_token=%s", proto, c.cnf.Host, c.cnf.Path, url.PathEscape(key.value), url.QueryEscape(c.cnf.Key))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// exec performs one request against the registry and returns the raw result.
// It never retries; the retry policy lives with dispatch.
func (c *Client) exec(ctx context.Context, key lookupKey) (response, *APIError) {
	reqURL, err := c.reqURL(key)
	if err != nil {
		return response{}, newBadRequest(0, fmt.Sprintf("unable to build lookup URL: %s", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return response{}, newBadRequest(0, fmt.Sprintf("unable to build lookup request: %s", err))
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		// Covers connection failures and the per-request timeout alike.
		return response{}, newNetworkError(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return response{}, newNetworkError(err)
	}
	return response{status: res.StatusCode, header: res.Header, body: body}, nil
}
