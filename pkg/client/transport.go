package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/skyhookdb/skyhook-go/pkg/cache"
	"github.com/skyhookdb/skyhook-go/pkg/id"
)

// rawResponse is what the retry policy and cache middleware exchange.
type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// requestOptions carry per-request credentials and cache behavior.
type requestOptions struct {
	collection   string
	sessionToken string
	useMasterKey bool

	cacheTTL      time.Duration
	cacheOverride bool
	cacheDisabled bool
}

// do runs one logical request through the full pipeline: cache lookup,
// singleflight dedupe, retried transport, cache capture, error mapping.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, opts requestOptions) (*rawResponse, error) {
	if c.serverURL == nil {
		return nil, fmt.Errorf("client has no server URL configured")
	}

	u := *c.serverURL
	u.Path = c.mountPath + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyBytes = raw
	}

	ttl := c.cacheMW.ResolveTTL(opts.cacheTTL, opts.cacheOverride, opts.cacheDisabled)

	// Before also handles invalidation for mutating methods.
	if entry, ok := c.cacheMW.Before(method, &u, bodyBytes, opts.collection, ttl); ok {
		return &rawResponse{status: entry.StatusCode, header: headerFromMap(entry.Header), body: entry.Body}, nil
	}

	fetch := func() (any, error) {
		resp, err := c.retry.execute(ctx, func(ctx context.Context) (*rawResponse, error) {
			return c.send(ctx, method, &u, bodyBytes, opts)
		})
		if err != nil {
			return nil, err
		}
		c.cacheMW.After(method, &u, bodyBytes, opts.collection, &cache.Entry{
			Body:       resp.body,
			Header:     headerToMap(resp.header),
			StatusCode: resp.status,
		}, ttl)
		return resp, nil
	}

	var result any
	var err error
	if method == http.MethodGet && ttl > 0 {
		key := c.cacheMW.FingerprintKey(method, &u, bodyBytes, opts.collection)
		result, err = c.cacheMW.Do(key, fetch)
	} else {
		result, err = fetch()
	}
	if err != nil {
		return nil, err
	}

	resp := result.(*rawResponse)
	if resp.status >= 400 {
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// send performs one transport attempt.
func (c *Client) send(ctx context.Context, method string, u *url.URL, body []byte, opts requestOptions) (*rawResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, id.MustNewString())
	req.Header.Set(HeaderAppID, c.appID)
	if opts.useMasterKey && c.masterKey != "" {
		req.Header.Set(HeaderMasterKey, c.masterKey)
	} else {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if opts.sessionToken != "" {
		req.Header.Set(HeaderSessionToken, opts.sessionToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.DebugWithContext(ctx, "request",
		zap.String("method", method),
		zap.String("path", u.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &rawResponse{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

func decodeAPIError(resp *rawResponse) error {
	apiErr := &APIError{Status: resp.status}
	if err := json.Unmarshal(resp.body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.status)
	}
	return apiErr
}

func headerToMap(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func headerFromMap(m map[string]string) http.Header {
	h := http.Header{}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
