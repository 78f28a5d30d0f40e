package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/skyhookdb/skyhook-go/pkg/object"
	"github.com/skyhookdb/skyhook-go/pkg/query"
)

func classPath(collection string) string {
	return "/classes/" + collection
}

func objectPath(collection, objectID string) string {
	return "/classes/" + collection + "/" + objectID
}

// queryRequest compiles a query into URL parameters, resolving the limit
// sentinels against the client's configured cap.
func (c *Client) queryRequest(q *query.Query) (url.Values, requestOptions, error) {
	compiled, err := q.Compile()
	if err != nil {
		return nil, requestOptions{}, err
	}
	params, err := compiled.Values()
	if err != nil {
		return nil, requestOptions{}, err
	}
	if compiled.HasLimit {
		switch compiled.Limit {
		case query.Unlimited:
			params.Del("limit")
		case query.MaxLimit:
			params.Set("limit", strconv.Itoa(c.limitCap))
		}
	}

	opts := requestOptions{
		collection:    q.Collection(),
		sessionToken:  q.Session(),
		useMasterKey:  q.MasterKey(),
		cacheDisabled: q.CacheDisabled(),
	}
	if ttl, ok := q.CacheOverride(); ok {
		opts.cacheTTL = ttl
		opts.cacheOverride = true
	}
	return params, opts, nil
}

// Find runs the query and decodes the matching records.
func (c *Client) Find(ctx context.Context, q *query.Query) ([]*object.Record, error) {
	params, opts, err := c.queryRequest(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, classPath(q.Collection()), params, nil, opts)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return nil, err
	}
	records := make([]*object.Record, 0, len(envelope.Results))
	for _, payload := range envelope.Results {
		records = append(records, object.Decode(q.Collection(), payload, c.defaults))
	}
	return records, nil
}

// First returns the first match, or nil when nothing matches.
func (c *Client) First(ctx context.Context, q *query.Query) (*object.Record, error) {
	records, err := c.Find(ctx, q.Clone().Limit(1))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// CountQuery runs the query in count mode.
func (c *Client) CountQuery(ctx context.Context, q *query.Query) (int, error) {
	params, opts, err := c.queryRequest(q.Count())
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodGet, classPath(q.Collection()), params, nil, opts)
	if err != nil {
		return 0, err
	}

	var envelope struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return 0, err
	}
	return envelope.Count, nil
}

// Get fetches one record by ID.
func (c *Client) Get(ctx context.Context, collection, objectID string) (*object.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, objectPath(collection, objectID), nil, nil, requestOptions{collection: collection})
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, err
	}
	return object.Decode(collection, payload, c.defaults), nil
}

// Create saves a new record and folds the server-assigned identity back in.
func (c *Client) Create(ctx context.Context, r *object.Record) error {
	body := createBody(r)
	resp, err := c.do(ctx, http.MethodPost, classPath(r.ClassName()), nil, body, requestOptions{collection: r.ClassName()})
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return err
	}
	r.ApplyServerResult(payload)
	return nil
}

// Update sends only the record's dirty fields.
func (c *Client) Update(ctx context.Context, r *object.Record) error {
	if r.ID() == "" {
		return fmt.Errorf("cannot update a record without an id")
	}
	if !r.Dirty() {
		return nil
	}
	resp, err := c.do(ctx, http.MethodPut, objectPath(r.ClassName(), r.ID()), nil, r.ChangesPayload(), requestOptions{collection: r.ClassName()})
	if err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return err
	}
	r.ApplyServerResult(payload)
	return nil
}

// Delete removes the record on the server.
func (c *Client) Delete(ctx context.Context, r *object.Record) error {
	if r.ID() == "" {
		return fmt.Errorf("cannot delete a record without an id")
	}
	_, err := c.do(ctx, http.MethodDelete, objectPath(r.ClassName(), r.ID()), nil, nil, requestOptions{collection: r.ClassName()})
	return err
}

// createBody renders a new record's full attribute set plus its ACL.
func createBody(r *object.Record) map[string]any {
	body := make(map[string]any, len(r.Attributes())+1)
	for k, v := range r.Attributes() {
		body[k] = v
	}
	if a := r.ACL(); a != nil && a.Len() > 0 {
		body[object.KeyACL] = a
	}
	return body
}
