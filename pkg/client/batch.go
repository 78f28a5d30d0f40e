package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/skyhookdb/skyhook-go/pkg/object"
)

// collectionFromPath extracts the collection from a "/classes/<name>[/<id>]"
// path.
func collectionFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/classes/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// BatchOperation is one write in a batch request. Path is relative to the API
// mount point; the executor prefixes the mount path when building the wire
// request, since the server requires fully mounted paths inside a batch.
type BatchOperation struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body,omitempty"`
}

// CreateOperation builds the batch write for a new record.
func CreateOperation(r *object.Record) BatchOperation {
	return BatchOperation{
		Method: http.MethodPost,
		Path:   classPath(r.ClassName()),
		Body:   createBody(r),
	}
}

// UpdateOperation builds the batch write for a record's dirty fields.
func UpdateOperation(r *object.Record) BatchOperation {
	return BatchOperation{
		Method: http.MethodPut,
		Path:   objectPath(r.ClassName(), r.ID()),
		Body:   r.ChangesPayload(),
	}
}

// DeleteOperation builds the batch delete for a record.
func DeleteOperation(r *object.Record) BatchOperation {
	return BatchOperation{
		Method: http.MethodDelete,
		Path:   objectPath(r.ClassName(), r.ID()),
	}
}

// BatchResult is the outcome of one operation, correlated to its input by
// position. Sub-operation failures are data, not exceptions: inspect Err per
// item.
type BatchResult struct {
	Success map[string]any
	Err     error
}

func (r BatchResult) OK() bool {
	return r.Err == nil
}

// ExecuteBatch runs the operations in input order, chunked to the server's
// batch cap and fanned out across a bounded worker pool. The result list
// always has one entry per operation, in the same order. A chunk whose
// transport fails is retried as a unit by the retry policy; a partial-success
// response is never retried, its individual failures are reported as-is.
func (c *Client) ExecuteBatch(ctx context.Context, ops []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(ops))
	if len(ops) == 0 {
		return results, nil
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.concurrency)

	for start := 0; start < len(ops); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ops) {
			end = len(ops)
		}
		start, end := start, end

		p.Go(func(ctx context.Context) error {
			c.runChunk(ctx, ops[start:end], results[start:end])
			return nil
		})
	}

	// chunk failures land in per-item results, so Wait only surfaces a
	// canceled context
	_ = p.Wait()
	return results, ctx.Err()
}

// runChunk executes one batch POST and writes each sub-result into the
// matching slot of out.
func (c *Client) runChunk(ctx context.Context, ops []BatchOperation, out []BatchResult) {
	requests := make([]BatchOperation, len(ops))
	touched := make(map[string]struct{})
	for i, op := range ops {
		if col := collectionFromPath(op.Path); col != "" {
			touched[col] = struct{}{}
		}
		op.Path = c.mountPath + op.Path
		requests[i] = op
	}
	for col := range touched {
		c.cacheMW.Invalidate(col)
	}

	resp, err := c.do(ctx, http.MethodPost, "/batch", nil, map[string]any{"requests": requests}, requestOptions{})
	if err != nil {
		for i := range out {
			out[i] = BatchResult{Err: err}
		}
		return
	}

	var items []struct {
		Success map[string]any `json:"success"`
		Error   *APIError      `json:"error"`
	}
	if err := json.Unmarshal(resp.body, &items); err != nil {
		for i := range out {
			out[i] = BatchResult{Err: err}
		}
		return
	}

	for i := range out {
		if i >= len(items) {
			out[i] = BatchResult{Err: fmt.Errorf("batch response missing result %d", i)}
			continue
		}
		if items[i].Error != nil {
			out[i] = BatchResult{Err: items[i].Error}
			continue
		}
		out[i] = BatchResult{Success: items[i].Success}
	}
}
