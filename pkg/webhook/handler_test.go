package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func post(t *testing.T, d *Dispatcher, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	rr := httptest.NewRecorder()
	d.ServeHTTP(rr, req)
	return rr
}

func TestDispatchFunction(t *testing.T) {
	d := NewDispatcher()
	d.Function("hello", func(ctx context.Context, p *Payload) (any, error) {
		return map[string]any{"greeting": "hi " + p.Params["name"].(string)}, nil
	})

	rr := post(t, d, `{"functionName": "hello", "params": {"name": "sam"}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"result":{"greeting":"hi sam"}}`, rr.Body.String())
}

func TestDispatchTriggerSeesDiff(t *testing.T) {
	d := NewDispatcher()
	var changed []string
	d.Trigger(BeforeSave, "Song", func(ctx context.Context, p *Payload) (any, error) {
		rec, err := p.DomainObject(false)
		require.NoError(t, err)
		changed = rec.Changed()
		return nil, nil
	})

	rr := post(t, d, `{
		"triggerName": "beforeSave",
		"className": "Song",
		"original": {"objectId": "s1", "name": "A"},
		"object":   {"objectId": "s1", "name": "B"}
	}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"name"}, changed)
}

func TestHandlerErrorBecomesStructured400(t *testing.T) {
	d := NewDispatcher()
	d.Function("boom", func(ctx context.Context, p *Payload) (any, error) {
		return nil, &HandlerError{Code: 141, Message: "validation failed"}
	})

	rr := post(t, d, `{"functionName": "boom"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"code":141,"error":"validation failed"}`, rr.Body.String())
}

func TestPanicBecomesStructured500(t *testing.T) {
	d := NewDispatcher()
	d.Function("crash", func(ctx context.Context, p *Payload) (any, error) {
		panic("nope")
	})

	rr := post(t, d, `{"functionName": "crash"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"code":1,"error":"internal error"}`, rr.Body.String())
}

func TestUnroutablePayloadIs404(t *testing.T) {
	d := NewDispatcher()

	rr := post(t, d, `{"functionName": "missing"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = post(t, d, `{"triggerName": "beforeSave", "className": "Song", "object": {}}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMalformedBodyIs400(t *testing.T) {
	d := NewDispatcher()
	rr := post(t, d, `{not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOpaqueErrorIsMaskedAs500(t *testing.T) {
	d := NewDispatcher()
	d.Function("fail", func(ctx context.Context, p *Payload) (any, error) {
		return nil, context.DeadlineExceeded
	})

	rr := post(t, d, `{"functionName": "fail"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "deadline")
}
