package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/skyhookdb/skyhook-go/pkg/acl"
	"github.com/skyhookdb/skyhook-go/pkg/logger"
	"github.com/skyhookdb/skyhook-go/pkg/object"
)

// Server error code used for faults the handler did not signal explicitly.
const internalErrorCode = 1

// HandlerError is the typed failure a webhook handler signals deliberately.
// The dispatch edge translates it into a structured error response instead of
// letting it propagate as an opaque fault.
type HandlerError struct {
	Code    int
	Message string
}

func (e *HandlerError) Error() string {
	return e.Message
}

// Error signals a webhook failure with the given message.
func Error(message string) *HandlerError {
	return &HandlerError{Message: message}
}

// Errorf is Error with formatting.
func Errorf(format string, args ...any) *HandlerError {
	return &HandlerError{Message: fmt.Sprintf(format, args...)}
}

// HandlerFunc processes one webhook call. The returned value becomes the
// "result" of the response; errors become structured error responses.
type HandlerFunc func(ctx context.Context, p *Payload) (any, error)

type triggerKey struct {
	kind  TriggerKind
	class string
}

// Dispatcher routes inbound webhook calls to registered handlers and owns the
// HTTP edge: decoding, error translation, and panic containment.
type Dispatcher struct {
	registry  *object.Registry
	defaults  *acl.Defaults
	logger    logger.Logger
	functions map[string]HandlerFunc
	triggers  map[triggerKey]HandlerFunc
}

type DispatcherOption func(*Dispatcher)

func WithRegistry(r *object.Registry) DispatcherOption {
	return func(d *Dispatcher) { d.registry = r }
}

func WithDefaultACLs(a *acl.Defaults) DispatcherOption {
	return func(d *Dispatcher) { d.defaults = a }
}

func WithLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:  object.NewRegistry(),
		defaults:  acl.NewDefaults(),
		logger:    logger.NewNoopLogger(),
		functions: make(map[string]HandlerFunc),
		triggers:  make(map[triggerKey]HandlerFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Function registers a cloud-function handler.
func (d *Dispatcher) Function(name string, fn HandlerFunc) {
	d.functions[name] = fn
}

// Trigger registers a trigger handler for a class.
func (d *Dispatcher) Trigger(kind TriggerKind, class string, fn HandlerFunc) {
	d.triggers[triggerKey{kind: kind, class: class}] = fn
}

// ServeHTTP implements the inbound webhook contract: a JSON body in, and
// always a structured JSON body out. Handler-signaled errors map to a 400
// with the handler's message; anything unexpected, including a panicking
// handler, still produces a structured 500 rather than crashing the process.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		d.writeError(w, http.StatusBadRequest, &HandlerError{Message: "unreadable request body"})
		return
	}
	p, err := DecodePayload(body)
	if err != nil {
		d.writeError(w, http.StatusBadRequest, &HandlerError{Message: err.Error()})
		return
	}
	p.Bind(d.registry, d.defaults)

	fn, ok := d.route(p)
	if !ok {
		d.writeError(w, http.StatusNotFound, &HandlerError{Message: "no handler registered"})
		return
	}

	result, err := d.invoke(r.Context(), fn, p)
	if err != nil {
		var herr *HandlerError
		if errors.As(err, &herr) {
			d.writeError(w, http.StatusBadRequest, herr)
			return
		}
		d.logger.Error("webhook handler fault", zap.Error(err))
		d.writeError(w, http.StatusInternalServerError, &HandlerError{Code: internalErrorCode, Message: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	raw, _ := json.Marshal(map[string]any{"result": result})
	_, _ = w.Write(raw)
}

func (d *Dispatcher) route(p *Payload) (HandlerFunc, bool) {
	if p.IsFunction() {
		fn, ok := d.functions[p.FunctionName]
		return fn, ok
	}
	if p.TriggerName != "" {
		fn, ok := d.triggers[triggerKey{kind: p.TriggerName, class: p.resolveClass()}]
		return fn, ok
	}
	return nil, false
}

// invoke runs the handler with panic containment so an internal fault still
// yields a structured response.
func (d *Dispatcher) invoke(ctx context.Context, fn HandlerFunc, p *Payload) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, p)
}

func (d *Dispatcher) writeError(w http.ResponseWriter, status int, herr *HandlerError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, _ := json.Marshal(map[string]any{"code": herr.Code, "error": herr.Message})
	_, _ = w.Write(raw)
}
