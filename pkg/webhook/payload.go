// Package webhook receives server-pushed trigger and function calls and
// rebuilds dirty-tracked domain records from their before/after payloads.
package webhook

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/skyhookdb/skyhook-go/pkg/acl"
	"github.com/skyhookdb/skyhook-go/pkg/object"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TriggerKind identifies which server hook delivered the payload.
type TriggerKind string

const (
	BeforeSave   TriggerKind = "beforeSave"
	AfterSave    TriggerKind = "afterSave"
	BeforeDelete TriggerKind = "beforeDelete"
	AfterDelete  TriggerKind = "afterDelete"
	BeforeFind   TriggerKind = "beforeFind"
	AfterFind    TriggerKind = "afterFind"
)

// Payload is one inbound webhook call. It is decoded once and read-only to
// handler code; the only mutable output is the record DomainObject emits.
type Payload struct {
	TriggerName    TriggerKind    `json:"triggerName,omitempty"`
	FunctionName   string         `json:"functionName,omitempty"`
	ClassName      string         `json:"className,omitempty"`
	Object         map[string]any `json:"object,omitempty"`
	Original       map[string]any `json:"original,omitempty"`
	Update         map[string]any `json:"update,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	Master         bool           `json:"master,omitempty"`
	User           map[string]any `json:"user,omitempty"`
	InstallationID string         `json:"installationId,omitempty"`

	registry *object.Registry
	defaults *acl.Defaults
}

// snakeAliases maps the snake_case spellings some server versions emit onto
// the canonical camelCase keys.
var snakeAliases = map[string]string{
	"trigger_name":    "triggerName",
	"function_name":   "functionName",
	"class_name":      "className",
	"installation_id": "installationId",
}

// DecodePayload parses an inbound webhook body, normalizing key casing before
// unmarshaling.
func DecodePayload(data []byte) (*Payload, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	for k, v := range raw {
		if canonical, ok := snakeAliases[strings.ToLower(k)]; ok && k != canonical {
			raw[canonical] = v
			delete(raw, k)
		}
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(normalized, &p); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}
	return &p, nil
}

// Bind attaches the class registry and default ACL rules used during
// reconstruction. The dispatcher does this automatically.
func (p *Payload) Bind(registry *object.Registry, defaults *acl.Defaults) {
	p.registry = registry
	p.defaults = defaults
}

// IsFunction reports whether this is a function invocation (no trigger).
func (p *Payload) IsFunction() bool {
	return p.TriggerName == "" && p.FunctionName != ""
}

// IsBeforeTrigger reports whether the payload came from a before-hook.
func (p *Payload) IsBeforeTrigger() bool {
	switch p.TriggerName {
	case BeforeSave, BeforeDelete, BeforeFind:
		return true
	}
	return false
}

func (p *Payload) resolveClass() string {
	if p.ClassName != "" {
		return p.ClassName
	}
	if cn, ok := p.Object["className"].(string); ok {
		return cn
	}
	return ""
}

// DomainObject rebuilds the record this payload describes. Function
// invocations carry no object and return nil.
//
// With pristine set, the record is decoded plainly from the object payload
// with no change tracking. Otherwise, for before-triggers with an original
// state, the record is decoded from original and the object's fields are
// applied as tracked mutations, so the handler sees exactly which fields
// differ from the persisted state. Without an original, the record is a
// brand-new instance of the resolved class.
//
// Records of an authenticating-principal class additionally merge third-party
// auth data arriving in the update delta, since auth-linking never rides
// inside object.
func (p *Payload) DomainObject(pristine bool) (*object.Record, error) {
	if p.IsFunction() || p.Object == nil {
		return nil, nil
	}
	class := p.resolveClass()
	if class == "" {
		return nil, fmt.Errorf("webhook payload has no resolvable class")
	}

	var rec *object.Record
	switch {
	case pristine:
		rec = object.Decode(class, p.Object, p.defaults)

	case p.IsBeforeTrigger() && p.Original != nil:
		rec = object.Decode(class, p.Original, p.defaults)
		for k, v := range p.Object {
			switch k {
			case object.KeyObjectID, object.KeyCreatedAt, object.KeyUpdatedAt, object.KeyACL, "className", "__type":
				continue
			}
			rec.Set(k, v)
		}
		p.applyExplicitACL(rec)

	case p.IsBeforeTrigger():
		rec = object.NewRecord(class, p.defaults)
		for k, v := range p.Object {
			switch k {
			case object.KeyObjectID, object.KeyCreatedAt, object.KeyUpdatedAt, object.KeyACL, "className", "__type":
				continue
			}
			rec.Set(k, v)
		}
		p.applyExplicitACL(rec)

	default:
		rec = object.Decode(class, p.Object, p.defaults)
	}

	p.mergeAuthData(class, rec)
	return rec, nil
}

// applyExplicitACL keeps the ACL the server sent inside object, if any. A
// payload-carried ACL always wins over class defaults; a record rebuilt from a
// trigger must never gain rights the server did not grant.
func (p *Payload) applyExplicitACL(rec *object.Record) {
	v, ok := p.Object[object.KeyACL]
	if !ok {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	a := acl.New()
	if err := json.Unmarshal(raw, a); err != nil {
		return
	}
	rec.SetACL(a)
}

// mergeAuthData folds auth-linking deltas onto user-class records.
func (p *Payload) mergeAuthData(class string, rec *object.Record) {
	if p.registry == nil || !p.registry.IsUserClass(class) {
		return
	}
	delta, ok := p.Update[object.KeyAuthData].(map[string]any)
	if !ok {
		return
	}
	merged := make(map[string]any, len(delta))
	if existing, ok := rec.Get(object.KeyAuthData); ok {
		if em, ok := existing.(map[string]any); ok {
			for k, v := range em {
				merged[k] = v
			}
		}
	}
	for k, v := range delta {
		merged[k] = v
	}
	rec.Set(object.KeyAuthData, merged)
}
