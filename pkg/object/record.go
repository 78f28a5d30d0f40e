package object

import (
	"sort"
	"time"

	"github.com/skyhookdb/skyhook-go/pkg/acl"
)

// Reserved attribute keys the record manages itself.
const (
	KeyObjectID  = "objectId"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
	KeyACL       = "ACL"
	KeyAuthData  = "authData"
)

// Record is a client-side view of one server document. Attribute writes are
// tracked per field against the last known persisted state, so a save can
// send only the delta and webhook handlers can see exactly what changed.
type Record struct {
	className string
	objectID  string
	createdAt time.Time
	updatedAt time.Time

	attrs    map[string]any
	baseline map[string]any // persisted value per dirty field
	dirty    map[string]struct{}

	acl   *acl.ACL
	isNew bool
}

// NewRecord returns a fresh, unsaved record. When defaults is non-nil the
// class's configured default ACL rules are applied at construction.
func NewRecord(className string, defaults *acl.Defaults) *Record {
	r := &Record{
		className: className,
		attrs:     make(map[string]any),
		baseline:  make(map[string]any),
		dirty:     make(map[string]struct{}),
		isNew:     true,
	}
	if defaults != nil {
		r.acl = defaults.Build(className)
	} else {
		r.acl = acl.New()
	}
	return r
}

// Decode builds a record from a server payload. The result is clean: no field
// is marked dirty. A payload that explicitly carries an ACL key keeps exactly
// what the server sent, including an empty ACL; only an absent key falls back
// to the class defaults.
func Decode(className string, payload map[string]any, defaults *acl.Defaults) *Record {
	r := &Record{
		className: className,
		attrs:     make(map[string]any, len(payload)),
		baseline:  make(map[string]any),
		dirty:     make(map[string]struct{}),
	}

	aclSeen := false
	for k, v := range payload {
		switch k {
		case KeyObjectID:
			r.objectID, _ = v.(string)
		case KeyCreatedAt:
			r.createdAt, _ = DecodeDate(v)
		case KeyUpdatedAt:
			r.updatedAt, _ = DecodeDate(v)
		case KeyACL:
			aclSeen = true
			r.acl = decodeACL(v)
		case "__type", "className":
			// pointer envelope noise, not data
		default:
			r.attrs[k] = v
		}
	}

	if !aclSeen {
		if defaults != nil {
			r.acl = defaults.Build(className)
		} else {
			r.acl = acl.New()
		}
	}
	r.isNew = r.objectID == ""
	return r
}

func decodeACL(v any) *acl.ACL {
	a := acl.New()
	m, ok := v.(map[string]any)
	if !ok {
		return a
	}
	for subject, rights := range m {
		rm, ok := rights.(map[string]any)
		if !ok {
			continue
		}
		read, _ := rm["read"].(bool)
		write, _ := rm["write"].(bool)
		a.Apply(subject, read, write)
	}
	return a
}

func (r *Record) ClassName() string    { return r.className }
func (r *Record) ID() string           { return r.objectID }
func (r *Record) CreatedAt() time.Time { return r.createdAt }
func (r *Record) UpdatedAt() time.Time { return r.updatedAt }
func (r *Record) IsNew() bool          { return r.isNew }
func (r *Record) ACL() *acl.ACL        { return r.acl }

func (r *Record) SetACL(a *acl.ACL) {
	r.acl = a
}

// Get returns the current value of a field.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.attrs[field]
	return v, ok
}

// Set writes a field value and records the change. Writing a value equal to
// the current one is a no-op.
func (r *Record) Set(field string, value any) {
	if cur, ok := r.attrs[field]; ok && equalValue(cur, value) {
		return
	}
	if _, tracked := r.dirty[field]; !tracked {
		if old, existed := r.attrs[field]; existed {
			r.baseline[field] = old
		}
		r.dirty[field] = struct{}{}
	}
	r.attrs[field] = value
}

// Unset removes a field, tracked like any other change.
func (r *Record) Unset(field string) {
	if _, ok := r.attrs[field]; !ok {
		return
	}
	if _, tracked := r.dirty[field]; !tracked {
		r.baseline[field] = r.attrs[field]
		r.dirty[field] = struct{}{}
	}
	delete(r.attrs, field)
}

// Changed returns the names of dirty fields, sorted.
func (r *Record) Changed() []string {
	out := make([]string, 0, len(r.dirty))
	for f := range r.dirty {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// WasChanged reports whether a field differs from its persisted value.
func (r *Record) WasChanged(field string) bool {
	_, ok := r.dirty[field]
	return ok
}

// Previous returns the persisted value a dirty field had before mutation.
func (r *Record) Previous(field string) (any, bool) {
	if _, ok := r.dirty[field]; !ok {
		return nil, false
	}
	v, had := r.baseline[field]
	return v, had
}

// Dirty reports whether any field changed.
func (r *Record) Dirty() bool {
	return len(r.dirty) > 0
}

// ChangesPayload returns only the dirty fields and their current values, the
// body of an update request.
func (r *Record) ChangesPayload() map[string]any {
	out := make(map[string]any, len(r.dirty))
	for f := range r.dirty {
		if v, ok := r.attrs[f]; ok {
			out[f] = v
		} else {
			out[f] = map[string]any{"__op": "Delete"}
		}
	}
	return out
}

// Attributes returns the full current attribute map. The map is shared; treat
// it as read-only.
func (r *Record) Attributes() map[string]any {
	return r.attrs
}

// ClearChanges accepts the current values as persisted state.
func (r *Record) ClearChanges() {
	r.dirty = make(map[string]struct{})
	r.baseline = make(map[string]any)
	r.isNew = r.objectID == ""
}

// ApplyServerResult folds a save response (objectId, createdAt, updatedAt)
// back into the record and marks it clean.
func (r *Record) ApplyServerResult(payload map[string]any) {
	if id, ok := payload[KeyObjectID].(string); ok && id != "" {
		r.objectID = id
	}
	if t, ok := DecodeDate(payload[KeyCreatedAt]); ok {
		r.createdAt = t
	}
	if t, ok := DecodeDate(payload[KeyUpdatedAt]); ok {
		r.updatedAt = t
	}
	r.ClearChanges()
}

// Pointer returns the record's pointer form.
func (r *Record) Pointer() Pointer {
	return Pointer{ClassName: r.className, ObjectID: r.objectID}
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return false
}
