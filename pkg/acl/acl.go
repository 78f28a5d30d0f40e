// Package acl models record-level access control: an ordered mapping from a
// subject key to read/write rights, plus per-class default rules applied to
// newly constructed records. The public subject is "*"; role subjects use the
// "role:<name>" form. A subject with no entry has no access except through a
// master credential, which the server enforces.
package acl

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Public is the subject key granting rights to everyone.
const Public = "*"

const rolePrefix = "role:"

// Permission is the pair of rights a subject holds on a record.
// Value-typed; two permissions are equal when their fields are equal.
type Permission struct {
	Read  bool `json:"read,omitempty"`
	Write bool `json:"write,omitempty"`
}

// None reports whether the permission grants nothing.
func (p Permission) None() bool {
	return !p.Read && !p.Write
}

type entry struct {
	subject string
	perm    Permission
}

// ACL is an ordered subject -> Permission mapping. The zero value is usable
// and grants nothing.
type ACL struct {
	entries []entry
}

// New returns an empty ACL.
func New() *ACL {
	return &ACL{}
}

// RoleSubject returns the subject key for a named role.
func RoleSubject(name string) string {
	return rolePrefix + name
}

// Apply sets the rights for a subject. Applying false/false removes any
// existing entry instead of recording a no-op grant. Re-applying an existing
// subject updates it in place, keeping its position.
func (a *ACL) Apply(subject string, read, write bool) *ACL {
	if !read && !write {
		a.remove(subject)
		return a
	}
	for i := range a.entries {
		if a.entries[i].subject == subject {
			a.entries[i].perm = Permission{Read: read, Write: write}
			return a
		}
	}
	a.entries = append(a.entries, entry{subject: subject, perm: Permission{Read: read, Write: write}})
	return a
}

// ApplyRole is sugar for Apply("role:<name>", ...).
func (a *ACL) ApplyRole(name string, read, write bool) *ACL {
	return a.Apply(RoleSubject(name), read, write)
}

func (a *ACL) remove(subject string) {
	for i := range a.entries {
		if a.entries[i].subject == subject {
			a.entries = append(a.entries[:i], a.entries[i+1:]...)
			return
		}
	}
}

// Get returns the permission for a subject and whether an entry exists.
func (a *ACL) Get(subject string) (Permission, bool) {
	for _, e := range a.entries {
		if e.subject == subject {
			return e.perm, true
		}
	}
	return Permission{}, false
}

// Subjects returns the subject keys in insertion order.
func (a *ACL) Subjects() []string {
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.subject)
	}
	return out
}

// Len returns the number of entries.
func (a *ACL) Len() int {
	return len(a.entries)
}

// Equals reports structural equality against a plain subject -> rights map.
func (a *ACL) Equals(m map[string]Permission) bool {
	if len(a.entries) != len(m) {
		return false
	}
	for _, e := range a.entries {
		p, ok := m[e.subject]
		if !ok || p != e.perm {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (a *ACL) Clone() *ACL {
	c := &ACL{entries: make([]entry, len(a.entries))}
	copy(c.entries, a.entries)
	return c
}

// MarshalJSON encodes the wire form: {"subject": {"read": true, "write": true}, ...}.
// Rights that are false are omitted, matching the server's encoding.
func (a *ACL) MarshalJSON() ([]byte, error) {
	m := make(map[string]Permission, len(a.entries))
	for _, e := range a.entries {
		m[e.subject] = e.perm
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the wire form. Entry order follows the server payload
// only as far as map iteration allows; callers relying on order should use
// Apply. An explicitly empty object decodes to an empty, non-nil ACL.
func (a *ACL) UnmarshalJSON(data []byte) error {
	var m map[string]Permission
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	a.entries = a.entries[:0]
	for subject, perm := range m {
		if perm.None() {
			continue
		}
		a.entries = append(a.entries, entry{subject: subject, perm: perm})
	}
	return nil
}
