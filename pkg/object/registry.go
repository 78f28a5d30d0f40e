package object

import (
	"strings"
	"sync"
)

// UserClassName is the authenticating-principal class on the server.
const UserClassName = "_User"

// ClassOptions describe a registered class.
type ClassOptions struct {
	// Collection overrides the server collection name when it differs from
	// the class name.
	Collection string
	// User marks the class as an authenticating principal, enabling auth-data
	// merge during webhook reconstruction.
	User bool
}

// Registry maps user-facing class names to server collections and carries
// per-class metadata. Registration happens at initialization; lookups are safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]ClassOptions
	// field -> class, for id-operator collection inference overrides
	fieldClasses map[string]string
}

// NewRegistry returns a registry preloaded with the built-in user class.
func NewRegistry() *Registry {
	r := &Registry{
		classes:      make(map[string]ClassOptions),
		fieldClasses: make(map[string]string),
	}
	r.Register(UserClassName, ClassOptions{User: true})
	return r
}

// Register declares a class.
func (r *Registry) Register(class string, opts ClassOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class] = opts
}

// BindField pins a field name to a class for id-pointer inference, overriding
// the singularize-and-capitalize heuristic.
func (r *Registry) BindField(field, class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fieldClasses[field] = class
}

// Collection returns the server collection for a class.
func (r *Registry) Collection(class string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if opts, ok := r.classes[class]; ok && opts.Collection != "" {
		return opts.Collection
	}
	return class
}

// IsUserClass reports whether the class is an authenticating principal.
func (r *Registry) IsUserClass(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if opts, ok := r.classes[class]; ok {
		return opts.User
	}
	return class == UserClassName
}

// ClassForField resolves the class a foreign-key style field points at.
// A bound field wins; otherwise the field name is singularized and
// capitalized ("songs" -> "Song", "artist" -> "Artist").
func (r *Registry) ClassForField(field string) string {
	r.mu.RLock()
	class, ok := r.fieldClasses[field]
	r.mu.RUnlock()
	if ok {
		return class
	}
	return Capitalize(Singularize(field))
}

// Singularize strips common English plural suffixes. It covers the collection
// naming conventions this client expects; irregular nouns should be bound
// explicitly via BindField.
func Singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses") || strings.HasSuffix(s, "xes") ||
		strings.HasSuffix(s, "zes") || strings.HasSuffix(s, "ches") ||
		strings.HasSuffix(s, "shes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}

// Capitalize upper-cases the first byte of an ASCII identifier.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
