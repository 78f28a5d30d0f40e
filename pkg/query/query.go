package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/skyhookdb/skyhook-go/pkg/object"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Limit sentinels. Unlimited asks the server for everything it will give;
// MaxLimit resolves to the client's configured cap at request time rather
// than a hard-coded ceiling.
const (
	Unlimited = -1
	MaxLimit  = -2
)

// Query composes constraints, ordering, projection and paging for one
// collection. Build it fluently; Compile produces the wire representation.
type Query struct {
	collection  string
	constraints []*Constraint
	order       []string
	limit       int
	limitSet    bool
	skip        int
	keys        []string
	includes    []string

	sessionToken string
	useMasterKey bool

	cacheTTL      time.Duration
	cacheTTLSet   bool
	cacheDisabled bool

	isCount bool

	formatter FieldFormatter
	registry  *object.Registry
}

// New starts a query against a collection.
func New(collection string) *Query {
	return &Query{collection: collection}
}

// WithFormatter sets the field-name formatter for this query. The default is
// identity. Formatters are injected here rather than held as process-global
// state.
func (q *Query) WithFormatter(f FieldFormatter) *Query {
	q.formatter = f
	return q
}

// WithRegistry supplies the class registry used for id-pointer inference.
func (q *Query) WithRegistry(r *object.Registry) *Query {
	q.registry = r
	return q
}

func (q *Query) Collection() string { return q.collection }

// Clone copies the query, including its constraint list, so a caller can page
// without mutating the original.
func (q *Query) Clone() *Query {
	c := *q
	c.constraints = append([]*Constraint(nil), q.constraints...)
	c.order = append([]string(nil), q.order...)
	c.keys = append([]string(nil), q.keys...)
	c.includes = append([]string(nil), q.includes...)
	return &c
}

// Where appends constraints.
func (q *Query) Where(cs ...*Constraint) *Query {
	q.constraints = append(q.constraints, cs...)
	return q
}

// Constraints returns the accumulated constraints.
func (q *Query) Constraints() []*Constraint { return q.constraints }

// Order appends ordering fields; prefix a field with "-" for descending.
func (q *Query) Order(fields ...string) *Query {
	q.order = append(q.order, fields...)
	return q
}

// Reorder discards any accumulated ordering and replaces it.
func (q *Query) Reorder(fields ...string) *Query {
	q.order = append(q.order[:0:0], fields...)
	return q
}

// Limit sets the page size. Count mode freezes the limit at 0; later calls
// are ignored. Values beyond any historical server cap pass through
// unclamped; the server owns enforcement.
func (q *Query) Limit(n int) *Query {
	if q.isCount {
		return q
	}
	q.limit = n
	q.limitSet = true
	return q
}

// Skip sets the result offset, unclamped.
func (q *Query) Skip(n int) *Query {
	q.skip = n
	return q
}

// Keys restricts the returned fields. Inputs accumulate and deduplicate.
func (q *Query) Keys(fields ...string) *Query {
	q.keys = append(q.keys, fields...)
	return q
}

// Include requests full records for the named pointer fields.
func (q *Query) Include(fields ...string) *Query {
	q.includes = append(q.includes, fields...)
	return q
}

// Count switches the query to count mode: limit freezes at 0 and the wire
// query carries count=1.
func (q *Query) Count() *Query {
	q.isCount = true
	q.limit = 0
	q.limitSet = true
	return q
}

func (q *Query) IsCount() bool { return q.isCount }

// Cache overrides the client's default cache TTL for this query.
func (q *Query) Cache(ttl time.Duration) *Query {
	q.cacheTTL = ttl
	q.cacheTTLSet = true
	q.cacheDisabled = false
	return q
}

// NoCache disables caching for this query.
func (q *Query) NoCache() *Query {
	q.cacheDisabled = true
	q.cacheTTLSet = false
	return q
}

// CacheOverride returns the per-query TTL, if one was set.
func (q *Query) CacheOverride() (time.Duration, bool) {
	return q.cacheTTL, q.cacheTTLSet
}

func (q *Query) CacheDisabled() bool { return q.cacheDisabled }

// UseMasterKey sends this query with the master credential.
func (q *Query) UseMasterKey() *Query {
	q.useMasterKey = true
	return q
}

func (q *Query) MasterKey() bool { return q.useMasterKey }

// SessionTokenCarrier is anything that exposes a session token: a user, a
// session, or any credential-bearing value.
type SessionTokenCarrier interface {
	SessionToken() string
}

// UseSession scopes the query to a session credential. It accepts a raw token
// string or any SessionTokenCarrier; anything else is rejected immediately
// rather than at request time.
func (q *Query) UseSession(v any) error {
	switch tok := v.(type) {
	case string:
		q.sessionToken = tok
		return nil
	case SessionTokenCarrier:
		q.sessionToken = tok.SessionToken()
		return nil
	default:
		return invalidArgf("session credential must be a string or SessionTokenCarrier, got %T", v)
	}
}

func (q *Query) Session() string { return q.sessionToken }

// FiltersAnyField reports whether any constraint targets one of the named
// fields. Bulk iteration uses this to reject filters on its cursor fields.
func (q *Query) FiltersAnyField(fields ...string) bool {
	for _, c := range q.constraints {
		for _, f := range fields {
			if c.Field == f {
				return true
			}
		}
	}
	return false
}

// Compiled is the wire representation of a query.
type Compiled struct {
	Where    map[string]any
	Order    string
	Limit    int
	HasLimit bool
	Skip     int
	Keys     string
	Include  string
	Count    bool
}

func (q *Query) fieldFormatter() FieldFormatter {
	if q.formatter != nil {
		return q.formatter
	}
	return FormatIdentity
}

// CompileWhere compiles only the constraint set.
func (q *Query) CompileWhere(f FieldFormatter) (map[string]any, error) {
	if f == nil {
		f = q.fieldFormatter()
	}
	where := map[string]any{}
	opts := compileOptions{registry: q.registry}
	for _, c := range q.constraints {
		if err := c.compileInto(where, f, opts); err != nil {
			return nil, err
		}
	}
	return where, nil
}

// Compile produces the full wire form. Validation failures in any constraint
// surface here, before anything touches the network.
func (q *Query) Compile() (*Compiled, error) {
	f := q.fieldFormatter()
	where, err := q.CompileWhere(f)
	if err != nil {
		return nil, err
	}

	c := &Compiled{
		Where:   where,
		Skip:    q.skip,
		Count:   q.isCount,
		Keys:    joinFields(q.keys, f),
		Include: joinFields(q.includes, f),
	}
	if q.limitSet {
		c.Limit = q.limit
		c.HasLimit = true
	}
	if len(q.order) > 0 {
		parts := make([]string, 0, len(q.order))
		for _, o := range q.order {
			if strings.HasPrefix(o, "-") {
				parts = append(parts, "-"+f(o[1:]))
			} else {
				parts = append(parts, f(o))
			}
		}
		c.Order = strings.Join(parts, ",")
	}
	return c, nil
}

// Values renders the compiled query as URL parameters; where is
// double-encoded as a JSON string, matching the server's GET contract.
func (c *Compiled) Values() (url.Values, error) {
	v := url.Values{}
	if len(c.Where) > 0 {
		raw, err := json.Marshal(c.Where)
		if err != nil {
			return nil, err
		}
		v.Set("where", string(raw))
	}
	if c.Order != "" {
		v.Set("order", c.Order)
	}
	if c.HasLimit {
		v.Set("limit", strconv.Itoa(c.Limit))
	}
	if c.Skip > 0 {
		v.Set("skip", strconv.Itoa(c.Skip))
	}
	if c.Keys != "" {
		v.Set("keys", c.Keys)
	}
	if c.Include != "" {
		v.Set("include", c.Include)
	}
	if c.Count {
		v.Set("count", "1")
	}
	return v, nil
}

// joinFields normalizes a field list into a deduplicated, comma-joined,
// formatted string.
func joinFields(fields []string, f FieldFormatter) string {
	if len(fields) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		name := f(field)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return strings.Join(out, ",")
}
