package query

import (
	"errors"
	"fmt"

	"github.com/skyhookdb/skyhook-go/pkg/object"
)

// ErrInvalidArgument tags constraint validation failures: wrong type for a
// boolean-only operator, too few polygon points, an empty search term. These
// surface at compile time, never from the network call.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// Constraint is one field + operator + value clause. Build one through F and
// its operator methods; it is consumed once when the query compiles.
type Constraint struct {
	Field string
	Op    Operator
	Value any
}

// F starts a constraint on a field.
func F(field string) *Constraint {
	return &Constraint{Field: field, Op: OpEqual}
}

// Where builds a constraint from an operator alias, resolving it through the
// static registry.
func Where(field, alias string, value any) (*Constraint, error) {
	op, ok := ResolveOperator(alias)
	if !ok {
		return nil, invalidArgf("unknown operator alias %q", alias)
	}
	return &Constraint{Field: field, Op: op, Value: value}, nil
}

func (c *Constraint) with(op Operator, v any) *Constraint {
	c.Op = op
	c.Value = v
	return c
}

func (c *Constraint) Eq(v any) *Constraint  { return c.with(OpEqual, v) }
func (c *Constraint) Ne(v any) *Constraint  { return c.with(OpNotEqual, v) }
func (c *Constraint) Gt(v any) *Constraint  { return c.with(OpGreaterThan, v) }
func (c *Constraint) Gte(v any) *Constraint { return c.with(OpGreaterOrEqual, v) }
func (c *Constraint) Lt(v any) *Constraint  { return c.with(OpLessThan, v) }
func (c *Constraint) Lte(v any) *Constraint { return c.with(OpLessOrEqual, v) }

// After, OnOrAfter, Before and OnOrBefore are the date-flavored spellings of
// the ordering family.
func (c *Constraint) After(v any) *Constraint      { return c.with(OpGreaterThan, v) }
func (c *Constraint) OnOrAfter(v any) *Constraint  { return c.with(OpGreaterOrEqual, v) }
func (c *Constraint) Before(v any) *Constraint     { return c.with(OpLessThan, v) }
func (c *Constraint) OnOrBefore(v any) *Constraint { return c.with(OpLessOrEqual, v) }

// In, NotIn and All accept a list or a scalar; scalars compile as
// single-element lists.
func (c *Constraint) In(v any) *Constraint    { return c.with(OpIn, v) }
func (c *Constraint) NotIn(v any) *Constraint { return c.with(OpNotIn, v) }
func (c *Constraint) All(v any) *Constraint   { return c.with(OpAll, v) }

// Exists asserts key presence. The value must be strictly boolean; anything
// else fails at compile time.
func (c *Constraint) Exists(v any) *Constraint { return c.with(OpExists, v) }

// Null asserts nullability. Null(true) compiles to absence-of-key
// ($exists: false); Null(false) asserts the key is present and non-null,
// which rewrites to $ne: null rather than $exists: true.
func (c *Constraint) Null(v any) *Constraint { return c.with(OpNull, v) }

// Like matches a regular expression; *regexp.Regexp values flatten to their
// pattern source.
func (c *Constraint) Like(v any) *Constraint { return c.with(OpLike, v) }

// InQuery and NotInQuery match against the results of a sub-query.
func (c *Constraint) InQuery(q *Query) *Constraint    { return c.with(OpInQuery, q) }
func (c *Constraint) NotInQuery(q *Query) *Constraint { return c.with(OpNotInQuery, q) }

// ID turns a bare identifier into a full pointer equality. The target class
// is inferred from the field name (singularized and capitalized) unless the
// registry binds the field explicitly.
func (c *Constraint) ID(v any) *Constraint { return c.with(OpID, v) }

// Near orders results by distance from a geo point.
func (c *Constraint) Near(p object.GeoPoint) *Constraint { return c.with(OpNearSphere, p) }

// WithinBox matches points inside the box spanned by the southwest and
// northeast corners.
func (c *Constraint) WithinBox(sw, ne object.GeoPoint) *Constraint {
	return c.with(OpWithinBox, []object.GeoPoint{sw, ne})
}

// WithinPolygon matches points inside the closed polygon. Fewer than 3 points
// fail at compile time.
func (c *Constraint) WithinPolygon(points ...object.GeoPoint) *Constraint {
	return c.with(OpWithinPolygon, points)
}

// TextSearch matches by full-text search term.
func (c *Constraint) TextSearch(v any) *Constraint { return c.with(OpTextSearch, v) }

// TextSearchOptions carries the optional full-text hints.
type TextSearchOptions struct {
	Term          string
	CaseSensitive *bool
	Language      string
}

type compileOptions struct {
	registry *object.Registry
}

// compileInto merges the constraint into the where map. Constraints on
// different fields land under their own keys; same-field constraints with
// different operators nest under one object; a repeated field+operator
// overwrites the prior value.
func (c *Constraint) compileInto(where map[string]any, f FieldFormatter, opts compileOptions) error {
	if c.Field == "" {
		return invalidArgf("constraint requires a field name")
	}
	field := f(c.Field)

	switch c.Op {
	case OpEqual:
		v, err := formatValue(c.Value, f, opts)
		if err != nil {
			return err
		}
		where[field] = v
		return nil

	case OpID:
		return c.compileID(where, field, opts)

	case OpExists:
		b, ok := c.Value.(bool)
		if !ok {
			return invalidArgf("exists requires a boolean, got %T", c.Value)
		}
		setOperator(where, field, "$exists", b)
		return nil

	case OpNull:
		b, ok := c.Value.(bool)
		if !ok {
			return invalidArgf("null requires a boolean, got %T", c.Value)
		}
		if b {
			setOperator(where, field, "$exists", false)
		} else {
			setOperator(where, field, "$ne", nil)
		}
		return nil

	case OpIn, OpNotIn, OpAll:
		list, err := formatValue(asList(c.Value), f, opts)
		if err != nil {
			return err
		}
		setOperator(where, field, wireKeys[c.Op], list)
		return nil

	case OpInQuery, OpNotInQuery:
		sub, ok := c.Value.(*Query)
		if !ok || sub == nil {
			return invalidArgf("%s requires a sub-query, got %T", c.Op, c.Value)
		}
		v, err := formatValue(sub, f, opts)
		if err != nil {
			return err
		}
		setOperator(where, field, wireKeys[c.Op], v)
		return nil

	case OpWithinBox:
		points, ok := c.Value.([]object.GeoPoint)
		if !ok || len(points) != 2 {
			return invalidArgf("within_box requires exactly 2 geo points")
		}
		setOperator(where, field, "$geoWithin", map[string]any{
			"$box": encodePoints(points),
		})
		return nil

	case OpWithinPolygon:
		points, ok := c.Value.([]object.GeoPoint)
		if !ok {
			return invalidArgf("within_polygon requires geo points, got %T", c.Value)
		}
		if len(points) < 3 {
			return invalidArgf("within_polygon requires at least 3 points, got %d", len(points))
		}
		setOperator(where, field, "$geoWithin", map[string]any{
			"$polygon": encodePoints(points),
		})
		return nil

	case OpTextSearch:
		return c.compileText(where, field)

	default:
		key, ok := wireKeys[c.Op]
		if !ok {
			return invalidArgf("operator %q is not registered", c.Op)
		}
		v, err := formatValue(c.Value, f, opts)
		if err != nil {
			return err
		}
		setOperator(where, field, key, v)
		return nil
	}
}

func (c *Constraint) compileID(where map[string]any, field string, opts compileOptions) error {
	switch v := c.Value.(type) {
	case string:
		class := object.Capitalize(object.Singularize(c.Field))
		if opts.registry != nil {
			class = opts.registry.ClassForField(c.Field)
		}
		where[field] = object.Pointer{ClassName: class, ObjectID: v}.Encode()
		return nil
	case object.Pointer:
		where[field] = v.Encode()
		return nil
	case *object.Pointer:
		if v == nil {
			return invalidArgf("id requires a string or pointer, got nil")
		}
		where[field] = v.Encode()
		return nil
	case *object.Record:
		if v == nil {
			return invalidArgf("id requires a string or pointer, got nil")
		}
		where[field] = v.Pointer().Encode()
		return nil
	default:
		return invalidArgf("id requires a string or pointer, got %T", c.Value)
	}
}

func (c *Constraint) compileText(where map[string]any, field string) error {
	search := map[string]any{}
	switch v := c.Value.(type) {
	case string:
		if v == "" {
			return invalidArgf("text_search requires a non-empty term")
		}
		search["$term"] = v
	case TextSearchOptions:
		if v.Term == "" {
			return invalidArgf("text_search requires a non-empty term")
		}
		search["$term"] = v.Term
		if v.CaseSensitive != nil {
			search["$caseSensitive"] = *v.CaseSensitive
		}
		if v.Language != "" {
			search["$language"] = v.Language
		}
	default:
		return invalidArgf("text_search requires a term, got %T", c.Value)
	}
	setOperator(where, field, "$text", map[string]any{"$search": search})
	return nil
}

// setOperator nests key=value under the field, creating or replacing the
// operator map as needed. A prior plain equality on the field is displaced,
// including equalities whose value is itself a map (pointer and date
// descriptors carry no $-keys, which is how they are told apart).
func setOperator(where map[string]any, field, key string, value any) {
	node, ok := where[field].(map[string]any)
	if !ok || !isOperatorNode(node) {
		node = map[string]any{}
		where[field] = node
	}
	node[key] = value
}

func isOperatorNode(m map[string]any) bool {
	for k := range m {
		if len(k) == 0 || k[0] != '$' {
			return false
		}
	}
	return true
}

func encodePoints(points []object.GeoPoint) []any {
	out := make([]any, len(points))
	for i, p := range points {
		out[i] = p.Encode()
	}
	return out
}
