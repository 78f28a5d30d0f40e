// Package query implements the typed constraint compiler and the query
// builder that turn a domain-level filter expression into the server's wire
// format. Operators form a closed set; human-facing aliases resolve through a
// static registry rather than dynamic dispatch.
package query

// Operator tags one constraint with its comparison semantics.
type Operator string

const (
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "ne"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpIn             Operator = "in"
	OpNotIn          Operator = "nin"
	OpAll            Operator = "all"
	OpExists         Operator = "exists"
	OpNull           Operator = "null"
	OpLike           Operator = "like"
	OpInQuery        Operator = "in_query"
	OpNotInQuery     Operator = "not_in_query"
	OpID             Operator = "id"
	OpNearSphere     Operator = "near"
	OpWithinBox      Operator = "within_box"
	OpWithinPolygon  Operator = "within_polygon"
	OpTextSearch     Operator = "text_search"
)

// wireKeys maps operator tags to their server keyword. Equality and the
// special-cased operators (null, id, geo, text) compile through their own
// paths and are absent here.
var wireKeys = map[Operator]string{
	OpNotEqual:       "$ne",
	OpGreaterThan:    "$gt",
	OpGreaterOrEqual: "$gte",
	OpLessThan:       "$lt",
	OpLessOrEqual:    "$lte",
	OpIn:             "$in",
	OpNotIn:          "$nin",
	OpAll:            "$all",
	OpExists:         "$exists",
	OpLike:           "$regex",
	OpInQuery:        "$inQuery",
	OpNotInQuery:     "$notInQuery",
	OpNearSphere:     "$nearSphere",
}

// aliases maps every human-facing spelling to its operator tag. The ordering
// family carries date-flavored aliases (before/after) for non-numeric fields.
var aliases = map[string]Operator{
	"eq": OpEqual,
	"==": OpEqual,

	"ne":     OpNotEqual,
	"!=":     OpNotEqual,
	"not_eq": OpNotEqual,

	"gt":    OpGreaterThan,
	">":     OpGreaterThan,
	"after": OpGreaterThan,

	"gte":         OpGreaterOrEqual,
	">=":          OpGreaterOrEqual,
	"on_or_after": OpGreaterOrEqual,

	"lt":     OpLessThan,
	"<":      OpLessThan,
	"before": OpLessThan,

	"lte":          OpLessOrEqual,
	"<=":           OpLessOrEqual,
	"on_or_before": OpLessOrEqual,

	"in":           OpIn,
	"contained_in": OpIn,

	"nin":    OpNotIn,
	"not_in": OpNotIn,

	"all":          OpAll,
	"contains_all": OpAll,

	"exists": OpExists,
	"null":   OpNull,

	"like":  OpLike,
	"regex": OpLike,

	"in_query":      OpInQuery,
	"matches_query": OpInQuery,

	"not_in_query":   OpNotInQuery,
	"excludes_query": OpNotInQuery,

	"id": OpID,

	"near":        OpNearSphere,
	"near_sphere": OpNearSphere,

	"within_box":     OpWithinBox,
	"within_polygon": OpWithinPolygon,

	"text_search": OpTextSearch,
	"search":      OpTextSearch,
}

// ResolveOperator maps an alias to its operator tag.
func ResolveOperator(alias string) (Operator, bool) {
	op, ok := aliases[alias]
	return op, ok
}
