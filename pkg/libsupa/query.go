package libsupa

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Filter operators supported by the REST API and the change stream.
const (
	OperatorEq  = "eq"
	OperatorNeq = "neq"
)

type (
	// A Query describes the rows targeted by a read or an update.
	Query struct {
		columns string
		filters []Filter
		order   string
	}

	// A Filter is a column condition like `anonymous_user_id=eq.42`.
	Filter struct {
		Column   string
		Operator string
		Value    string
	}
)

// NewQuery returns a new Query selecting all columns.
func NewQuery() *Query {
	return &Query{columns: "*"}
}

// Select defines the returned columns.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, Filter{Column: column, Operator: OperatorEq, Value: fmt.Sprint(value)})
	return q
}

// Neq adds a non equality filter.
func (q *Query) Neq(column string, value any) *Query {
	q.filters = append(q.filters, Filter{Column: column, Operator: OperatorNeq, Value: fmt.Sprint(value)})
	return q
}

// Order sorts the result on the given column.
func (q *Query) Order(column string, ascending bool) *Query {
	direction := "desc"
	if ascending {
		direction = "asc"
	}
	q.order = column + "." + direction
	return q
}

// Filters returns the filters of the query.
func (q *Query) Filters() []Filter {
	return q.filters
}

// Values returns the query as URL parameters.
func (q *Query) Values() url.Values {
	values := url.Values{}
	if q.columns != "" {
		values.Set("select", q.columns)
	}
	for _, f := range q.filters {
		values.Add(f.Column, f.Operator+"."+f.Value)
	}
	if q.order != "" {
		values.Set("order", q.order)
	}
	return values
}

// ParseFilter parses a filter from a column and its raw value `op.value`.
func ParseFilter(column, raw string) (Filter, error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 {
		return Filter{}, errors.Errorf("malformed filter on %s: %s", column, raw)
	}

	switch parts[0] {
	case OperatorEq, OperatorNeq:
	default:
		return Filter{}, errors.Errorf("unsupported operator %s on %s", parts[0], column)
	}

	return Filter{Column: column, Operator: parts[0], Value: parts[1]}, nil
}

// ParseOrder parses an order parameter like `updated_at.desc`, ascending is the default.
func ParseOrder(raw string) (column string, ascending bool, err error) {
	parts := strings.SplitN(raw, ".", 2)
	if parts[0] == "" {
		return "", false, errors.Errorf("malformed order: %s", raw)
	}
	if len(parts) == 1 {
		return parts[0], true, nil
	}

	switch parts[1] {
	case "asc":
		return parts[0], true, nil
	case "desc":
		return parts[0], false, nil
	}
	return "", false, errors.Errorf("unsupported order direction %s on %s", parts[1], parts[0])
}

// ParseFilterExpression parses a change stream filter like `anonymous_user_id=eq.42`.
func ParseFilterExpression(expr string) (Filter, error) {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return Filter{}, errors.Errorf("malformed filter expression: %s", expr)
	}
	return ParseFilter(parts[0], parts[1])
}

// String implements fmt.Stringer.
func (f Filter) String() string {
	return fmt.Sprintf("%s=%s.%s", f.Column, f.Operator, f.Value)
}

// Match returns true if the given record matches the filter.
// A missing column never matches.
func (f Filter) Match(record map[string]any) bool {
	v, ok := record[f.Column]
	if !ok {
		return false
	}

	s := "null"
	if v != nil {
		s = fmt.Sprint(v)
	}

	switch f.Operator {
	case OperatorEq:
		return s == f.Value
	case OperatorNeq:
		return s != f.Value
	}
	return false
}
