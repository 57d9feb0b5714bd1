// Package query composes parameterized predicate and ordering fragments for
// the narwhal storage manager. Every value travels as a positional argument;
// column names are the only text spliced into a clause and are the caller's
// responsibility.
package query

import "strings"

// Predicate is a where-clause fragment with its positional arguments.
// The number of '?' placeholders in Clause matches len(Args). Columns
// names the column each argument is compared against, so the store can
// bind it in that column's storage form; it may be shorter than Args for
// hand-built predicates.
type Predicate struct {
	Clause  string
	Args    []any
	Columns []string
}

// IsZero reports whether p carries no clause.
func (p Predicate) IsZero() bool {
	return p.Clause == ""
}

// Order is a single order-by fragment such as "name asc".
type Order string

// String returns the fragment text.
func (o Order) String() string {
	return string(o)
}

func compare(column, op string, value any) Predicate {
	return Predicate{
		Clause:  column + " " + op + " ?",
		Args:    []any{value},
		Columns: []string{column},
	}
}

// Equals matches rows where column = value.
func Equals(column string, value any) Predicate {
	return compare(column, "=", value)
}

// NotEquals matches rows where column != value.
func NotEquals(column string, value any) Predicate {
	return compare(column, "!=", value)
}

// LessThan matches rows where column < value.
func LessThan(column string, value any) Predicate {
	return compare(column, "<", value)
}

// LessThanOrEqual matches rows where column <= value.
func LessThanOrEqual(column string, value any) Predicate {
	return compare(column, "<=", value)
}

// GreaterThan matches rows where column > value.
func GreaterThan(column string, value any) Predicate {
	return compare(column, ">", value)
}

// GreaterThanOrEqual matches rows where column >= value.
func GreaterThanOrEqual(column string, value any) Predicate {
	return compare(column, ">=", value)
}

// Between matches rows where low <= column <= high.
func Between(column string, low, high any) Predicate {
	return Predicate{
		Clause:  column + " between ? and ?",
		Args:    []any{low, high},
		Columns: []string{column, column},
	}
}

// Like matches rows where column matches the SQL LIKE pattern.
func Like(column string, pattern string) Predicate {
	return compare(column, "like", pattern)
}

// Not negates p.
func Not(p Predicate) Predicate {
	return Predicate{
		Clause:  "not (" + p.Clause + ")",
		Args:    p.Args,
		Columns: p.Columns,
	}
}

// And conjoins ps. Each clause is parenthesized and arguments are flattened
// in input order.
func And(ps ...Predicate) Predicate {
	return chain(" and ", ps)
}

// Or disjoins ps. Each clause is parenthesized and arguments are flattened
// in input order.
func Or(ps ...Predicate) Predicate {
	return chain(" or ", ps)
}

func chain(joiner string, ps []Predicate) Predicate {
	if len(ps) == 0 {
		return Predicate{}
	}
	var sb strings.Builder
	var (
		args []any
		cols []string
	)
	for i, p := range ps {
		if i > 0 {
			sb.WriteString(joiner)
		}
		sb.WriteString("(")
		sb.WriteString(p.Clause)
		sb.WriteString(")")
		args = append(args, p.Args...)
		cols = append(cols, p.columnsFor()...)
	}
	return Predicate{Clause: sb.String(), Args: args, Columns: cols}
}

// columnsFor returns Columns padded with empty names to the length of Args.
func (p Predicate) columnsFor() []string {
	if len(p.Columns) >= len(p.Args) {
		return p.Columns[:len(p.Args)]
	}
	out := make([]string, len(p.Args))
	copy(out, p.Columns)
	return out
}

// Column returns the column argument i is compared against, or "" when
// unknown.
func (p Predicate) Column(i int) string {
	if i < len(p.Columns) {
		return p.Columns[i]
	}
	return ""
}

// OrderAscending orders by column, smallest first.
func OrderAscending(column string) Order {
	return Order(column + " asc")
}

// OrderDescending orders by column, largest first.
func OrderDescending(column string) Order {
	return Order(column + " desc")
}

// OrderChain joins several orderings with a comma, keeping their order.
func OrderChain(orders ...Order) Order {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if o != "" {
			parts = append(parts, string(o))
		}
	}
	return Order(strings.Join(parts, ", "))
}
