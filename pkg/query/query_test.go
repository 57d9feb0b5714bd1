package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisons(t *testing.T) {
	tests := []struct {
		name   string
		got    Predicate
		clause string
		args   []any
	}{
		{"equals", Equals("name", "A"), "name = ?", []any{"A"}},
		{"not equals", NotEquals("name", "A"), "name != ?", []any{"A"}},
		{"less than", LessThan("health", 3), "health < ?", []any{3}},
		{"less than or equal", LessThanOrEqual("health", 0), "health <= ?", []any{0}},
		{"greater than", GreaterThan("courage", 10), "courage > ?", []any{10}},
		{"greater than or equal", GreaterThanOrEqual("courage", 10), "courage >= ?", []any{10}},
		{"between", Between("age", 18, 65), "age between ? and ?", []any{18, 65}},
		{"like", Like("name", "Bel%"), "name like ?", []any{"Bel%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.clause, tt.got.Clause)
			assert.Equal(t, tt.args, tt.got.Args)
		})
	}
}

func TestNot(t *testing.T) {
	p := Not(Equals("name", "A"))
	assert.Equal(t, "not (name = ?)", p.Clause)
	assert.Equal(t, []any{"A"}, p.Args)
}

func TestAndOr(t *testing.T) {
	t.Run("and keeps input order", func(t *testing.T) {
		p := And(LessThanOrEqual("health", 0), Equals("courage", 232))
		assert.Equal(t, "(health <= ?) and (courage = ?)", p.Clause)
		assert.Equal(t, []any{0, 232}, p.Args)
	})

	t.Run("or with three operands", func(t *testing.T) {
		p := Or(Equals("a", 1), Between("b", 2, 3), Like("c", "x%"))
		assert.Equal(t, "(a = ?) or (b between ? and ?) or (c like ?)", p.Clause)
		assert.Equal(t, []any{1, 2, 3, "x%"}, p.Args)
	})

	t.Run("single operand is parenthesized", func(t *testing.T) {
		p := And(Equals("a", 1))
		assert.Equal(t, "(a = ?)", p.Clause)
	})

	t.Run("columns follow arguments", func(t *testing.T) {
		p := And(Equals("a", 1), Not(Between("b", 2, 3)), Predicate{Clause: "c = ?", Args: []any{4}})
		assert.Equal(t, []string{"a", "b", "b", ""}, p.Columns)
		assert.Equal(t, "b", p.Column(2))
		assert.Equal(t, "", p.Column(3))
		assert.Equal(t, "", p.Column(9))
	})

	t.Run("nested", func(t *testing.T) {
		p := And(Equals("a", 1), Not(Or(Equals("b", 2), Equals("c", 3))))
		assert.Equal(t, "(a = ?) and (not ((b = ?) or (c = ?)))", p.Clause)
		assert.Equal(t, []any{1, 2, 3}, p.Args)
	})

	t.Run("empty is zero", func(t *testing.T) {
		assert.True(t, And().IsZero())
		assert.True(t, Or().IsZero())
	})
}

func TestOrdering(t *testing.T) {
	assert.Equal(t, Order("name asc"), OrderAscending("name"))
	assert.Equal(t, Order("name desc"), OrderDescending("name"))
	assert.Equal(t, "name asc, dbid desc",
		OrderChain(OrderAscending("name"), OrderDescending("dbid")).String())
	assert.Equal(t, "a asc", OrderChain(OrderAscending("a"), "").String())
}
