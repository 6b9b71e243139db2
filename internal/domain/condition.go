package domain

import "strings"

// Op is a condition operator
type Op string

const (
	OpEqual          Op = "eq"
	OpNotEqual       Op = "ne"
	OpGreater        Op = "gt"
	OpGreaterOrEqual Op = "ge"
	OpLess           Op = "lt"
	OpLessOrEqual    Op = "le"
	OpContains       Op = "contains"
	OpIn             Op = "in"
)

// Valid reports whether o is one of the defined operators
func (o Op) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual, OpContains, OpIn:
		return true
	}
	return false
}

// Condition is a single-property predicate used by queries and verb target
// filters. Ordering operators use the coercing ordering; Contains is text
// substring; In is set membership.
type Condition struct {
	Property string `json:"property"`
	Op       Op     `json:"op"`
	Value    any    `json:"value,omitempty"`
	Values   []any  `json:"values,omitempty"`
}

// Eq matches when the property equals value
func Eq(property string, value any) Condition {
	return Condition{Property: property, Op: OpEqual, Value: value}
}

// Ne matches when the property does not equal value
func Ne(property string, value any) Condition {
	return Condition{Property: property, Op: OpNotEqual, Value: value}
}

// Gt matches when the property orders strictly above value
func Gt(property string, value any) Condition {
	return Condition{Property: property, Op: OpGreater, Value: value}
}

// Ge matches when the property orders at or above value
func Ge(property string, value any) Condition {
	return Condition{Property: property, Op: OpGreaterOrEqual, Value: value}
}

// Lt matches when the property orders strictly below value
func Lt(property string, value any) Condition {
	return Condition{Property: property, Op: OpLess, Value: value}
}

// Le matches when the property orders at or below value
func Le(property string, value any) Condition {
	return Condition{Property: property, Op: OpLessOrEqual, Value: value}
}

// Has matches when the property is text containing substr
func Has(property, substr string) Condition {
	return Condition{Property: property, Op: OpContains, Value: substr}
}

// In matches when the property equals any of values
func In(property string, values ...any) Condition {
	return Condition{Property: property, Op: OpIn, Values: values}
}

// Matches evaluates the condition against one property value
func (c Condition) Matches(value any) bool {
	switch c.Op {
	case OpEqual:
		return EquivalentValues(value, c.Value)
	case OpNotEqual:
		return !EquivalentValues(value, c.Value)
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		cmp, ok := CompareOrdered(value, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGreater:
			return cmp > 0
		case OpGreaterOrEqual:
			return cmp >= 0
		case OpLess:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpContains:
		s, sok := value.(string)
		sub, subok := c.Value.(string)
		return sok && subok && strings.Contains(s, sub)
	case OpIn:
		for _, v := range c.Values {
			if EquivalentValues(value, v) {
				return true
			}
		}
		return false
	}
	return false
}
