// Package query defines the Domain-Specific Language (DSL) used to address documents
// in a store and to describe the changes applied to them. Filters select documents,
// update pipelines mutate them, and aggregation specs summarise them.
package query

import "github.com/asaidimu/go-bookstore/core/schema"

// LogicalOperator combines filter conditions.
type LogicalOperator string

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd LogicalOperator = "and"
	LogicalOperatorOr  LogicalOperator = "or"
	LogicalOperatorNor LogicalOperator = "nor"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq        ComparisonOperator = "eq"
	ComparisonOperatorNeq       ComparisonOperator = "neq"
	ComparisonOperatorLt        ComparisonOperator = "lt"
	ComparisonOperatorLte       ComparisonOperator = "lte"
	ComparisonOperatorGt        ComparisonOperator = "gt"
	ComparisonOperatorGte       ComparisonOperator = "gte"
	ComparisonOperatorIn        ComparisonOperator = "in"
	ComparisonOperatorNin       ComparisonOperator = "nin"
	ComparisonOperatorExists    ComparisonOperator = "exists"
	ComparisonOperatorNotExists ComparisonOperator = "nexists"
)

// FilterValue represents the value used in a filter condition.
type FilterValue any

// FilterCondition defines a single condition on a document field. Field may be a
// dotted path into embedded objects.
type FilterCondition struct {
	Field    string             // The field to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
type FilterGroup struct {
	Operator   LogicalOperator // The logical operator to combine the conditions.
	Conditions []QueryFilter   // The list of conditions or nested groups.
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"`
	Group     *FilterGroup     `json:",omitempty"`
}

// QueryDSL is the top-level structure describing which documents to read.
type QueryDSL struct {
	Filters *QueryFilter `json:",omitempty"`
	Limit   int          `json:",omitempty"` // Zero means no limit.
}

// QueryResult represents the result of a read.
type QueryResult struct {
	Data  []schema.Document `json:"data"`
	Count int               `json:"count"`
}

// standardComparisonOperators is a set of all the built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:        {},
	ComparisonOperatorNeq:       {},
	ComparisonOperatorLt:        {},
	ComparisonOperatorLte:       {},
	ComparisonOperatorGt:        {},
	ComparisonOperatorGte:       {},
	ComparisonOperatorIn:        {},
	ComparisonOperatorNin:       {},
	ComparisonOperatorExists:    {},
	ComparisonOperatorNotExists: {},
}

// IsStandard checks if a comparison operator is one of the built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// ByID returns a filter matching the document whose identifier equals id.
func ByID(id any) *QueryFilter {
	return &QueryFilter{Condition: &FilterCondition{Field: schema.IDField, Operator: ComparisonOperatorEq, Value: id}}
}
