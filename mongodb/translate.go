package mongodb

import (
	"fmt"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// removeVariable is the aggregation variable that drops a field when assigned.
const removeVariable = "$$REMOVE"

var comparisonOperators = map[query.ComparisonOperator]string{
	query.ComparisonOperatorEq:  "$eq",
	query.ComparisonOperatorNeq: "$ne",
	query.ComparisonOperatorLt:  "$lt",
	query.ComparisonOperatorLte: "$lte",
	query.ComparisonOperatorGt:  "$gt",
	query.ComparisonOperatorGte: "$gte",
	query.ComparisonOperatorIn:  "$in",
	query.ComparisonOperatorNin: "$nin",
}

var logicalOperators = map[query.LogicalOperator]string{
	query.LogicalOperatorAnd: "$and",
	query.LogicalOperatorOr:  "$or",
	query.LogicalOperatorNor: "$nor",
}

// FilterToBSON translates a filter into a query document. A nil filter matches
// every document.
func FilterToBSON(filter *query.QueryFilter) (bson.M, error) {
	if filter == nil {
		return bson.M{}, nil
	}
	if c := filter.Condition; c != nil {
		if _, err := schema.SplitPath(c.Field); err != nil {
			return nil, err
		}
		switch c.Operator {
		case query.ComparisonOperatorExists:
			return bson.M{c.Field: bson.M{"$exists": true}}, nil
		case query.ComparisonOperatorNotExists:
			return bson.M{c.Field: bson.M{"$exists": false}}, nil
		case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
			vals, ok := schema.ToSequence(c.Value)
			if !ok {
				vals = []any{c.Value}
			}
			return bson.M{c.Field: bson.M{comparisonOperators[c.Operator]: bson.A(vals)}}, nil
		}
		op, ok := comparisonOperators[c.Operator]
		if !ok {
			return nil, fmt.Errorf("unsupported comparison operator for mongo: %s", c.Operator)
		}
		return bson.M{c.Field: bson.M{op: c.Value}}, nil
	}
	if g := filter.Group; g != nil {
		op, ok := logicalOperators[g.Operator]
		if !ok {
			return nil, fmt.Errorf("unsupported logical operator: %s", g.Operator)
		}
		if len(g.Conditions) == 0 {
			return nil, fmt.Errorf("filter group %s has no conditions", g.Operator)
		}
		clauses := make(bson.A, 0, len(g.Conditions))
		for i := range g.Conditions {
			clause, err := FilterToBSON(&g.Conditions[i])
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
		return bson.M{op: clauses}, nil
	}
	return nil, fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
}

// PipelineToBSON translates an update pipeline into aggregation stages for an
// update-with-pipeline call. Assignments that evaluate to missing resolve to $$REMOVE
// so the target field is removed instead of being set to null.
func PipelineToBSON(p query.Pipeline) (mongo.Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make(mongo.Pipeline, 0, len(p))
	for _, stage := range p {
		switch stage.Kind {
		case query.StageSetFields:
			fields := lo.Map(stage.Set, func(a query.FieldAssignment, _ int) bson.E {
				return bson.E{Key: a.Field, Value: assignment(a.Value)}
			})
			out = append(out, bson.D{{Key: "$set", Value: bson.D(fields)}})
		case query.StageUnsetFields:
			out = append(out, bson.D{{Key: "$unset", Value: bson.A(lo.ToAnySlice(stage.Unset))}})
		case query.StageConditionalSet:
			c := stage.Conditional
			cond := bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: kindPredicate(c.If)},
				{Key: "then", Value: assignment(c.Then)},
				{Key: "else", Value: assignment(c.Else)},
			}}}
			out = append(out, bson.D{{Key: "$set", Value: bson.D{{Key: c.Field, Value: cond}}}})
		}
	}
	return out, nil
}

// fieldPath renders a field reference as an aggregation path expression.
func fieldPath(field string) string {
	return "$" + field
}

func isPresent(ref any) bson.D {
	return bson.D{{Key: "$ne", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, "missing"}}}
}

// kindPredicate evaluates a kind check against the stored value.
func kindPredicate(check query.KindCheck) bson.D {
	ref := fieldPath(check.Field)
	switch check.Kind {
	case schema.KindSequence:
		return bson.D{{Key: "$isArray", Value: ref}}
	case schema.KindMissing:
		return bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, "missing"}}}
	default:
		return bson.D{{Key: "$and", Value: bson.A{
			isPresent(ref),
			bson.D{{Key: "$not", Value: bson.A{bson.D{{Key: "$isArray", Value: ref}}}}},
		}}}
	}
}

// assignment renders e so that a missing result removes the target field.
func assignment(e query.Expression) any {
	if e.Kind == query.ExpressionLiteral {
		return expression(e)
	}
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: presence(e)},
		{Key: "then", Value: expression(e)},
		{Key: "else", Value: removeVariable},
	}}}
}

// presence renders a boolean expression that is true when e is not missing.
func presence(e query.Expression) any {
	switch e.Kind {
	case query.ExpressionLiteral:
		return true
	case query.ExpressionField:
		return isPresent(fieldPath(e.Field))
	default:
		// An empty sequence is present; a coalesce needs at least one candidate.
		if len(e.Items) == 0 {
			return e.Kind == query.ExpressionSequence
		}
		return bson.D{{Key: "$or", Value: bson.A(lo.Map(e.Items, func(item query.Expression, _ int) any { return presence(item) }))}}
	}
}

// expression renders e as an aggregation expression.
func expression(e query.Expression) any {
	switch e.Kind {
	case query.ExpressionLiteral:
		return bson.D{{Key: "$literal", Value: e.Value}}
	case query.ExpressionField:
		return fieldPath(e.Field)
	case query.ExpressionSequence:
		if len(e.Items) == 0 {
			return bson.D{{Key: "$literal", Value: bson.A{}}}
		}
		// Missing items are dropped instead of becoming null elements.
		parts := lo.Map(e.Items, func(item query.Expression, _ int) any {
			return bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: presence(item)},
				{Key: "then", Value: bson.A{expression(item)}},
				{Key: "else", Value: bson.A{}},
			}}}
		})
		return bson.D{{Key: "$concatArrays", Value: bson.A(parts)}}
	default:
		return coalesce(e.Items)
	}
}

func coalesce(items []query.Expression) any {
	if len(items) == 0 {
		return removeVariable
	}
	head := items[0]
	if head.Kind == query.ExpressionLiteral {
		return expression(head)
	}
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: presence(head)},
		{Key: "then", Value: expression(head)},
		{Key: "else", Value: coalesce(items[1:])},
	}}}
}

// normalize converts driver values into the plain maps and slices documents use.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(map[string]any(t))
	case map[string]any:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		return lo.Map([]any(t), func(item any, _ int) any { return normalize(item) })
	case []any:
		return lo.Map(t, func(item any, _ int) any { return normalize(item) })
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// toDocument converts a decoded driver document into a schema.Document.
func toDocument(m bson.M) schema.Document {
	return schema.Document(normalizeMap(map[string]any(m)))
}
