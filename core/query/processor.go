package query

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/mohae/deepcopy"
	"go.uber.org/zap"
)

// PredicateFunction is a pure Go function that performs custom filtering logic on a
// document. It returns true if the document passes the filter.
type PredicateFunction func(doc schema.Document, field string, args FilterValue) (bool, error)

// DataProcessor evaluates filters, update pipelines and aggregations in memory. Stores
// that cannot express an operation natively delegate to it.
type DataProcessor struct {
	filterFunctions map[ComparisonOperator]PredicateFunction
	mu              sync.RWMutex
	logger          *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		filterFunctions: make(map[ComparisonOperator]PredicateFunction),
		logger:          logger,
	}
}

// RegisterFilterFunction registers a Go function for a custom comparison operator.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filterFunctions[operator] = fn
	p.logger.Info("Registered filter function", zap.String("operator", string(operator)))
}

// Match evaluates a document against a filter. A nil filter matches everything.
func (p *DataProcessor) Match(ctx context.Context, filters *QueryFilter, data schema.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluateFilter(data, filters)
}

// Filter returns the documents of rows that match filters, stopping after limit
// matches when limit is positive.
func (p *DataProcessor) Filter(ctx context.Context, filters *QueryFilter, rows []schema.Document, limit int) ([]schema.Document, error) {
	var out []schema.Document
	for _, row := range rows {
		ok, err := p.Match(ctx, filters, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	p.logger.Debug("Rows remaining after filters", zap.Int("in", len(rows)), zap.Int("out", len(out)))
	return out, nil
}

// evaluateFilter recursively evaluates a QueryFilter.
func (p *DataProcessor) evaluateFilter(row schema.Document, filter *QueryFilter) (bool, error) {
	if filter.Condition != nil {
		if !filter.Condition.Operator.IsStandard() {
			fn, ok := p.filterFunctions[filter.Condition.Operator]
			if !ok {
				return false, fmt.Errorf("unregistered filter function for operator: %s", filter.Condition.Operator)
			}
			return fn(row, filter.Condition.Field, filter.Condition.Value)
		}
		return evaluateStandardCondition(row, filter.Condition)
	}
	if filter.Group != nil {
		switch filter.Group.Operator {
		case LogicalOperatorAnd:
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &filter.Group.Conditions[i])
				if err != nil || !passes {
					return false, err
				}
			}
			return true, nil
		case LogicalOperatorOr, LogicalOperatorNor:
			matched := false
			for i := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &filter.Group.Conditions[i])
				if err != nil {
					return false, err
				}
				if passes {
					matched = true
					break
				}
			}
			if filter.Group.Operator == LogicalOperatorNor {
				return !matched, nil
			}
			return matched, nil
		default:
			return false, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
		}
	}
	return false, fmt.Errorf("empty or invalid filter structure")
}

// evaluateStandardCondition evaluates the built-in comparison operators. A missing
// field fails every operator except neq, nin and nexists.
func evaluateStandardCondition(row schema.Document, condition *FilterCondition) (bool, error) {
	fieldValue, present := row.Get(condition.Field)

	switch condition.Operator {
	case ComparisonOperatorExists:
		return present, nil
	case ComparisonOperatorNotExists:
		return !present, nil
	case ComparisonOperatorEq:
		return present && ValuesEqual(fieldValue, condition.Value), nil
	case ComparisonOperatorNeq:
		return !present || !ValuesEqual(fieldValue, condition.Value), nil
	case ComparisonOperatorIn, ComparisonOperatorNin:
		candidates, ok := schema.ToSequence(condition.Value)
		if !ok {
			candidates = []any{condition.Value}
		}
		found := false
		if present {
			for _, c := range candidates {
				if ValuesEqual(fieldValue, c) {
					found = true
					break
				}
			}
		}
		if condition.Operator == ComparisonOperatorIn {
			return found, nil
		}
		return !found, nil
	case ComparisonOperatorLt, ComparisonOperatorLte, ComparisonOperatorGt, ComparisonOperatorGte:
		if !present {
			return false, nil
		}
		fv, okF := ToFloat64(fieldValue)
		cv, okC := ToFloat64(condition.Value)
		if !okF || !okC {
			return false, fmt.Errorf("unsupported type for %s comparison between %T and %T", condition.Operator, fieldValue, condition.Value)
		}
		switch condition.Operator {
		case ComparisonOperatorLt:
			return fv < cv, nil
		case ComparisonOperatorLte:
			return fv <= cv, nil
		case ComparisonOperatorGt:
			return fv > cv, nil
		default:
			return fv >= cv, nil
		}
	default:
		return false, fmt.Errorf("unsupported standard comparison operator: %s", condition.Operator)
	}
}

// ApplyPipeline runs every stage of pipeline against a copy of doc and returns the
// result along with whether it differs from the input. The input is never mutated.
func (p *DataProcessor) ApplyPipeline(doc schema.Document, pipeline Pipeline) (schema.Document, bool, error) {
	if err := pipeline.Validate(); err != nil {
		return nil, false, err
	}
	current := doc.Clone()
	if current == nil {
		current = schema.Document{}
	}

	for i, stage := range pipeline {
		if err := applyStage(current, stage); err != nil {
			return nil, false, fmt.Errorf("stage %d (%s): %w", i, stage.Kind, err)
		}
	}

	same, err := schema.Equal(doc, current)
	if err != nil {
		return nil, false, err
	}
	p.logger.Debug("Applied update pipeline",
		zap.Int("stages", len(pipeline)),
		zap.Bool("changed", !same),
	)
	return current, !same, nil
}

// applyStage mutates doc in place. All values are computed before any write so that
// assignments within one stage observe the document as it was when the stage began.
func applyStage(doc schema.Document, stage Stage) error {
	type write struct {
		field   string
		value   any
		present bool
	}
	var writes []write

	switch stage.Kind {
	case StageSetFields:
		for _, a := range stage.Set {
			v, ok := Evaluate(doc, a.Value)
			writes = append(writes, write{a.Field, v, ok})
		}
	case StageConditionalSet:
		c := stage.Conditional
		expr := c.Else
		if doc.FieldKind(c.If.Field) == c.If.Kind {
			expr = c.Then
		}
		v, ok := Evaluate(doc, expr)
		writes = append(writes, write{c.Field, v, ok})
	case StageUnsetFields:
		for _, f := range stage.Unset {
			if _, err := doc.Unset(f); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown stage kind %q", ErrInvalidStage, stage.Kind)
	}

	for _, w := range writes {
		if !w.present {
			if _, err := doc.Unset(w.field); err != nil {
				return err
			}
			continue
		}
		if err := doc.Set(w.field, w.value); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate computes an expression against doc. The boolean is false when the result
// is missing.
func Evaluate(doc schema.Document, e Expression) (any, bool) {
	switch e.Kind {
	case ExpressionLiteral:
		return deepcopy.Copy(e.Value), true
	case ExpressionField:
		v, ok := doc.Get(e.Field)
		if !ok {
			return nil, false
		}
		return deepcopy.Copy(v), true
	case ExpressionSequence:
		var out []any
		for _, item := range e.Items {
			if v, ok := Evaluate(doc, item); ok {
				out = append(out, v)
			}
		}
		if len(out) == 0 && len(e.Items) > 0 {
			return nil, false
		}
		if out == nil {
			out = []any{}
		}
		return out, true
	case ExpressionCoalesce:
		for _, item := range e.Items {
			if v, ok := Evaluate(doc, item); ok {
				return v, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// ValuesEqual compares two stored values. Numbers compare by value regardless of
// their Go representation; everything else compares structurally.
func ValuesEqual(a, b any) bool {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
