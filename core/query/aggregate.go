package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrNotSequence is returned when a size accumulator meets a value that is not a sequence.
var ErrNotSequence = errors.New("value is not a sequence")

// AggregationType specifies the type of aggregation to be performed.
type AggregationType string

// Supported aggregation types.
const (
	AggregationTypeCount AggregationType = "count"
	AggregationTypeSum   AggregationType = "sum"
	AggregationTypeAvg   AggregationType = "avg"
	AggregationTypeMin   AggregationType = "min"
	AggregationTypeMax   AggregationType = "max"
	AggregationTypePush  AggregationType = "push"
)

// AggregationConfiguration defines an accumulator computed for every group.
type AggregationConfiguration struct {
	Type  AggregationType // The type of aggregation.
	Field string          // The field to aggregate. Unused by count.
	Alias string          // The output field of the accumulator.
	Size  bool            // Aggregate the length of the sequence stored at Field instead of the value.
}

// GroupSpec groups documents by the value of a field.
type GroupSpec struct {
	By           string
	Aggregations []AggregationConfiguration
}

// BucketSpec groups documents into numeric ranges [Boundaries[i], Boundaries[i+1]).
// Documents outside every range, or whose value is not numeric, fall into Default.
type BucketSpec struct {
	GroupBy      string
	Boundaries   []float64
	Default      any
	Aggregations []AggregationConfiguration
}

// accumulatorState collects the inputs of one accumulator for one group.
type accumulatorState struct {
	count  int
	sum    float64
	values []float64
	pushed []any
}

// group carries the accumulator states of a single output row.
type group struct {
	key    any
	states []*accumulatorState
}

func newGroup(key any, n int) *group {
	g := &group{key: key, states: make([]*accumulatorState, n)}
	for i := range g.states {
		g.states[i] = &accumulatorState{}
	}
	return g
}

func (g *group) add(doc schema.Document, aggs []AggregationConfiguration) error {
	for i, agg := range aggs {
		st := g.states[i]
		if agg.Type == AggregationTypeCount {
			st.count++
			continue
		}
		v, present := doc.Get(agg.Field)
		if !present {
			continue
		}
		if agg.Size {
			seq, ok := schema.ToSequence(v)
			if !ok {
				return fmt.Errorf("%w: field %q of document %v", ErrNotSequence, agg.Field, doc[schema.IDField])
			}
			v = len(seq)
		}
		if agg.Type == AggregationTypePush {
			st.pushed = append(st.pushed, v)
			continue
		}
		f, ok := numeric(v)
		if !ok {
			continue
		}
		st.count++
		st.sum += f
		st.values = append(st.values, f)
	}
	return nil
}

func (g *group) result(aggs []AggregationConfiguration) schema.Document {
	out := schema.Document{schema.IDField: g.key}
	for i, agg := range aggs {
		st := g.states[i]
		switch agg.Type {
		case AggregationTypeCount:
			out[agg.Alias] = st.count
		case AggregationTypeSum:
			out[agg.Alias] = st.sum
		case AggregationTypeAvg:
			if st.count == 0 {
				out[agg.Alias] = nil
			} else {
				out[agg.Alias] = st.sum / float64(st.count)
			}
		case AggregationTypeMin:
			if len(st.values) == 0 {
				out[agg.Alias] = nil
			} else {
				out[agg.Alias] = lo.Min(st.values)
			}
		case AggregationTypeMax:
			if len(st.values) == 0 {
				out[agg.Alias] = nil
			} else {
				out[agg.Alias] = lo.Max(st.values)
			}
		case AggregationTypePush:
			if st.pushed == nil {
				st.pushed = []any{}
			}
			out[agg.Alias] = st.pushed
		}
	}
	return out
}

func validateAggregations(aggs []AggregationConfiguration) error {
	for _, agg := range aggs {
		if agg.Alias == "" {
			return fmt.Errorf("aggregation %s requires an alias", agg.Type)
		}
		switch agg.Type {
		case AggregationTypeCount:
		case AggregationTypeSum, AggregationTypeAvg, AggregationTypeMin, AggregationTypeMax, AggregationTypePush:
			if agg.Field == "" {
				return fmt.Errorf("aggregation %s (%s) requires a field", agg.Alias, agg.Type)
			}
		default:
			return fmt.Errorf("unsupported aggregation type: %s", agg.Type)
		}
	}
	return nil
}

// Group aggregates rows by spec.By. Documents missing the field are grouped under a
// nil key. Output rows are ordered by key: nil first, then numbers by value, then the
// remaining keys by their string form.
func (p *DataProcessor) Group(rows []schema.Document, spec GroupSpec) ([]schema.Document, error) {
	if spec.By == "" {
		return nil, fmt.Errorf("group requires a field")
	}
	if err := validateAggregations(spec.Aggregations); err != nil {
		return nil, err
	}

	groups := map[string]*group{}
	for _, row := range rows {
		key, _ := row.Get(spec.By)
		k := groupKey(key)
		g, ok := groups[k]
		if !ok {
			g = newGroup(key, len(spec.Aggregations))
			groups[k] = g
		}
		if err := g.add(row, spec.Aggregations); err != nil {
			return nil, err
		}
	}

	ordered := lo.Values(groups)
	sort.Slice(ordered, func(i, j int) bool { return keyLess(ordered[i].key, ordered[j].key) })
	out := lo.Map(ordered, func(g *group, _ int) schema.Document {
		return g.result(spec.Aggregations)
	})
	p.logger.Debug("Grouped rows", zap.String("by", spec.By), zap.Int("rows", len(rows)), zap.Int("groups", len(out)))
	return out, nil
}

// groupKey identifies a group value. Numbers of any Go type share a key per value.
func groupKey(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := numeric(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	return fmt.Sprintf("v:%v", v)
}

// keyLess orders group keys: nil first, then numbers by value, then everything else by
// its string form.
func keyLess(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	fa, aNum := numeric(a)
	fb, bNum := numeric(b)
	switch {
	case aNum && bNum:
		return fa < fb
	case aNum != bNum:
		return aNum
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// Bucket aggregates rows into the ranges described by spec. Only buckets that receive
// at least one document are returned, in boundary order with the default bucket last.
func (p *DataProcessor) Bucket(rows []schema.Document, spec BucketSpec) ([]schema.Document, error) {
	if spec.GroupBy == "" {
		return nil, fmt.Errorf("bucket requires a groupBy field")
	}
	if len(spec.Boundaries) < 2 {
		return nil, fmt.Errorf("bucket requires at least two boundaries")
	}
	if !sort.Float64sAreSorted(spec.Boundaries) || len(lo.Uniq(spec.Boundaries)) != len(spec.Boundaries) {
		return nil, fmt.Errorf("bucket boundaries must be strictly increasing")
	}
	if err := validateAggregations(spec.Aggregations); err != nil {
		return nil, err
	}

	buckets := make([]*group, len(spec.Boundaries)-1)
	var fallback *group

	for _, row := range rows {
		v, present := row.Get(spec.GroupBy)
		idx := -1
		if f, ok := numeric(v); present && ok {
			idx = sort.Search(len(spec.Boundaries), func(i int) bool { return spec.Boundaries[i] > f }) - 1
			if idx >= len(buckets) {
				idx = -1
			}
		}
		var g *group
		if idx < 0 {
			if spec.Default == nil {
				return nil, fmt.Errorf("value %v of document %v falls outside every bucket and no default is set", v, row[schema.IDField])
			}
			if fallback == nil {
				fallback = newGroup(spec.Default, len(spec.Aggregations))
			}
			g = fallback
		} else {
			if buckets[idx] == nil {
				buckets[idx] = newGroup(spec.Boundaries[idx], len(spec.Aggregations))
			}
			g = buckets[idx]
		}
		if err := g.add(row, spec.Aggregations); err != nil {
			return nil, err
		}
	}

	filled := lo.Filter(buckets, func(g *group, _ int) bool { return g != nil })
	if fallback != nil {
		filled = append(filled, fallback)
	}
	out := lo.Map(filled, func(g *group, _ int) schema.Document { return g.result(spec.Aggregations) })
	p.logger.Debug("Bucketed rows", zap.String("groupBy", spec.GroupBy), zap.Int("rows", len(rows)), zap.Int("buckets", len(out)))
	return out, nil
}
