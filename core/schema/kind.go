package schema

import "reflect"

// ValueKind classifies a stored field value for the cardinality checks performed by
// migrations. The set is closed.
type ValueKind string

const (
	KindMissing  ValueKind = "missing"  // The field is not present on the document
	KindScalar   ValueKind = "scalar"   // Any present value that is not a sequence, null included
	KindSequence ValueKind = "sequence" // An ordered list of values
)

// KindOf classifies a value fetched from a document. present must be the second
// result of the lookup that produced v.
func KindOf(v any, present bool) ValueKind {
	if !present {
		return KindMissing
	}
	if v == nil {
		return KindScalar
	}
	if _, isBytes := v.([]byte); isBytes {
		return KindScalar
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return KindSequence
	default:
		return KindScalar
	}
}

// FieldKind resolves path on d and classifies the result.
func (d Document) FieldKind(path string) ValueKind {
	v, ok := d.Get(path)
	return KindOf(v, ok)
}

// ToSequence converts any sequence value into []any. The boolean is false when v is
// not a sequence.
func ToSequence(v any) ([]any, bool) {
	if KindOf(v, true) != KindSequence {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
