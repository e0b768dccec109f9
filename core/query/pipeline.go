package query

import (
	"errors"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/schema"
)

// ErrInvalidStage is returned when a pipeline stage or expression is malformed.
var ErrInvalidStage = errors.New("invalid pipeline stage")

// ExpressionKind tags the variant held by an Expression.
type ExpressionKind string

const (
	ExpressionLiteral  ExpressionKind = "literal"  // A constant value
	ExpressionField    ExpressionKind = "field"    // The current value of another field of the same document
	ExpressionSequence ExpressionKind = "sequence" // A sequence built from nested expressions
	ExpressionCoalesce ExpressionKind = "coalesce" // The first nested expression that is not missing
)

// Expression computes a value from the document being updated. An expression that
// evaluates to "missing" removes its target field, so a reference to an absent field
// never writes a null.
type Expression struct {
	Kind  ExpressionKind `json:"kind"`
	Value any            `json:"value,omitempty"` // Literal value.
	Field string         `json:"field,omitempty"` // Referenced field path.
	Items []Expression   `json:"items,omitempty"` // Sequence elements or coalesce candidates.
}

// Literal returns an expression yielding v unchanged.
func Literal(v any) Expression {
	return Expression{Kind: ExpressionLiteral, Value: v}
}

// FieldRef returns an expression yielding the stored value of path.
func FieldRef(path string) Expression {
	return Expression{Kind: ExpressionField, Field: path}
}

// SequenceOf returns an expression building a sequence from items. Missing items are
// skipped; if every item is missing the sequence itself is missing.
func SequenceOf(items ...Expression) Expression {
	return Expression{Kind: ExpressionSequence, Items: items}
}

// Coalesce returns an expression yielding the first candidate that is present.
func Coalesce(candidates ...Expression) Expression {
	return Expression{Kind: ExpressionCoalesce, Items: candidates}
}

// KindCheck is the predicate of a conditional set: it holds when the value stored at
// Field has the given kind.
type KindCheck struct {
	Field string           `json:"field"`
	Kind  schema.ValueKind `json:"kind"`
}

// StageKind tags the variant held by a Stage.
type StageKind string

const (
	StageSetFields      StageKind = "set"
	StageUnsetFields    StageKind = "unset"
	StageConditionalSet StageKind = "cond"
)

// FieldAssignment assigns the result of an expression to a field path.
type FieldAssignment struct {
	Field string     `json:"field"`
	Value Expression `json:"value"`
}

// ConditionalAssignment assigns Then to Field when If holds, Else otherwise. The
// predicate is evaluated against the document as stored when the stage runs.
type ConditionalAssignment struct {
	Field string     `json:"field"`
	If    KindCheck  `json:"if"`
	Then  Expression `json:"then"`
	Else  Expression `json:"else"`
}

// Stage is one step of an update pipeline. Exactly one of the variant fields is used,
// selected by Kind. Every assignment within a stage reads the document as it was
// before the stage began.
type Stage struct {
	Kind        StageKind              `json:"kind"`
	Set         []FieldAssignment      `json:"set,omitempty"`
	Unset       []string               `json:"unset,omitempty"`
	Conditional *ConditionalAssignment `json:"conditional,omitempty"`
}

// Pipeline is an ordered list of stages applied atomically to a single document.
type Pipeline []Stage

// SetFields returns a stage assigning every entry of assignments.
func SetFields(assignments ...FieldAssignment) Stage {
	return Stage{Kind: StageSetFields, Set: assignments}
}

// Assign is shorthand for building a FieldAssignment.
func Assign(field string, value Expression) FieldAssignment {
	return FieldAssignment{Field: field, Value: value}
}

// UnsetFields returns a stage removing every named field. Absent fields are ignored.
func UnsetFields(fields ...string) Stage {
	return Stage{Kind: StageUnsetFields, Unset: fields}
}

// ConditionalSet returns a stage assigning then or otherwise to field depending on
// the kind of the value stored at check.Field.
func ConditionalSet(field string, check KindCheck, then, otherwise Expression) Stage {
	return Stage{
		Kind:        StageConditionalSet,
		Conditional: &ConditionalAssignment{Field: field, If: check, Then: then, Else: otherwise},
	}
}

// Validate checks the structural soundness of every stage.
func (p Pipeline) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: pipeline has no stages", ErrInvalidStage)
	}
	for i, stage := range p {
		if err := stage.validate(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return nil
}

func (s Stage) validate() error {
	switch s.Kind {
	case StageSetFields:
		if len(s.Set) == 0 {
			return fmt.Errorf("%w: set stage has no assignments", ErrInvalidStage)
		}
		for _, a := range s.Set {
			if _, err := schema.SplitPath(a.Field); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidStage, err)
			}
			if err := a.Value.validate(); err != nil {
				return err
			}
		}
	case StageUnsetFields:
		if len(s.Unset) == 0 {
			return fmt.Errorf("%w: unset stage has no fields", ErrInvalidStage)
		}
		for _, f := range s.Unset {
			if _, err := schema.SplitPath(f); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidStage, err)
			}
		}
	case StageConditionalSet:
		c := s.Conditional
		if c == nil {
			return fmt.Errorf("%w: conditional stage has no assignment", ErrInvalidStage)
		}
		if _, err := schema.SplitPath(c.Field); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStage, err)
		}
		if _, err := schema.SplitPath(c.If.Field); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStage, err)
		}
		switch c.If.Kind {
		case schema.KindMissing, schema.KindScalar, schema.KindSequence:
		default:
			return fmt.Errorf("%w: unknown value kind %q", ErrInvalidStage, c.If.Kind)
		}
		if err := c.Then.validate(); err != nil {
			return err
		}
		if err := c.Else.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown stage kind %q", ErrInvalidStage, s.Kind)
	}
	return nil
}

func (e Expression) validate() error {
	switch e.Kind {
	case ExpressionLiteral:
		return nil
	case ExpressionField:
		if _, err := schema.SplitPath(e.Field); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStage, err)
		}
		return nil
	case ExpressionSequence, ExpressionCoalesce:
		if e.Kind == ExpressionCoalesce && len(e.Items) == 0 {
			return fmt.Errorf("%w: coalesce needs at least one candidate", ErrInvalidStage)
		}
		for _, item := range e.Items {
			if err := item.validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown expression kind %q", ErrInvalidStage, e.Kind)
	}
}

// ReferencedFields lists every field path read by the pipeline, in order of first use.
func (p Pipeline) ReferencedFields() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(f string) {
		if _, ok := seen[f]; !ok {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	var walk func(e Expression)
	walk = func(e Expression) {
		if e.Kind == ExpressionField {
			add(e.Field)
		}
		for _, item := range e.Items {
			walk(item)
		}
	}
	for _, s := range p {
		for _, a := range s.Set {
			walk(a.Value)
		}
		if s.Conditional != nil {
			add(s.Conditional.If.Field)
			walk(s.Conditional.Then)
			walk(s.Conditional.Else)
		}
	}
	return out
}
