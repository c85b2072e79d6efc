package aggregation

import (
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"go-aggregation-engine/internal/formula"
	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

// maxLoggedFailures caps the per-field failure lines logged by one ComputeFields call.
const maxLoggedFailures = 5

// ComputedField is a compiled computed field. The set of implementations is
// closed: SumField, AverageField, CountField, ConcatField, FormulaField and
// ConditionField.
type ComputedField interface {
	FieldName() string
	Type() string
	computedField()
}

type SumField struct {
	Name    string
	Sources []string
}

type AverageField struct {
	Name    string
	Sources []string
}

// CountField counts the non-null source fields.
type CountField struct {
	Name    string
	Sources []string
}

// ConcatField joins the string forms of the non-null source fields with spaces.
type ConcatField struct {
	Name    string
	Sources []string
}

type FormulaField struct {
	Name string
	Expr *formula.Expression
}

// ConditionField yields the result of the first matching rule, or Default.
type ConditionField struct {
	Name    string
	Rules   []model.ConditionRule
	Default interface{}
}

func (f SumField) FieldName() string       { return f.Name }
func (f AverageField) FieldName() string   { return f.Name }
func (f CountField) FieldName() string     { return f.Name }
func (f ConcatField) FieldName() string    { return f.Name }
func (f FormulaField) FieldName() string   { return f.Name }
func (f ConditionField) FieldName() string { return f.Name }

func (SumField) Type() string       { return model.ComputedSum }
func (AverageField) Type() string   { return model.ComputedAverage }
func (CountField) Type() string     { return model.ComputedCount }
func (ConcatField) Type() string    { return model.ComputedConcat }
func (FormulaField) Type() string   { return model.ComputedFormula }
func (ConditionField) Type() string { return model.ComputedCondition }

func (SumField) computedField()       {}
func (AverageField) computedField()   {}
func (CountField) computedField()     {}
func (ConcatField) computedField()    {}
func (FormulaField) computedField()   {}
func (ConditionField) computedField() {}

// CompileComputedField validates spec and turns it into its ComputedField variant.
func CompileComputedField(spec model.ComputedFieldSpec) (ComputedField, error) {
	if spec.Name == "" {
		return nil, model.ConfigValidationError("computed field requires a name", map[string]any{
			"type": spec.Type,
		})
	}

	requireSources := func() error {
		if len(spec.SourceFields) == 0 {
			return model.ConfigValidationError("computed field requires sourceFields", map[string]any{
				"name": spec.Name,
				"type": spec.Type,
			})
		}
		return nil
	}

	switch spec.Type {
	case model.ComputedSum:
		if err := requireSources(); err != nil {
			return nil, err
		}
		return SumField{Name: spec.Name, Sources: spec.SourceFields}, nil

	case model.ComputedAverage:
		if err := requireSources(); err != nil {
			return nil, err
		}
		return AverageField{Name: spec.Name, Sources: spec.SourceFields}, nil

	case model.ComputedCount:
		if err := requireSources(); err != nil {
			return nil, err
		}
		return CountField{Name: spec.Name, Sources: spec.SourceFields}, nil

	case model.ComputedConcat:
		if err := requireSources(); err != nil {
			return nil, err
		}
		return ConcatField{Name: spec.Name, Sources: spec.SourceFields}, nil

	case model.ComputedFormula:
		if strings.TrimSpace(spec.Formula) == "" {
			return nil, model.ConfigValidationError("formula field requires a formula", map[string]any{
				"name": spec.Name,
			})
		}
		expr, err := formula.Parse(spec.Formula)
		if err != nil {
			return nil, err
		}
		return FormulaField{Name: spec.Name, Expr: expr}, nil

	case model.ComputedCondition:
		if len(spec.Conditions) == 0 {
			return nil, model.ConfigValidationError("condition field requires at least one rule", map[string]any{
				"name": spec.Name,
			})
		}
		for i, rule := range spec.Conditions {
			if rule.Field == "" {
				return nil, model.ConfigValidationError("condition rule requires a field", map[string]any{
					"name": spec.Name,
					"rule": i,
				})
			}
		}
		return ConditionField{Name: spec.Name, Rules: spec.Conditions, Default: spec.DefaultValue}, nil
	}

	return nil, model.ConfigValidationError("unknown computed field type", map[string]any{
		"name": spec.Name,
		"type": spec.Type,
	})
}

// CompileComputedFields compiles specs in order, stopping at the first invalid one.
func CompileComputedFields(specs []model.ComputedFieldSpec) ([]ComputedField, error) {
	fields := make([]ComputedField, 0, len(specs))
	for _, spec := range specs {
		f, err := CompileComputedField(spec)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Evaluate computes f for a single record.
func Evaluate(f ComputedField, rec model.Record) (interface{}, error) {
	switch f := f.(type) {
	case SumField:
		return sumOf(rec, f.Sources), nil

	case AverageField:
		return sumOf(rec, f.Sources) / float64(len(f.Sources)), nil

	case CountField:
		n := 0
		for _, src := range f.Sources {
			if _, ok := rec.Get(src); ok {
				n++
			}
		}
		return n, nil

	case ConcatField:
		parts := make([]string, 0, len(f.Sources))
		for _, src := range f.Sources {
			if v, ok := rec.Get(src); ok {
				parts = append(parts, utils.String(v))
			}
		}
		return strings.Join(parts, " "), nil

	case FormulaField:
		return f.Expr.Eval(rec)

	case ConditionField:
		for _, rule := range f.Rules {
			if Match(rec, rule.Field, rule.Operator, rule.Value) {
				return rule.Result, nil
			}
		}
		return f.Default, nil
	}

	return nil, model.ComputationError("unsupported computed field", map[string]any{
		"name": f.FieldName(),
	})
}

// ComputeFields returns copies of records with every computed field added.
// Fields are applied in order, so a field may reference an earlier one.
// A failed evaluation resolves to 0 for formulas and nil otherwise.
func ComputeFields(logger log.Logger, metrics *Metrics, records []model.Record, fields []ComputedField) []model.Record {
	out := model.CloneRecords(records)
	if len(fields) == 0 {
		return out
	}

	failures := make(map[string]int, len(fields))
	for _, rec := range out {
		for _, f := range fields {
			v, err := Evaluate(f, rec)
			if err != nil {
				v = fallbackValue(f)
				failures[f.FieldName()]++
				if metrics != nil {
					metrics.computationFailures.WithLabelValues(f.Type()).Inc()
				}
				if failures[f.FieldName()] <= maxLoggedFailures {
					level.Warn(logger).Log("msg", "computed field evaluation failed", "field", f.FieldName(), "type", f.Type(), "err", err)
				}
			}
			rec[f.FieldName()] = v
		}
	}

	for _, f := range fields {
		if n := failures[f.FieldName()]; n > maxLoggedFailures {
			level.Warn(logger).Log("msg", "computed field failures suppressed", "field", f.FieldName(), "failures", n, "logged", maxLoggedFailures)
		}
	}
	return out
}

func fallbackValue(f ComputedField) interface{} {
	if _, ok := f.(FormulaField); ok {
		return 0.0
	}
	return nil
}

func sumOf(rec model.Record, fields []string) float64 {
	var sum float64
	for _, f := range fields {
		sum += rec.Numeric(f)
	}
	return sum
}
