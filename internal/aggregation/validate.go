package aggregation

import (
	"go-aggregation-engine/internal/model"
)

// plan is a validated AggregationConfig with its computed fields compiled.
type plan struct {
	cfg      model.AggregationConfig
	computed []ComputedField
}

// ValidateConfig checks cfg before anything is fetched and reports the
// first problem as a ConfigValidationErr.
func ValidateConfig(cfg model.AggregationConfig) error {
	_, err := compile(cfg)
	return err
}

func compile(cfg model.AggregationConfig) (*plan, error) {
	if err := validateTarget(cfg.TenantID, cfg.PrimaryTable); err != nil {
		return nil, err
	}
	if err := validateFilters(cfg.Filters); err != nil {
		return nil, err
	}
	if err := validateJoins(cfg.Joins); err != nil {
		return nil, err
	}

	computed, err := CompileComputedFields(cfg.ComputedFields)
	if err != nil {
		return nil, err
	}

	if cfg.Window != nil {
		if err := validateWindow(*cfg.Window); err != nil {
			return nil, err
		}
	}
	if cfg.GroupBy != nil {
		if err := validateGroup(*cfg.GroupBy); err != nil {
			return nil, err
		}
	}
	if cfg.Limit < 0 {
		return nil, model.ConfigValidationError("limit must not be negative", map[string]any{
			"limit": cfg.Limit,
		})
	}

	return &plan{cfg: cfg, computed: computed}, nil
}

func validateJoinConfig(cfg model.JoinConfig) error {
	if err := validateTarget(cfg.TenantID, cfg.PrimaryTable); err != nil {
		return err
	}
	if err := validateFilters(cfg.Filters); err != nil {
		return err
	}
	if len(cfg.Joins) == 0 {
		return model.ConfigValidationError("at least one join is required", nil)
	}
	if cfg.Limit < 0 {
		return model.ConfigValidationError("limit must not be negative", map[string]any{
			"limit": cfg.Limit,
		})
	}
	return validateJoins(cfg.Joins)
}

func validateTarget(tenantID, table string) error {
	if tenantID == "" {
		return model.ConfigValidationError("tenantId is required", nil)
	}
	if table == "" {
		return model.ConfigValidationError("primaryTable is required", nil)
	}
	return nil
}

func validateFilters(filters []model.FilterSpec) error {
	for i, f := range filters {
		if f.Field == "" {
			return model.ConfigValidationError("filter requires a field", map[string]any{
				"filter": i,
			})
		}
	}
	return nil
}

func validateJoins(joins []model.JoinSpec) error {
	for i, j := range joins {
		if j.LocalField == "" || j.RelatedTable == "" || j.RelatedField == "" {
			return model.ConfigValidationError("join requires localField, relatedTable and relatedField", map[string]any{
				"join": i,
			})
		}
		switch j.AggregateOp {
		case "", model.JoinCount, model.JoinSum:
		default:
			return model.ConfigValidationError("unknown join aggregateOp", map[string]any{
				"join":        i,
				"aggregateOp": j.AggregateOp,
			})
		}
	}
	return nil
}
