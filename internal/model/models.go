package model

// Filter operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "notEquals"
	OpGreaterThan = "greaterThan"
	OpGT          = "gt"
	OpLessThan    = "lessThan"
	OpLT          = "lt"
	OpGTE         = "gte"
	OpLTE         = "lte"
	OpIn          = "in"
	OpLike        = "like"
	OpContains    = "contains"
)

// FilterSpec is a single predicate applied to record[Field].
type FilterSpec struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"` // unknown operators behave as "equals"
	Value    interface{} `json:"value" yaml:"value"`       // a list for "in"
}

// Join rollups.
const (
	JoinCount = "count"
	JoinSum   = "sum"
)

// JoinSpec enriches primary records with rows of RelatedTable where
// related[RelatedField] == record[LocalField].
type JoinSpec struct {
	LocalField   string `json:"localField" yaml:"localField"`
	RelatedTable string `json:"relatedTable" yaml:"relatedTable"`
	RelatedField string `json:"relatedField" yaml:"relatedField"`
	AggregateOp  string `json:"aggregateOp,omitempty" yaml:"aggregateOp,omitempty"` // "", "count" or "sum"
	SumField     string `json:"sumField,omitempty" yaml:"sumField,omitempty"`       // defaults to RelatedField
}

// Computed field types.
const (
	ComputedSum       = "sum"
	ComputedAverage   = "average"
	ComputedCount     = "count"
	ComputedConcat    = "concat"
	ComputedFormula   = "formula"
	ComputedCondition = "condition"
)

// ComputedFieldSpec describes a field derived at read time.
type ComputedFieldSpec struct {
	Name         string          `json:"name" yaml:"name"`
	Type         string          `json:"type" yaml:"type"`
	SourceFields []string        `json:"sourceFields,omitempty" yaml:"sourceFields,omitempty"` // sum, average, count, concat
	Formula      string          `json:"formula,omitempty" yaml:"formula,omitempty"`           // e.g. "{price} * {qty}"
	Conditions   []ConditionRule `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	DefaultValue interface{}     `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// ConditionRule yields Result when record[Field] matches Operator/Value.
type ConditionRule struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
	Result   interface{} `json:"result" yaml:"result"`
}

// Group aggregation operators.
const (
	AggSum         = "sum"
	AggAvg         = "avg"
	AggMin         = "min"
	AggMax         = "max"
	AggCount       = "count"
	AggConcatenate = "concatenate"
)

// GroupSpec buckets records by a dimension and reduces each bucket.
type GroupSpec struct {
	Field        string            `json:"field" yaml:"field"`
	Fields       []string          `json:"fields,omitempty" yaml:"fields,omitempty"` // extra dimensions
	Aggregations map[string]string `json:"aggregations" yaml:"aggregations"`         // metric field -> operator
}

// Dimensions returns Field followed by the extra dimensions.
func (g GroupSpec) Dimensions() []string {
	dims := make([]string, 0, len(g.Fields)+1)
	if g.Field != "" {
		dims = append(dims, g.Field)
	}
	for _, f := range g.Fields {
		if f != "" && f != g.Field {
			dims = append(dims, f)
		}
	}
	return dims
}

// Window function types.
const (
	WindowRowNumber  = "row_number"
	WindowRank       = "rank"
	WindowRunningSum = "running_sum"
	WindowLag        = "lag"
	WindowLead       = "lead"
)

// WindowSpec describes an order-dependent per-record computation.
type WindowSpec struct {
	Type        string `json:"type" yaml:"type"`
	Field       string `json:"field,omitempty" yaml:"field,omitempty"`
	PartitionBy string `json:"partitionBy,omitempty" yaml:"partitionBy,omitempty"`
	OrderBy     string `json:"orderBy" yaml:"orderBy"`
	Alias       string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// OutputField is the name of the field the window function adds.
func (w WindowSpec) OutputField() string {
	if w.Alias != "" {
		return w.Alias
	}
	switch w.Type {
	case WindowRowNumber, WindowRank:
		return w.Type
	}
	return w.Field + "_" + w.Type
}

// AggregationConfig is the unit of work submitted to the engine.
type AggregationConfig struct {
	TenantID       string              `json:"tenantId" yaml:"tenantId"`
	PrimaryTable   string              `json:"primaryTable" yaml:"primaryTable"`
	Filters        []FilterSpec        `json:"filters,omitempty" yaml:"filters,omitempty"`
	Joins          []JoinSpec          `json:"joins,omitempty" yaml:"joins,omitempty"`
	ComputedFields []ComputedFieldSpec `json:"computedFields,omitempty" yaml:"computedFields,omitempty"`
	Window         *WindowSpec         `json:"window,omitempty" yaml:"window,omitempty"`   // applied before grouping
	GroupBy        *GroupSpec          `json:"groupBy,omitempty" yaml:"groupBy,omitempty"` // optional
	SortBy         string              `json:"sortBy,omitempty" yaml:"sortBy,omitempty"`   // caller-side ordering of the final rows
	SortDesc       bool                `json:"sortDesc,omitempty" yaml:"sortDesc,omitempty"`
	Limit          int                 `json:"limit,omitempty" yaml:"limit,omitempty"` // 0 = all
}

// JoinConfig is the input of a standalone join.
type JoinConfig struct {
	TenantID     string       `json:"tenantId" yaml:"tenantId"`
	PrimaryTable string       `json:"primaryTable" yaml:"primaryTable"`
	Filters      []FilterSpec `json:"filters,omitempty" yaml:"filters,omitempty"`
	Joins        []JoinSpec   `json:"joins" yaml:"joins"`
	Limit        int          `json:"limit,omitempty" yaml:"limit,omitempty"`
}
